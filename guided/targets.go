// guided/targets.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"log/slog"

	"copterguided/math"
)

// Submode entry functions. Every transition goes through one of these so the
// new submode starts from a clean slate: limits and internal loop state are
// reconfigured and no stale target survives from the previous submode.

// posControlStart enters position-hold: stop at the stopping point and hand
// lateral control to the waypoint follower.
func (m *Mode) posControlStart() {
	m.submode = SubmodePositionHold

	m.wpNav.Init()

	// Stopping point altitude is never terrain-relative, so staging it
	// cannot fail.
	m.wpNav.SetDestinationNEU(m.wpNav.StoppingPoint(), false)

	m.yaw.SetModeToDefault()
}

// velControlStart enters the velocity submode: speed and acceleration limits
// come from the navigation configuration and the velocity loop is reset.
func (m *Mode) velControlStart() {
	m.submode = SubmodeVelocity

	m.posControl.SetMaxSpeedXY(m.wpNav.DefaultSpeedXY())
	m.posControl.SetMaxAccelXY(m.wpNav.Acceleration())

	m.posControl.SetMaxSpeedZ(-m.params.PilotSpeedDown, m.params.PilotSpeedUp)
	m.posControl.SetMaxAccelZ(m.params.PilotAccelZ)

	m.posControl.InitVelControllerXYZ()
}

// posvelControlStart enters the position-velocity submode: the staged
// position and velocity are seeded from the current state estimate so the
// first dead-reckoning step is continuous.
func (m *Mode) posvelControlStart() {
	m.submode = SubmodePositionVelocity

	m.posControl.InitXYController()

	m.posControl.SetMaxSpeedXY(m.wpNav.DefaultSpeedXY())
	m.posControl.SetMaxAccelXY(m.wpNav.Acceleration())

	pos := m.inertial.Position()
	vel := m.inertial.Velocity()
	m.posControl.SetXYTarget(pos[0], pos[1])
	m.posControl.SetDesiredVelocityXY(vel[0], vel[1])

	m.posControl.SetMaxSpeedZ(-m.wpNav.DefaultSpeedDown(), m.wpNav.DefaultSpeedUp())
	m.posControl.SetMaxAccelZ(m.wpNav.AccelZ())

	// Pilot always controls yaw.
	m.yaw.SetMode(YawHold)
}

// angleControlStart enters the angle submode: the staged attitude is seeded
// from the current attitude with zero climb and yaw rate, and the vertical
// loop is aligned with the current altitude if it isn't already running.
func (m *Mode) angleControlStart() {
	m.submode = SubmodeAngle

	m.posControl.SetMaxSpeedZ(-m.wpNav.DefaultSpeedDown(), m.wpNav.DefaultSpeedUp())
	m.posControl.SetMaxAccelZ(m.wpNav.AccelZ())

	if !m.posControl.IsActiveZ() {
		m.posControl.SetAltTargetToCurrentAlt()
		m.posControl.SetDesiredVelocityZ(m.inertial.Velocity()[2])
	}

	roll, pitch, yawCD := m.inertial.AttitudeCD()
	m.angle = AngleTarget{
		UpdateTime: m.clock.Now(),
		RollCD:     roll,
		PitchCD:    pitch,
		YawCD:      yawCD,
	}

	// Pilot always controls yaw.
	m.yaw.SetMode(YawHold)
}

// SetPositionTarget stages a destination given in the local NEU frame, in
// centimeters; terrainAlt marks the vertical component as height above
// terrain. It returns ErrOutsideFence, with no state mutated, if a geofence
// is configured and the destination falls outside it.
func (m *Mode) SetPositionTarget(dest [3]float32, yawSpec YawSpec, terrainAlt bool) error {
	if m.fence != nil && !m.fence.DestinationWithinFence(m.inertial.LocationFromNEU(dest)) {
		m.recordError(ErrOutsideFence)
		return ErrOutsideFence
	}

	if m.submode != SubmodePositionHold {
		m.posControlStart()
	}

	m.setYawState(yawSpec)

	// Terrain data is not consulted for local-frame destinations, so
	// staging cannot fail.
	m.wpNav.SetDestinationNEU(dest, terrainAlt)

	m.lg.Debug("guided position target", slog.Any("dest", dest))
	m.recordTarget(dest, [3]float32{})
	return nil
}

// SetPositionTargetLocation stages a destination from a global location. It
// returns ErrOutsideFence if the destination falls outside a configured
// geofence, or ErrDestinationRejected if the follower is missing the terrain
// data needed to use the location.
func (m *Mode) SetPositionTargetLocation(loc Location, yawSpec YawSpec) error {
	// Note: a target specified as a terrain altitude might escape the
	// check if the conversion to altitude-above-home fails.
	if m.fence != nil && !m.fence.DestinationWithinFence(loc) {
		m.recordError(ErrOutsideFence)
		return ErrOutsideFence
	}

	if m.submode != SubmodePositionHold {
		m.posControlStart()
	}

	if !m.wpNav.SetDestination(loc) {
		// Failure to stage a location can only be missing terrain data.
		m.recordError(ErrDestinationRejected)
		return ErrDestinationRejected
	}

	m.setYawState(yawSpec)

	m.lg.Debug("guided position target", slog.Any("loc", loc))
	m.recordTarget([3]float32{float32(loc.Lat), float32(loc.Lng), loc.AltCM}, [3]float32{})
	return nil
}

// SetVelocityTarget stages a velocity target in cm/s. The target carries a
// timestamp; if it's not refreshed within the staleness window the velocity
// runner decays the command to zero.
func (m *Mode) SetVelocityTarget(vel [3]float32, yawSpec YawSpec, record bool) {
	if m.submode != SubmodeVelocity {
		m.velControlStart()
	}

	m.setYawState(yawSpec)

	m.velTarget = vel
	m.velUpdateTime = m.clock.Now()

	if record {
		m.lg.Debug("guided velocity target", slog.Any("vel", vel))
		m.recordTarget([3]float32{}, vel)
	}
}

// SetPositionVelocityTarget stages a combined position and velocity target.
// It returns ErrOutsideFence, with no state mutated, if the position falls
// outside a configured geofence.
func (m *Mode) SetPositionVelocityTarget(pos, vel [3]float32, yawSpec YawSpec) error {
	if m.fence != nil && !m.fence.DestinationWithinFence(m.inertial.LocationFromNEU(pos)) {
		m.recordError(ErrOutsideFence)
		return ErrOutsideFence
	}

	if m.submode != SubmodePositionVelocity {
		m.posvelControlStart()
	}

	m.setYawState(yawSpec)

	m.posvelUpdateTime = m.clock.Now()
	m.posTarget = pos
	m.velTarget = vel

	m.posControl.SetPosTarget(pos)

	m.lg.Debug("guided position-velocity target", slog.Any("pos", pos), slog.Any("vel", vel))
	m.recordTarget(pos, vel)
	return nil
}

// SetAngleTarget stages an attitude target from a quaternion plus either a
// climb rate (cm/s) or a direct thrust fraction in [-1,1] per useThrust.
// yawRate is radians/s and applies when useYawRate is set.
func (m *Mode) SetAngleTarget(q math.Quat, climbRateOrThrust float32, useYawRate bool, yawRate float32, useThrust bool) {
	if m.submode != SubmodeAngle {
		m.angleControlStart()
	}

	roll, pitch, yaw := q.Euler()
	m.angle.RollCD = math.Degrees(roll) * 100
	m.angle.PitchCD = math.Degrees(pitch) * 100
	m.angle.YawCD = math.Wrap180CD(math.Degrees(yaw) * 100)
	m.angle.YawRateCDS = math.Degrees(yawRate) * 100
	m.angle.UseYawRate = useYawRate

	m.angle.UseThrust = useThrust
	if useThrust {
		m.angle.Thrust = climbRateOrThrust
		m.angle.ClimbRate = 0
	} else {
		m.angle.Thrust = 0
		m.angle.ClimbRate = climbRateOrThrust
	}

	m.angle.UpdateTime = m.clock.Now()

	m.lg.Debug("guided angle target", slog.Any("target", m.angle))
	m.recordTarget([3]float32{m.angle.RollCD, m.angle.PitchCD, m.angle.YawCD},
		[3]float32{0, 0, climbRateOrThrust})
}
