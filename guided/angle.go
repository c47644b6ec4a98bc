// guided/angle.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"copterguided/math"
	"copterguided/util"
)

// angleControlRun flies one tick of the angle submode: externally commanded
// roll/pitch/yaw (or yaw rate) with either a climb rate or a direct thrust
// fraction.
func (m *Mode) angleControlRun() {
	// Constrain desired lean angles, scaling both axes by the same ratio
	// so the direction of lean is preserved.
	rollIn := m.angle.RollCD
	pitchIn := m.angle.PitchCD
	totalIn := math.Norm(rollIn, pitchIn)
	angleMax := min(m.attControl.LeanAngleMax(), m.params.AngleMax)
	if totalIn > angleMax {
		ratio := angleMax / totalIn
		rollIn *= ratio
		pitchIn *= ratio
	}

	// Wrap yaw request.
	yawIn := math.Wrap180CD(m.angle.YawCD)
	yawRateIn := math.Wrap180CD(m.angle.YawRateCDS)

	climbRate := float32(0)
	if !m.angle.UseThrust {
		climbRate = math.Clamp(m.angle.ClimbRate,
			-math.Abs(m.wpNav.DefaultSpeedDown()), m.wpNav.DefaultSpeedUp())
		climbRate = m.avoidanceAdjustedClimbRate(climbRate)
	}

	// Resolve a stale target to level attitude and zero climb, and drop
	// out of thrust mode.
	if m.clock.Now().Sub(m.angle.UpdateTime) > attitudeTimeout {
		rollIn = 0
		pitchIn = 0
		climbRate = 0
		yawRateIn = 0
		m.angle.UseThrust = false
	}

	// Positive climb rate or thrust while armed triggers an implicit
	// takeoff.
	positiveThrustOrClimb := math.IsPositive(util.Select(m.angle.UseThrust, m.angle.Thrust, climbRate))
	if m.motors.Armed() && positiveThrustOrClimb {
		m.motors.SetAutoArmed(true)
	}

	if !m.motors.Armed() || !m.motors.AutoArmed() ||
		(m.motors.LandComplete() && !positiveThrustOrClimb) {
		m.makeSafeSpoolDown()
		return
	}

	// Landed with positive desired climb rate: takeoff.
	if m.motors.LandComplete() && m.angle.ClimbRate > 0 {
		m.zeroThrottleAndRelax()
		m.motors.SetDesiredSpool(DesiredSpoolUnlimited)
		if m.motors.Spool() == SpoolUnlimited {
			m.motors.SetLandComplete(false)
			m.posControl.InitTakeoff()
		}
		return
	}

	m.motors.SetDesiredSpool(DesiredSpoolUnlimited)

	if m.angle.UseYawRate {
		m.attControl.InputEulerRollPitchYawRate(rollIn, pitchIn, yawRateIn)
	} else {
		m.attControl.InputEulerRollPitchYaw(rollIn, pitchIn, yawIn, true)
	}

	if m.angle.UseThrust {
		m.attControl.SetThrottleOut(m.angle.Thrust, true, m.params.ThrottleFilt)
	} else {
		m.posControl.SetAltTargetFromClimbRate(climbRate, m.dt)
		m.posControl.UpdateZController()
	}
}
