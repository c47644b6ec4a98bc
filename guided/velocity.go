// guided/velocity.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"copterguided/math"
)

// velControlRun flies one tick of the velocity submode.
func (m *Mode) velControlRun() {
	pilotYawRate := m.pilotYawRate()

	// Landed with positive desired climb rate: initiate takeoff. Hold zero
	// throttle while the motors spool, then clear the landed flag and
	// reset the throttle integrator; normal control resumes next tick.
	if m.motors.Armed() && m.motors.AutoArmed() && m.motors.LandComplete() &&
		math.IsPositive(m.velTarget[2]) {
		m.zeroThrottleAndRelax()
		m.motors.SetDesiredSpool(DesiredSpoolUnlimited)
		if m.motors.Spool() == SpoolUnlimited {
			m.motors.SetLandComplete(false)
			m.posControl.InitTakeoff()
		}
		return
	}

	if m.isDisarmedOrLanded() {
		m.makeSafeSpoolDown()
		return
	}

	m.motors.SetDesiredSpool(DesiredSpoolUnlimited)

	// Decay the commanded velocity to zero if no updates have arrived
	// within the staleness window. The applied velocity is already zero
	// once the decay completes, so skip the recompute then.
	if m.clock.Now().Sub(m.velUpdateTime) > posvelTimeout {
		if !math.IsZero3f(m.posControl.DesiredVelocity()) {
			m.setDesiredVelocityWithAccelAndFenceLimits([3]float32{})
		}
		if m.yaw.Mode() == YawRate {
			m.yaw.SetRate(0)
		}
	} else {
		m.setDesiredVelocityWithAccelAndFenceLimits(m.velTarget)
	}

	// Combined velocity controller, z axis included.
	m.posControl.UpdateVelControllerXYZ()

	switch m.yaw.Mode() {
	case YawHold:
		m.attControl.InputEulerRollPitchYawRate(m.posControl.Roll(), m.posControl.Pitch(), pilotYawRate)
	case YawRate:
		m.attControl.InputEulerRollPitchYawRate(m.posControl.Roll(), m.posControl.Pitch(), m.yaw.Rate())
	default:
		m.attControl.InputEulerRollPitchYaw(m.posControl.Roll(), m.posControl.Pitch(), m.yaw.Yaw(), true)
	}
}

// setDesiredVelocityWithAccelAndFenceLimits bounds the per-tick change in
// commanded velocity by the configured acceleration limits, preserving the
// direction of the horizontal delta, then runs the result through the
// avoidance adjustment before committing it to the position loop. This
// bounds commanded jerk no matter how large a single external update is.
func (m *Mode) setDesiredVelocityWithAccelAndFenceLimits(desired [3]float32) {
	current := m.posControl.DesiredVelocity()

	delta := math.Sub3f(desired, current)

	// Limit the horizontal change, scaling both axes by the same ratio.
	deltaXY := math.Norm(delta[0], delta[1])
	maxDeltaXY := m.dt * m.posControl.MaxAccelXY()
	ratioXY := float32(1)
	if !math.IsZero(deltaXY) && deltaXY > maxDeltaXY {
		ratioXY = maxDeltaXY / deltaXY
	}
	current[0] += delta[0] * ratioXY
	current[1] += delta[1] * ratioXY

	// Limit the vertical change independently.
	maxDeltaZ := m.dt * m.posControl.MaxAccelZ()
	current[2] += math.Clamp(delta[2], -maxDeltaZ, maxDeltaZ)

	if m.avoid != nil {
		// Limit the velocity to prevent fence violations.
		m.avoid.AdjustVelocity(m.posControl.PosXYkP(), m.posControl.MaxAccelXY(), &current, m.dt)
		current[2] = m.avoid.AdjustClimbRate(current[2])
	}

	m.posControl.SetDesiredVelocity(current)
}
