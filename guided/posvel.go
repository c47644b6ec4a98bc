// guided/posvel.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"copterguided/math"
)

// posvelControlRun flies one tick of the position-velocity submode: the
// staged position advances by dead reckoning on the staged velocity, and
// both are pushed into the position loop each tick.
func (m *Mode) posvelControlRun() {
	pilotYawRate := m.pilotYawRate()

	if m.isDisarmedOrLanded() {
		m.makeSafeSpoolDown()
		return
	}

	m.motors.SetDesiredSpool(DesiredSpoolUnlimited)

	// Zero the velocity target and stop rotating if no updates have
	// arrived within the staleness window; the staged position then stops
	// advancing as well.
	if m.clock.Now().Sub(m.posvelUpdateTime) > posvelTimeout {
		m.velTarget = [3]float32{}
		if m.yaw.Mode() == YawRate {
			m.yaw.SetRate(0)
		}
	}

	dt := m.posControl.TimeSinceLastXYUpdate()

	// A stalled horizontal loop would otherwise extrapolate the staged
	// position far off target.
	if dt >= maxPosvelDT {
		dt = 0
	}

	m.posTarget = math.Add3f(m.posTarget, math.Scale3f(m.velTarget, dt))

	m.posControl.SetPosTarget(m.posTarget)
	m.posControl.SetDesiredVelocityXY(m.velTarget[0], m.velTarget[1])

	m.posControl.UpdateXYController()
	m.posControl.UpdateZController()

	switch m.yaw.Mode() {
	case YawHold:
		m.attControl.InputEulerRollPitchYawRate(m.posControl.Roll(), m.posControl.Pitch(), pilotYawRate)
	case YawRate:
		m.attControl.InputEulerRollPitchYawRate(m.posControl.Roll(), m.posControl.Pitch(), m.yaw.Rate())
	default:
		m.attControl.InputEulerRollPitchYaw(m.posControl.Roll(), m.posControl.Pitch(), m.yaw.Yaw(), true)
	}
}
