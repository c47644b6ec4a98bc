// guided/poshold.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

// posControlRun flies one tick of position-hold: the waypoint follower owns
// roll/pitch, the vertical loop tracks the follower's altitude target, and
// yaw follows the active policy. The approach leg to a mission circle runs
// through here as well.
func (m *Mode) posControlRun() {
	pilotYawRate := m.pilotYawRate()

	if m.isDisarmedOrLanded() {
		m.makeSafeSpoolDown()
		return
	}

	m.motors.SetDesiredSpool(DesiredSpoolUnlimited)

	m.updateWPNav()

	// The follower has already updated the vertical target.
	m.posControl.UpdateZController()

	switch m.yaw.Mode() {
	case YawHold:
		// Roll & pitch from the follower, yaw rate from the pilot.
		m.attControl.InputEulerRollPitchYawRate(m.wpNav.Roll(), m.wpNav.Pitch(), pilotYawRate)
	case YawRate:
		// Roll & pitch from the follower, yaw rate from the command source.
		m.attControl.InputEulerRollPitchYawRate(m.wpNav.Roll(), m.wpNav.Pitch(), m.yaw.Rate())
	default:
		// Roll & pitch from the follower, heading from the yaw policy.
		m.attControl.InputEulerRollPitchYaw(m.wpNav.Roll(), m.wpNav.Pitch(), m.yaw.Yaw(), true)
	}
}
