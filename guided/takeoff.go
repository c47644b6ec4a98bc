// guided/takeoff.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"log/slog"
)

// StartTakeoff stages a takeoff to altCM centimeters and enters the TakeOff
// submode. The climb is framed terrain-relative only when a healthy
// rangefinder-sourced terrain estimate covers the requested height; a
// terrain-relative takeoff that would require net descent returns
// ErrDownwardTakeoff. ErrDestinationRejected is returned if the follower is
// missing terrain data for the destination.
func (m *Mode) StartTakeoff(altCM float32) error {
	loc := m.inertial.Location()
	frame := AltFrameAboveHome

	if m.rangefinder != nil && m.wpNav.RangefinderHealthy() &&
		m.wpNav.TerrainSource() == TerrainSourceRangefinder &&
		altCM < m.rangefinder.MaxDistanceCM() {
		// Can't take off downwards.
		if altCM <= m.rangefinder.AltCM() {
			m.recordError(ErrDownwardTakeoff)
			return ErrDownwardTakeoff
		}
		frame = AltFrameAboveTerrain
	}
	loc.AltCM = altCM
	loc.Frame = frame

	if !m.wpNav.SetDestination(loc) {
		// Failure to stage a location can only be missing terrain data.
		m.recordError(ErrDestinationRejected)
		return ErrDestinationRejected
	}

	m.submode = SubmodeTakeOff

	m.yaw.SetMode(YawHold)

	// Clear the throttle integrator for the climb-out.
	m.posControl.InitTakeoff()

	// Baseline for the wings-level gate during initial climb.
	m.takeoffStartAlt = m.inertial.Position()[2]

	m.lg.Info("guided takeoff", slog.Float64("alt_cm", float64(altCM)),
		slog.String("frame", frame.String()))
	m.recordTarget([3]float32{0, 0, altCM}, [3]float32{})
	return nil
}

// takeoffRun flies one tick of the takeoff climb. On arrival the destination
// is re-staged through SetPositionTarget, handing control to position-hold
// with no discontinuity.
func (m *Mode) takeoffRun() {
	if !m.motors.Armed() || !m.motors.AutoArmed() {
		m.makeSafeSpoolDown()
		return
	}

	pilotYawRate := m.pilotYawRate()

	m.motors.SetDesiredSpool(DesiredSpoolUnlimited)

	m.updateWPNav()
	m.posControl.UpdateZController()

	roll, pitch := m.wpNav.Roll(), m.wpNav.Pitch()
	if m.inertial.Position()[2] < m.takeoffStartAlt+m.params.TakeoffNavAltMin {
		// Wings level until clear of the takeoff point.
		roll, pitch = 0, 0
	}
	m.attControl.InputEulerRollPitchYawRate(roll, pitch, pilotYawRate)

	if m.wpNav.ReachedDestination() {
		if m.gear != nil {
			m.gear.RetractAfterTakeoff()
		}

		// Switch to position-hold but maintain the current target.
		target := m.wpNav.Destination()
		_ = m.SetPositionTarget(target, YawSpec{}, m.wpNav.DestinationIsTerrainAlt())
	}
}

// updateWPNav advances the waypoint follower and forwards its terrain health
// to the failsafe sink.
func (m *Mode) updateWPNav() {
	ok := m.wpNav.Update()
	if m.failsafe != nil {
		m.failsafe.SetTerrainStatus(ok)
	}
}
