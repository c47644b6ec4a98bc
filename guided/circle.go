// guided/circle.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"errors"
	"log/slog"

	"copterguided/math"
)

// ErrCircleInit is recorded when a mission circle's center cannot be
// converted to the local frame; the circle is flown about the current
// position instead.
var ErrCircleInit = errors.New("circle center unavailable: frame conversion failed")

// circleRun flies one tick of the orbit. Pilot yaw-rate input is not applied
// here; yaw is either the tracker's (Hold) or the policy's heading.
func (m *Mode) circleRun() {
	m.circleNav.Update()

	m.posControl.UpdateZController()

	if m.yaw.Mode() == YawHold {
		m.attControl.InputEulerRollPitchYaw(m.circleNav.Roll(), m.circleNav.Pitch(), m.circleNav.Yaw(), true)
	} else {
		m.attControl.InputEulerRollPitchYaw(m.circleNav.Roll(), m.circleNav.Pitch(), m.yaw.Yaw(), true)
	}
}

// circleStart enters the orbit; the tracker must already hold the circle's
// center and radius. An active ROI yaw policy is never overridden.
func (m *Mode) circleStart() {
	m.submode = SubmodeCircle

	m.circleNav.Init(m.circleNav.Center())

	if m.yaw.Mode() != YawROI {
		m.yaw.SetMode(YawHold)
	}
}

// circleMoveToEdgeStart stages an orbit about center: when the vehicle is
// more than circleEdgeDistanceCM from the circle's nearest edge point it
// first flies an approach leg to that point, otherwise orbiting begins
// immediately.
func (m *Mode) circleMoveToEdgeStart(center Location, radiusM float32) {
	centerNEU, ok := m.inertial.LocationToNEU(center)
	if !ok {
		// Default to the current position and record the failure.
		centerNEU = m.inertial.Position()
		m.lg.Error("circle center conversion failed", slog.Any("center", center))
		m.recordError(ErrCircleInit)
	}
	m.circleNav.SetCenter(centerNEU)

	if !math.IsZero(radiusM) {
		m.circleNav.SetRadius(radiusM * 100)
	}

	edge := m.circleNav.ClosestPointOnCircle()
	curr := m.inertial.Position()
	distToEdge := math.Distance3f(curr, edge)

	if distToEdge > circleEdgeDistanceCM {
		m.submode = SubmodeCircleApproach

		// The edge point keeps the command's altitude framing.
		edgeLoc := m.inertial.LocationFromNEU(edge)
		edgeLoc.AltCM = center.AltCM
		edgeLoc.Frame = center.Frame

		if !m.wpNav.SetDestination(edgeLoc) {
			// Missing terrain data mid-mission is a failsafe event, not
			// an error return.
			if m.failsafe != nil {
				m.failsafe.TriggerTerrainFailsafe()
			}
		}

		// Face direction of travel unless already inside the circle or
		// close to its edge, where turning toward the edge point would
		// just spin the vehicle in place.
		distToCenter := math.Norm(centerNEU[0]-curr[0], centerNEU[1]-curr[1])
		if m.yaw.Mode() != YawROI {
			if distToCenter > m.circleNav.Radius() && distToCenter > circleYawHoldDistanceCM {
				m.yaw.SetModeToDefault()
			} else {
				m.yaw.SetMode(YawHold)
			}
		}
	} else {
		m.circleStart()
	}
}

// verifyCircle reports whether a mission circle command has completed. The
// approach leg reports not-complete on the tick it resolves the circle's
// deferred center and transitions to the orbit; the orbit completes once the
// accumulated angle covers the requested lap count.
func (m *Mode) verifyCircle(cmd Command) bool {
	if m.submode == SubmodeCircleApproach {
		if m.wpNav.ReachedDestination() {
			center, ok := m.inertial.LocationToNEU(cmd.Loc)
			if !ok {
				// Should never happen: the location converted when the
				// approach began.
				return true
			}
			curr := m.inertial.Position()
			if math.IsZero(center[2]) {
				center[2] = curr[2]
			}
			if cmd.Loc.Lat == 0 && cmd.Loc.Lng == 0 {
				center[0], center[1] = curr[0], curr[1]
			}
			m.circleNav.SetCenter(center)

			m.circleStart()
		}
		return false
	}

	return math.Abs(m.circleNav.AngleTotal())/(2*math.Pi()) >= float32(cmd.Laps())
}
