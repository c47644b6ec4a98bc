// guided/limits.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"time"

	"copterguided/math"
)

// Limit is the envelope applied to a mission-invoked guided segment. A
// zero-valued bound is inactive. The mission layer polls LimitCheck every
// tick and decides abort policy itself; the core only reports the breach.
type Limit struct {
	Timeout    time.Duration
	AltMinCM   float32 // above home; 0 = no limit
	AltMaxCM   float32 // above home; 0 = no limit
	HorizMaxCM float32 // from the session start position; 0 = no limit

	StartTime time.Time
	StartPos  [3]float32 // NEU cm
}

// breached is a pure function of the limit configuration, the elapsed
// session time, and the current position.
func (l Limit) breached(elapsed time.Duration, pos [3]float32) bool {
	if l.Timeout > 0 && elapsed >= l.Timeout {
		return true
	}
	if !math.IsZero(l.AltMinCM) && pos[2] < l.AltMinCM {
		return true
	}
	if !math.IsZero(l.AltMaxCM) && pos[2] > l.AltMaxCM {
		return true
	}
	if l.HorizMaxCM > 0 && math.DistanceXY(l.StartPos, pos) > l.HorizMaxCM {
		return true
	}
	return false
}

// LimitSet configures the envelope for the next guided segment. The fields
// stay fixed for the duration of the segment.
func (m *Mode) LimitSet(timeout time.Duration, altMinCM, altMaxCM, horizMaxCM float32) {
	m.limit.Timeout = timeout
	m.limit.AltMinCM = altMinCM
	m.limit.AltMaxCM = altMaxCM
	m.limit.HorizMaxCM = horizMaxCM
}

// LimitClear disables the envelope between segments.
func (m *Mode) LimitClear() {
	m.LimitSet(0, 0, 0, 0)
}

// LimitInit marks the start of a guided segment: the session clock and the
// reference position for the horizontal bound.
func (m *Mode) LimitInit() {
	m.limit.StartTime = m.clock.Now()
	m.limit.StartPos = m.inertial.Position()
}

// LimitCheck reports whether the segment has breached its envelope.
func (m *Mode) LimitCheck() bool {
	return m.limit.breached(m.clock.Now().Sub(m.limit.StartTime), m.inertial.Position())
}
