// math/angle.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

// Angle helpers. Attitude angles on the command link are centidegrees
// (1/100 degree); headings are degrees in [0,360).

// Wrap360CD wraps a centidegree angle to [0, 36000).
func Wrap360CD(a float32) float32 {
	a = Mod(a, 36000)
	if a < 0 {
		a += 36000
	}
	return a
}

// Wrap180CD wraps a centidegree angle to (-18000, 18000].
func Wrap180CD(a float32) float32 {
	w := Wrap360CD(a)
	if w > 18000 {
		w -= 36000
	}
	return w
}

func NormalizeHeading(h float32) float32 {
	h = Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// HeadingDifference returns the minimum angle between two headings, in
// degrees, in [0,180].
func HeadingDifference(a float32, b float32) float32 {
	var d float32
	if a > b {
		d = a - b
	} else {
		d = b - a
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}
