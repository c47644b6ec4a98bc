// math/vec.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

// Arithmetic helpers for 2- and 3-component float32 vectors. Three-component
// vectors hold positions and velocities in the local NEU navigation frame:
// index 0 north, index 1 east, index 2 up, in centimeters or cm/s. Names are
// brief in order to avoid clutter when they're used.

// a+b
func Add2f(a [2]float32, b [2]float32) [2]float32 {
	return [2]float32{a[0] + b[0], a[1] + b[1]}
}

// a-b
func Sub2f(a [2]float32, b [2]float32) [2]float32 {
	return [2]float32{a[0] - b[0], a[1] - b[1]}
}

// a*s
func Scale2f(a [2]float32, s float32) [2]float32 {
	return [2]float32{s * a[0], s * a[1]}
}

// Length of v
func Length2f(v [2]float32) float32 {
	return Sqrt(v[0]*v[0] + v[1]*v[1])
}

// Distance between two points
func Distance2f(a [2]float32, b [2]float32) float32 {
	return Length2f(Sub2f(a, b))
}

// Normalizes the given vector.
func Normalize2f(a [2]float32) [2]float32 {
	l := Length2f(a)
	if l == 0 {
		return [2]float32{0, 0}
	}
	return Scale2f(a, 1/l)
}

// a+b
func Add3f(a [3]float32, b [3]float32) [3]float32 {
	return [3]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// a-b
func Sub3f(a [3]float32, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// a*s
func Scale3f(a [3]float32, s float32) [3]float32 {
	return [3]float32{s * a[0], s * a[1], s * a[2]}
}

// Length of v
func Length3f(v [3]float32) float32 {
	return Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Distance between two points
func Distance3f(a [3]float32, b [3]float32) float32 {
	return Length3f(Sub3f(a, b))
}

// LengthXY returns the length of the horizontal (north/east) part of a NEU
// vector, ignoring the vertical component.
func LengthXY(v [3]float32) float32 {
	return Sqrt(v[0]*v[0] + v[1]*v[1])
}

// DistanceXY returns the horizontal distance between two NEU positions.
func DistanceXY(a [3]float32, b [3]float32) float32 {
	return Norm(a[0]-b[0], a[1]-b[1])
}

func IsZero3f(v [3]float32) bool {
	return IsZero(v[0]) && IsZero(v[1]) && IsZero(v[2])
}
