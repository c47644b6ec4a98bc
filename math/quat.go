// math/quat.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

// Quat is a unit quaternion in (w, x, y, z) order describing a vehicle
// attitude. Command sources deliver attitude targets as quaternions; the
// control core only ever needs the euler decomposition.
type Quat [4]float32

// MakeQuatEuler builds a quaternion from roll, pitch, yaw given in radians.
func MakeQuatEuler(roll, pitch, yaw float32) Quat {
	cr, sr := Cos(roll/2), Sin(roll/2)
	cp, sp := Cos(pitch/2), Sin(pitch/2)
	cy, sy := Cos(yaw/2), Sin(yaw/2)

	return Quat{
		cr*cp*cy + sr*sp*sy,
		sr*cp*cy - cr*sp*sy,
		cr*sp*cy + sr*cp*sy,
		cr*cp*sy - sr*sp*cy,
	}
}

// Euler returns the roll, pitch, yaw decomposition of the quaternion in
// radians, following the aerospace Z-Y-X convention: yaw about up, then pitch,
// then roll.
func (q Quat) Euler() (roll, pitch, yaw float32) {
	w, x, y, z := q[0], q[1], q[2], q[3]

	roll = Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	pitch = SafeASin(2 * (w*y - z*x))
	yaw = Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return
}
