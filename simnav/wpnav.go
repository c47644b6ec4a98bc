// simnav/wpnav.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package simnav

import (
	"copterguided/guided"
	"copterguided/math"
)

// wpReachedRadiusCM is the arrival threshold for the simulated follower.
const wpReachedRadiusCM = 50

// bearingCD returns the bearing from a to b in centidegrees [0, 36000).
func bearingCD(a, b [3]float32) float32 {
	return math.Wrap360CD(math.Degrees(math.Atan2(b[1]-a[1], b[0]-a[0])) * 100)
}

// locToNEU converts a global location to local NEU cm. Terrain-relative
// altitudes resolve against the simulated terrain height.
func (s *state) locToNEU(loc guided.Location) [3]float32 {
	n := float32(loc.Lat-s.originLat) * cmPerLatUnit
	e := float32(loc.Lng-s.originLng) * cmPerLngUnit

	var u float32
	switch loc.Frame {
	case guided.AltFrameAbsolute:
		u = loc.AltCM - s.homeAbsAltCM
	case guided.AltFrameAboveTerrain:
		u = s.terrainAltCM + loc.AltCM
	default: // above home and above origin coincide in the simulation
		u = loc.AltCM
	}
	return [3]float32{n, e, u}
}

func (s *state) locFromNEU(pos [3]float32) guided.Location {
	return guided.Location{
		Lat:   s.originLat + int32(pos[0]/cmPerLatUnit),
		Lng:   s.originLng + int32(pos[1]/cmPerLngUnit),
		AltCM: pos[2],
		Frame: guided.AltFrameAboveOrigin,
	}
}

// WaypointFollower implements guided.WaypointNav: straight-line flight to
// the destination at the configured speed, altitude through the position
// loop's vertical controller.
type WaypointFollower struct {
	s   *state
	pos *PositionLoop

	speedXY float32
	accelXY float32
	speedUp float32
	speedDn float32
	accelZ  float32

	dest        [3]float32
	destTerrain bool
}

func (w *WaypointFollower) Init() {
	w.dest = w.s.pos
	w.destTerrain = false
}

func (w *WaypointFollower) StoppingPoint() [3]float32 {
	// Decelerating from the current speed at the configured limit.
	speed := math.LengthXY(w.s.vel)
	if math.IsZero(speed) || math.IsZero(w.accelXY) {
		return w.s.pos
	}
	dist := speed * speed / (2 * w.accelXY)
	return [3]float32{
		w.s.pos[0] + w.s.vel[0]/speed*dist,
		w.s.pos[1] + w.s.vel[1]/speed*dist,
		w.s.pos[2],
	}
}

func (w *WaypointFollower) SetDestinationNEU(dest [3]float32, terrainAlt bool) {
	w.dest = dest
	w.destTerrain = terrainAlt
}

func (w *WaypointFollower) SetDestination(loc guided.Location) bool {
	w.dest = w.s.locToNEU(loc)
	w.destTerrain = loc.Frame == guided.AltFrameAboveTerrain
	return true
}

func (w *WaypointFollower) Destination() [3]float32 {
	return w.dest
}

func (w *WaypointFollower) DestinationIsTerrainAlt() bool { return w.destTerrain }

func (w *WaypointFollower) ReachedDestination() bool {
	return math.Distance3f(w.destNEU(), w.s.pos) < wpReachedRadiusCM
}

// destNEU resolves a terrain-relative destination against the terrain.
func (w *WaypointFollower) destNEU() [3]float32 {
	d := w.dest
	if w.destTerrain {
		d[2] += w.s.terrainAltCM
	}
	return d
}

func (w *WaypointFollower) Update() bool {
	dest := w.destNEU()

	// Horizontal: proportional velocity command toward the destination,
	// limited to the leg speed.
	want := [3]float32{
		math.Clamp((dest[0]-w.s.pos[0])*posKP, -w.speedXY, w.speedXY),
		math.Clamp((dest[1]-w.s.pos[1])*posKP, -w.speedXY, w.speedXY),
		w.s.vel[2],
	}
	w.pos.SetDesiredVelocityXY(want[0], want[1])
	w.pos.trackVelocity(want)

	// Vertical: hand the leg altitude to the z controller.
	w.pos.altTarget = dest[2]
	w.pos.activeZ = true
	return true
}

func (w *WaypointFollower) Roll() float32  { return w.pos.Roll() }
func (w *WaypointFollower) Pitch() float32 { return w.pos.Pitch() }

func (w *WaypointFollower) DistanceToDestination() float32 {
	return math.DistanceXY(w.destNEU(), w.s.pos)
}

func (w *WaypointFollower) BearingToDestination() float32 {
	return bearingCD(w.s.pos, w.destNEU())
}

func (w *WaypointFollower) CrosstrackError() float32 { return 0 }

func (w *WaypointFollower) DefaultSpeedXY() float32 { return w.speedXY }
func (w *WaypointFollower) Acceleration() float32   { return w.accelXY }
func (w *WaypointFollower) DefaultSpeedUp() float32 { return w.speedUp }
func (w *WaypointFollower) DefaultSpeedDown() float32 { return w.speedDn }
func (w *WaypointFollower) AccelZ() float32           { return w.accelZ }

func (w *WaypointFollower) TerrainSource() guided.TerrainSource {
	return guided.TerrainSourceRangefinder
}

func (w *WaypointFollower) RangefinderHealthy() bool { return true }

// CircleTracker implements guided.CircleNav: constant-rate orbit with a
// proportional pull onto the circle.
type CircleTracker struct {
	s *state

	center  [3]float32
	radius  float32
	rateCMS float32 // tangential speed

	angle      float32 // current angular position, radians
	angleTotal float32
}

func (c *CircleTracker) Init(center [3]float32) {
	c.center = center
	c.angle = math.Atan2(c.s.pos[1]-center[1], c.s.pos[0]-center[0])
	c.angleTotal = 0
}

func (c *CircleTracker) SetCenter(center [3]float32) { c.center = center }
func (c *CircleTracker) Center() [3]float32          { return c.center }
func (c *CircleTracker) SetRadius(cm float32)        { c.radius = cm }
func (c *CircleTracker) Radius() float32             { return c.radius }

func (c *CircleTracker) Update() {
	if math.IsZero(c.radius) {
		return
	}
	omega := c.rateCMS / c.radius
	c.angle += omega * c.s.dt
	c.angleTotal += omega * c.s.dt

	target := [3]float32{
		c.center[0] + c.radius*math.Cos(c.angle),
		c.center[1] + c.radius*math.Sin(c.angle),
		c.center[2],
	}
	want := [3]float32{
		math.Clamp((target[0]-c.s.pos[0])*posKP, -c.rateCMS*2, c.rateCMS*2),
		math.Clamp((target[1]-c.s.pos[1])*posKP, -c.rateCMS*2, c.rateCMS*2),
		math.Clamp((target[2]-c.s.pos[2])*posKP, -150, 250),
	}
	maxDelta := 250 * c.s.dt
	c.s.vel[0] = approach(c.s.vel[0], want[0], maxDelta)
	c.s.vel[1] = approach(c.s.vel[1], want[1], maxDelta)
	c.s.vel[2] = approach(c.s.vel[2], want[2], maxDelta)
}

func (c *CircleTracker) Roll() float32 {
	return math.Clamp(c.s.vel[1]*leanPerCMS, -4500, 4500)
}

func (c *CircleTracker) Pitch() float32 {
	return math.Clamp(-c.s.vel[0]*leanPerCMS, -4500, 4500)
}

// Yaw faces the circle's center.
func (c *CircleTracker) Yaw() float32 {
	return bearingCD(c.s.pos, c.center)
}

func (c *CircleTracker) ClosestPointOnCircle() [3]float32 {
	dx, dy := c.s.pos[0]-c.center[0], c.s.pos[1]-c.center[1]
	d := math.Norm(dx, dy)
	if math.IsZero(d) {
		return [3]float32{c.center[0] + c.radius, c.center[1], c.center[2]}
	}
	return [3]float32{
		c.center[0] + dx/d*c.radius,
		c.center[1] + dy/d*c.radius,
		c.center[2],
	}
}

func (c *CircleTracker) AngleTotal() float32 { return c.angleTotal }

// Estimator implements guided.StateEstimator over the simulated truth; the
// simulation has no estimation error.
type Estimator struct {
	s *state
}

func (e *Estimator) Position() [3]float32 { return e.s.pos }
func (e *Estimator) Velocity() [3]float32 { return e.s.vel }

func (e *Estimator) AttitudeCD() (float32, float32, float32) {
	return e.s.rollCD, e.s.pitchCD, e.s.yawCD
}

func (e *Estimator) Location() guided.Location {
	return e.s.locFromNEU(e.s.pos)
}

func (e *Estimator) AltIn(frame guided.AltFrame) (float32, bool) {
	switch frame {
	case guided.AltFrameAbsolute:
		return e.s.pos[2] + e.s.homeAbsAltCM, true
	case guided.AltFrameAboveTerrain:
		return e.s.pos[2] - e.s.terrainAltCM, true
	default:
		return e.s.pos[2], true
	}
}

func (e *Estimator) LocationToNEU(loc guided.Location) ([3]float32, bool) {
	return e.s.locToNEU(loc), true
}

func (e *Estimator) LocationFromNEU(pos [3]float32) guided.Location {
	return e.s.locFromNEU(pos)
}
