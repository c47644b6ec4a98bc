// simnav/vehicle.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package simnav provides simulated flight-stack collaborators for the
// guided core: a point-mass vehicle with first-order control loops, good
// enough to fly guided targets end to end without hardware. The simulation
// harness and the integration tests both build on it.
package simnav

import (
	"time"

	"copterguided/guided"
	"copterguided/math"
)

// Conversion between location units (1e-7 degrees) and local centimeters.
// Constant-latitude flat earth is fine at simulation scales.
const (
	cmPerLatUnit = 1.11
	cmPerLngUnit = 0.75
)

// state is the shared physical truth all simulated loops read and write.
type state struct {
	now time.Time
	dt  float32

	pos [3]float32 // NEU cm from origin
	vel [3]float32 // NEU cm/s

	rollCD, pitchCD, yawCD float32

	originLat, originLng int32
	homeAbsAltCM         float32
	terrainAltCM         float32 // terrain height below the vehicle, above origin
}

// Vehicle bundles the simulated collaborators around one shared state.
type Vehicle struct {
	s *state

	WPNav  *WaypointFollower
	Pos    *PositionLoop
	Att    *AttitudeLoop
	Motors *MotorModel
	Circle *CircleTracker
	Est    *Estimator
	Yaw    *YawPolicy
	Pilot  *PilotModel
	Range  *RangefinderModel
}

// Config sets up the simulated vehicle.
type Config struct {
	Start        [3]float32 // NEU cm
	OriginLat    int32      // 1e-7 deg
	OriginLng    int32
	HomeAbsAltCM float32
	LoopRateHz   float32

	SpeedXYCMS   float32 // horizontal cruise speed limit
	AccelXYCMSS  float32
	SpeedUpCMS   float32
	SpeedDownCMS float32
	AccelZCMSS   float32
}

// DefaultConfig is a plausible small multirotor at 100 Hz.
func DefaultConfig() Config {
	return Config{
		OriginLat:    473977000, // 47.3977 N
		OriginLng:    85455000,  // 8.5455 E
		HomeAbsAltCM: 48800,
		LoopRateHz:   100,
		SpeedXYCMS:   1000,
		AccelXYCMSS:  250,
		SpeedUpCMS:   250,
		SpeedDownCMS: 150,
		AccelZCMSS:   250,
	}
}

func NewVehicle(cfg Config) *Vehicle {
	s := &state{
		now:          time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		dt:           1 / cfg.LoopRateHz,
		pos:          cfg.Start,
		originLat:    cfg.OriginLat,
		originLng:    cfg.OriginLng,
		homeAbsAltCM: cfg.HomeAbsAltCM,
	}

	v := &Vehicle{s: s}
	v.Pos = &PositionLoop{
		s:          s,
		maxSpeedXY: cfg.SpeedXYCMS,
		maxAccelXY: cfg.AccelXYCMSS,
		maxSpeedUp: cfg.SpeedUpCMS,
		maxSpeedDn: cfg.SpeedDownCMS,
		maxAccelZ:  cfg.AccelZCMSS,
		altTarget:  cfg.Start[2],
	}
	v.WPNav = &WaypointFollower{
		s:       s,
		pos:     v.Pos,
		speedXY: cfg.SpeedXYCMS,
		accelXY: cfg.AccelXYCMSS,
		speedUp: cfg.SpeedUpCMS,
		speedDn: cfg.SpeedDownCMS,
		accelZ:  cfg.AccelZCMSS,
		dest:    cfg.Start,
	}
	v.Att = &AttitudeLoop{s: s}
	v.Motors = &MotorModel{}
	v.Circle = &CircleTracker{s: s, radius: 1000, rateCMS: cfg.SpeedXYCMS / 2}
	v.Est = &Estimator{s: s}
	v.Yaw = &YawPolicy{s: s}
	v.Pilot = &PilotModel{}
	v.Range = &RangefinderModel{s: s, maxCM: 7000}
	return v
}

// Now implements guided.Clock on the simulated clock.
func (v *Vehicle) Now() time.Time { return v.s.now }

// Step advances the simulated world one tick: spool dynamics, kinematic
// integration, and the clock.
func (v *Vehicle) Step() {
	v.Motors.step()

	// Stand-in land detector: motors at full spool means flight.
	if v.Motors.landed && v.Motors.spool == guided.SpoolUnlimited {
		v.Motors.landed = false
	}

	s := v.s
	if v.Motors.Spool() == guided.SpoolShutDown || v.Motors.LandComplete() {
		// On the ground nothing moves; a negative climb command can't
		// dig in.
		s.vel = [3]float32{}
	} else {
		s.pos = math.Add3f(s.pos, math.Scale3f(s.vel, s.dt))
		if s.pos[2] < s.terrainAltCM {
			s.pos[2] = s.terrainAltCM
			s.vel[2] = 0
		}
	}

	s.now = s.now.Add(time.Duration(float64(s.dt) * float64(time.Second)))
}

// Position returns the vehicle's true position, for scenario assertions.
func (v *Vehicle) Position() [3]float32 { return v.s.pos }

// Velocity returns the vehicle's true velocity.
func (v *Vehicle) Velocity() [3]float32 { return v.s.vel }

// Deps wires the simulated collaborators into a guided.Deps, ready for
// guided.New; the caller fills in the optional collaborators it cares about.
func (v *Vehicle) Deps() guided.Deps {
	return guided.Deps{
		WpNav:       v.WPNav,
		PosControl:  v.Pos,
		AttControl:  v.Att,
		Motors:      v.Motors,
		CircleNav:   v.Circle,
		Inertial:    v.Est,
		Yaw:         v.Yaw,
		Pilot:       v.Pilot,
		Rangefinder: v.Range,
		Clock:       v,
	}
}

// approach moves cur toward want by at most maxDelta, returning the result.
func approach(cur, want, maxDelta float32) float32 {
	return cur + math.Clamp(want-cur, -maxDelta, maxDelta)
}
