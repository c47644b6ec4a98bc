// simnav/loops.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package simnav

import (
	"time"

	"copterguided/guided"
	"copterguided/math"
)

// Proportional gains for the simulated loops. These only need to be stable
// and vaguely multirotor-shaped.
const (
	posKP      = 1.0  // cm -> cm/s
	leanPerCMS = 3.0  // commanded horizontal cm/s -> lean centidegrees
	attTau     = 0.15 // attitude first-order time constant, seconds
)

// PositionLoop implements guided.PositionControl: first-order velocity
// tracking with acceleration limits, plus a proportional altitude hold.
type PositionLoop struct {
	s *state

	maxSpeedXY float32
	maxAccelXY float32
	maxSpeedUp float32
	maxSpeedDn float32 // positive
	maxAccelZ  float32

	desiredVel [3]float32
	posTarget  [3]float32
	altTarget  float32
	activeZ    bool

	lastXYUpdate time.Time
}

func (p *PositionLoop) SetMaxSpeedXY(cms float32)      { p.maxSpeedXY = cms }
func (p *PositionLoop) SetMaxAccelXY(cmss float32)     { p.maxAccelXY = cmss }
func (p *PositionLoop) SetMaxSpeedZ(down, up float32)  { p.maxSpeedDn, p.maxSpeedUp = -down, up }
func (p *PositionLoop) SetMaxAccelZ(cmss float32)      { p.maxAccelZ = cmss }
func (p *PositionLoop) MaxAccelXY() float32            { return p.maxAccelXY }
func (p *PositionLoop) MaxAccelZ() float32             { return p.maxAccelZ }

func (p *PositionLoop) InitVelControllerXYZ() {
	p.desiredVel = p.s.vel
	p.activeZ = true
	p.altTarget = p.s.pos[2]
}

func (p *PositionLoop) InitXYController() {
	p.posTarget[0], p.posTarget[1] = p.s.pos[0], p.s.pos[1]
	p.desiredVel[0], p.desiredVel[1] = p.s.vel[0], p.s.vel[1]
}

func (p *PositionLoop) InitTakeoff() {
	p.activeZ = true
	p.altTarget = p.s.pos[2]
}

func (p *PositionLoop) IsActiveZ() bool { return p.activeZ }

func (p *PositionLoop) SetAltTargetToCurrentAlt() {
	p.altTarget = p.s.pos[2]
	p.activeZ = true
}

func (p *PositionLoop) SetAltTargetFromClimbRate(cms, dt float32) {
	cms = math.Clamp(cms, -p.maxSpeedDn, p.maxSpeedUp)
	p.altTarget += cms * dt
	p.activeZ = true
}

func (p *PositionLoop) SetDesiredVelocityZ(cms float32) { p.desiredVel[2] = cms }

func (p *PositionLoop) SetPosTarget(pos [3]float32) {
	p.posTarget = pos
	p.altTarget = pos[2]
}

func (p *PositionLoop) SetXYTarget(x, y float32) {
	p.posTarget[0], p.posTarget[1] = x, y
}

func (p *PositionLoop) SetDesiredVelocityXY(x, y float32) {
	p.desiredVel[0], p.desiredVel[1] = x, y
}

func (p *PositionLoop) SetDesiredVelocity(vel [3]float32) { p.desiredVel = vel }
func (p *PositionLoop) DesiredVelocity() [3]float32       { return p.desiredVel }

// trackVelocity moves the true velocity toward want under the loop's
// acceleration limits.
func (p *PositionLoop) trackVelocity(want [3]float32) {
	s := p.s
	maxXY := p.maxAccelXY * s.dt
	dx, dy := want[0]-s.vel[0], want[1]-s.vel[1]
	if d := math.Norm(dx, dy); d > maxXY && !math.IsZero(d) {
		dx *= maxXY / d
		dy *= maxXY / d
	}
	s.vel[0] += dx
	s.vel[1] += dy
	s.vel[2] = approach(s.vel[2], want[2], p.maxAccelZ*s.dt)
}

func (p *PositionLoop) UpdateVelControllerXYZ() {
	p.trackVelocity(p.desiredVel)
	p.lastXYUpdate = p.s.now
	p.altTarget = p.s.pos[2]
}

func (p *PositionLoop) UpdateXYController() {
	want := [3]float32{
		math.Clamp((p.posTarget[0]-p.s.pos[0])*posKP+p.desiredVel[0], -p.maxSpeedXY, p.maxSpeedXY),
		math.Clamp((p.posTarget[1]-p.s.pos[1])*posKP+p.desiredVel[1], -p.maxSpeedXY, p.maxSpeedXY),
		p.s.vel[2],
	}
	p.trackVelocity(want)
	p.lastXYUpdate = p.s.now
}

func (p *PositionLoop) UpdateZController() {
	want := math.Clamp((p.altTarget-p.s.pos[2])*posKP, -p.maxSpeedDn, p.maxSpeedUp)
	p.s.vel[2] = approach(p.s.vel[2], want, p.maxAccelZ*p.s.dt)
}

// Roll and Pitch report the lean the commanded horizontal velocity implies;
// the guided runners hand them to the attitude loop.
func (p *PositionLoop) Roll() float32 {
	return math.Clamp(p.desiredVel[1]*leanPerCMS, -4500, 4500)
}

func (p *PositionLoop) Pitch() float32 {
	return math.Clamp(-p.desiredVel[0]*leanPerCMS, -4500, 4500)
}

func (p *PositionLoop) DistanceToTarget() float32 {
	return math.Distance3f(p.posTarget, p.s.pos)
}

func (p *PositionLoop) BearingToTarget() float32 {
	return bearingCD(p.s.pos, p.posTarget)
}

func (p *PositionLoop) TimeSinceLastXYUpdate() float32 {
	if p.lastXYUpdate.IsZero() {
		return 0
	}
	return float32(p.s.now.Sub(p.lastXYUpdate).Seconds())
}

func (p *PositionLoop) PosXYkP() float32 { return posKP }

// AttitudeLoop implements guided.AttitudeControl: first-order convergence of
// the true attitude to the demanded one.
type AttitudeLoop struct {
	s *state

	throttle float32
}

func (a *AttitudeLoop) track(rollCD, pitchCD, yawCD float32) {
	alpha := math.Clamp(a.s.dt/attTau, 0, 1)
	a.s.rollCD = math.Lerp(alpha, a.s.rollCD, rollCD)
	a.s.pitchCD = math.Lerp(alpha, a.s.pitchCD, pitchCD)
	a.s.yawCD = math.Wrap360CD(a.s.yawCD + math.Wrap180CD(yawCD-a.s.yawCD)*alpha)
}

func (a *AttitudeLoop) InputEulerRollPitchYawRate(rollCD, pitchCD, yawRateCDS float32) {
	a.track(rollCD, pitchCD, a.s.yawCD+yawRateCDS*a.s.dt)
}

func (a *AttitudeLoop) InputEulerRollPitchYaw(rollCD, pitchCD, yawCD float32, slewYaw bool) {
	a.track(rollCD, pitchCD, yawCD)
}

func (a *AttitudeLoop) SetThrottleOut(thrust float32, applyAngleBoost bool, filtHz float32) {
	a.throttle = thrust
	// Direct thrust maps to climb about hover at 0.5.
	a.s.vel[2] = (thrust - 0.5) * 2 * 250
}

func (a *AttitudeLoop) Relax() {
	a.track(0, 0, a.s.yawCD)
}

func (a *AttitudeLoop) LeanAngleMax() float32 { return 4500 }

// Throttle returns the last direct throttle command, for assertions.
func (a *AttitudeLoop) Throttle() float32 { return a.throttle }

// MotorModel implements guided.Motors with a short spool-up delay.
type MotorModel struct {
	armed     bool
	autoArmed bool
	landed    bool
	desired   guided.DesiredSpool
	spool     guided.SpoolState
	spoolTick int
}

const spoolTicks = 20 // 200 ms at 100 Hz

func (m *MotorModel) Arm() {
	m.armed = true
	m.landed = true
	m.spool = guided.SpoolGroundIdle
}

func (m *MotorModel) Disarm() {
	m.armed = false
	m.autoArmed = false
	m.spool = guided.SpoolShutDown
}

func (m *MotorModel) Armed() bool                 { return m.armed }
func (m *MotorModel) AutoArmed() bool             { return m.autoArmed }
func (m *MotorModel) SetAutoArmed(v bool)         { m.autoArmed = v }
func (m *MotorModel) LandComplete() bool          { return m.landed }
func (m *MotorModel) SetLandComplete(v bool)      { m.landed = v }
func (m *MotorModel) Spool() guided.SpoolState    { return m.spool }
func (m *MotorModel) SetDesiredSpool(d guided.DesiredSpool) { m.desired = d }

func (m *MotorModel) step() {
	if !m.armed {
		m.spool = guided.SpoolShutDown
		return
	}
	switch m.desired {
	case guided.DesiredSpoolUnlimited:
		if m.spool != guided.SpoolUnlimited {
			m.spool = guided.SpoolSpoolingUp
			if m.spoolTick++; m.spoolTick >= spoolTicks {
				m.spool = guided.SpoolUnlimited
				m.spoolTick = 0
			}
		}
	case guided.DesiredSpoolGroundIdle:
		m.spool = guided.SpoolGroundIdle
		m.spoolTick = 0
	default:
		m.spool = guided.SpoolShutDown
		m.spoolTick = 0
	}
}

// YawPolicy implements guided.YawController.
type YawPolicy struct {
	s *state

	mode     guided.YawMode
	fixedYaw float32
	rate     float32
}

func (y *YawPolicy) Mode() guided.YawMode     { return y.mode }
func (y *YawPolicy) SetMode(m guided.YawMode) { y.mode = m }
func (y *YawPolicy) SetModeToDefault()        { y.mode = guided.YawHold }

func (y *YawPolicy) SetFixedYaw(yawCD float32, relative bool) {
	if relative {
		yawCD = math.Wrap360CD(y.s.yawCD + yawCD)
	}
	y.mode = guided.YawFixed
	y.fixedYaw = yawCD
}

func (y *YawPolicy) SetRate(rateCDS float32) {
	y.mode = guided.YawRate
	y.rate = rateCDS
}

func (y *YawPolicy) Rate() float32 { return y.rate }

func (y *YawPolicy) Yaw() float32 {
	if y.mode == guided.YawFixed {
		return y.fixedYaw
	}
	return y.s.yawCD
}

// PilotModel implements guided.PilotInput; scenarios poke the fields.
type PilotModel struct {
	Failsafe bool
	YawRate  float32
}

func (p *PilotModel) RadioFailsafe() bool     { return p.Failsafe }
func (p *PilotModel) DesiredYawRate() float32 { return p.YawRate }

// RangefinderModel implements guided.Rangefinder against the simulated
// terrain.
type RangefinderModel struct {
	s     *state
	maxCM float32
}

func (r *RangefinderModel) MaxDistanceCM() float32 { return r.maxCM }
func (r *RangefinderModel) AltCM() float32 {
	return math.Clamp(r.s.pos[2]-r.s.terrainAltCM, 0, r.maxCM)
}
