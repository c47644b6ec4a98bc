// guided/harness_test.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"testing"
	"time"

	"copterguided/math"
)

// Test doubles for the collaborator interfaces. Each fake records what the
// core asked of it; defaults describe a healthy vehicle in flight.

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time                { return c.now }
func (c *fakeClock) advance(d time.Duration)       { c.now = c.now.Add(d) }

type fakeWPNav struct {
	inits         int
	stoppingPoint [3]float32
	dest          [3]float32
	destTerrain   bool
	destLoc       Location
	destLocSet    bool
	setDestFails  bool // simulate missing terrain data
	reached       bool
	updates       int
	updateOK      bool
	roll, pitch   float32
	distToDest    float32
	bearingToDest float32
	crosstrack    float32
	speedXY       float32
	accelXY       float32
	speedUp       float32
	speedDown     float32
	accelZ        float32
	terrainSrc    TerrainSource
	rfHealthy     bool
}

func (w *fakeWPNav) Init()                      { w.inits++ }
func (w *fakeWPNav) StoppingPoint() [3]float32  { return w.stoppingPoint }
func (w *fakeWPNav) SetDestinationNEU(dest [3]float32, terrainAlt bool) {
	w.dest = dest
	w.destTerrain = terrainAlt
}
func (w *fakeWPNav) SetDestination(loc Location) bool {
	if w.setDestFails {
		return false
	}
	w.destLoc = loc
	w.destLocSet = true
	w.dest = [3]float32{float32(loc.Lat), float32(loc.Lng), loc.AltCM}
	return true
}
func (w *fakeWPNav) Destination() [3]float32      { return w.dest }
func (w *fakeWPNav) DestinationIsTerrainAlt() bool { return w.destTerrain }
func (w *fakeWPNav) ReachedDestination() bool      { return w.reached }
func (w *fakeWPNav) Update() bool                  { w.updates++; return w.updateOK }
func (w *fakeWPNav) Roll() float32                 { return w.roll }
func (w *fakeWPNav) Pitch() float32                { return w.pitch }
func (w *fakeWPNav) DistanceToDestination() float32 { return w.distToDest }
func (w *fakeWPNav) BearingToDestination() float32  { return w.bearingToDest }
func (w *fakeWPNav) CrosstrackError() float32       { return w.crosstrack }
func (w *fakeWPNav) DefaultSpeedXY() float32        { return w.speedXY }
func (w *fakeWPNav) Acceleration() float32          { return w.accelXY }
func (w *fakeWPNav) DefaultSpeedUp() float32        { return w.speedUp }
func (w *fakeWPNav) DefaultSpeedDown() float32      { return w.speedDown }
func (w *fakeWPNav) AccelZ() float32                { return w.accelZ }
func (w *fakeWPNav) TerrainSource() TerrainSource   { return w.terrainSrc }
func (w *fakeWPNav) RangefinderHealthy() bool       { return w.rfHealthy }

type fakePosControl struct {
	maxSpeedXY, maxAccelXY      float32
	maxSpeedDown, maxSpeedUp    float32
	maxAccelZ                   float32
	velInits, xyInits           int
	takeoffInits                int
	activeZ                     bool
	altToCurrent                int
	desiredVelZ                 float32
	posTarget                   [3]float32
	xyTarget                    [2]float32
	desiredVel                  [3]float32
	desiredVelSets              int
	velUpdates, xyUpdates       int
	zUpdates                    int
	roll, pitch                 float32
	distToTarget, bearingToTgt  float32
	dtXY                        float32
	kP                          float32
	lastClimbRateFF             float32
	climbRateFFCalls            int
}

func (p *fakePosControl) SetMaxSpeedXY(cms float32)  { p.maxSpeedXY = cms }
func (p *fakePosControl) SetMaxAccelXY(cmss float32) { p.maxAccelXY = cmss }
func (p *fakePosControl) SetMaxSpeedZ(down, up float32) {
	p.maxSpeedDown, p.maxSpeedUp = down, up
}
func (p *fakePosControl) SetMaxAccelZ(cmss float32) { p.maxAccelZ = cmss }
func (p *fakePosControl) MaxAccelXY() float32       { return p.maxAccelXY }
func (p *fakePosControl) MaxAccelZ() float32        { return p.maxAccelZ }
func (p *fakePosControl) InitVelControllerXYZ()     { p.velInits++; p.desiredVel = [3]float32{} }
func (p *fakePosControl) InitXYController()         { p.xyInits++ }
func (p *fakePosControl) InitTakeoff()              { p.takeoffInits++ }
func (p *fakePosControl) IsActiveZ() bool           { return p.activeZ }
func (p *fakePosControl) SetAltTargetToCurrentAlt() { p.altToCurrent++ }
func (p *fakePosControl) SetAltTargetFromClimbRate(cms, dt float32) {
	p.lastClimbRateFF = cms
	p.climbRateFFCalls++
}
func (p *fakePosControl) SetDesiredVelocityZ(cms float32) { p.desiredVelZ = cms }
func (p *fakePosControl) SetPosTarget(pos [3]float32)     { p.posTarget = pos }
func (p *fakePosControl) SetXYTarget(x, y float32)        { p.xyTarget = [2]float32{x, y} }
func (p *fakePosControl) SetDesiredVelocityXY(x, y float32) {
	p.desiredVel[0], p.desiredVel[1] = x, y
}
func (p *fakePosControl) SetDesiredVelocity(vel [3]float32) {
	p.desiredVel = vel
	p.desiredVelSets++
}
func (p *fakePosControl) DesiredVelocity() [3]float32 { return p.desiredVel }
func (p *fakePosControl) UpdateVelControllerXYZ()     { p.velUpdates++ }
func (p *fakePosControl) UpdateXYController()         { p.xyUpdates++ }
func (p *fakePosControl) UpdateZController()          { p.zUpdates++ }
func (p *fakePosControl) Roll() float32               { return p.roll }
func (p *fakePosControl) Pitch() float32              { return p.pitch }
func (p *fakePosControl) DistanceToTarget() float32   { return p.distToTarget }
func (p *fakePosControl) BearingToTarget() float32    { return p.bearingToTgt }
func (p *fakePosControl) TimeSinceLastXYUpdate() float32 { return p.dtXY }
func (p *fakePosControl) PosXYkP() float32               { return p.kP }

type attCall int

const (
	attNone attCall = iota
	attRate         // InputEulerRollPitchYawRate
	attYaw          // InputEulerRollPitchYaw
)

type fakeAttControl struct {
	call        attCall
	rollCD      float32
	pitchCD     float32
	yawCD       float32
	yawRateCDS  float32
	throttle    float32
	throttleSet bool
	relaxes     int
	leanMax     float32
}

func (a *fakeAttControl) InputEulerRollPitchYawRate(roll, pitch, yawRate float32) {
	a.call = attRate
	a.rollCD, a.pitchCD, a.yawRateCDS = roll, pitch, yawRate
}
func (a *fakeAttControl) InputEulerRollPitchYaw(roll, pitch, yaw float32, slewYaw bool) {
	a.call = attYaw
	a.rollCD, a.pitchCD, a.yawCD = roll, pitch, yaw
}
func (a *fakeAttControl) SetThrottleOut(thrust float32, boost bool, filt float32) {
	a.throttle = thrust
	a.throttleSet = true
}
func (a *fakeAttControl) Relax()                { a.relaxes++ }
func (a *fakeAttControl) LeanAngleMax() float32 { return a.leanMax }

type fakeMotors struct {
	armed, autoArmed, landed bool
	desired                  DesiredSpool
	spool                    SpoolState
}

func (m *fakeMotors) Armed() bool                     { return m.armed }
func (m *fakeMotors) AutoArmed() bool                 { return m.autoArmed }
func (m *fakeMotors) SetAutoArmed(v bool)             { m.autoArmed = v }
func (m *fakeMotors) LandComplete() bool              { return m.landed }
func (m *fakeMotors) SetLandComplete(v bool)          { m.landed = v }
func (m *fakeMotors) SetDesiredSpool(d DesiredSpool)  { m.desired = d }
func (m *fakeMotors) Spool() SpoolState               { return m.spool }

type fakeCircleNav struct {
	center     [3]float32
	radius     float32
	inits      int
	updates    int
	roll       float32
	pitch      float32
	yaw        float32
	edge       [3]float32
	angleTotal float32
}

func (c *fakeCircleNav) Init(center [3]float32) {
	c.center = center
	c.inits++
	c.angleTotal = 0
}
func (c *fakeCircleNav) SetCenter(center [3]float32)      { c.center = center }
func (c *fakeCircleNav) Center() [3]float32               { return c.center }
func (c *fakeCircleNav) SetRadius(cm float32)             { c.radius = cm }
func (c *fakeCircleNav) Radius() float32                  { return c.radius }
func (c *fakeCircleNav) Update()                          { c.updates++ }
func (c *fakeCircleNav) Roll() float32                    { return c.roll }
func (c *fakeCircleNav) Pitch() float32                   { return c.pitch }
func (c *fakeCircleNav) Yaw() float32                     { return c.yaw }
func (c *fakeCircleNav) ClosestPointOnCircle() [3]float32 { return c.edge }
func (c *fakeCircleNav) AngleTotal() float32              { return c.angleTotal }

// fakeInertial maps locations to NEU by treating Lat/Lng directly as
// north/east centimeters, which keeps fence and circle geometry easy to
// reason about in tests.
type fakeInertial struct {
	pos      [3]float32
	vel      [3]float32
	rollCD   float32
	pitchCD  float32
	yawCD    float32
	loc      Location
	altInOK  bool
	altIn    float32
	toNEUOK  bool
}

func (i *fakeInertial) Position() [3]float32 { return i.pos }
func (i *fakeInertial) Velocity() [3]float32 { return i.vel }
func (i *fakeInertial) AttitudeCD() (float32, float32, float32) {
	return i.rollCD, i.pitchCD, i.yawCD
}
func (i *fakeInertial) Location() Location { return i.loc }
func (i *fakeInertial) AltIn(frame AltFrame) (float32, bool) {
	return i.altIn, i.altInOK
}
func (i *fakeInertial) LocationToNEU(loc Location) ([3]float32, bool) {
	if !i.toNEUOK {
		return [3]float32{}, false
	}
	return [3]float32{float32(loc.Lat), float32(loc.Lng), loc.AltCM}, true
}
func (i *fakeInertial) LocationFromNEU(pos [3]float32) Location {
	return Location{Lat: int32(pos[0]), Lng: int32(pos[1]), AltCM: pos[2], Frame: AltFrameAboveOrigin}
}

type fakeYaw struct {
	mode       YawMode
	fixedYaw   float32
	fixedRel   bool
	rate       float32
	yawOut     float32
	toDefaults int
}

func (y *fakeYaw) Mode() YawMode      { return y.mode }
func (y *fakeYaw) SetMode(m YawMode)  { y.mode = m }
func (y *fakeYaw) SetModeToDefault()  { y.mode = YawHold; y.toDefaults++ }
func (y *fakeYaw) SetFixedYaw(yawCD float32, relative bool) {
	y.mode = YawFixed
	y.fixedYaw = yawCD
	y.fixedRel = relative
}
func (y *fakeYaw) SetRate(rateCDS float32) {
	y.mode = YawRate
	y.rate = rateCDS
}
func (y *fakeYaw) Rate() float32 { return y.rate }
func (y *fakeYaw) Yaw() float32  { return y.yawOut }

type fakePilot struct {
	failsafe bool
	yawRate  float32
}

func (p *fakePilot) RadioFailsafe() bool     { return p.failsafe }
func (p *fakePilot) DesiredYawRate() float32 { return p.yawRate }

type fakeFence struct {
	inside  bool
	checked []Location
}

func (f *fakeFence) DestinationWithinFence(loc Location) bool {
	f.checked = append(f.checked, loc)
	return f.inside
}

type fakeAvoid struct {
	velAdjusts   int
	climbAdjusts int
	climbDelta   float32 // added to every adjusted climb rate
}

func (a *fakeAvoid) AdjustVelocity(kP, accelXY float32, vel *[3]float32, dt float32) {
	a.velAdjusts++
}
func (a *fakeAvoid) AdjustClimbRate(cms float32) float32 {
	a.climbAdjusts++
	return cms + a.climbDelta
}

type fakeRangefinder struct{ maxCM, altCM float32 }

func (r *fakeRangefinder) MaxDistanceCM() float32 { return r.maxCM }
func (r *fakeRangefinder) AltCM() float32         { return r.altCM }

type fakeFailsafe struct {
	terrainOK []bool
	triggers  int
}

func (f *fakeFailsafe) SetTerrainStatus(ok bool)  { f.terrainOK = append(f.terrainOK, ok) }
func (f *fakeFailsafe) TriggerTerrainFailsafe()   { f.triggers++ }

type fakeGear struct{ retracts int }

func (g *fakeGear) RetractAfterTakeoff() { g.retracts++ }

type fakeNotifier struct {
	reached   []int
	completes int
	warnings  []string
}

func (n *fakeNotifier) MissionItemReached(index int) { n.reached = append(n.reached, index) }
func (n *fakeNotifier) MissionComplete()             { n.completes++ }
func (n *fakeNotifier) Warnf(format string, args ...any) {
	n.warnings = append(n.warnings, format)
}

type recordedTarget struct {
	sub      Submode
	pos, vel [3]float32
}

type fakeRecorder struct {
	targets []recordedTarget
	errs    []error
}

func (r *fakeRecorder) RecordTarget(sub Submode, pos, vel [3]float32) {
	r.targets = append(r.targets, recordedTarget{sub, pos, vel})
}
func (r *fakeRecorder) RecordError(err error) { r.errs = append(r.errs, err) }

// harness bundles a Mode with its fakes, defaulted to an armed vehicle in
// flight with a 100 Hz loop.
type harness struct {
	clock  *fakeClock
	wp     *fakeWPNav
	pc     *fakePosControl
	ac     *fakeAttControl
	mot    *fakeMotors
	circle *fakeCircleNav
	in     *fakeInertial
	yaw    *fakeYaw
	pilot  *fakePilot
	fence  *fakeFence
	avoid  *fakeAvoid
	rf     *fakeRangefinder
	fs     *fakeFailsafe
	gear   *fakeGear
	not    *fakeNotifier
	rec    *fakeRecorder
	mode   *Mode
}

func testParams() Params {
	return Params{
		LoopRate:       100,
		PilotSpeedUp:   250,
		PilotSpeedDown: 150,
		PilotAccelZ:    250,
		AngleMax:       4500,
		ThrottleFilt:   2,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock: &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		wp: &fakeWPNav{
			updateOK:  true,
			speedXY:   500,
			accelXY:   100,
			speedUp:   250,
			speedDown: 150,
			accelZ:    100,
		},
		pc:     &fakePosControl{kP: 1},
		ac:     &fakeAttControl{leanMax: 3000},
		mot:    &fakeMotors{armed: true, autoArmed: true, spool: SpoolUnlimited},
		circle: &fakeCircleNav{radius: 1000},
		in:     &fakeInertial{toNEUOK: true, altInOK: true},
		yaw:    &fakeYaw{},
		pilot:  &fakePilot{},
		fence:  &fakeFence{inside: true},
		avoid:  &fakeAvoid{},
		rf:     &fakeRangefinder{maxCM: 7000},
		fs:     &fakeFailsafe{},
		gear:   &fakeGear{},
		not:    &fakeNotifier{},
		rec:    &fakeRecorder{},
	}

	mode, err := New(Deps{
		WpNav:       h.wp,
		PosControl:  h.pc,
		AttControl:  h.ac,
		Motors:      h.mot,
		CircleNav:   h.circle,
		Inertial:    h.in,
		Yaw:         h.yaw,
		Pilot:       h.pilot,
		Fence:       h.fence,
		Avoid:       h.avoid,
		Rangefinder: h.rf,
		Failsafe:    h.fs,
		Gear:        h.gear,
		Notifier:    h.not,
		Recorder:    h.rec,
		Clock:       h.clock,
	}, testParams(), nil)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	h.mode = mode
	return h
}

func mustQuatLevel() math.Quat {
	return math.MakeQuatEuler(0, 0, 0)
}
