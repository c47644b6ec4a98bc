// guided/guided_test.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"errors"
	"testing"
)

func TestNewRequiresCollaborators(t *testing.T) {
	h := newHarness(t)

	full := Deps{
		WpNav:      h.wp,
		PosControl: h.pc,
		AttControl: h.ac,
		Motors:     h.mot,
		Inertial:   h.in,
		Yaw:        h.yaw,
	}

	if _, err := New(full, testParams(), nil); err != nil {
		t.Errorf("minimal deps: unexpected error %v", err)
	}

	drop := []struct {
		name string
		mod  func(*Deps)
	}{
		{"wpnav", func(d *Deps) { d.WpNav = nil }},
		{"poscontrol", func(d *Deps) { d.PosControl = nil }},
		{"attcontrol", func(d *Deps) { d.AttControl = nil }},
		{"motors", func(d *Deps) { d.Motors = nil }},
		{"inertial", func(d *Deps) { d.Inertial = nil }},
		{"yaw", func(d *Deps) { d.Yaw = nil }},
	}
	for _, tc := range drop {
		deps := full
		tc.mod(&deps)
		if _, err := New(deps, testParams(), nil); err == nil {
			t.Errorf("%s nil: expected error", tc.name)
		}
	}

	p := testParams()
	p.LoopRate = 0
	if _, err := New(full, p, nil); err == nil {
		t.Errorf("zero loop rate: expected error")
	}
}

func TestInitEntersPositionHold(t *testing.T) {
	h := newHarness(t)
	h.wp.stoppingPoint = [3]float32{100, -50, 700}

	h.mode.Init()

	if h.mode.Submode() != SubmodePositionHold {
		t.Errorf("submode: got %v, expected position-hold", h.mode.Submode())
	}
	if h.wp.inits != 1 {
		t.Errorf("wpnav inits: got %d, expected 1", h.wp.inits)
	}
	if h.wp.dest != h.wp.stoppingPoint {
		t.Errorf("destination: got %v, expected stopping point %v", h.wp.dest, h.wp.stoppingPoint)
	}
	if h.wp.destTerrain {
		t.Errorf("stopping point must not be terrain-relative")
	}
	if h.yaw.toDefaults != 1 {
		t.Errorf("yaw defaults: got %d, expected 1", h.yaw.toDefaults)
	}
}

// Every submode entry must reset the state its runner consumes, so nothing
// staged in one submode leaks into the next.
func TestSubmodeEntryResetsState(t *testing.T) {
	h := newHarness(t)
	h.mode.Init()

	// Velocity entry reconfigures limits from nav config and pilot params
	// and resets the velocity loop.
	h.mode.SetVelocityTarget([3]float32{100, 0, 0}, YawSpec{}, true)
	if h.mode.Submode() != SubmodeVelocity {
		t.Fatalf("submode: got %v, expected velocity", h.mode.Submode())
	}
	if h.pc.velInits != 1 {
		t.Errorf("vel controller inits: got %d, expected 1", h.pc.velInits)
	}
	if h.pc.maxSpeedXY != h.wp.speedXY || h.pc.maxAccelXY != h.wp.accelXY {
		t.Errorf("xy limits: got %v/%v, expected %v/%v",
			h.pc.maxSpeedXY, h.pc.maxAccelXY, h.wp.speedXY, h.wp.accelXY)
	}
	if h.pc.maxSpeedDown != -testParams().PilotSpeedDown || h.pc.maxSpeedUp != testParams().PilotSpeedUp {
		t.Errorf("z speeds: got %v/%v", h.pc.maxSpeedDown, h.pc.maxSpeedUp)
	}

	// Position-velocity entry seeds the loop from the current estimate.
	h.in.pos = [3]float32{10, 20, 500}
	h.in.vel = [3]float32{1, 2, 3}
	if err := h.mode.SetPositionVelocityTarget([3]float32{50, 50, 600}, [3]float32{0, 0, 0}, YawSpec{}); err != nil {
		t.Fatalf("SetPositionVelocityTarget: %v", err)
	}
	if h.pc.xyInits != 1 {
		t.Errorf("xy controller inits: got %d, expected 1", h.pc.xyInits)
	}
	if h.pc.xyTarget != [2]float32{10, 20} {
		t.Errorf("xy target seed: got %v, expected current position", h.pc.xyTarget)
	}
	if h.yaw.mode != YawHold {
		t.Errorf("yaw mode: got %v, expected hold", h.yaw.mode)
	}

	// Going back to velocity re-enters, not reuses: a second init.
	h.mode.SetVelocityTarget([3]float32{0, 0, 0}, YawSpec{}, true)
	if h.pc.velInits != 2 {
		t.Errorf("vel controller inits after re-entry: got %d, expected 2", h.pc.velInits)
	}

	// A repeated velocity target while already in the submode must not
	// re-init the loop.
	h.mode.SetVelocityTarget([3]float32{10, 0, 0}, YawSpec{}, true)
	if h.pc.velInits != 2 {
		t.Errorf("vel controller inits on refresh: got %d, expected 2", h.pc.velInits)
	}
}

func TestAngleEntrySeedsCurrentAttitude(t *testing.T) {
	h := newHarness(t)
	h.mode.Init()

	h.in.rollCD, h.in.pitchCD, h.in.yawCD = 300, -200, 9000
	h.in.vel = [3]float32{0, 0, -40}
	h.pc.activeZ = false

	h.mode.SetAngleTarget(mustQuatLevel(), 0, false, 0, false)

	if h.mode.Submode() != SubmodeAngle {
		t.Fatalf("submode: got %v, expected angle", h.mode.Submode())
	}
	// Entry aligned the z loop with current altitude and vertical speed.
	if h.pc.altToCurrent != 1 {
		t.Errorf("alt target resets: got %d, expected 1", h.pc.altToCurrent)
	}
	if h.pc.desiredVelZ != -40 {
		t.Errorf("desired vel z seed: got %v, expected -40", h.pc.desiredVelZ)
	}

	// With the z loop already active the entry must not disturb it.
	h2 := newHarness(t)
	h2.mode.Init()
	h2.pc.activeZ = true
	h2.mode.SetAngleTarget(mustQuatLevel(), 0, false, 0, false)
	if h2.pc.altToCurrent != 0 {
		t.Errorf("alt target resets with active z loop: got %d, expected 0", h2.pc.altToCurrent)
	}
}

func TestFenceRejectionMutatesNothing(t *testing.T) {
	h := newHarness(t)
	h.mode.Init()
	h.mode.SetVelocityTarget([3]float32{50, 0, 0}, YawSpec{}, true)
	h.fence.inside = false

	before := h.mode.TakeSnapshot()
	destBefore := h.wp.dest

	if err := h.mode.SetPositionTarget([3]float32{1e6, 1e6, 500}, YawSpec{UseYaw: true, YawCD: 9000}, false); !errors.Is(err, ErrOutsideFence) {
		t.Fatalf("SetPositionTarget: got %v, expected ErrOutsideFence", err)
	}
	if err := h.mode.SetPositionVelocityTarget([3]float32{1e6, 1e6, 500}, [3]float32{10, 0, 0}, YawSpec{}); !errors.Is(err, ErrOutsideFence) {
		t.Fatalf("SetPositionVelocityTarget: got %v, expected ErrOutsideFence", err)
	}
	if err := h.mode.SetPositionTargetLocation(Location{Lat: 1e6, Lng: 1e6, AltCM: 500}, YawSpec{}); !errors.Is(err, ErrOutsideFence) {
		t.Fatalf("SetPositionTargetLocation: got %v, expected ErrOutsideFence", err)
	}

	after := h.mode.TakeSnapshot()
	if before != after {
		t.Errorf("state mutated by rejected targets: before %+v, after %+v", before, after)
	}
	if h.wp.dest != destBefore {
		t.Errorf("wpnav destination mutated by rejected target")
	}
	if h.yaw.mode == YawFixed {
		t.Errorf("yaw state mutated by rejected target")
	}
	if len(h.rec.errs) != 3 {
		t.Errorf("recorded errors: got %d, expected 3", len(h.rec.errs))
	}
}

func TestAllowsArming(t *testing.T) {
	for _, tc := range []struct {
		opts    Options
		fromGCS bool
		want    bool
	}{
		{0, true, true},
		{0, false, false},
		{OptionAllowArmingFromTX, false, true},
		{OptionAllowArmingFromTX, true, true},
	} {
		h := newHarness(t)
		h.mode.params.Options = tc.opts
		if got := h.mode.AllowsArming(tc.fromGCS); got != tc.want {
			t.Errorf("AllowsArming(fromGCS=%v) with opts %b: got %v, expected %v",
				tc.fromGCS, tc.opts, got, tc.want)
		}
	}
}

func TestPilotYawOverrideSwitchesToHold(t *testing.T) {
	h := newHarness(t)
	h.mode.Init()
	h.yaw.SetFixedYaw(4500, false)
	h.pilot.yawRate = 1500

	h.mode.Run()

	if h.yaw.mode != YawHold {
		t.Errorf("yaw mode: got %v, expected hold after pilot input", h.yaw.mode)
	}
	if h.ac.call != attRate || h.ac.yawRateCDS != 1500 {
		t.Errorf("attitude call: got %v rate %v, expected rate call with 1500", h.ac.call, h.ac.yawRateCDS)
	}
}

func TestPilotYawIgnored(t *testing.T) {
	// Option bit set: pilot yaw input must not disturb a fixed heading.
	h := newHarness(t)
	h.mode.params.Options = OptionIgnorePilotYaw
	h.mode.Init()
	h.yaw.SetFixedYaw(4500, false)
	h.pilot.yawRate = 1500

	h.mode.Run()

	if h.yaw.mode != YawFixed {
		t.Errorf("yaw mode: got %v, expected fixed", h.yaw.mode)
	}

	// Radio failsafe likewise suppresses the override.
	h2 := newHarness(t)
	h2.mode.Init()
	h2.yaw.SetFixedYaw(4500, false)
	h2.pilot.yawRate = 1500
	h2.pilot.failsafe = true
	h2.mode.Run()
	if h2.yaw.mode != YawFixed {
		t.Errorf("yaw mode under radio failsafe: got %v, expected fixed", h2.yaw.mode)
	}
}

func TestDisarmedSpoolsDown(t *testing.T) {
	for _, tc := range []struct {
		name string
		mod  func(*fakeMotors)
	}{
		{"disarmed", func(m *fakeMotors) { m.armed = false }},
		{"not auto-armed", func(m *fakeMotors) { m.autoArmed = false }},
		{"landed", func(m *fakeMotors) { m.landed = true }},
	} {
		h := newHarness(t)
		h.mode.Init()
		tc.mod(h.mot)

		h.mode.Run()

		if h.mot.desired != DesiredSpoolGroundIdle {
			t.Errorf("%s: desired spool %v, expected ground idle", tc.name, h.mot.desired)
		}
		if h.ac.relaxes != 1 {
			t.Errorf("%s: relaxes %d, expected 1", tc.name, h.ac.relaxes)
		}
		if !h.ac.throttleSet || h.ac.throttle != 0 {
			t.Errorf("%s: expected zero throttle out", tc.name)
		}
		if h.wp.updates != 0 {
			t.Errorf("%s: wpnav updated while spooled down", tc.name)
		}
	}
}

func TestPositionHoldRun(t *testing.T) {
	h := newHarness(t)
	h.mode.Init()
	h.wp.roll, h.wp.pitch = 250, -300

	h.mode.Run()

	if h.wp.updates != 1 {
		t.Errorf("wpnav updates: got %d, expected 1", h.wp.updates)
	}
	if h.pc.zUpdates != 1 {
		t.Errorf("z updates: got %d, expected 1", h.pc.zUpdates)
	}
	if h.ac.rollCD != 250 || h.ac.pitchCD != -300 {
		t.Errorf("attitude: got %v/%v, expected follower's 250/-300", h.ac.rollCD, h.ac.pitchCD)
	}
	if len(h.fs.terrainOK) != 1 || !h.fs.terrainOK[0] {
		t.Errorf("terrain status: got %v, expected one healthy report", h.fs.terrainOK)
	}
}

func TestQueriesFollowSubmode(t *testing.T) {
	h := newHarness(t)
	h.mode.Init()
	h.wp.distToDest = 1234
	h.wp.bearingToDest = 4500
	h.wp.crosstrack = 55
	h.pc.distToTarget = 777
	h.pc.bearingToTgt = 1800

	if d := h.mode.WPDistance(); d != 1234 {
		t.Errorf("position-hold WPDistance: got %v, expected 1234", d)
	}
	if b := h.mode.WPBearing(); b != 4500 {
		t.Errorf("position-hold WPBearing: got %v, expected 4500", b)
	}
	if x := h.mode.CrosstrackError(); x != 55 {
		t.Errorf("position-hold CrosstrackError: got %v, expected 55", x)
	}
	if _, ok := h.mode.Destination(); !ok {
		t.Errorf("position-hold Destination: expected ok")
	}

	if err := h.mode.SetPositionVelocityTarget([3]float32{1, 2, 3}, [3]float32{}, YawSpec{}); err != nil {
		t.Fatalf("SetPositionVelocityTarget: %v", err)
	}
	if d := h.mode.WPDistance(); d != 777 {
		t.Errorf("posvel WPDistance: got %v, expected 777", d)
	}
	if x := h.mode.CrosstrackError(); x != 0 {
		t.Errorf("posvel CrosstrackError: got %v, expected 0", x)
	}
	if _, ok := h.mode.Destination(); ok {
		t.Errorf("posvel Destination: expected not ok")
	}

	h.mode.SetVelocityTarget([3]float32{1, 0, 0}, YawSpec{}, true)
	if d := h.mode.WPDistance(); d != 0 {
		t.Errorf("velocity WPDistance: got %v, expected 0", d)
	}
}

func TestTargetRecording(t *testing.T) {
	h := newHarness(t)
	h.mode.Init()

	if err := h.mode.SetPositionTarget([3]float32{100, 200, 300}, YawSpec{}, false); err != nil {
		t.Fatalf("SetPositionTarget: %v", err)
	}
	h.mode.SetVelocityTarget([3]float32{10, 0, 0}, YawSpec{}, true)
	h.mode.SetVelocityTarget([3]float32{20, 0, 0}, YawSpec{}, false) // record suppressed

	if len(h.rec.targets) != 2 {
		t.Fatalf("recorded targets: got %d, expected 2", len(h.rec.targets))
	}
	if h.rec.targets[0].sub != SubmodePositionHold || h.rec.targets[0].pos != [3]float32{100, 200, 300} {
		t.Errorf("first record: got %+v", h.rec.targets[0])
	}
	if h.rec.targets[1].sub != SubmodeVelocity || h.rec.targets[1].vel != [3]float32{10, 0, 0} {
		t.Errorf("second record: got %+v", h.rec.targets[1])
	}
}
