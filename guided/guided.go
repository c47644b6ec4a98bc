// guided/guided.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package guided implements the guided-flight control core of a multirotor:
// it accepts externally supplied motion targets (position, velocity,
// position+velocity, attitude/thrust, or a circular path) and converts them,
// tick by tick, into demands for the lower-level position and attitude
// control loops, while enforcing target-staleness safety, geofence
// rejection, acceleration-limited velocity shaping, and mission-envelope
// limits.
//
// The core is single threaded and cooperative: a host control loop calls
// Run at 100 Hz or more, and target setters are expected to be serialized
// with ticking by the host's event loop. No operation blocks.
package guided

import (
	"errors"
	"time"

	"copterguided/log"
	"copterguided/math"

	"github.com/brunoga/deep"
)

// Errors returned by the target setters. State is never mutated when one of
// these is returned.
var (
	ErrOutsideFence        = errors.New("destination outside fence")
	ErrDestinationRejected = errors.New("destination rejected: missing terrain data")
	ErrDownwardTakeoff     = errors.New("takeoff altitude below current terrain altitude")
	ErrNoCircleNav         = errors.New("no circle tracker configured")
)

// Submode identifies which control law owns the vehicle this tick. Exactly
// one is active; transitions happen only through the submode entry functions
// so that no target or integrator state leaks across a transition.
type Submode int

const (
	SubmodeTakeOff Submode = iota
	SubmodePositionHold
	SubmodeVelocity
	SubmodePositionVelocity
	SubmodeAngle
	SubmodeCircle
	SubmodeCircleApproach
)

func (s Submode) String() string {
	return [...]string{"takeoff", "position-hold", "velocity", "position-velocity",
		"angle", "circle", "circle-approach"}[s]
}

const (
	// A velocity or position-velocity target not refreshed within this
	// window is resolved to zero velocity every tick until refreshed.
	posvelTimeout = 3000 * time.Millisecond
	// An attitude target not refreshed within this window is resolved to
	// level attitude and zero climb every tick until refreshed.
	attitudeTimeout = 1000 * time.Millisecond

	// Horizontal-loop dt above this is treated as a stall and clamped to
	// zero so dead reckoning can't extrapolate across it.
	maxPosvelDT = 0.2 // seconds

	// Mission circles further than this from the vehicle get an approach
	// leg to the circle's edge before orbiting begins.
	circleEdgeDistanceCM = 300

	// While approaching, hold yaw rather than facing direction of travel
	// when starting inside the circle or within this distance of its edge.
	circleYawHoldDistanceCM = 500
)

// Options is the guided option parameter bitmask.
type Options uint32

const (
	OptionAllowArmingFromTX Options = 1 << 0
	OptionIgnorePilotYaw    Options = 1 << 2
)

// Params are the vehicle parameters the core consumes. The params package
// loads these from the vehicle's parameter file.
type Params struct {
	LoopRate         float32 // main loop rate, Hz
	PilotSpeedUp     float32 // cm/s
	PilotSpeedDown   float32 // cm/s, positive
	PilotAccelZ      float32 // cm/s/s
	AngleMax         float32 // centidegrees
	ThrottleFilt     float32 // Hz
	TakeoffNavAltMin float32 // cm of climb before roll/pitch is allowed
	Options          Options
}

// AngleTarget is the staged attitude/thrust target for the Angle submode.
// ClimbRate and Thrust are mutually exclusive per UseThrust.
type AngleTarget struct {
	UpdateTime time.Time
	RollCD     float32
	PitchCD    float32
	YawCD      float32
	YawRateCDS float32
	ClimbRate  float32 // cm/s; used if UseThrust is false
	Thrust     float32 // [-1,1]; used if UseThrust is true
	UseYawRate bool
	UseThrust  bool
}

// Mode is the guided-mode dispatcher. It owns the active submode and all
// submode-local target state; the previous implementation's file-scope
// statics live here so staleness and ordering are testable in isolation.
type Mode struct {
	lg *log.Logger

	submode Submode
	active  bool

	clock Clock
	dt    float32 // seconds per tick

	params Params

	wpNav       WaypointNav
	posControl  PositionControl
	attControl  AttitudeControl
	motors      Motors
	circleNav   CircleNav
	inertial    StateEstimator
	yaw         YawController
	pilot       PilotInput
	fence       Fence
	avoid       Avoidance
	rangefinder Rangefinder
	failsafe    FailsafeSink
	gear        LandingGear
	notifier    Notifier
	recorder    TargetRecorder

	posTarget        [3]float32 // cm NEU; position-velocity submode only
	velTarget        [3]float32 // cm/s; velocity and position-velocity submodes
	posvelUpdateTime time.Time
	velUpdateTime    time.Time
	angle            AngleTarget
	takeoffStartAlt  float32

	limit Limit
}

// New builds a Mode from its collaborators. The required collaborators are
// WpNav, PosControl, AttControl, Motors, Inertial, and Yaw; a missing one is
// an error. A nil Deps.Clock selects the system clock.
func New(deps Deps, params Params, lg *log.Logger) (*Mode, error) {
	switch {
	case deps.WpNav == nil:
		return nil, errors.New("guided: waypoint follower is required")
	case deps.PosControl == nil:
		return nil, errors.New("guided: position control loop is required")
	case deps.AttControl == nil:
		return nil, errors.New("guided: attitude control loop is required")
	case deps.Motors == nil:
		return nil, errors.New("guided: motor output is required")
	case deps.Inertial == nil:
		return nil, errors.New("guided: state estimator is required")
	case deps.Yaw == nil:
		return nil, errors.New("guided: yaw controller is required")
	}

	if params.LoopRate <= 0 {
		return nil, errors.New("guided: loop rate must be positive")
	}

	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}

	return &Mode{
		lg:          lg,
		submode:     SubmodePositionHold,
		clock:       clock,
		dt:          1 / params.LoopRate,
		params:      params,
		wpNav:       deps.WpNav,
		posControl:  deps.PosControl,
		attControl:  deps.AttControl,
		motors:      deps.Motors,
		circleNav:   deps.CircleNav,
		inertial:    deps.Inertial,
		yaw:         deps.Yaw,
		pilot:       deps.Pilot,
		fence:       deps.Fence,
		avoid:       deps.Avoid,
		rangefinder: deps.Rangefinder,
		failsafe:    deps.Failsafe,
		gear:        deps.Gear,
		notifier:    deps.Notifier,
		recorder:    deps.Recorder,
	}, nil
}

// Init is called when the vehicle enters guided mode: start holding position
// at the stopping point.
func (m *Mode) Init() {
	m.active = true
	m.posControlStart()
}

// Exit is called when the vehicle leaves guided mode. Mission command
// verification reports failure while inactive.
func (m *Mode) Exit() {
	m.active = false
}

// Run dispatches one control tick to the active submode's runner. It should
// be called at 100 Hz or more.
func (m *Mode) Run() {
	switch m.submode {
	case SubmodeTakeOff:
		m.takeoffRun()

	case SubmodePositionHold, SubmodeCircleApproach:
		// The approach to a circle's edge is flown by the position-hold
		// runner; only the mission exit condition differs.
		m.posControlRun()

	case SubmodeVelocity:
		m.velControlRun()

	case SubmodePositionVelocity:
		m.posvelControlRun()

	case SubmodeAngle:
		m.angleControlRun()

	case SubmodeCircle:
		m.circleRun()
	}
}

// Submode returns the active submode.
func (m *Mode) Submode() Submode {
	return m.submode
}

func (m *Mode) IsTakingOff() bool {
	return m.submode == SubmodeTakeOff
}

// AllowsArming reports whether arming is acceptable while guided is active:
// always from the ground station, from the transmitter only when the option
// bit is set.
func (m *Mode) AllowsArming(fromGCS bool) bool {
	if fromGCS {
		return true
	}
	return m.params.Options&OptionAllowArmingFromTX != 0
}

// Destination returns the avoidance-adjusted destination when position-hold
// is flying one.
func (m *Mode) Destination() (Location, bool) {
	if m.submode != SubmodePositionHold {
		return Location{}, false
	}
	return m.inertial.LocationFromNEU(m.wpNav.Destination()), true
}

// WPDistance returns the distance to the active target in cm, or 0 when the
// active submode has no position target.
func (m *Mode) WPDistance() float32 {
	switch m.submode {
	case SubmodePositionHold, SubmodeCircleApproach:
		return m.wpNav.DistanceToDestination()
	case SubmodePositionVelocity:
		return m.posControl.DistanceToTarget()
	default:
		return 0
	}
}

// WPBearing returns the bearing to the active target in centidegrees, or 0
// when the active submode has no position target.
func (m *Mode) WPBearing() float32 {
	switch m.submode {
	case SubmodePositionHold, SubmodeCircleApproach:
		return m.wpNav.BearingToDestination()
	case SubmodePositionVelocity:
		return m.posControl.BearingToTarget()
	default:
		return 0
	}
}

func (m *Mode) CrosstrackError() float32 {
	if m.submode == SubmodePositionHold || m.submode == SubmodeCircleApproach {
		return m.wpNav.CrosstrackError()
	}
	return 0
}

// Snapshot captures the staged target state for inspection or rollback. It
// does not include the collaborators' state, only what the core owns.
type Snapshot struct {
	Submode          Submode
	PosTarget        [3]float32
	VelTarget        [3]float32
	PosVelUpdateTime time.Time
	VelUpdateTime    time.Time
	Angle            AngleTarget
	Limit            Limit
}

func (m *Mode) TakeSnapshot() Snapshot {
	return deep.MustCopy(Snapshot{
		Submode:          m.submode,
		PosTarget:        m.posTarget,
		VelTarget:        m.velTarget,
		PosVelUpdateTime: m.posvelUpdateTime,
		VelUpdateTime:    m.velUpdateTime,
		Angle:            m.angle,
		Limit:            m.limit,
	})
}

// isDisarmedOrLanded reports the states in which a runner must command
// zero-thrust spool-down instead of flying.
func (m *Mode) isDisarmedOrLanded() bool {
	return !m.motors.Armed() || !m.motors.AutoArmed() || m.motors.LandComplete()
}

// makeSafeSpoolDown spools the motors to ground idle with zero throttle and
// relaxed attitude demands.
func (m *Mode) makeSafeSpoolDown() {
	m.motors.SetDesiredSpool(DesiredSpoolGroundIdle)
	m.attControl.Relax()
	m.attControl.SetThrottleOut(0, false, m.params.ThrottleFilt)
}

// zeroThrottleAndRelax holds zero throttle with relaxed attitude while the
// motors spool up for an implicit takeoff.
func (m *Mode) zeroThrottleAndRelax() {
	m.attControl.Relax()
	m.attControl.SetThrottleOut(0, false, m.params.ThrottleFilt)
}

func (m *Mode) usePilotYaw() bool {
	return m.params.Options&OptionIgnorePilotYaw == 0
}

// pilotYawRate is the common runner preamble for pilot yaw override: a
// nonzero pilot yaw input switches the yaw policy to Hold so the pilot's
// rate wins over any staged heading.
func (m *Mode) pilotYawRate() float32 {
	if m.pilot == nil || m.pilot.RadioFailsafe() || !m.usePilotYaw() {
		return 0
	}
	rate := m.pilot.DesiredYawRate()
	if !math.IsZero(rate) {
		m.yaw.SetMode(YawHold)
	}
	return rate
}

// setYawState applies a target's yaw request to the yaw controller.
func (m *Mode) setYawState(y YawSpec) {
	if y.UseYaw {
		m.yaw.SetFixedYaw(y.YawCD, y.Relative)
	} else if y.UseYawRate {
		m.yaw.SetRate(y.YawRateCDS)
	}
}

// avoidanceAdjustedClimbRate runs a climb-rate demand through the avoidance
// collaborator's vertical clamp.
func (m *Mode) avoidanceAdjustedClimbRate(cms float32) float32 {
	if m.avoid == nil {
		return cms
	}
	return m.avoid.AdjustClimbRate(cms)
}

func (m *Mode) recordTarget(pos, vel [3]float32) {
	if m.recorder != nil {
		m.recorder.RecordTarget(m.submode, pos, vel)
	}
}

func (m *Mode) recordError(err error) {
	if m.recorder != nil {
		m.recorder.RecordError(err)
	}
}
