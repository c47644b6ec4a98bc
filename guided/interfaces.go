// guided/interfaces.go
// Copyright(c) 2024-2026 copterguided contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package guided

import (
	"time"
)

// The guided core drives the vehicle entirely through the narrow capability
// interfaces below. The real implementations are the flight stack's control
// loops and estimators; package tests and the simulation harness substitute
// their own.

// AltFrame identifies the reference for a Location's altitude.
type AltFrame int

const (
	AltFrameAbsolute AltFrame = iota
	AltFrameAboveHome
	AltFrameAboveOrigin
	AltFrameAboveTerrain
)

func (f AltFrame) String() string {
	return [...]string{"absolute", "above-home", "above-origin", "above-terrain"}[f]
}

// Location is a global position: latitude/longitude in 1e-7 degrees and an
// altitude in centimeters relative to Frame.
type Location struct {
	Lat, Lng int32
	AltCM    float32
	Frame    AltFrame
}

// TerrainSource describes where the waypoint follower gets terrain altitude.
type TerrainSource int

const (
	TerrainSourceNone TerrainSource = iota
	TerrainSourceRangefinder
	TerrainSourceDatabase
)

// DesiredSpool is the spool level requested of the motor output stage.
type DesiredSpool int

const (
	DesiredSpoolShutDown DesiredSpool = iota
	DesiredSpoolGroundIdle
	DesiredSpoolUnlimited
)

// SpoolState is the motor output stage's actual spool level.
type SpoolState int

const (
	SpoolShutDown SpoolState = iota
	SpoolGroundIdle
	SpoolSpoolingUp
	SpoolUnlimited
	SpoolSpoolingDown
)

// YawMode is the yaw policy applied by the yaw controller while a runner has
// lateral control.
type YawMode int

const (
	YawHold YawMode = iota // hold current heading, pilot may adjust
	YawFixed
	YawRate
	YawROI
)

func (y YawMode) String() string {
	return [...]string{"hold", "fixed", "rate", "roi"}[y]
}

// YawSpec is the yaw request attached to a position or velocity target.
// UseYaw selects a fixed heading; otherwise UseYawRate selects a commanded
// rate; with neither set the current yaw policy is left alone.
type YawSpec struct {
	UseYaw     bool
	YawCD      float32 // centidegrees
	Relative   bool    // YawCD is relative to current heading
	UseYawRate bool
	YawRateCDS float32 // centidegrees/s
}

// WaypointNav is the waypoint/spline follower.
type WaypointNav interface {
	// Init reinitializes the follower's internal state for a new segment.
	Init()
	// StoppingPoint returns where the vehicle would come to rest, NEU cm.
	StoppingPoint() [3]float32
	// SetDestinationNEU stages a destination given directly in the local
	// frame; terrainAlt marks the vertical component as height above
	// terrain. No terrain lookup is needed so it cannot fail.
	SetDestinationNEU(dest [3]float32, terrainAlt bool)
	// SetDestination stages a destination from a global location. It
	// reports false if required terrain data is missing.
	SetDestination(loc Location) bool
	Destination() [3]float32
	DestinationIsTerrainAlt() bool
	ReachedDestination() bool
	// Update advances the follower one tick; it reports false on a
	// terrain-data failure.
	Update() bool

	Roll() float32  // centidegrees
	Pitch() float32 // centidegrees

	DistanceToDestination() float32 // cm
	BearingToDestination() float32  // centidegrees
	CrosstrackError() float32       // cm

	DefaultSpeedXY() float32 // cm/s
	Acceleration() float32   // cm/s/s, horizontal
	DefaultSpeedUp() float32 // cm/s
	DefaultSpeedDown() float32
	AccelZ() float32

	TerrainSource() TerrainSource
	RangefinderHealthy() bool
}

// PositionControl is the horizontal/vertical position control loop.
type PositionControl interface {
	SetMaxSpeedXY(cms float32)
	SetMaxAccelXY(cmss float32)
	SetMaxSpeedZ(downCMS, upCMS float32)
	SetMaxAccelZ(cmss float32)
	MaxAccelXY() float32
	MaxAccelZ() float32

	InitVelControllerXYZ()
	InitXYController()
	// InitTakeoff resets the throttle integrator for takeoff.
	InitTakeoff()

	IsActiveZ() bool
	SetAltTargetToCurrentAlt()
	SetAltTargetFromClimbRate(cms, dt float32)
	SetDesiredVelocityZ(cms float32)

	SetPosTarget(pos [3]float32)
	SetXYTarget(x, y float32)
	SetDesiredVelocityXY(x, y float32)
	SetDesiredVelocity(vel [3]float32)
	DesiredVelocity() [3]float32

	UpdateVelControllerXYZ()
	UpdateXYController()
	UpdateZController()

	Roll() float32  // centidegrees
	Pitch() float32 // centidegrees

	DistanceToTarget() float32 // cm
	BearingToTarget() float32  // centidegrees
	// TimeSinceLastXYUpdate returns seconds since the horizontal loop last
	// ran.
	TimeSinceLastXYUpdate() float32
	// PosXYkP returns the horizontal position loop's proportional gain,
	// needed by the avoidance velocity adjustment.
	PosXYkP() float32
}

// AttitudeControl is the attitude control loop.
type AttitudeControl interface {
	InputEulerRollPitchYawRate(rollCD, pitchCD, yawRateCDS float32)
	InputEulerRollPitchYaw(rollCD, pitchCD, yawCD float32, slewYaw bool)
	SetThrottleOut(thrust float32, applyAngleBoost bool, filtHz float32)
	// Relax bleeds attitude demands toward current attitude; used while
	// spooled down or spooling up on the ground.
	Relax()
	// LeanAngleMax returns the altitude-hold constrained lean angle limit
	// in centidegrees.
	LeanAngleMax() float32
}

// Motors is the motor output and arming state.
type Motors interface {
	Armed() bool
	AutoArmed() bool
	SetAutoArmed(bool)
	LandComplete() bool
	SetLandComplete(bool)
	SetDesiredSpool(DesiredSpool)
	Spool() SpoolState
}

// CircleNav is the circular path tracker.
type CircleNav interface {
	Init(center [3]float32)
	SetCenter(center [3]float32)
	Center() [3]float32
	SetRadius(cm float32)
	Radius() float32
	Update()
	Roll() float32
	Pitch() float32
	Yaw() float32
	ClosestPointOnCircle() [3]float32
	// AngleTotal returns the accumulated orbit angle in radians, signed by
	// direction of travel.
	AngleTotal() float32
}

// StateEstimator provides inertial position, velocity, and attitude.
type StateEstimator interface {
	Position() [3]float32 // NEU cm from origin
	Velocity() [3]float32 // NEU cm/s
	AttitudeCD() (rollCD, pitchCD, yawCD float32)
	Location() Location
	// AltIn returns the current altitude expressed in the given frame; it
	// reports false if the frame conversion is not available.
	AltIn(frame AltFrame) (float32, bool)
	// LocationToNEU converts a global location to the local frame; it
	// reports false if the conversion is not available.
	LocationToNEU(loc Location) ([3]float32, bool)
	// LocationFromNEU converts a local-frame position to a global
	// location with altitude above origin.
	LocationFromNEU(pos [3]float32) Location
}

// YawController owns the yaw policy while a runner has lateral control.
type YawController interface {
	Mode() YawMode
	SetMode(YawMode)
	// SetModeToDefault restores the configured default yaw behavior.
	SetModeToDefault()
	SetFixedYaw(yawCD float32, relative bool)
	SetRate(rateCDS float32)
	Rate() float32 // centidegrees/s
	Yaw() float32  // centidegrees
}

// PilotInput provides decoded pilot stick input relevant to guided flight.
type PilotInput interface {
	RadioFailsafe() bool
	// DesiredYawRate returns the pilot's commanded yaw rate in
	// centidegrees/s; zero when the stick is centered.
	DesiredYawRate() float32
}

// Fence tests destinations against the configured geofence. A nil Fence
// means no fence is configured and every destination is acceptable.
type Fence interface {
	DestinationWithinFence(loc Location) bool
}

// Avoidance adjusts velocity demands for obstacles and fence margins. A nil
// Avoidance leaves demands unchanged.
type Avoidance interface {
	AdjustVelocity(kP, accelXY float32, vel *[3]float32, dt float32)
	AdjustClimbRate(cms float32) float32
}

// Rangefinder reports the downward rangefinder's capability, used when
// deciding whether a takeoff can be framed terrain-relative.
type Rangefinder interface {
	MaxDistanceCM() float32
	AltCM() float32
}

// FailsafeSink receives terrain failsafe signals. A nil sink drops them.
type FailsafeSink interface {
	SetTerrainStatus(ok bool)
	TriggerTerrainFailsafe()
}

// LandingGear retracts gear after takeoff; nil if the vehicle has none.
type LandingGear interface {
	RetractAfterTakeoff()
}

// Notifier receives mission progress events; fire-and-forget.
type Notifier interface {
	MissionItemReached(index int)
	MissionComplete()
	Warnf(format string, args ...any)
}

// TargetRecorder records accepted targets and validation errors for
// post-flight analysis; fire-and-forget. See the telem package for the file
// recorder.
type TargetRecorder interface {
	RecordTarget(sub Submode, pos, vel [3]float32)
	RecordError(err error)
}

// Clock supplies wall-clock time for staleness and limit timing; injected so
// both are deterministically testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Deps collects the collaborators the core drives. WpNav, PosControl,
// AttControl, Motors, Inertial, and Yaw are required; the rest may be nil as
// documented on each interface. A nil CircleNav only disables the circle
// submodes.
type Deps struct {
	WpNav       WaypointNav
	PosControl  PositionControl
	AttControl  AttitudeControl
	Motors      Motors
	CircleNav   CircleNav
	Inertial    StateEstimator
	Yaw         YawController
	Pilot       PilotInput
	Fence       Fence
	Avoid       Avoidance
	Rangefinder Rangefinder
	Failsafe    FailsafeSink
	Gear        LandingGear
	Notifier    Notifier
	Recorder    TargetRecorder
	Clock       Clock
}
