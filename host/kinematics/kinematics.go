// Package kinematics converts between Cartesian toolhead coordinates and
// the stepper-axis coordinates actually driven on the wire, and owns the
// per-axis soft limits and homing sequencing. Grounded on
// original_source/klippy/cartesian.py and corexy.py, wired into the Go
// Kinematics interface shape already present in the teacher's
// standalone/kinematics package.
package kinematics

import (
	"gopper/host/motion"
)

// EndstopState reports one physical stepper's endstop trigger state, as
// returned by Kinematics.QueryEndstops (spec.md §4.3's query_endstops:
// "return per-stepper (name, triggered?) pairs").
type EndstopState struct {
	Name      string
	Triggered bool
}

// Stepper is the subset of a driven axis a Kinematics implementation
// needs: position bookkeeping and step-segment emission. Implemented by
// host/stepper.Axis.
type Stepper interface {
	Name() string
	SetPosition(pos float64)
	GetCommandedPosition() float64
	StepConst(printTime, startPos, axisR, startV, accel, cruiseV,
		accelT, cruiseT, decelT float64) error
	SetupHoming(dir bool) error
	HomingWait(printTime float64) (triggerPos float64, err error)
}

// Kinematics is the spec §4.3 coordinate-transform and homing collaborator.
type Kinematics interface {
	// GetPosition returns the commanded Cartesian position derived from
	// the steppers' current commanded positions.
	GetPosition() motion.Position
	// SetPosition force-sets the steppers' commanded positions from a
	// known-good Cartesian position (e.g. after homing).
	SetPosition(pos motion.Position, axes []int)
	// CheckMove validates a move against soft limits and, for moves with
	// Z motion, reduces its speed/accel in place.
	CheckMove(move *motion.Move) error
	// Move emits step segments for move, starting at the supplied
	// print-time.
	Move(move *motion.Move, printTime float64) error
	// Home runs the homing sequence for the given axis (0=x,1=y,2=z) and
	// sets that axis' soft limits once triggered.
	Home(axis int, driver HomingDriver) error
	// MotorOff resets all axes to the unhomed sentinel limits.
	MotorOff()
	// AxisNames returns the Cartesian axis names this kinematics drives.
	AxisNames() []string
	// QueryEndstops reports the current triggered state of every driven
	// stepper's endstop, matching cartesian.py/corexy.py's
	// query_endstops(): the one homing-adjacent query the G-code layer
	// (spec.md §6.1) is allowed to issue directly, without going through
	// a full home().
	QueryEndstops(printTime float64) ([]EndstopState, error)
}

// HomingDriver is the subset of host/homing.State a Kinematics
// implementation needs to run a homing move; kept as an interface here to
// avoid an import cycle between kinematics and homing.
type HomingDriver interface {
	HomeAxis(axis int, stepper Stepper, forward bool, approachPos, endstopPos,
		retractDist, homingSpeed, secondHomingSpeed float64) (triggerPos float64, err error)
}

// AxisConfig is one axis's geometry and motion limits, grounded in the
// teacher's standalone.AxisConfig (MinPosition/MaxPosition/HomingVel) plus
// the homing fields original_source/cartesian.py reads off
// rail.get_homing_info().
type AxisConfig struct {
	MinPosition      float64
	MaxPosition      float64
	PositionEndstop  float64
	HomingSpeed      float64
	HomingRetractDist float64
	HomingPositiveDir bool
	SecondHomingSpeed float64
}
