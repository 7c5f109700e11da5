// Package extruder implements the toolhead's extruder collaborator
// (spec.md §6.2): it caps junction speed at corners and emits its own step
// segments on flush. Its Lookahead hook returns nothing, so it cannot hold
// back part of a flush run. Grounded in original_source/klippy's extruder.py behavior as
// referenced from toolhead.py (PrinterExtruder.calc_junction /
// lookahead), re-expressed against the Move type in host/motion.
package extruder

import (
	"math"

	"github.com/pkg/errors"

	"gopper/host/motion"
	"gopper/host/stepper"
)

// Extruder is the spec §6.2 collaborator interface.
type Extruder interface {
	motion.ExtruderJunction
	// Lookahead is called once per MoveQueue flush with the full queue
	// snapshot and how many moves are being flushed this round.
	Lookahead(queue []*motion.Move, flushCount int, lazy bool)
	// Move emits the extruder's own step segments for a flushed move.
	Move(move *motion.Move, printTime float64) error
	CheckMove(move *motion.Move) error
}

// Dummy is the extruder used before any real extruder is selected (T-1 /
// boot state): it imposes no junction cap, emits no steps, and rejects any
// move with extruder motion.
type Dummy struct{}

func (Dummy) CalcJunction(prev, cur *motion.Move) float64 { return math.Inf(1) }
func (Dummy) Lookahead([]*motion.Move, int, bool)         {}
func (Dummy) Move(*motion.Move, float64) error            { return nil }
func (Dummy) CheckMove(m *motion.Move) error {
	if m != nil && m.AxesD[3] != 0 {
		return errors.New("extrude when no extruder present")
	}
	return nil
}

// Config mirrors the extruder-relevant fields of a Klipper [extruder]
// section. Pressure advance is neither configured nor modeled (see
// DESIGN.md); corners are capped only by InstantaneousCornerV.
type Config struct {
	MaxExtrudeOnlyVelocity float64
	MaxExtrudeOnlyAccel    float64
	InstantaneousCornerV   float64 // mm/s; caps max_start_v2 at corners
	StepDistance           float64
}

// Linear is a single-filament extruder driven by one stepper.
type Linear struct {
	name    string
	axis    *stepper.Axis
	cfg     Config
	lastPos float64
}

func NewLinear(name string, axis *stepper.Axis, cfg Config) *Linear {
	return &Linear{name: name, axis: axis, cfg: cfg}
}

// CalcJunction caps a corner's start velocity by the extruder's
// instantaneous-corner-velocity setting whenever either move carries
// extruder motion, matching extruder.py's conservative same-cap-either-way
// behavior.
func (e *Linear) CalcJunction(prev, cur *motion.Move) float64 {
	if prev.AxesD[3] == 0 && cur.AxesD[3] == 0 {
		return math.Inf(1)
	}
	v := e.cfg.InstantaneousCornerV
	return v * v
}

// Lookahead is a hook point for pressure-advance smoothing across a flush
// window; this port does not implement pressure advance (see DESIGN.md),
// so it is a no-op.
func (e *Linear) Lookahead(queue []*motion.Move, flushCount int, lazy bool) {}

// CheckMove enforces the extrude-only speed/accel caps for moves that
// carry no XYZ displacement (retraction/priming), mirroring
// toolhead.py's Move.__init__ extrude-only branch.
func (e *Linear) CheckMove(move *motion.Move) error {
	if move.IsKinematic {
		return nil
	}
	move.LimitSpeed(e.cfg.MaxExtrudeOnlyVelocity, e.cfg.MaxExtrudeOnlyAccel)
	return nil
}

func (e *Linear) Move(move *motion.Move, printTime float64) error {
	axisD := move.AxesD[3]
	if axisD == 0 {
		return nil
	}
	return e.axis.StepConst(printTime, move.StartPos[3], math.Abs(axisD)/move.MoveD,
		move.StartV, move.Accel, move.CruiseV, move.AccelT, move.CruiseT, move.DecelT)
}
