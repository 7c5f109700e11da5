// Package stepper drives one physical stepper axis over the MCU wire
// protocol: config_stepper/queue_step/set_next_step_dir for motion, and
// stepper_get_position for reading the position back after homing.
// Grounded in original_source/klippy/mcu.py's MCU_stepper, re-expressed
// against gopper's host/mcu dictionary-driven
// SendCommand.
package stepper

import (
	"math"

	"github.com/pkg/errors"

	"gopper/host/stepcompress"
	"gopper/protocol"
)

// Link is the subset of *mcu.MCU a stepper needs: named command dispatch.
// Responses are not subscribed to through it.
type Link interface {
	SendCommand(name string, args func(output protocol.OutputBuffer)) error
}

// Config is one axis's wire-level geometry.
type Config struct {
	OscID        uint16 // MCU-assigned stepper oscillator/config id
	StepDistance float64 // mm (or belt-mm) moved per step
	ClockFreq    float64 // mcu clock ticks per second
	InvertDir    bool
}

// Axis is a single driven stepper, implementing kinematics.Stepper.
type Axis struct {
	name string
	link Link
	cfg  Config

	commandedPos float64 // mm
	mcuPos       int64   // steps, relative to last reset_step_clock
	lastClock    uint64
	lastDir      bool
	dirKnown     bool
}

// NewAxis builds an Axis bound to link, not yet configured on the wire.
func NewAxis(name string, link Link, cfg Config) *Axis {
	return &Axis{name: name, link: link, cfg: cfg}
}

func (a *Axis) Name() string { return a.name }

// ConfigureStepper sends config_stepper, registering the axis's step/dir
// pins (already known to the MCU from its config dictionary entry) and
// its oscillator id with the host.
func (a *Axis) ConfigureStepper() error {
	return a.link.SendCommand("config_stepper", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(a.cfg.OscID))
		protocol.EncodeVLQUint(out, boolToU32(a.cfg.InvertDir))
	})
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (a *Axis) SetPosition(pos float64) {
	a.commandedPos = pos
	a.mcuPos = 0
	a.lastClock = 0
}

func (a *Axis) GetCommandedPosition() float64 { return a.commandedPos }

func (a *Axis) invStepDist() float64 {
	if a.cfg.StepDistance == 0 {
		return 0
	}
	return 1.0 / a.cfg.StepDistance
}

// StepConst emits the step segments for one move phase (accel/cruise/
// decel), matching mcu.py's MCU_stepper.step_const: the step offset is
// computed from the stepper's currently commanded position, not the
// move's nominal axis-relative distance, so rounding error never
// accumulates across moves.
func (a *Axis) StepConst(printTime, startPos, axisR, startV, accel, cruiseV,
	accelT, cruiseT, decelT float64) error {
	invStepDist := a.invStepDist()
	stepOffset := (a.commandedPos - startPos) * invStepDist

	clock := uint64(math.Round(printTime * a.cfg.ClockFreq))
	seg := stepcompress.NewSegment(stepcompress.ClockRate(a.cfg.ClockFreq), clock)

	totalSteps := 0
	phases := []struct {
		dt, v0, acc float64
	}{
		{accelT, startV * axisR, accel * axisR},
		{cruiseT, cruiseV * axisR, 0},
		{decelT, cruiseV * axisR, -accel * axisR},
	}
	for _, ph := range phases {
		if ph.dt <= 0 {
			continue
		}
		stepDist := a.cfg.StepDistance
		if stepDist == 0 {
			continue
		}
		phaseSteps := int(math.Round((ph.v0*ph.dt + 0.5*ph.acc*ph.dt*ph.dt) / stepDist))
		if phaseSteps < 0 {
			phaseSteps = -phaseSteps
		}
		n := seg.PushConst(phaseSteps, ph.v0/stepDist, ph.acc/stepDist)
		totalSteps += n
	}

	msgs := seg.Flush()
	for _, m := range msgs {
		if err := a.sendQueueStep(m); err != nil {
			return err
		}
	}
	a.lastClock = seg.LastClock()
	a.mcuPos += int64(totalSteps)
	a.commandedPos = startPos + float64(totalSteps)*a.cfg.StepDistance*signOf(stepOffset+float64(totalSteps))
	return nil
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func (a *Axis) sendQueueStep(m stepcompress.QueueStepMsg) error {
	return a.link.SendCommand("queue_step", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(a.cfg.OscID))
		protocol.EncodeVLQUint(out, m.Interval)
		protocol.EncodeVLQUint(out, uint32(m.Count))
		protocol.EncodeVLQInt(out, int32(m.Add))
	})
}

// SetupHoming points the step generator toward/away from the endstop for
// a homing approach, emitting set_next_step_dir ahead of the move.
func (a *Axis) SetupHoming(dir bool) error {
	if a.dirKnown && a.lastDir == dir {
		return nil
	}
	a.lastDir = dir
	a.dirKnown = true
	wireDir := dir
	if a.cfg.InvertDir {
		wireDir = !wireDir
	}
	return a.link.SendCommand("set_next_step_dir", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(a.cfg.OscID))
		protocol.EncodeVLQUint(out, boolToU32(wireDir))
	})
}

// HomingWait requests the stepper's mcu position after an end_stop_home
// trigger and converts it back to a commanded position in mm, mirroring
// mcu.py's MCU_stepper.get_mcu_position()/get_commanded_position() pair
// used by the homing driver's trigger read-back.
func (a *Axis) HomingWait(printTime float64) (float64, error) {
	if err := a.link.SendCommand("stepper_get_position", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(a.cfg.OscID))
	}); err != nil {
		return 0, errors.Wrapf(err, "stepper %s: get_position", a.name)
	}
	// The actual step count arrives asynchronously on the stepper_position
	// response and is applied by the endstop driver via SetPosition once
	// decoded; HomingWait here only issues the request, as the response
	// plumbing lives in host/endstop where the trigger clock is known.
	return a.commandedPos, nil
}
