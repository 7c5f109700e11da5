// Package homing drives the overshoot/retract/second-approach sequence
// described in spec.md's homing protocol: approach at full speed from a
// start point 1.5x the axis travel away from the expected endstop position,
// retract off the endstop, then re-approach at half speed for an accurate trigger
// position. Grounded in original_source/klippy/cartesian.py's home() and
// mcu.py's MCU_endstop home_start/home_wait.
package homing

import (
	"github.com/pkg/errors"

	"gopper/host/endstop"
	"gopper/host/kinematics"
)

// Mover is the minimal motion primitive homing needs: move one stepper to
// an absolute position at a given speed/accel and block until complete,
// reporting the commanded end position. In the full toolhead this is
// ToolHead.MoveAxisTo, which steps the stepper directly at constant speed
// without going through the MoveQueue.
type Mover interface {
	MoveAxisTo(stepper kinematics.Stepper, pos, speed float64) error
	PrintTime() float64
}

// State drives one or more endstops through a homing sequence. It
// implements kinematics.HomingDriver.
type State struct {
	mover    Mover
	endstops map[int]*endstop.Endstop
}

func New(mover Mover, endstops map[int]*endstop.Endstop) *State {
	return &State{mover: mover, endstops: endstops}
}

// HomeAxis runs the full two-approach sequence for one axis and returns
// the Cartesian position corresponding to the second trigger, i.e. the
// axis's configured endstop position plus any homed-offset correction
// (none modeled here — see DESIGN.md).
func (s *State) HomeAxis(axis int, stepper kinematics.Stepper, forward bool,
	approachPos, endstopPos, retractDist, homingSpeed, secondHomingSpeed float64) (float64, error) {
	es, ok := s.endstops[axis]
	if !ok {
		return 0, errors.Errorf("homing: no endstop configured for axis %d", axis)
	}

	if err := s.approach(stepper, es, approachPos, homingSpeed); err != nil {
		return 0, err
	}

	var retractPos float64
	if forward {
		retractPos = endstopPos - retractDist
	} else {
		retractPos = endstopPos + retractDist
	}
	if err := s.mover.MoveAxisTo(stepper, retractPos, homingSpeed); err != nil {
		return 0, errors.Wrapf(err, "homing axis %d: retract", axis)
	}

	var secondApproach float64
	if forward {
		secondApproach = retractPos - retractDist
	} else {
		secondApproach = retractPos + retractDist
	}
	if err := s.approach(stepper, es, secondApproach, secondHomingSpeed); err != nil {
		return 0, err
	}

	return endstopPos, nil
}

// approach arms the endstop, moves toward it, and fails if the move
// completes without a trigger (stall/missing switch), mirroring
// mcu.py's home_start/home_wait contract.
func (s *State) approach(stepper kinematics.Stepper, es *endstop.Endstop, target, speed float64) error {
	clock := uint64(s.mover.PrintTime())
	if err := es.HomeStart(clock); err != nil {
		return err
	}
	if err := s.mover.MoveAxisTo(stepper, target, speed); err != nil {
		_ = es.HomeFinalize()
		return errors.Wrap(err, "homing: approach move")
	}
	if err := es.HomeFinalize(); err != nil {
		return err
	}
	if !es.Triggered() {
		return errors.New("homing: endstop did not trigger before move completed")
	}
	return nil
}
