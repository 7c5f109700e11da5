package kinematics

import (
	"math"

	"gopper/host/endstop"
	"gopper/host/motion"
)

// Cartesian is a 1:1 XYZ kinematics: each Cartesian axis is driven by
// exactly one stepper. Ported from original_source/klippy/cartesian.py.
type Cartesian struct {
	steppers [3]Stepper
	endstops [3]*endstop.Endstop
	axes     [3]AxisConfig
	limits   [3]motion.AxisLimits

	maxZVelocity float64
	maxZAccel    float64
}

// NewCartesian builds a Cartesian kinematics over the x/y/z steppers (and
// their corresponding endstops, for QueryEndstops) in that order.
func NewCartesian(steppers [3]Stepper, endstops [3]*endstop.Endstop, axes [3]AxisConfig, maxZVelocity, maxZAccel float64) *Cartesian {
	k := &Cartesian{steppers: steppers, endstops: endstops, axes: axes, maxZVelocity: maxZVelocity, maxZAccel: maxZAccel}
	k.MotorOff()
	return k
}

func (k *Cartesian) AxisNames() []string { return []string{"x", "y", "z"} }

func (k *Cartesian) GetPosition() motion.Position {
	return motion.Position{
		k.steppers[0].GetCommandedPosition(),
		k.steppers[1].GetCommandedPosition(),
		k.steppers[2].GetCommandedPosition(),
		0,
	}
}

func (k *Cartesian) SetPosition(pos motion.Position, axes []int) {
	for _, a := range axes {
		if a < 0 || a > 2 {
			continue
		}
		k.steppers[a].SetPosition(pos[a])
		k.limits[a] = motion.AxisLimits{Lo: k.axes[a].MinPosition, Hi: k.axes[a].MaxPosition}
	}
}

func (k *Cartesian) MotorOff() {
	for i := range k.limits {
		k.limits[i] = motion.UnhomedLimits
	}
}

func (k *Cartesian) checkEndstops(move *motion.Move) error {
	end := move.EndPos
	for i := 0; i < 3; i++ {
		if move.AxesD[i] == 0 {
			continue
		}
		if end[i] < k.limits[i].Lo || end[i] > k.limits[i].Hi {
			return motion.NewEndstopError(end, k.limits[i].Unhomed())
		}
	}
	return nil
}

// CheckMove validates soft limits and, for a move with Z displacement,
// clamps speed/accel to the Z axis's own caps scaled by the fraction of
// total distance that axis covers (cartesian.py's z_ratio).
func (k *Cartesian) CheckMove(move *motion.Move) error {
	xy2 := move.AxesD[0]*move.AxesD[0] + move.AxesD[1]*move.AxesD[1]
	if xy2 == 0 && move.AxesD[2] == 0 {
		return nil
	}
	if err := k.checkEndstops(move); err != nil {
		return err
	}
	if move.AxesD[2] != 0 {
		zRatio := move.MoveD / math.Abs(move.AxesD[2])
		move.LimitSpeed(k.maxZVelocity*zRatio, k.maxZAccel*zRatio)
	}
	return nil
}

func (k *Cartesian) Move(move *motion.Move, printTime float64) error {
	for i := 0; i < 3; i++ {
		axisD := move.AxesD[i]
		if axisD == 0 {
			continue
		}
		axisR := math.Abs(axisD) / move.MoveD
		if err := k.steppers[i].StepConst(printTime, move.StartPos[i], axisR,
			move.StartV, move.Accel, move.CruiseV, move.AccelT, move.CruiseT, move.DecelT); err != nil {
			return err
		}
	}
	return nil
}

// Home runs the overshoot/retract/second-approach sequence for one axis,
// mirroring cartesian.py's home(): for a positive-direction endstop the
// approach starts 1.5x the endstop-to-MinPosition travel below the
// endstop; a negative-direction endstop mirrors the same arithmetic with
// MaxPosition.
func (k *Cartesian) Home(axis int, driver HomingDriver) error {
	if axis < 0 || axis > 2 {
		return nil
	}
	cfg := k.axes[axis]
	var approachPos float64
	forward := cfg.HomingPositiveDir
	if forward {
		approachPos = cfg.PositionEndstop - 1.5*(cfg.PositionEndstop-cfg.MinPosition)
	} else {
		approachPos = cfg.PositionEndstop + 1.5*(cfg.MaxPosition-cfg.PositionEndstop)
	}
	secondSpeed := cfg.SecondHomingSpeed
	if secondSpeed == 0 {
		secondSpeed = cfg.HomingSpeed / 2.0
	}
	triggerPos, err := driver.HomeAxis(axis, k.steppers[axis], forward, approachPos,
		cfg.PositionEndstop, cfg.HomingRetractDist, cfg.HomingSpeed, secondSpeed)
	if err != nil {
		return err
	}
	k.steppers[axis].SetPosition(triggerPos)
	k.limits[axis] = motion.AxisLimits{Lo: cfg.MinPosition, Hi: cfg.MaxPosition}
	return nil
}

// QueryEndstops reports the current triggered state of each configured
// endstop, matching cartesian.py's query_endstops(). printTime is accepted
// to match the spec's signature; the underlying endstop driver answers
// from its last-observed state rather than blocking on a fresh sample.
func (k *Cartesian) QueryEndstops(printTime float64) ([]EndstopState, error) {
	states := make([]EndstopState, 0, 3)
	for i := 0; i < 3; i++ {
		if k.endstops[i] == nil {
			continue
		}
		triggered, err := k.endstops[i].Query(0)
		if err != nil {
			return nil, err
		}
		states = append(states, EndstopState{Name: k.steppers[i].Name(), Triggered: triggered})
	}
	return states, nil
}
