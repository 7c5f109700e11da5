package kinematics

import (
	"math"

	"gopper/host/endstop"
	"gopper/host/motion"
)

// CoreXY drives X/Y through a belt pair (steppers[0]=A, steppers[1]=B,
// steppers[2]=Z) where A = x+y, B = x-y. Ported from
// original_source/klippy/corexy.py; the cross-wired endstop behavior
// described there (each of A/B's endstop also watches the other) is the
// caller's wiring responsibility in host/endstop, not expressed here.
type CoreXY struct {
	steppers [3]Stepper
	endstops [3]*endstop.Endstop
	axes     [3]AxisConfig
	limits   [3]motion.AxisLimits

	maxZVelocity float64
	maxZAccel    float64
}

func NewCoreXY(steppers [3]Stepper, endstops [3]*endstop.Endstop, axes [3]AxisConfig, maxZVelocity, maxZAccel float64) *CoreXY {
	k := &CoreXY{steppers: steppers, endstops: endstops, axes: axes, maxZVelocity: maxZVelocity, maxZAccel: maxZAccel}
	k.MotorOff()
	return k
}

func (k *CoreXY) AxisNames() []string { return []string{"x", "y", "z"} }

func (k *CoreXY) GetPosition() motion.Position {
	a := k.steppers[0].GetCommandedPosition()
	b := k.steppers[1].GetCommandedPosition()
	return motion.Position{0.5 * (a + b), 0.5 * (a - b), k.steppers[2].GetCommandedPosition(), 0}
}

func (k *CoreXY) SetPosition(pos motion.Position, axes []int) {
	for _, axis := range axes {
		switch axis {
		case 0, 1:
			k.steppers[0].SetPosition(pos[0] + pos[1])
			k.steppers[1].SetPosition(pos[0] - pos[1])
			k.limits[0] = motion.AxisLimits{Lo: k.axes[0].MinPosition, Hi: k.axes[0].MaxPosition}
			k.limits[1] = motion.AxisLimits{Lo: k.axes[1].MinPosition, Hi: k.axes[1].MaxPosition}
		case 2:
			k.steppers[2].SetPosition(pos[2])
			k.limits[2] = motion.AxisLimits{Lo: k.axes[2].MinPosition, Hi: k.axes[2].MaxPosition}
		}
	}
}

func (k *CoreXY) MotorOff() {
	for i := range k.limits {
		k.limits[i] = motion.UnhomedLimits
	}
}

func (k *CoreXY) checkEndstops(move *motion.Move) error {
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

func (k *CoreXY) CheckMove(move *motion.Move) error {
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

// Move re-derives the belt-space start position and displacement before
// emitting step segments, per corexy.py's move(): the Cartesian
// move.start_pos/axes_d are not directly usable on A/B, since the belts
// moved from wherever they actually were commanded to, not from a
// recomputed x+y of the nominal start.
func (k *CoreXY) Move(move *motion.Move, printTime float64) error {
	sa := k.steppers[0].GetCommandedPosition()
	sb := k.steppers[1].GetCommandedPosition()
	startX := 0.5 * (sa + sb)
	startY := 0.5 * (sa - sb)

	endX := startX + move.AxesD[0]
	endY := startY + move.AxesD[1]

	aD := (endX + endY) - sa
	bD := (endX - endY) - sb

	if aD != 0 {
		axisR := math.Abs(aD) / move.MoveD
		if err := k.steppers[0].StepConst(printTime, sa, axisR,
			move.StartV, move.Accel, move.CruiseV, move.AccelT, move.CruiseT, move.DecelT); err != nil {
			return err
		}
	}
	if bD != 0 {
		axisR := math.Abs(bD) / move.MoveD
		if err := k.steppers[1].StepConst(printTime, sb, axisR,
			move.StartV, move.Accel, move.CruiseV, move.AccelT, move.CruiseT, move.DecelT); err != nil {
			return err
		}
	}
	if move.AxesD[2] != 0 {
		axisR := math.Abs(move.AxesD[2]) / move.MoveD
		if err := k.steppers[2].StepConst(printTime, move.StartPos[2], axisR,
			move.StartV, move.Accel, move.CruiseV, move.AccelT, move.CruiseT, move.DecelT); err != nil {
			return err
		}
	}
	return nil
}

func (k *CoreXY) Home(axis int, driver HomingDriver) error {
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
	// For the belt axes, a single stepper's trigger position maps back
	// onto the Cartesian axis for limit bookkeeping only; actual A/B
	// positions are restored via SetPosition from the toolhead once both
	// X and Y have homed.
	k.limits[axis] = motion.AxisLimits{Lo: cfg.MinPosition, Hi: cfg.MaxPosition}
	_ = triggerPos
	return nil
}

// QueryEndstops reports the current triggered state of each configured
// endstop (A, B, Z), matching corexy.py's query_endstops(). The cross-wired
// A/B watch described in spec.md §4.3 is not modeled (see DESIGN.md); each
// belt stepper reports only its own endstop.
func (k *CoreXY) QueryEndstops(printTime float64) ([]EndstopState, error) {
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
