package gcode

import (
	"fmt"

	"github.com/pkg/errors"

	"gopper/host/kinematics"
	"gopper/host/motion"
)

// ToolHead is the spec §6.1 surface the G-code layer is allowed to call;
// it never inspects G-code syntax itself. Implemented by
// *host/toolhead.ToolHead.
type ToolHead interface {
	Move(newPos motion.Position, speed float64) error
	Dwell(seconds float64) error
	MotorOff() error
	WaitMoves() error
	GetPosition() motion.Position
	SetPosition(pos motion.Position)
	QueryEndstops() ([]kinematics.EndstopState, error)
}

// State is the interpreter's own motion-mode bookkeeping (G90/G91, M82/M83),
// independent of ToolHead's always-absolute internal position.
type State struct {
	AbsoluteMode bool
	ExtrudeAbs   bool
	FeedRate     float64
	Homed        [3]bool
}

// Interpreter dispatches parsed Commands onto a ToolHead, matching
// standalone/gcode/interpreter.go's executeG/executeM/executeT shape but
// targeting the host's real ToolHead rather than the standalone Planner.
type Interpreter struct {
	th      ToolHead
	homer   func(axis int) error
	state   State
	respond func(string)
}

func NewInterpreter(th ToolHead, homer func(axis int) error, respond func(string)) *Interpreter {
	return &Interpreter{
		th:      th,
		homer:   homer,
		state:   State{AbsoluteMode: true, FeedRate: 50},
		respond: respond,
	}
}

func (in *Interpreter) Execute(cmd *Command) error {
	if cmd == nil || cmd.Type == 0 {
		return nil
	}
	switch cmd.Type {
	case 'G':
		return in.execG(cmd)
	case 'M':
		return in.execM(cmd)
	case 'T':
		return nil // single-extruder host: tool index accepted, ignored
	}
	return nil
}

func (in *Interpreter) execG(cmd *Command) error {
	switch cmd.Number {
	case 0, 1:
		return in.doMove(cmd)
	case 4:
		if cmd.HasParameter('P') {
			return in.th.Dwell(cmd.GetParameter('P', 0) / 1000.0)
		}
		return in.th.Dwell(cmd.GetParameter('S', 0))
	case 28:
		return in.doHome(cmd)
	case 90:
		in.state.AbsoluteMode = true
		return nil
	case 91:
		in.state.AbsoluteMode = false
		return nil
	case 92:
		return in.doSetPosition(cmd)
	}
	return nil
}

func (in *Interpreter) execM(cmd *Command) error {
	switch cmd.Number {
	case 18, 84:
		return in.th.MotorOff()
	case 82:
		in.state.ExtrudeAbs = true
		return nil
	case 83:
		in.state.ExtrudeAbs = false
		return nil
	case 114:
		pos := in.th.GetPosition()
		if in.respond != nil {
			in.respond(fmt.Sprintf("X:%.3f Y:%.3f Z:%.3f E:%.3f", pos[0], pos[1], pos[2], pos[3]))
		}
		return nil
	case 400:
		return in.th.WaitMoves()
	case 112:
		return errors.New("emergency stop requested")
	case 119:
		return in.doQueryEndstops()
	}
	return nil
}

func (in *Interpreter) doQueryEndstops() error {
	states, err := in.th.QueryEndstops()
	if err != nil {
		return errors.Wrap(err, "query endstops")
	}
	if in.respond == nil {
		return nil
	}
	for _, s := range states {
		trigger := "open"
		if s.Triggered {
			trigger = "TRIGGERED"
		}
		in.respond(fmt.Sprintf("%s:%s", s.Name, trigger))
	}
	return nil
}

func (in *Interpreter) doMove(cmd *Command) error {
	cur := in.th.GetPosition()
	next := cur
	for _, axis := range []struct {
		letter byte
		idx    int
	}{{'X', 0}, {'Y', 1}, {'Z', 2}} {
		if cmd.HasParameter(axis.letter) {
			v := cmd.GetParameter(axis.letter, 0)
			if in.state.AbsoluteMode {
				next[axis.idx] = v
			} else {
				next[axis.idx] = cur[axis.idx] + v
			}
		}
	}
	if cmd.HasParameter('E') {
		v := cmd.GetParameter('E', 0)
		if in.state.ExtrudeAbs {
			next[3] = v
		} else {
			next[3] = cur[3] + v
		}
	}
	speed := in.state.FeedRate
	if cmd.HasParameter('F') {
		speed = cmd.GetParameter('F', speed*60) / 60.0
		in.state.FeedRate = speed
	}
	return in.th.Move(next, speed)
}

func (in *Interpreter) doHome(cmd *Command) error {
	axes := []int{}
	if cmd.HasParameter('X') {
		axes = append(axes, 0)
	}
	if cmd.HasParameter('Y') {
		axes = append(axes, 1)
	}
	if cmd.HasParameter('Z') {
		axes = append(axes, 2)
	}
	if len(axes) == 0 {
		axes = []int{0, 1, 2}
	}
	for _, a := range axes {
		if err := in.homer(a); err != nil {
			return errors.Wrapf(err, "home axis %d", a)
		}
	}
	return nil
}

func (in *Interpreter) doSetPosition(cmd *Command) error {
	cur := in.th.GetPosition()
	next := cur
	if cmd.HasParameter('X') {
		next[0] = cmd.GetParameter('X', 0)
	}
	if cmd.HasParameter('Y') {
		next[1] = cmd.GetParameter('Y', 0)
	}
	if cmd.HasParameter('Z') {
		next[2] = cmd.GetParameter('Z', 0)
	}
	if cmd.HasParameter('E') {
		next[3] = cmd.GetParameter('E', 0)
	}
	in.th.SetPosition(next)
	return nil
}
