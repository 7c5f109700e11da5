package homing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gopper/host/endstop"
	"gopper/host/kinematics"
	"gopper/protocol"
)

// fakeLink records every command sent to the wire without touching any
// real transport, enough for Endstop's config/home_start calls to succeed.
type fakeLink struct{ sent []string }

func (l *fakeLink) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	l.sent = append(l.sent, name)
	if args != nil {
		args(protocol.NewScratchOutput())
	}
	return nil
}

// fakeStepper is a minimal kinematics.Stepper double: it tracks its own
// commanded position and records direction flips from SetupHoming.
type fakeStepper struct {
	pos float64
	dir bool
}

func (s *fakeStepper) Name() string                    { return "x" }
func (s *fakeStepper) SetPosition(pos float64)          { s.pos = pos }
func (s *fakeStepper) GetCommandedPosition() float64    { return s.pos }
func (s *fakeStepper) StepConst(printTime, startPos, axisR, startV, accel, cruiseV, accelT, cruiseT, decelT float64) error {
	return nil
}
func (s *fakeStepper) SetupHoming(dir bool) error { s.dir = dir; return nil }
func (s *fakeStepper) HomingWait(printTime float64) (float64, error) { return s.pos, nil }

// fakeMover plays the role of ToolHead.MoveAxisTo for the purposes of a
// homing sequence: it moves the stepper to the requested position and, for
// approach moves, triggers the endstop partway there (simulating the
// firmware's asynchronous endstop_state response).
type fakeMover struct {
	printTime float64
	moves     []recordedMove
	es        *endstop.Endstop
	trigger   bool // if true, the next move fires the endstop
}

type recordedMove struct {
	pos, speed float64
}

func (m *fakeMover) PrintTime() float64 { return m.printTime }

func (m *fakeMover) MoveAxisTo(stepper kinematics.Stepper, pos, speed float64) error {
	m.moves = append(m.moves, recordedMove{pos: pos, speed: speed})
	if m.trigger && m.es != nil {
		m.es.OnState(false, 0, 0)
	}
	stepper.SetPosition(pos)
	m.printTime += 1
	return nil
}

func TestHoming_SingleAxisOvershootRetractSecondApproach(t *testing.T) {
	link := &fakeLink{}
	es := endstop.New(link, endstop.Config{OID: 0, Pin: 1, PinValue: 1})

	stp := &fakeStepper{pos: 0}
	mover := &fakeMover{es: es, trigger: true}
	s := New(mover, map[int]*endstop.Endstop{0: es})

	const (
		endstopPos        = 200.0
		retractDist       = 5.0
		homingSpeed       = 50.0
		secondHomingSpeed = 25.0
	)
	approachPos := endstopPos - 1.5*(endstopPos-0)

	triggerPos, err := s.HomeAxis(0, stp, true, approachPos, endstopPos, retractDist, homingSpeed, secondHomingSpeed)
	require.NoError(t, err)
	require.InDelta(t, endstopPos, triggerPos, 1e-9)

	require.Len(t, mover.moves, 3)
	require.InDelta(t, -100.0, mover.moves[0].pos, 1e-9)
	require.InDelta(t, homingSpeed, mover.moves[0].speed, 1e-9)

	require.InDelta(t, 195.0, mover.moves[1].pos, 1e-9)
	require.InDelta(t, homingSpeed, mover.moves[1].speed, 1e-9)

	require.InDelta(t, 190.0, mover.moves[2].pos, 1e-9)
	require.InDelta(t, secondHomingSpeed, mover.moves[2].speed, 1e-9)
}

func TestHoming_NoTriggerIsAnError(t *testing.T) {
	link := &fakeLink{}
	es := endstop.New(link, endstop.Config{OID: 0, Pin: 1, PinValue: 1})
	stp := &fakeStepper{pos: 0}
	mover := &fakeMover{es: es, trigger: false}
	s := New(mover, map[int]*endstop.Endstop{0: es})

	_, err := s.HomeAxis(0, stp, true, -100, 200, 5, 50, 25)
	require.Error(t, err)
}

func TestHoming_MissingEndstopIsAnError(t *testing.T) {
	mover := &fakeMover{}
	s := New(mover, map[int]*endstop.Endstop{})
	_, err := s.HomeAxis(7, &fakeStepper{}, true, -100, 200, 5, 50, 25)
	require.Error(t, err)
}
