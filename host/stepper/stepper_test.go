package stepper

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gopper/protocol"
)

type fakeLink struct {
	sent []sentCommand
}

type sentCommand struct {
	name string
	args []uint32
}

func (l *fakeLink) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	out := protocol.NewScratchOutput()
	if args != nil {
		args(out)
	}
	l.sent = append(l.sent, sentCommand{name: name})
	return nil
}

func TestAxis_ConfigureStepper(t *testing.T) {
	link := &fakeLink{}
	a := NewAxis("x", link, Config{OscID: 3, StepDistance: 1.0 / 80, ClockFreq: 16e6})
	require.NoError(t, a.ConfigureStepper())
	require.Len(t, link.sent, 1)
	require.Equal(t, "config_stepper", link.sent[0].name)
}

func TestAxis_SetPositionResetsCommandedAndMcuPos(t *testing.T) {
	link := &fakeLink{}
	a := NewAxis("x", link, Config{OscID: 0, StepDistance: 1.0 / 80, ClockFreq: 16e6})
	a.SetPosition(42)
	require.InDelta(t, 42.0, a.GetCommandedPosition(), 1e-9)
}

func TestAxis_StepConst_EmitsQueueStepForCruiseOnlyMove(t *testing.T) {
	link := &fakeLink{}
	a := NewAxis("x", link, Config{OscID: 1, StepDistance: 1.0 / 80, ClockFreq: 16e6})
	a.SetPosition(0)

	err := a.StepConst(0, 0, 1.0, 10, 0, 10, 0, 1.0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, link.sent)
	for _, c := range link.sent {
		require.Equal(t, "queue_step", c.name)
	}
	// 10 mm/s for 1s at 1/80 mm/step = 800 steps, so commanded position
	// should have advanced by roughly 10mm.
	require.InDelta(t, 10.0, a.GetCommandedPosition(), 0.1)
}

func TestAxis_SetupHoming_SkipsRedundantDirCommand(t *testing.T) {
	link := &fakeLink{}
	a := NewAxis("x", link, Config{OscID: 2, StepDistance: 1.0 / 80, ClockFreq: 16e6})
	require.NoError(t, a.SetupHoming(true))
	require.Len(t, link.sent, 1)
	require.Equal(t, "set_next_step_dir", link.sent[0].name)

	require.NoError(t, a.SetupHoming(true))
	require.Len(t, link.sent, 1, "same direction should not resend set_next_step_dir")

	require.NoError(t, a.SetupHoming(false))
	require.Len(t, link.sent, 2, "direction change should resend set_next_step_dir")
}

func TestAxis_HomingWait_IssuesPositionRequest(t *testing.T) {
	link := &fakeLink{}
	a := NewAxis("x", link, Config{OscID: 4, StepDistance: 1.0 / 80, ClockFreq: 16e6})
	a.SetPosition(12.5)
	pos, err := a.HomingWait(0)
	require.NoError(t, err)
	require.InDelta(t, 12.5, pos, 1e-9)
	require.Len(t, link.sent, 1)
	require.Equal(t, "stepper_get_position", link.sent[0].name)
}
