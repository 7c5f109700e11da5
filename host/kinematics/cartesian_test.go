package kinematics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gopper/host/endstop"
	"gopper/host/motion"
	"gopper/protocol"
)

type fakeEndstopLink struct{}

func (fakeEndstopLink) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	if args != nil {
		args(protocol.NewScratchOutput())
	}
	return nil
}

type fakeStepper struct {
	name     string
	pos      float64
	stepHook func(startPos, axisR float64)
}

func (s *fakeStepper) Name() string            { return s.name }
func (s *fakeStepper) SetPosition(pos float64) { s.pos = pos }
func (s *fakeStepper) GetCommandedPosition() float64 { return s.pos }
func (s *fakeStepper) StepConst(printTime, startPos, axisR, startV, accel, cruiseV,
	accelT, cruiseT, decelT float64) error {
	if s.stepHook != nil {
		s.stepHook(startPos, axisR)
	}
	return nil
}
func (s *fakeStepper) SetupHoming(dir bool) error                      { return nil }
func (s *fakeStepper) HomingWait(printTime float64) (float64, error)    { return s.pos, nil }

func newTestCartesian() (*Cartesian, [3]*fakeStepper) {
	x := &fakeStepper{name: "x"}
	y := &fakeStepper{name: "y"}
	z := &fakeStepper{name: "z"}
	axes := [3]AxisConfig{
		{MinPosition: 0, MaxPosition: 220},
		{MinPosition: 0, MaxPosition: 220},
		{MinPosition: 0, MaxPosition: 250},
	}
	k := NewCartesian([3]Stepper{x, y, z}, [3]*endstop.Endstop{}, axes, 5.0, 100.0)
	return k, [3]*fakeStepper{x, y, z}
}

// Scenario 4: a Z-bearing move clamps cruise speed to max_z_velocity
// scaled by the Z-distance fraction of total move distance.
func TestCartesian_ZRatioSlowdown(t *testing.T) {
	k, steppers := newTestCartesian()
	k.SetPosition(motion.Position{0, 0, 0, 0}, []int{0, 1, 2})
	_ = steppers

	m := motion.NewMove(motion.Position{0, 0, 0, 0}, motion.Position{30, 0, 40, 0}, 100, 1000, 1000)
	require.NoError(t, k.CheckMove(m))

	wantCruiseV2 := 6.25 * 6.25
	require.InDelta(t, wantCruiseV2, m.MaxCruiseV2, 1e-6)
}

// Invariant 6: soft-limit gate. Before homing, any move raises the
// "must home" flavor of EndstopError.
func TestCartesian_MustHomeBeforeLimitsSet(t *testing.T) {
	k, _ := newTestCartesian() // MotorOff() already ran in NewCartesian
	m := motion.NewMove(motion.Position{0, 0, 0, 0}, motion.Position{10, 0, 0, 0}, 100, 1000, 1000)
	err := k.CheckMove(m)
	require.Error(t, err)
	var esErr *motion.EndstopError
	require.ErrorAs(t, err, &esErr)
	require.ErrorIs(t, esErr, motion.ErrMustHomeFirst)
}

// After SetPosition (simulating a completed home), a move outside the
// configured soft limits raises the "beyond limit" flavor instead.
func TestCartesian_BeyondLimitAfterHoming(t *testing.T) {
	k, _ := newTestCartesian()
	k.SetPosition(motion.Position{0, 0, 0, 0}, []int{0, 1, 2})

	m := motion.NewMove(motion.Position{0, 0, 0, 0}, motion.Position{500, 0, 0, 0}, 100, 1000, 1000)
	err := k.CheckMove(m)
	require.Error(t, err)
	var esErr *motion.EndstopError
	require.ErrorAs(t, err, &esErr)
	require.ErrorIs(t, esErr, motion.ErrBeyondLimit)
}

// Invariant 4: kinematic round-trip for Cartesian is the identity.
func TestCartesian_RoundTrip(t *testing.T) {
	k, _ := newTestCartesian()
	want := motion.Position{12.5, 34.2, 5.5, 0}
	k.SetPosition(want, []int{0, 1, 2})
	got := k.GetPosition()
	require.InDelta(t, want[0], got[0], 1e-9)
	require.InDelta(t, want[1], got[1], 1e-9)
	require.InDelta(t, want[2], got[2], 1e-9)
}

// query_endstops reports one (name, triggered) pair per configured
// endstop, skipping axes with no endstop wired.
func TestCartesian_QueryEndstops(t *testing.T) {
	x := &fakeStepper{name: "x"}
	y := &fakeStepper{name: "y"}
	z := &fakeStepper{name: "z"}
	axes := [3]AxisConfig{{MaxPosition: 220}, {MaxPosition: 220}, {MaxPosition: 250}}
	xEndstop := endstop.New(fakeEndstopLink{}, endstop.Config{OID: 0})
	zEndstop := endstop.New(fakeEndstopLink{}, endstop.Config{OID: 2})
	require.NoError(t, xEndstop.HomeStart(0))
	xEndstop.OnState(false, 0, 1) // simulate a trigger

	k := NewCartesian([3]Stepper{x, y, z}, [3]*endstop.Endstop{xEndstop, nil, zEndstop}, axes, 5.0, 100.0)

	states, err := k.QueryEndstops(0)
	require.NoError(t, err)
	require.Len(t, states, 2)
	require.Equal(t, "x", states[0].Name)
	require.True(t, states[0].Triggered)
	require.Equal(t, "z", states[1].Name)
	require.False(t, states[1].Triggered)
}
