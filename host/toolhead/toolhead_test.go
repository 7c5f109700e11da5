package toolhead

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gopper/host/kinematics"
	"gopper/host/motion"
	"gopper/host/reactor"
)

type fakeMCU struct{ flushed float64 }

func (m *fakeMCU) FlushMoves(printTime float64) error {
	m.flushed = printTime
	return nil
}
func (m *fakeMCU) EstimatedPrintTime(hostTime float64) float64 { return m.flushed }

type fakeKin struct {
	pos    motion.Position
	limits bool // true once "homed"
}

func (k *fakeKin) GetPosition() motion.Position { return k.pos }
func (k *fakeKin) SetPosition(pos motion.Position, axes []int) {
	k.pos = pos
	k.limits = true
}
func (k *fakeKin) CheckMove(m *motion.Move) error {
	if !k.limits {
		return motion.NewEndstopError(m.EndPos, true)
	}
	return nil
}
func (k *fakeKin) Move(m *motion.Move, printTime float64) error           { return nil }
func (k *fakeKin) Home(axis int, driver kinematics.HomingDriver) error { return nil }
func (k *fakeKin) MotorOff()                                           { k.limits = false }
func (k *fakeKin) AxisNames() []string                                 { return []string{"x", "y", "z"} }
func (k *fakeKin) QueryEndstops(printTime float64) ([]kinematics.EndstopState, error) {
	return nil, nil
}

func newTestToolHead() (*ToolHead, *fakeMCU, *fakeKin) {
	log := zap.NewNop()
	mcu := &fakeMCU{}
	kin := &fakeKin{limits: true}
	rx := reactor.New()
	th := New(log, Config{
		MaxVelocity: 300, MaxAccel: 3000, MaxAccelToDecel: 1500,
		JunctionDeviation: 0.02, BufferTimeLow: 1, BufferTimeHigh: 2,
		BufferTimeStart: 0.25, MoveFlushTime: 0.15, MotorOffTime: 600,
	}, kin, mcu, rx)
	return th, mcu, kin
}

func TestToolHead_MoveAdvancesPrintTime(t *testing.T) {
	th, _, _ := newTestToolHead()
	before := th.PrintTime()
	require.NoError(t, th.Move(motion.Position{50, 0, 0, 0}, 100))
	require.NoError(t, th.WaitMoves())
	require.Greater(t, th.PrintTime(), before)
}

func TestToolHead_GetSetPosition(t *testing.T) {
	th, _, _ := newTestToolHead()
	th.SetPosition(motion.Position{1, 2, 3, 4})
	got := th.GetPosition()
	want := motion.Position{1, 2, 3, 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetPosition mismatch (-want +got):\n%s", diff)
	}
}

func TestToolHead_ForceShutdownBlocksFurtherFlush(t *testing.T) {
	th, mcu, _ := newTestToolHead()
	require.NoError(t, th.Move(motion.Position{10, 0, 0, 0}, 100))
	th.ForceShutdown(errors.New("simulated internal step-queue error"))
	require.Error(t, th.Shutdown())
	require.Error(t, th.WaitMoves())
	require.Error(t, th.Move(motion.Position{20, 0, 0, 0}, 100))
	require.Zero(t, mcu.flushed)
}
