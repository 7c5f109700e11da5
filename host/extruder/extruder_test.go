package extruder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"gopper/host/motion"
)

func TestDummy_NoJunctionCapOrSteps(t *testing.T) {
	var d Dummy
	require.True(t, math.IsInf(d.CalcJunction(nil, nil), 1))
	require.NoError(t, d.Move(nil, 0))
	require.NoError(t, d.CheckMove(nil))
}

func TestLinear_CalcJunction_NoExtrusionIsUnbounded(t *testing.T) {
	e := NewLinear("extruder", nil, Config{InstantaneousCornerV: 1.0})
	prev := &motion.Move{}
	cur := &motion.Move{}
	require.True(t, math.IsInf(e.CalcJunction(prev, cur), 1))
}

func TestLinear_CalcJunction_ExtrusionCapsAtCornerV(t *testing.T) {
	e := NewLinear("extruder", nil, Config{InstantaneousCornerV: 2.0})
	prev := &motion.Move{}
	cur := &motion.Move{}
	cur.AxesD[3] = 1.5
	require.InDelta(t, 4.0, e.CalcJunction(prev, cur), 1e-9)
}

func TestLinear_CheckMove_LimitsExtrudeOnlySpeed(t *testing.T) {
	e := NewLinear("extruder", nil, Config{MaxExtrudeOnlyVelocity: 5, MaxExtrudeOnlyAccel: 100})
	m := motion.NewMove(motion.Position{0, 0, 0, 0}, motion.Position{0, 0, 0, 10}, 50, 2000, 1000)
	require.False(t, m.IsKinematic)
	require.NoError(t, e.CheckMove(m))
	require.LessOrEqual(t, m.MaxCruiseV2, 25.0+1e-9)
	require.LessOrEqual(t, m.Accel, 100.0)
}

func TestLinear_CheckMove_LeavesKinematicMoveAlone(t *testing.T) {
	e := NewLinear("extruder", nil, Config{MaxExtrudeOnlyVelocity: 5, MaxExtrudeOnlyAccel: 100})
	m := motion.NewMove(motion.Position{0, 0, 0, 0}, motion.Position{10, 0, 0, 0}, 50, 2000, 1000)
	require.True(t, m.IsKinematic)
	require.NoError(t, e.CheckMove(m))
	require.InDelta(t, 2500.0, m.MaxCruiseV2, 1e-9)
}
