package stepcompress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Invariant 5: across a flush, the absolute mcu clock ticks fed into
// queue_step messages are non-decreasing.
func TestSegment_StepMonotonicity(t *testing.T) {
	seg := NewSegment(1_000_000, 0)
	n := seg.PushConst(50, 10, 500)
	require.Equal(t, 50, n)

	msgs := seg.Flush()
	require.NotEmpty(t, msgs)

	// Replay the messages the way the MCU does: each step waits Interval
	// ticks, then Add is applied to the interval.
	var clock uint64
	for _, m := range msgs {
		interval := int64(m.Interval)
		for c := uint16(0); c < m.Count; c++ {
			require.Greater(t, interval, int64(0))
			clock += uint64(interval)
			interval += int64(m.Add)
		}
	}
	require.Equal(t, seg.LastClock(), clock)
	require.GreaterOrEqual(t, seg.LastClock(), uint64(0))
}

func TestSegment_ConstantVelocityRun(t *testing.T) {
	seg := NewSegment(1_000_000, 0)
	seg.PushConst(5, 100, 0) // accel == 0 degenerates to uniform stepping
	msgs := seg.Flush()
	require.NotEmpty(t, msgs)
	// A uniform-velocity run should compress into very few messages
	// (ideally one), since every interval is identical.
	require.LessOrEqual(t, len(msgs), 2)
}

func TestSegment_FlushResetsPending(t *testing.T) {
	seg := NewSegment(1_000_000, 0)
	seg.PushConst(10, 50, 100)
	first := seg.Flush()
	require.NotEmpty(t, first)

	second := seg.Flush()
	require.Empty(t, second)
}
