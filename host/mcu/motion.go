package mcu

import (
	"fmt"
	"sync"
	"time"
)

// MotionClock tracks how far the MCU has been told to queue motion,
// giving the toolhead an estimate of buffered print time without a round
// trip. Grounded in original_source/klippy/mcu.py's MCU print-time
// accounting (get_print_buffer_time / print_time<->clock conversion),
// re-expressed as a small helper the existing *MCU embeds rather than a
// rewrite of the dictionary/transport plumbing in mcu.go.
type MotionClock struct {
	mu sync.Mutex

	clockFreq      float64
	startWallTime  time.Time
	lastPrintTime  float64
}

// NewMotionClock builds a clock ticking at clockFreq ticks/sec, the MCU's
// reported clock frequency from its config dictionary.
func NewMotionClock(clockFreq float64) *MotionClock {
	return &MotionClock{clockFreq: clockFreq, startWallTime: time.Now()}
}

// SetPrintStartTime anchors print_time=0 to the current wall clock,
// matching mcu.py's set_print_start_time called once homing/setup
// completes and real motion begins.
func (c *MotionClock) SetPrintStartTime() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startWallTime = time.Now()
	c.lastPrintTime = 0
}

// NoteFlushed records that the host has queued motion up through
// printTime; EstimatedPrintTime never reports a time ahead of the
// furthest point actually sent.
func (c *MotionClock) NoteFlushed(printTime float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if printTime > c.lastPrintTime {
		c.lastPrintTime = printTime
	}
}

// EstimatedPrintTime returns the MCU's current position along the
// print_time axis, estimated from wall-clock elapsed time since
// SetPrintStartTime, capped at the furthest flushed point.
func (c *MotionClock) EstimatedPrintTime(hostTime float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.startWallTime).Seconds()
	if elapsed > c.lastPrintTime {
		return c.lastPrintTime
	}
	return elapsed
}

// PrintTimeToClock converts a print_time (seconds) to an absolute MCU
// clock tick.
func (c *MotionClock) PrintTimeToClock(printTime float64) uint64 {
	return uint64(printTime * c.clockFreq)
}

// FlushMoves records printTime as the flushed watermark. It sends nothing
// to the MCU: the queue_step/set_next_step_dir commands were already sent
// by the steppers themselves during Move emission, so this only advances
// host-side bookkeeping.
func (m *MCU) FlushMoves(printTime float64) error {
	if m.motion == nil {
		return fmt.Errorf("mcu: motion clock not initialized")
	}
	m.motion.NoteFlushed(printTime)
	return nil
}

// EstimatedPrintTime exposes the motion clock's estimate for the
// toolhead's buffer-time accounting.
func (m *MCU) EstimatedPrintTime(hostTime float64) float64 {
	if m.motion == nil {
		return 0
	}
	return m.motion.EstimatedPrintTime(hostTime)
}

// InitMotionClock installs the motion-time accounting helper once the
// MCU's config dictionary (and its reported clock_freq) is known.
func (m *MCU) InitMotionClock(clockFreq float64) {
	m.motion = NewMotionClock(clockFreq)
	m.motion.SetPrintStartTime()
}
