// Package stepcompress implements the opaque step-compressor primitive
// described in spec.md §6.3. Klipper's C chelper compresses a constant-
// acceleration segment of steps into a handful of wire messages by fitting
// short runs of equal step intervals; this host has no chelper, so it
// solves each step's exact timestamp from the segment's kinematics and
// emits one queue_step message per run of equal intervals, which is the
// straightforward Go-native way to keep the same wire contract without a
// C fitting pass.
package stepcompress

import "math"

// Mcu clock ticks per second; steppers convert seconds to clock ticks
// through this before queuing.
type ClockRate float64

// QueueStepMsg is one queue_step MCU command: step `Count` times starting
// `Interval` clock ticks after the previous segment's last step,
// adjusting the interval by `Add` ticks after each step (the MCU
// firmware's constant-acceleration step generator, see core/ timer
// dispatch).
type QueueStepMsg struct {
	Interval uint32
	Count    uint16
	Add      int16
}

// Segment accumulates the step clock times for one constant-acceleration
// move segment (accel, cruise or decel phase) and compresses them into
// queue_step messages on Flush.
type Segment struct {
	clock ClockRate

	lastClock uint64
	pending   []uint64 // absolute mcu clock tick of each step, ascending
}

// NewSegment starts a compression run at lastClock (the mcu clock tick of
// the previous segment's final step, or the homing/reset clock at the
// start of a move).
func NewSegment(clock ClockRate, lastClock uint64) *Segment {
	return &Segment{clock: clock, lastClock: lastClock}
}

// PushConst solves step times for a constant-acceleration run of
// stepCount steps starting at startV (steps/sec) and accelerating at
// accel (steps/sec^2), appends their absolute clock ticks, and returns how
// many ticks this call appended. accel may be 0 (constant velocity).
//
// Per-step distance is 1 (unit steps); the i-th step's time since the
// segment start solves t = (-startV + sqrt(startV^2 + 2*accel*i)) / accel,
// degenerating to i/startV when accel == 0.
func (s *Segment) PushConst(stepCount int, startV, accel float64) int {
	if stepCount <= 0 {
		return 0
	}
	before := len(s.pending)
	for i := 1; i <= stepCount; i++ {
		var t float64
		if accel == 0 {
			if startV == 0 {
				break
			}
			t = float64(i) / startV
		} else {
			disc := startV*startV + 2*accel*float64(i)
			if disc < 0 {
				break
			}
			t = (-startV + math.Sqrt(disc)) / accel
		}
		tick := s.lastClock + uint64(math.Round(t*float64(s.clock)))
		s.pending = append(s.pending, tick)
	}
	return len(s.pending) - before
}

// Flush compresses the accumulated step ticks into queue_step messages,
// grouping consecutive equal intervals, and resets the segment so the
// next move phase continues from the last emitted tick.
func (s *Segment) Flush() []QueueStepMsg {
	if len(s.pending) == 0 {
		return nil
	}
	var msgs []QueueStepMsg
	prevClock := s.lastClock
	i := 0
	for i < len(s.pending) {
		interval := s.pending[i] - prevClock
		count := uint16(1)
		j := i + 1
		// Extend the run while the interval is constant (zero add) or
		// changes by the same step each time (linear add), matching the
		// firmware's queue_step semantics: Add is applied after every
		// step within the run.
		var add int16
		if j < len(s.pending) {
			nextInterval := s.pending[j] - s.pending[j-1]
			add = int16(int64(nextInterval) - int64(interval))
		}
		curInterval := interval
		for j < len(s.pending) {
			nextInterval := s.pending[j] - s.pending[j-1]
			if int16(int64(nextInterval)-int64(curInterval)) != add {
				break
			}
			curInterval = nextInterval
			count++
			j++
		}
		msgs = append(msgs, QueueStepMsg{Interval: uint32(interval), Count: count, Add: add})
		prevClock = s.pending[j-1]
		i = j
	}
	s.lastClock = prevClock
	s.pending = s.pending[:0]
	return msgs
}

// LastClock returns the mcu clock tick of the most recently flushed step,
// the handoff point for the next segment.
func (s *Segment) LastClock() uint64 { return s.lastClock }
