package motion

// LookaheadFlushTime mirrors the Klipper host's 250ms look-ahead horizon:
// once this many seconds of unflushed move time have queued up, a lazy
// flush runs even if the planner is still accepting more moves.
const LookaheadFlushTime = 0.250

// QueueExtruder is the subset of the extruder collaborator the MoveQueue
// itself needs: junction capping (via ExtruderJunction) and the chance to
// adjust pressure-advance state over a flushed range before moves execute.
type QueueExtruder interface {
	ExtruderJunction
	Lookahead(queue []*Move, flushCount int, lazy bool)
}

// MoveQueue buffers moves, computes corner-junction speeds across the
// whole buffered run, and flushes a moving window of them once no further
// corner in the window can still lower an earlier move's target speed.
type MoveQueue struct {
	jd       float64
	extruder QueueExtruder
	exec     ExecContext

	queue         []*Move
	junctionFlush float64
}

// NewMoveQueue builds an empty queue. jd is the configured junction
// deviation; exec is the toolhead moves are dispatched to on flush.
func NewMoveQueue(jd float64, exec ExecContext) *MoveQueue {
	q := &MoveQueue{jd: jd, exec: exec}
	q.junctionFlush = LookaheadFlushTime
	return q
}

// SetExtruder installs the collaborator used for junction capping and
// lookahead notification; nil is valid (no extruder-imposed cap).
func (q *MoveQueue) SetExtruder(e QueueExtruder) {
	q.extruder = e
}

// Reset discards all buffered moves without executing them, used on
// force-shutdown.
func (q *MoveQueue) Reset() {
	q.queue = q.queue[:0]
	q.junctionFlush = LookaheadFlushTime
}

// Empty reports whether the queue currently holds no buffered moves.
func (q *MoveQueue) Empty() bool {
	return len(q.queue) == 0
}

// AddMove appends move to the queue, computes its junction speed against
// the move that currently sits last in the queue, and lazily flushes once
// enough move time has accumulated that later corners can no longer
// affect the front of the queue.
func (q *MoveQueue) AddMove(move *Move) error {
	q.queue = append(q.queue, move)
	if len(q.queue) == 1 {
		return nil
	}
	prev := q.queue[len(q.queue)-2]
	move.CalcJunction(prev, q.jd, q.extruder)
	q.junctionFlush -= move.MinMoveT
	if q.junctionFlush <= 0 {
		return q.Flush(true)
	}
	return nil
}

// Flush walks the buffered queue backward to assign final start/cruise/end
// speeds to each move, then executes the stable prefix (all of it, if
// lazy is false). This is the one algorithm in this package with zero
// slack for approximation: it must reproduce the Klipper host's
// backward-pass exactly, since the forward pass alone cannot know a move's
// true start speed until every later corner has had a chance to veto it.
// Ported line-for-line from original_source/klippy/toolhead.py's
// MoveQueue.flush.
func (q *MoveQueue) Flush(lazy bool) error {
	q.junctionFlush = LookaheadFlushTime
	updateFlushCount := lazy
	queue := q.queue
	flushCount := len(queue)
	if flushCount == 0 {
		return nil
	}

	// Traverse the queue from last to first move and determine the
	// maximum junction speed assuming the robot comes to a complete stop
	// after the last move.
	var delayed []delayedMove
	nextEndV2, nextSmoothedV2, peakCruiseV2 := 0.0, 0.0, 0.0

	for i := flushCount - 1; i >= 0; i-- {
		move := queue[i]
		reachableStartV2 := nextEndV2 + move.DeltaV2
		startV2 := minF(move.MaxStartV2, reachableStartV2)
		reachableSmoothedV2 := nextSmoothedV2 + move.SmoothDeltaV2
		smoothedV2 := minF(move.MaxSmoothedV2, reachableSmoothedV2)

		if smoothedV2 < reachableSmoothedV2 {
			// It's possible for this move to accelerate.
			if smoothedV2+move.SmoothDeltaV2 > nextSmoothedV2 || len(delayed) > 0 {
				// This move can decelerate, or this is a full-accel move
				// after a full-decel move.
				if updateFlushCount && peakCruiseV2 != 0 {
					flushCount = i
					updateFlushCount = false
				}
				peakCruiseV2 = minF(move.MaxCruiseV2, (smoothedV2+reachableSmoothedV2)*0.5)
				if len(delayed) > 0 {
					// Propagate peak_cruise_v2 to any delayed moves.
					if !updateFlushCount && i < flushCount {
						for _, d := range delayed {
							mcV2 := minF(peakCruiseV2, d.startV2)
							d.move.SetJunction(minF(d.startV2, mcV2), mcV2, minF(d.endV2, mcV2))
						}
					}
					delayed = delayed[:0]
				}
			}
			if !updateFlushCount && i < flushCount {
				cruiseV2 := minF((startV2+reachableStartV2)*0.5, move.MaxCruiseV2, peakCruiseV2)
				move.SetJunction(minF(startV2, cruiseV2), cruiseV2, minF(nextEndV2, cruiseV2))
			}
		} else {
			// Delay calculating this move until peak_cruise_v2 is known.
			delayed = append(delayed, delayedMove{move: move, startV2: startV2, endV2: nextEndV2})
		}
		nextEndV2 = startV2
		nextSmoothedV2 = smoothedV2
	}
	if updateFlushCount {
		return nil
	}

	// Allow the extruder to do its lookahead (pressure-advance smoothing
	// is not modeled — see DESIGN.md — so this never holds moves back).
	if q.extruder != nil {
		q.extruder.Lookahead(queue, flushCount, lazy)
	}

	for i := 0; i < flushCount; i++ {
		if err := queue[i].Execute(q.exec); err != nil {
			return err
		}
	}

	leftover := copy(q.queue, queue[flushCount:])
	q.queue = q.queue[:leftover]
	return nil
}

type delayedMove struct {
	move           *Move
	startV2, endV2 float64
}

func minF(a float64, rest ...float64) float64 {
	m := a
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
