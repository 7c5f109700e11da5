// Package toolhead implements the print-time pipeline described in
// spec.md §4.4: a monotonic print_time clock, a lazy flush policy driven
// by MCU buffer occupancy, and stall-check backpressure. No motor-off idle
// timer is armed: MotorOff runs only when called, and MotorOffTime is not
// read. Grounded in original_source/klippy/toolhead.py's ToolHead class.
package toolhead

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gopper/host/extruder"
	"gopper/host/kinematics"
	"gopper/host/motion"
	"gopper/host/reactor"
)

const (
	stallTime = 0.100
)

// Config holds the toolhead's buffer-time and motion-limit tunables,
// matching the [printer] section fields toolhead.py reads at startup.
type Config struct {
	MaxVelocity      float64
	MaxAccel         float64
	MaxAccelToDecel  float64
	JunctionDeviation float64

	BufferTimeLow   float64
	BufferTimeHigh  float64
	BufferTimeStart float64
	MoveFlushTime   float64
	MotorOffTime    float64
}

// MCU is the subset of *mcu.MCU the toolhead needs to account for MCU
// buffer occupancy: how much queued motion time the MCU has already
// consumed, and the last clock the host is allowed to claim is flushed.
type MCU interface {
	FlushMoves(printTime float64) error
	EstimatedPrintTime(hostTime float64) float64
}

// ToolHead is the spec §4.4 print-time state machine.
type ToolHead struct {
	log *zap.Logger
	cfg Config
	kin kinematics.Kinematics
	mcu MCU
	rx  *reactor.Reactor

	queue *motion.MoveQueue
	ext   extruder.Extruder

	printTime      float64
	lastMoveTime   float64
	specialQueuing bool // true until the first real move (synch-to-mcu state)

	printStall    int
	forceSynch    bool
	lastFlushTime float64

	flushTimerID  uint64
	motorOffID    uint64
	motorOffArmed bool

	commandedPos motion.Position
	shutdown     error
}

// New builds a ToolHead over kin/mcu/rx, wiring a fresh MoveQueue whose
// ExecContext is the toolhead itself.
func New(log *zap.Logger, cfg Config, kin kinematics.Kinematics, mcu MCU, rx *reactor.Reactor) *ToolHead {
	t := &ToolHead{log: log, cfg: cfg, kin: kin, mcu: mcu, rx: rx, ext: extruder.Dummy{}, specialQueuing: true}
	t.queue = motion.NewMoveQueue(cfg.JunctionDeviation, t)
	t.lastFlushTime = cfg.BufferTimeStart
	t.flushTimerID = rx.RegisterTimer(reactor.Never, t.flushHandler)
	return t
}

// SetExtruder swaps in a new active extruder, flushing the queue first so
// no buffered move straddles the swap (toolhead.py's set_extruder).
func (t *ToolHead) SetExtruder(e extruder.Extruder) error {
	if err := t.flushLookahead(); err != nil {
		return err
	}
	if e == nil {
		e = extruder.Dummy{}
	}
	t.ext = e
	t.queue.SetExtruder(queueExtruderAdapter{e})
	return nil
}

type queueExtruderAdapter struct{ e extruder.Extruder }

func (a queueExtruderAdapter) CalcJunction(prev, cur *motion.Move) float64 {
	return a.e.CalcJunction(prev, cur)
}
func (a queueExtruderAdapter) Lookahead(queue []*motion.Move, flushCount int, lazy bool) {
	a.e.Lookahead(queue, flushCount, lazy)
}

// --- motion.ExecContext ---

func (t *ToolHead) NextMoveTime() float64 {
	if t.specialQueuing || t.forceSynch {
		est := t.mcu.EstimatedPrintTime(t.rx.Monotonic())
		if t.printTime < est+t.cfg.BufferTimeStart {
			t.printTime = est + t.cfg.BufferTimeStart
			t.printStall++
		}
		t.specialQueuing = false
		t.forceSynch = false
	}
	return t.printTime
}

func (t *ToolHead) UpdateMoveTime(dt float64) {
	t.printTime += dt
	t.armFlushTimer()
}

func (t *ToolHead) MoveKinematics(m *motion.Move, t0 float64) error {
	return t.kin.Move(m, t0)
}

func (t *ToolHead) MoveExtruder(m *motion.Move, t0 float64) error {
	return t.ext.Move(m, t0)
}

// --- flush policy ---

// armFlushTimer schedules the MCU-buffer-drain check move_flush_time
// seconds before the MCU would starve, matching toolhead.py's
// _flush_handler scheduling via reactor timers instead of the original's
// single reactor.update_timer call, since this port drives its flush
// timer through host/reactor rather than a shared process reactor.
func (t *ToolHead) armFlushTimer() {
	wake := t.lastFlushTime + t.cfg.MoveFlushTime
	t.rx.UpdateTimer(t.flushTimerID, wake)
}

// flushHandler is the reactor callback that performs a just-in-time flush
// once the MCU's buffered print time is running low, mirroring
// toolhead.py's _flush_handler: must_synch re-arms a forced flush on the
// next move if the buffer is critically low.
func (t *ToolHead) flushHandler(now float64) float64 {
	if t.shutdown != nil {
		return reactor.Never
	}
	est := t.mcu.EstimatedPrintTime(now)
	bufferTime := t.printTime - est
	if bufferTime > t.cfg.BufferTimeHigh {
		return t.lastFlushTime + t.cfg.MoveFlushTime
	}
	if err := t.flushLookahead(); err != nil {
		t.log.Error("flush failed", zap.Error(err))
		return reactor.Never
	}
	if bufferTime < t.cfg.BufferTimeLow {
		t.forceSynch = true
	}
	return reactor.Now
}

func (t *ToolHead) flushLookahead() error {
	if t.shutdown != nil {
		return t.shutdown
	}
	if t.queue.Empty() {
		return nil
	}
	if err := t.queue.Flush(false); err != nil {
		return errors.Wrap(err, "flush lookahead")
	}
	t.lastFlushTime = t.printTime
	return t.mcu.FlushMoves(t.printTime)
}

// checkStall blocks the calling goroutine on the reactor's pause primitive
// while the MCU's buffered print time exceeds buffer_time_high, giving the
// MCU room to drain before more moves are queued (toolhead.py's
// _check_stall).
func (t *ToolHead) checkStall() {
	if t.specialQueuing {
		return
	}
	for {
		est := t.mcu.EstimatedPrintTime(t.rx.Monotonic())
		bufferTime := t.printTime - est
		if bufferTime <= t.cfg.BufferTimeHigh {
			return
		}
		t.rx.Pause(t.rx.Monotonic() + (bufferTime-t.cfg.BufferTimeHigh)/2)
	}
}

// --- motion requests ---

// Move validates and queues one linear move to newPos at the given speed,
// matching toolhead.py's move(): speed is clamped to max_velocity, the
// move is handed to kinematics/extruder for validation, then appended to
// the look-ahead queue.
func (t *ToolHead) Move(newPos motion.Position, speed float64) error {
	if speed > t.cfg.MaxVelocity {
		speed = t.cfg.MaxVelocity
	}
	m := motion.NewMove(t.commandedPos, newPos, speed, t.cfg.MaxAccel, t.cfg.MaxAccelToDecel)
	if m.MoveD == 0 && m.AxesD[3] == 0 {
		return nil
	}
	if t.shutdown != nil {
		return t.shutdown
	}
	if m.IsKinematic {
		if err := t.kin.CheckMove(m); err != nil {
			return err
		}
	}
	if m.AxesD[3] != 0 {
		if err := t.ext.CheckMove(m); err != nil {
			return err
		}
	}
	t.commandedPos = newPos
	if err := t.queue.AddMove(m); err != nil {
		return err
	}
	t.checkStall()
	return nil
}

// Dwell pauses print-time progression by dt seconds without moving,
// flushing first so the pause is ordered correctly against queued moves.
func (t *ToolHead) Dwell(dt float64) error {
	t.lastMoveTime = t.printTime
	if err := t.flushLookahead(); err != nil {
		return err
	}
	t.UpdateMoveTime(dt)
	t.checkStall()
	return nil
}

// WaitMoves blocks until every queued move has been handed to the MCU.
func (t *ToolHead) WaitMoves() error {
	return t.flushLookahead()
}

// MotorOff flushes, dwells STALL_TIME on either side and resets kinematics
// to the unhomed sentinel, following toolhead.py's motor_off(). It does not
// disable the extruder's stepper and arms no idle timer.
func (t *ToolHead) MotorOff() error {
	if err := t.Dwell(stallTime); err != nil {
		return err
	}
	t.kin.MotorOff()
	if err := t.Dwell(stallTime); err != nil {
		return err
	}
	t.motorOffArmed = false
	return nil
}

// Home runs the homing sequence for one Cartesian axis via kin.Home,
// forwarding the driver that performs the overshoot/retract/second-
// approach moves (host/homing.State).
func (t *ToolHead) Home(axis int, driver kinematics.HomingDriver) error {
	if err := t.flushLookahead(); err != nil {
		return err
	}
	return t.kin.Home(axis, driver)
}

// QueryEndstops reports the current triggered state of every driven
// stepper's endstop, forwarding to the kinematics collaborator; one of
// the handful of operations the G-code layer may call directly (spec.md
// §6.1).
func (t *ToolHead) QueryEndstops() ([]kinematics.EndstopState, error) {
	return t.kin.QueryEndstops(t.printTime)
}

// GetPosition returns the last commanded position.
func (t *ToolHead) GetPosition() motion.Position { return t.commandedPos }

// SetPosition force-sets the commanded position without motion (G92),
// also resetting kinematics' internal commanded position for the
// specified axes.
func (t *ToolHead) SetPosition(pos motion.Position) {
	t.commandedPos = pos
	t.kin.SetPosition(pos, []int{0, 1, 2})
}

// PrintTime returns the current print-time clock, exposed for
// host/homing.Mover.
func (t *ToolHead) PrintTime() float64 { return t.printTime }

// ResetPrintTime re-synchronizes the print-time clock to the MCU's
// current estimate, used after an emergency stop recovery.
func (t *ToolHead) ResetPrintTime() {
	t.printTime = t.mcu.EstimatedPrintTime(t.rx.Monotonic()) + t.cfg.BufferTimeStart
	t.specialQueuing = true
}

// ForceShutdown discards all buffered motion and marks the toolhead shut
// down, the error taxonomy's category 3 (fatal, force_shutdown): from then
// on Move and every operation that flushes return cause, and nothing in
// this package clears it.
func (t *ToolHead) ForceShutdown(cause error) {
	t.shutdown = cause
	t.queue.Reset()
	t.rx.RemoveTimer(t.flushTimerID)
	t.log.Error("toolhead force shutdown", zap.Error(cause))
}

// Shutdown reports the terminal shutdown error, if any.
func (t *ToolHead) Shutdown() error { return t.shutdown }

// MoveAxisTo implements host/homing.Mover for a single-axis homing move:
// no Move is built; it emits a constant-speed step run on the stepper via
// StepConst and flushes immediately (homing moves are never batched with
// the look-ahead queue, matching cartesian.py's direct homing_state.home()
// calls that bypass the normal move queue).
func (t *ToolHead) MoveAxisTo(stepper kinematics.Stepper, pos, speed float64) error {
	if stepper == nil {
		return errors.New("toolhead: homing move with nil stepper")
	}
	if speed <= 0 {
		return errors.New("toolhead: homing move with non-positive speed")
	}
	// kinematics.Stepper carries no axis index, so the homing driver is
	// responsible for calling SetPosition itself once the trigger is read
	// back; besides the steps, this drives print_time forward by the move's
	// duration so MCU buffer accounting stays consistent.
	dist := pos - stepper.GetCommandedPosition()
	if dist < 0 {
		dist = -dist
	}
	if err := stepper.SetupHoming(pos > stepper.GetCommandedPosition()); err != nil {
		return err
	}
	t0 := t.NextMoveTime()
	if err := stepper.StepConst(t0, stepper.GetCommandedPosition(), 1.0, speed, 0, speed, 0, dist/speed, 0); err != nil {
		return err
	}
	t.UpdateMoveTime(dist / speed)
	return t.mcu.FlushMoves(t.printTime)
}
