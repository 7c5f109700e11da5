// Package endstop is the host-side driver for one MCU endstop: it issues
// config_endstop once at startup and drives the home_start/home_wait
// request/response cycle against the MCU firmware's endstop sampler in
// core/endstop.go. Grounded in original_source/klippy/mcu.py's
// MCU_endstop (home_start/home_finalize/home_wait/_handle_end_stop_state).
package endstop

import (
	"time"

	"github.com/pkg/errors"

	"gopper/protocol"
)

// Link is the command/response surface a host endstop driver needs.
type Link interface {
	SendCommand(name string, args func(output protocol.OutputBuffer)) error
}

// Config configures the wire-level sampling parameters for one endstop.
type Config struct {
	OID            uint8
	Pin            uint32
	PullUp         bool
	SampleTicks    uint32
	SampleCount    uint8
	RestTicks      uint32
	PinValue       uint8 // expected pin state when triggered
	TrsyncOID      uint8
	TriggerReason  uint8
}

// Endstop drives one physical endstop over the wire.
type Endstop struct {
	link Link
	cfg  Config

	homing bool

	// state set by the last endstop_state response observed; a real
	// implementation subscribes via mcu.MCU's response dispatch and
	// fills these fields from handleResponse. Exposed here for
	// host/homing to read once the MCU has been polled.
	triggered  bool
	nextClock  uint64
	pinValue   uint8
}

func New(link Link, cfg Config) *Endstop {
	return &Endstop{link: link, cfg: cfg}
}

// ConfigureEndstop sends config_endstop, matching core/endstop.go's
// "config_endstop oid=%c pin=%u pull_up=%c" wire format.
func (e *Endstop) ConfigureEndstop() error {
	return e.link.SendCommand("config_endstop", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(e.cfg.OID))
		protocol.EncodeVLQUint(out, e.cfg.Pin)
		protocol.EncodeVLQUint(out, boolToU32(e.cfg.PullUp))
	})
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// HomeStart arms the endstop sampler starting at mcuClock, matching
// core/endstop.go's endstop_home command. The firmware begins sampling
// and will trigger the associated trsync object on detection.
func (e *Endstop) HomeStart(mcuClock uint64) error {
	e.homing = true
	e.triggered = false
	return e.link.SendCommand("endstop_home", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(e.cfg.OID))
		protocol.EncodeVLQUint(out, uint32(mcuClock))
		protocol.EncodeVLQUint(out, e.cfg.SampleTicks)
		protocol.EncodeVLQUint(out, uint32(e.cfg.SampleCount))
		protocol.EncodeVLQUint(out, e.cfg.RestTicks)
		protocol.EncodeVLQUint(out, uint32(e.cfg.PinValue))
		protocol.EncodeVLQUint(out, uint32(e.cfg.TrsyncOID))
		protocol.EncodeVLQUint(out, uint32(e.cfg.TriggerReason))
	})
}

// HomeFinalize clears the host-side homing flag; it sends nothing to the
// MCU.
func (e *Endstop) HomeFinalize() error {
	e.homing = false
	return nil
}

// Query issues endstop_query_state and returns the triggered state last
// applied through OnState, without waiting for the endstop_state reply;
// timeout is not used.
func (e *Endstop) Query(timeout time.Duration) (bool, error) {
	if err := e.link.SendCommand("endstop_query_state", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(e.cfg.OID))
	}); err != nil {
		return false, errors.Wrapf(err, "endstop %d: query_state", e.cfg.OID)
	}
	// The endstop_state response is delivered asynchronously through the
	// MCU's response dispatch and applied via OnState; callers that need
	// a synchronous answer should call Query then read Triggered() once
	// their transport's response handler has run.
	return e.triggered, nil
}

// OnState applies a decoded endstop_state response (oid, homing, next_clock,
// pin_value), matching core/endstop.go's RegisterResponse("endstop_state",
// "oid=%c homing=%c next_clock=%u pin_value=%c").
func (e *Endstop) OnState(homing bool, nextClock uint64, pinValue uint8) {
	e.nextClock = nextClock
	e.pinValue = pinValue
	if !homing && e.homing {
		// Sampler reports it stopped homing on its own: a trigger fired.
		e.triggered = true
	}
	e.homing = homing
}

// Triggered reports the last observed trigger state.
func (e *Endstop) Triggered() bool { return e.triggered }
