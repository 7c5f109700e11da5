// Package motion implements the host-side move model: the immutable-after-
// planning Move record, the look-ahead MoveQueue, and the position/config
// value types shared by kinematics, extruder and toolhead.
//
// Common suffixes, kept from the Klipper host this was ported from: _d is a
// distance in mm, _v a velocity in mm/s, _v2 a velocity squared in mm^2/s^2,
// _t a time in seconds, _r a ratio in [0, 1].
package motion

import "math"

// Position is a 4-tuple (x, y, z, e) in millimeters; e is extruder distance.
type Position [4]float64

func (p Position) X() float64 { return p[0] }
func (p Position) Y() float64 { return p[1] }
func (p Position) Z() float64 { return p[2] }
func (p Position) E() float64 { return p[3] }

// Sub returns p - o component-wise.
func (p Position) Sub(o Position) Position {
	return Position{p[0] - o[0], p[1] - o[1], p[2] - o[2], p[3] - o[3]}
}

// AxisLimits is a [lo, hi] soft-limit pair. lo > hi is the unhomed sentinel.
type AxisLimits struct {
	Lo float64
	Hi float64
}

// Unhomed reports whether the axis has not yet been homed.
func (l AxisLimits) Unhomed() bool { return l.Lo > l.Hi }

// UnhomedLimits is the sentinel pair kinematics reset to on motor-off.
var UnhomedLimits = AxisLimits{Lo: 1.0, Hi: -1.0}

func clampUnit(v float64) float64 {
	return math.Max(-0.999999, math.Min(0.999999, v))
}
