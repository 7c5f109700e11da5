package motion

import "math"

// ExecContext is the planner context a Move needs to execute itself. Move
// holds no back-reference to its owner (see SPEC_FULL.md §4.1 / §9): the
// object that drives the MoveQueue passes a borrow of itself in, and Move
// stays a pure value.
type ExecContext interface {
	NextMoveTime() float64
	UpdateMoveTime(dt float64)
	MoveKinematics(m *Move, t0 float64) error
	MoveExtruder(m *Move, t0 float64) error
}

// Move is an immutable-after-planning record of one linear move.
type Move struct {
	StartPos Position
	EndPos   Position

	AxesD       Position // signed per-axis displacement, end-start
	MoveD       float64  // Euclidean XYZ length, or |axes_d[3]| if extruder-only
	IsKinematic bool      // false for an extruder-only move

	Accel     float64
	MinMoveT  float64

	MaxStartV2    float64
	MaxCruiseV2   float64
	DeltaV2       float64
	MaxSmoothedV2 float64
	SmoothDeltaV2 float64

	// Filled by SetJunction.
	AccelR, CruiseR, DecelR float64
	StartV, CruiseV, EndV   float64
	AccelT, CruiseT, DecelT float64
}

// NewMove builds a Move from start/end position and requested speed, per
// spec.md §4.1. maxAccel is the toolhead's configured max_accel and
// maxAccelToDecel its smoothed-deceleration cap.
func NewMove(start, end Position, speed, maxAccel, maxAccelToDecel float64) *Move {
	axesD := end.Sub(start)
	moveD := math.Sqrt(axesD[0]*axesD[0] + axesD[1]*axesD[1] + axesD[2]*axesD[2])
	isKinematic := true
	if moveD == 0 {
		moveD = math.Abs(axesD[3])
		isKinematic = false
	}
	m := &Move{
		StartPos:    start,
		EndPos:      end,
		AxesD:       axesD,
		MoveD:       moveD,
		IsKinematic: isKinematic,
		Accel:       maxAccel,
	}
	if speed > 0 {
		m.MinMoveT = moveD / speed
	}
	m.MaxCruiseV2 = speed * speed
	m.DeltaV2 = 2.0 * moveD * m.Accel
	m.SmoothDeltaV2 = 2.0 * moveD * maxAccelToDecel
	return m
}

// LimitSpeed lowers the move's cruise velocity and/or acceleration cap.
// Called by kinematics (e.g. a Z-bearing move slows to the Z axis limits)
// before the move is appended to the queue.
func (m *Move) LimitSpeed(speed, accel float64) {
	speed2 := speed * speed
	if speed2 < m.MaxCruiseV2 {
		m.MaxCruiseV2 = speed2
		if speed > 0 {
			m.MinMoveT = m.MoveD / speed
		}
	}
	if accel < m.Accel {
		m.Accel = accel
	}
	m.DeltaV2 = 2.0 * m.MoveD * m.Accel
	if m.DeltaV2 < m.SmoothDeltaV2 {
		m.SmoothDeltaV2 = m.DeltaV2
	}
}

// ExtruderJunction caps a junction's start velocity independent of the
// cornering math; a dummy/linear extruder with no opinion returns +Inf.
type ExtruderJunction interface {
	CalcJunction(prev, cur *Move) float64
}

// CalcJunction computes the cornering speed cap between this move and its
// predecessor using the centripetal-approximation corner model, storing the
// result in m.MaxStartV2/m.MaxSmoothedV2. Skipped (both stay 0) if either
// move touches Z, the accelerations differ, or either move is
// extruder-only. jd is the machine's configured junction deviation.
func (m *Move) CalcJunction(prev *Move, jd float64, ext ExtruderJunction) {
	if m.AxesD[2] != 0 || prev.AxesD[2] != 0 || m.Accel != prev.Accel ||
		!m.IsKinematic || !prev.IsKinematic {
		return
	}
	extruderV2 := math.Inf(1)
	if ext != nil {
		extruderV2 = ext.CalcJunction(prev, m)
	}
	cosTheta := -((m.AxesD[0]*prev.AxesD[0] + m.AxesD[1]*prev.AxesD[1]) /
		(m.MoveD * prev.MoveD))
	if cosTheta > 0.999999 {
		// Full reversal: MaxStartV2 stays 0, so the move starts from rest.
		return
	}
	cosTheta = clampUnit(cosTheta)
	sinThetaD2 := math.Sqrt(0.5 * (1.0 - cosTheta))
	r := jd * sinThetaD2 / (1.0 - sinThetaD2)
	m.MaxStartV2 = minN(r*m.Accel, m.MaxCruiseV2, prev.MaxCruiseV2,
		extruderV2, prev.MaxStartV2+prev.DeltaV2)
	m.MaxSmoothedV2 = math.Min(m.MaxStartV2, prev.MaxSmoothedV2+prev.SmoothDeltaV2)
}

func minN(vs ...float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// SetJunction fixes the accel/cruise/decel split once start/cruise/end v^2
// are known, and derives the corresponding times.
func (m *Move) SetJunction(startV2, cruiseV2, endV2 float64) {
	invDeltaV2 := 1.0
	if m.DeltaV2 != 0 {
		invDeltaV2 = 1.0 / m.DeltaV2
	}
	m.AccelR = (cruiseV2 - startV2) * invDeltaV2
	m.DecelR = (cruiseV2 - endV2) * invDeltaV2
	m.CruiseR = 1.0 - m.AccelR - m.DecelR

	m.StartV = math.Sqrt(math.Max(0, startV2))
	m.CruiseV = math.Sqrt(math.Max(0, cruiseV2))
	m.EndV = math.Sqrt(math.Max(0, endV2))

	if m.AccelR != 0 {
		m.AccelT = m.AccelR * m.MoveD / ((m.StartV + m.CruiseV) * 0.5)
	} else {
		m.AccelT = 0
	}
	if m.CruiseV != 0 {
		m.CruiseT = m.CruiseR * m.MoveD / m.CruiseV
	} else {
		m.CruiseT = 0
	}
	if m.DecelR != 0 {
		m.DecelT = m.DecelR * m.MoveD / ((m.EndV + m.CruiseV) * 0.5)
	} else {
		m.DecelT = 0
	}
}

// Execute asks ctx for the next print-time slot, hands the move to
// kinematics/extruder to emit step segments, then advances ctx's print
// time by the move's total duration.
func (m *Move) Execute(ctx ExecContext) error {
	t0 := ctx.NextMoveTime()
	if m.IsKinematic {
		if err := ctx.MoveKinematics(m, t0); err != nil {
			return err
		}
	}
	if m.AxesD[3] != 0 {
		if err := ctx.MoveExtruder(m, t0); err != nil {
			return err
		}
	}
	ctx.UpdateMoveTime(m.AccelT + m.CruiseT + m.DecelT)
	return nil
}
