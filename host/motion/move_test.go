package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approxEq(t *testing.T, want, got, tol float64, msg string) {
	t.Helper()
	assert.InDeltaf(t, want, got, tol, "%s: want %v got %v", msg, want, got)
}

// Scenario 1: single XY move, rest-to-rest.
func TestMove_SingleMoveRestToRest(t *testing.T) {
	start := Position{0, 0, 0, 0}
	end := Position{50, 0, 0, 0}
	m := NewMove(start, end, 100, 1000, 1000)

	require.Equal(t, 50.0, m.MoveD)
	// Isolated move (no neighbor): max_start_v2 stays 0, so it starts and
	// ends at rest; SetJunction with start=end=0 reproduces the scenario.
	m.SetJunction(0, m.MaxCruiseV2, 0)

	approxEq(t, 0, m.StartV, 1e-9, "start_v")
	approxEq(t, 0, m.EndV, 1e-9, "end_v")
	approxEq(t, 100, m.CruiseV, 1e-9, "cruise_v")
	approxEq(t, 0.1, m.AccelR, 1e-9, "accel_r")
	approxEq(t, 0.1, m.DecelR, 1e-9, "decel_r")
	approxEq(t, 0.8, m.CruiseR, 1e-9, "cruise_r")

	total := m.AccelT + m.CruiseT + m.DecelT
	approxEq(t, 0.6, total, 1e-9, "total move time")
}

// Invariant 1: accel_r+cruise_r+decel_r=1 and the kinematic identity
// start_v^2 + 2*accel*(accel_r*move_d) = cruise_v^2 (and symmetrically
// for deceleration), for an interior move with nonzero start/end speed.
func TestMove_ProfileInvariant(t *testing.T) {
	start := Position{0, 0, 0, 0}
	end := Position{100, 0, 0, 0}
	m := NewMove(start, end, 80, 1000, 1000)
	m.SetJunction(900, 6400, 1600) // start_v=30, cruise_v=80, end_v=40

	approxEq(t, 1.0, m.AccelR+m.CruiseR+m.DecelR, 1e-9, "ratios sum to 1")

	accelDist := m.AccelR * m.MoveD
	gotCruiseV2 := 900 + 2*m.Accel*accelDist
	approxEq(t, 6400, gotCruiseV2, 1e-6, "accel-phase speed identity")

	decelDist := m.DecelR * m.MoveD
	gotCruiseV2FromDecel := 1600 + 2*m.Accel*decelDist
	approxEq(t, 6400, gotCruiseV2FromDecel, 1e-6, "decel-phase speed identity")
}

// Scenario 2: two collinear moves merge into a single cruise with no
// deceleration at the shared corner.
func TestMove_CollinearJunction(t *testing.T) {
	m1 := NewMove(Position{0, 0, 0, 0}, Position{10, 0, 0, 0}, 100, 1000, 1000)
	m2 := NewMove(Position{10, 0, 0, 0}, Position{20, 0, 0, 0}, 100, 1000, 1000)
	m2.CalcJunction(m1, 0.02, nil)

	// Straight through, cos_theta is -1 (clamped): the junction radius is
	// huge, so MaxStartV2 is capped only by the cruise speeds and m2 may
	// start at m1's full cruise speed.
	approxEq(t, m1.MaxCruiseV2, m2.MaxStartV2, 1e-6, "junction start v2")
	reachable := m2.DeltaV2 // if m1 ends at cruise speed, m2 can start there too
	assert.GreaterOrEqual(t, reachable, m1.MaxCruiseV2-1e-6)
}

// Scenario 3: 90 degree corner.
func TestMove_NinetyDegreeCorner(t *testing.T) {
	m1 := NewMove(Position{0, 0, 0, 0}, Position{10, 0, 0, 0}, 100, 1000, 1000)
	m2 := NewMove(Position{10, 0, 0, 0}, Position{10, 10, 0, 0}, 100, 1000, 1000)
	m2.CalcJunction(m1, 0.02, nil)

	wantVCorner := 6.95
	gotVCorner := math.Sqrt(m2.MaxStartV2)
	approxEq(t, wantVCorner, gotVCorner, 0.01, "corner speed")
}

// Scenario 4-adjacent: LimitSpeed lowers both cruise cap and accel, and
// resulting DeltaV2 never exceeds the un-limited value.
func TestMove_LimitSpeedNeverIncreases(t *testing.T) {
	m := NewMove(Position{0, 0, 0, 0}, Position{30, 0, 40, 0}, 100, 1000, 1000)
	before := m.MaxCruiseV2
	m.LimitSpeed(6.25, 1000)
	assert.Less(t, m.MaxCruiseV2, before)
	approxEq(t, 6.25*6.25, m.MaxCruiseV2, 1e-9, "z-limited cruise v2")
}
