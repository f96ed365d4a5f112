package planner

import "math"

// MoveChecker tightens a Move's velocity/acceleration ceilings to respect a
// per-axis or per-extruder hardware limit. It's a closed, tagged-struct
// union rather than an interface because there are exactly two kinds
// (mirroring the original's MoveChecker enum) and neither needs its own
// package or dynamic dispatch beyond Check.
type MoveChecker struct {
	kind MoveCheckerKind

	// AxisLimiter fields.
	Axis       vec4 // only X/Y/Z are meaningful
	MaxVelocity float64
	MaxAccel   float64
}

// MoveCheckerKind selects which constraint a MoveChecker enforces.
type MoveCheckerKind int

const (
	AxisLimiterKind MoveCheckerKind = iota
	ExtruderLimiterKind
)

// NewAxisLimiter returns a MoveChecker that scales a move's velocity and
// acceleration ceilings so that its projection onto axis never exceeds
// maxVelocity/maxAccel.
func NewAxisLimiter(axis vec4, maxVelocity, maxAccel float64) MoveChecker {
	return MoveChecker{kind: AxisLimiterKind, Axis: axis, MaxVelocity: maxVelocity, MaxAccel: maxAccel}
}

// NewExtruderLimiter returns a MoveChecker that caps the rate of
// extrude-only moves (retraction/prime moves with no XY component).
func NewExtruderLimiter(maxVelocity, maxAccel float64) MoveChecker {
	return MoveChecker{kind: ExtruderLimiterKind, MaxVelocity: maxVelocity, MaxAccel: maxAccel}
}

// Kind reports which constraint this checker enforces, so callers outside
// the package (config serialization, dump-config) can tell them apart.
func (c MoveChecker) Kind() MoveCheckerKind { return c.kind }

// Check applies this checker's limit to m, tightening m's speed ceiling in
// place. It never loosens an existing limit.
func (c MoveChecker) Check(m *Move) {
	switch c.kind {
	case AxisLimiterKind:
		checkAxis(m, c.Axis, c.MaxVelocity, c.MaxAccel)
	case ExtruderLimiterKind:
		checkExtruder(m, c.MaxVelocity, c.MaxAccel)
	}
}

func checkAxis(m *Move, axis vec4, maxVelocity, maxAccel float64) {
	if m.IsZeroDistance() {
		return
	}
	ratio := m.Distance / math.Abs(m.Delta().xyzDot(axis))
	m.LimitSpeed(maxVelocity*ratio, maxAccel*ratio)
}

func checkExtruder(m *Move, maxVelocity, maxAccel float64) {
	if !m.IsExtrudeOnlyMove() {
		return
	}
	eRate := m.Rate[3]
	if m.Rate.xyZero() || eRate < 0 {
		invExtrudeR := 1.0 / math.Abs(eRate)
		m.LimitSpeed(maxVelocity*invExtrudeR, maxAccel*invExtrudeR)
	}
}
