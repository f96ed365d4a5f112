package planner

import (
	"math"

	"github.com/Annex-Engineering/klipper-estimator/kind"
)

const epsilon = 2.220446049250313e-16 // matches Rust's f64::EPSILON

// Move is a single planned line segment: its geometry, the kinematic
// ceilings it's subject to, and (once the lookahead solver has visited it)
// the start/cruise/end velocities it will actually run at.
type Move struct {
	Start, End vec4
	Distance   float64
	Rate       vec4 // unit direction (or extrude-only rate), used by MoveChecker

	RequestedVelocity float64
	Acceleration      float64
	JunctionDeviation float64

	MaxStartV2    float64
	MaxCruiseV2   float64
	MaxDV2        float64
	MaxSmoothedV2 float64
	SmoothedDV2   float64

	Kind   kind.Kind
	HasKind bool

	StartV, CruiseV, EndV float64
}

// newMove builds a Move between start and end, dispatching to the
// extrude-only or kinematic constructor depending on whether XYZ changes.
func newMove(start, end vec4, th *ToolheadState) Move {
	if start.xyzEqual(end) {
		return newExtrudeMove(start, end, th)
	}
	return newKinematicMove(start, end, th)
}

func newExtrudeMove(start, end vec4, th *ToolheadState) Move {
	dirs := vec4{0, 0, 0, end[3] - start[3]}
	moveD := math.Abs(dirs[3])
	invMoveD := 0.0
	if moveD > 0 {
		invMoveD = 1.0 / moveD
	}
	return Move{
		Start:             start,
		End:               end,
		Distance:          math.Abs(start[3] - end[3]),
		Rate:              dirs.scale(invMoveD),
		RequestedVelocity: th.Velocity,
		Acceleration:      math.MaxFloat64,
		JunctionDeviation: th.Limits.JunctionDeviation,
		MaxCruiseV2:       th.Velocity * th.Velocity,
		MaxDV2:            math.MaxFloat64,
		SmoothedDV2:       math.MaxFloat64,
	}
}

func newKinematicMove(start, end vec4, th *ToolheadState) Move {
	distance := start.xyzDistance(end)
	velocity := math.Min(th.Velocity, th.Limits.MaxVelocity)
	return Move{
		Start:             start,
		End:               end,
		Distance:          distance,
		Rate:              end.sub(start).scale(1.0 / distance),
		RequestedVelocity: velocity,
		Acceleration:      th.Limits.MaxAcceleration,
		JunctionDeviation: th.Limits.JunctionDeviation,
		MaxCruiseV2:       velocity * velocity,
		MaxDV2:            2.0 * distance * th.Limits.MaxAcceleration,
		SmoothedDV2:       2.0 * distance * th.Limits.MaxAccelToDecel,
	}
}

// applyJunction tightens m.MaxStartV2/MaxSmoothedV2 against the move that
// immediately precedes it, implementing Klipper's junction-deviation
// cornering limit plus the extruder-rate junction cap.
func (m *Move) applyJunction(prev *Move, th *ToolheadState) {
	if !m.IsKinematicMove() || !prev.IsKinematicMove() {
		return
	}

	junctionCosTheta := -m.Rate.xyzDot(prev.Rate)
	if junctionCosTheta > 0.999999 {
		return
	}
	if junctionCosTheta < -0.999999 {
		junctionCosTheta = -0.999999
	}
	sinThetaD2 := math.Sqrt(0.5 * (1.0 - junctionCosTheta))
	r := sinThetaD2 / (1.0 - sinThetaD2)
	tanThetaD2 := sinThetaD2 / math.Sqrt(0.5*(1.0+junctionCosTheta))
	moveCentripetalV2 := 0.5 * m.Distance * tanThetaD2 * m.Acceleration
	prevCentripetalV2 := 0.5 * prev.Distance * tanThetaD2 * prev.Acceleration

	extruderV2 := th.extruderJunctionSpeedV2(m, prev)

	m.MaxStartV2 = min(
		extruderV2,
		r*m.JunctionDeviation*m.Acceleration,
		r*prev.JunctionDeviation*prev.Acceleration,
		moveCentripetalV2,
		prevCentripetalV2,
		m.MaxCruiseV2,
		prev.MaxCruiseV2,
		prev.MaxStartV2+prev.MaxDV2,
	)
	m.MaxSmoothedV2 = math.Min(m.MaxStartV2, prev.MaxSmoothedV2+prev.SmoothedDV2)
}

func (m *Move) setJunction(startV2, cruiseV2, endV2 float64) {
	m.StartV = math.Sqrt(startV2)
	m.CruiseV = math.Sqrt(cruiseV2)
	m.EndV = math.Sqrt(endV2)
}

// IsKinematicMove reports whether the move changes XYZ position.
func (m *Move) IsKinematicMove() bool { return !m.Start.xyzEqual(m.End) }

// IsExtrudeMove reports whether the move changes extruder position.
func (m *Move) IsExtrudeMove() bool { return math.Abs(m.End[3]-m.Start[3]) >= epsilon }

// IsExtrudeOnlyMove reports whether the move extrudes without moving XYZ.
func (m *Move) IsExtrudeOnlyMove() bool { return !m.IsKinematicMove() && m.IsExtrudeMove() }

// IsZeroDistance reports whether the move covers no distance at all.
func (m *Move) IsZeroDistance() bool { return math.Abs(m.Distance) < epsilon }

// Delta returns End - Start.
func (m *Move) Delta() vec4 { return m.End.sub(m.Start) }

// LineWidth estimates the extruded line width for a kinematic extrude move,
// given the filament radius and layer height. Returns false for moves that
// don't both extrude and travel.
func (m *Move) LineWidth(filamentRadius, layerHeight float64) (float64, bool) {
	if !m.IsKinematicMove() || !m.IsExtrudeMove() {
		return 0, false
	}
	return m.Rate[3] * filamentRadius * filamentRadius * math.Pi / layerHeight, true
}

// FlowRate estimates mm^3/s of filament flow for this move.
func (m *Move) FlowRate(filamentRadius float64) (float64, bool) {
	if !m.IsExtrudeMove() {
		return 0, false
	}
	d := m.Delta()
	return d[3] * filamentRadius * filamentRadius * math.Pi / m.TotalTime(), true
}

// LimitSpeed tightens this move's velocity and acceleration ceilings. Used
// by MoveChecker implementations; never loosens an existing limit.
func (m *Move) LimitSpeed(velocity, acceleration float64) {
	v2 := velocity * velocity
	if v2 < m.MaxCruiseV2 {
		m.MaxCruiseV2 = v2
	}
	m.Acceleration = math.Min(m.Acceleration, acceleration)
	m.MaxDV2 = 2.0 * m.Distance * m.Acceleration
	m.SmoothedDV2 = math.Min(m.SmoothedDV2, m.MaxDV2)
}

func (m *Move) AccelDistance() float64 {
	return (m.CruiseV*m.CruiseV - m.StartV*m.StartV) * 0.5 / m.Acceleration
}

func (m *Move) AccelTime() float64 {
	return m.AccelDistance() / ((m.StartV + m.CruiseV) * 0.5)
}

func (m *Move) DecelDistance() float64 {
	return (m.CruiseV*m.CruiseV - m.EndV*m.EndV) * 0.5 / m.Acceleration
}

func (m *Move) DecelTime() float64 {
	return m.DecelDistance() / ((m.EndV + m.CruiseV) * 0.5)
}

func (m *Move) CruiseDistance() float64 {
	d := m.Distance - m.AccelDistance() - m.DecelDistance()
	return math.Max(d, 0.0)
}

func (m *Move) CruiseTime() float64 {
	return m.CruiseDistance() / m.CruiseV
}

// TotalTime is the wall-clock time this move takes to execute once planned.
func (m *Move) TotalTime() float64 {
	return m.AccelTime() + m.CruiseTime() + m.DecelTime()
}
