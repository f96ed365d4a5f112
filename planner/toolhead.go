package planner

import "github.com/Annex-Engineering/klipper-estimator/kind"

// PositionMode selects whether an axis coordinate on an incoming move is
// absolute (G90 default) or relative to the current position (G91, or M83
// for the extruder alone).
type PositionMode int

const (
	Absolute PositionMode = iota
	Relative
)

// ToolheadState tracks the toolhead's current position, per-axis position
// mode, requested feedrate, and the Limits it must respect. It is the
// generalization of standalone.MachineState that drives move construction.
type ToolheadState struct {
	Position      vec4
	PositionModes [4]PositionMode
	Limits        Limits
	Velocity      float64
}

// NewToolheadState builds a ToolheadState starting at the origin, in
// absolute XYZ / relative-extruder mode (Klipper's usual default), running
// at the configured max velocity until the gcode sets a feedrate.
func NewToolheadState(limits Limits) ToolheadState {
	return ToolheadState{
		PositionModes: [4]PositionMode{Absolute, Absolute, Absolute, Relative},
		Velocity:      limits.MaxVelocity,
		Limits:        limits,
	}
}

// PerformMove advances position by axes (nil entries leave that axis
// unchanged, subject to PositionModes), builds the resulting Move, and runs
// it through every configured MoveChecker.
func (th *ToolheadState) PerformMove(axes [4]*float64) Move {
	newPos := th.Position
	for axis, v := range axes {
		if v != nil {
			newPos[axis] = newElement(*v, newPos[axis], th.PositionModes[axis])
		}
	}

	m := newMove(th.Position, newPos, th)
	for _, c := range th.Limits.MoveCheckers {
		c.Check(&m)
	}

	th.Position = newPos
	return m
}

// PerformRelativeMove is PerformMove forced into all-relative mode
// regardless of the toolhead's current position modes, used for synthetic
// moves the planner itself generates (firmware retraction).
func (th *ToolheadState) PerformRelativeMove(axes [4]*float64, k Kind) Move {
	cur := th.PositionModes
	th.PositionModes = [4]PositionMode{Relative, Relative, Relative, Relative}
	m := th.PerformMove(axes)
	m.Kind, m.HasKind = k.kind, k.has
	th.PositionModes = cur
	return m
}

// Kind bundles an optional kind.Kind for PerformRelativeMove's signature,
// since the zero value of kind.Kind is itself a valid interned index and
// can't double as "no kind".
type Kind struct {
	kind kind.Kind
	has  bool
}

func newElement(v, old float64, mode PositionMode) float64 {
	if mode == Relative {
		return old + v
	}
	return v
}

// SetSpeed updates the requested feedrate. Like the teacher's own
// stepgen/kinematics error handling, an impossible request (zero or
// negative velocity) is a programmer/gcode-producer error, not a recoverable
// condition, so it panics rather than silently clamping.
func (th *ToolheadState) SetSpeed(v float64) {
	if v <= 0 {
		panic("planner: requested toolhead velocity <= 0")
	}
	th.Velocity = v
}

func (th *ToolheadState) extruderJunctionSpeedV2(cur, prev *Move) float64 {
	diffR := cur.Rate[3] - prev.Rate[3]
	if diffR < 0 {
		diffR = -diffR
	}
	if diffR > 0 {
		v := th.Limits.InstantCornerVelocity / diffR
		return v * v
	}
	return cur.MaxCruiseV2
}
