package planner

import (
	"math"

	"github.com/Annex-Engineering/klipper-estimator/gcode"
	"github.com/Annex-Engineering/klipper-estimator/kind"
)

// Plane selects which two axes a G2/G3 arc is drawn in; the third is the
// helical axis that may move linearly over the course of the arc.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneYZ
)

// ArcDirection is G2 (clockwise) vs G3 (counter-clockwise).
type ArcDirection int

const (
	Clockwise ArcDirection = iota
	CounterClockwise
)

// ArcState tracks the currently selected arc plane (G17/G18/G19) and
// expands G2/G3 commands into a run of short linear moves, ported from
// Marlin's plan_arc() by way of the original estimator. It lives in this
// package rather than its own, because arc expansion has to drive
// ToolheadState.PerformMove and OperationSequence.addMove directly — the
// same tight coupling that keeps it part of the same Rust module it was
// ported from.
type ArcState struct {
	plane Plane
}

// SetPlane changes the active arc plane.
func (a *ArcState) SetPlane(p Plane) { a.plane = p }

// GenerateArc expands a G2/G3 command into linear segments appended to seq,
// returning the number of planning operations produced (0 if the command
// carried no usable center-offset parameters).
func (a *ArcState) GenerateArc(th *ToolheadState, seq *OperationSequence, moveKind kind.Kind, hasKind bool, cmd gcode.Command, dir ArcDirection) int {
	args, ok := a.getArgs(th, cmd)
	if !ok {
		return 0
	}

	segments, points := args.planArc([3]float64{th.Position[0], th.Position[1], th.Position[2]}, dir)

	eBase := th.Position[3]
	ePerMove := 0.0
	if args.hasE {
		ePerMove = (args.e - eBase) / float64(segments)
	}

	th.SetSpeed(args.velocity)

	oldModes := th.PositionModes
	th.PositionModes = [4]PositionMode{Absolute, Absolute, Absolute, Absolute}
	for _, p := range points {
		eBase += ePerMove
		x, y, z, e := p[0], p[1], p[2], eBase
		m := th.PerformMove([4]*float64{&x, &y, &z, &e})
		m.Kind, m.HasKind = moveKind, hasKind
		seq.addMove(m, th)
	}
	th.PositionModes = oldModes

	return segments
}

type arcArgs struct {
	target           [3]float64
	e                float64
	hasE             bool
	velocity         float64
	alpha, beta, helical int
	offsetP, offsetQ float64
	mmPerArcSegment  float64
}

func (a *ArcState) getArgs(th *ToolheadState, cmd gcode.Command) (arcArgs, bool) {
	if th.Limits.MMPerArcSegment <= 0 {
		return arcArgs{}, false
	}

	mapCoord := func(c float64, axis int) float64 {
		return newElement(c, th.Position[axis], th.PositionModes[axis])
	}

	var alpha, beta, helical int
	var offsetP, offsetQ float64
	switch a.plane {
	case PlaneXZ:
		alpha, beta, helical = 0, 2, 1
		offsetP, _ = cmd.GetNumber('I')
		offsetQ, _ = cmd.GetNumber('K')
	case PlaneYZ:
		alpha, beta, helical = 1, 2, 0
		offsetP, _ = cmd.GetNumber('J')
		offsetQ, _ = cmd.GetNumber('K')
	default: // PlaneXY
		alpha, beta, helical = 0, 1, 2
		offsetP, _ = cmd.GetNumber('I')
		offsetQ, _ = cmd.GetNumber('J')
	}

	if offsetP == 0 && offsetQ == 0 {
		return arcArgs{}, false
	}

	target := [3]float64{th.Position[0], th.Position[1], th.Position[2]}
	if v, ok := cmd.GetNumber('X'); ok {
		target[0] = mapCoord(v, 0)
	}
	if v, ok := cmd.GetNumber('Y'); ok {
		target[1] = mapCoord(v, 1)
	}
	if v, ok := cmd.GetNumber('Z'); ok {
		target[2] = mapCoord(v, 2)
	}

	velocity := th.Velocity
	if v, ok := cmd.GetNumber('F'); ok {
		velocity = v / 60.0
	}

	args := arcArgs{
		target:          target,
		velocity:        velocity,
		alpha:           alpha,
		beta:            beta,
		helical:         helical,
		offsetP:         offsetP,
		offsetQ:         offsetQ,
		mmPerArcSegment: th.Limits.MMPerArcSegment,
	}
	if v, ok := cmd.GetNumber('E'); ok {
		args.e, args.hasE = mapCoord(v, 3), true
	}
	return args, true
}

// planArc is ported from Marlin's plan_arc(), by way of the original
// estimator. It returns the segment count and the intermediate + final
// points of the arc, as X/Y/Z coordinates.
func (args arcArgs) planArc(start [3]float64, dir ArcDirection) (int, [][3]float64) {
	alpha, beta, helical := args.alpha, args.beta, args.helical

	rP := -args.offsetP
	rQ := -args.offsetQ

	centerP := start[alpha] - rP
	centerQ := start[beta] - rQ
	rtAlpha := args.target[alpha] - centerP
	rtBeta := args.target[beta] - centerQ

	angularTravel := math.Atan2(rP*rtBeta-rQ*rtAlpha, rP*rtAlpha+rQ*rtBeta)
	if angularTravel < 0 {
		angularTravel += 2 * math.Pi
	}
	if dir == Clockwise {
		angularTravel -= 2 * math.Pi
	}

	if angularTravel == 0 && start[alpha] == args.target[alpha] && start[beta] == args.target[beta] {
		angularTravel = 2 * math.Pi
	}

	linearTravel := args.target[helical] - start[helical]
	radius := math.Hypot(rP, rQ)
	flatMM := radius * angularTravel
	var mmOfTravel float64
	if linearTravel != 0 {
		mmOfTravel = math.Hypot(flatMM, linearTravel)
	} else {
		mmOfTravel = math.Abs(flatMM)
	}

	segments := int(math.Floor(mmOfTravel / args.mmPerArcSegment))
	if segments < 1 {
		segments = 1
	}

	thetaPerSegment := angularTravel / float64(segments)
	linearPerSegment := linearTravel / float64(segments)

	points := make([][3]float64, 0, segments)
	for i := 1; i < segments; i++ {
		fi := float64(i)
		distHelical := fi * linearPerSegment
		cosTi := math.Cos(fi * thetaPerSegment)
		sinTi := math.Sin(fi * thetaPerSegment)
		p := -args.offsetP*cosTi + args.offsetQ*sinTi
		q := -args.offsetP*sinTi - args.offsetQ*cosTi
		var coord [3]float64
		coord[alpha] = centerP + p
		coord[beta] = centerQ + q
		coord[helical] = start[helical] + distHelical
		points = append(points, coord)
	}
	points = append(points, args.target)

	return segments, points
}
