// Package planner is the algorithmic core of the estimator: it turns a
// stream of parsed gcode commands into a stream of planning operations
// (moves with a solved trapezoidal velocity profile, delays, and fills)
// using the same backward-sweep lookahead Klipper's own firmware uses to
// decide how fast each corner can be taken.
package planner

import (
	"strconv"
	"strings"
	"time"

	"github.com/Annex-Engineering/klipper-estimator/gcode"
	"github.com/Annex-Engineering/klipper-estimator/kind"
)

// Planner is the façade a caller drives: feed it commands with ProcessCmd,
// call Finalize once the input is exhausted, then drain settled operations
// with NextOperation.
type Planner struct {
	operations OperationSequence
	Toolhead   ToolheadState
	Kinds      *kind.Tracker
	retraction *RetractionState
	arc        ArcState
}

// NewPlanner builds a Planner that enforces limits. If limits carries
// firmware-retraction settings, G10/G11 are tracked; otherwise they're
// ignored like any other unrecognized traditional command.
func NewPlanner(limits Limits) *Planner {
	p := &Planner{
		Toolhead: NewToolheadState(limits),
		Kinds:    kind.NewTracker(),
	}
	if limits.FirmwareRetraction != nil {
		p.retraction = &RetractionState{}
	}
	return p
}

// ProcessCmd runs one parsed gcode command through the planner, appending
// whatever it produces to the open operation sequence. It returns the
// number of planning operations the command resulted in, which a
// post-processor needs to keep its own buffered-command bookkeeping
// aligned with the planner's output.
func (p *Planner) ProcessCmd(cmd gcode.Command) int {
	if d, ok := p.isDwell(cmd); ok {
		p.operations.addDelay(d)
		return 1
	}

	switch cmd.Op {
	case gcode.OpMove:
		if cmd.F != nil {
			p.Toolhead.SetSpeed(*cmd.F / 60.0)
		}

		moveKind, hasKind := p.Kinds.FromComment(cmd.Comment, cmd.HasComment)

		if cmd.X != nil || cmd.Y != nil || cmd.Z != nil || cmd.E != nil {
			m := p.Toolhead.PerformMove([4]*float64{cmd.X, cmd.Y, cmd.Z, cmd.E})
			m.Kind, m.HasKind = moveKind, hasKind
			p.operations.addMove(m, &p.Toolhead)
		} else {
			p.operations.addFill()
		}
		return 1

	case gcode.OpTraditional:
		return p.processTraditional(cmd)

	case gcode.OpExtended:
		switch cmd.Name {
		case "set_velocity_limit":
			if v, ok := cmd.GetExtNumber("velocity"); ok {
				p.Toolhead.Limits.SetMaxVelocity(v)
			}
			if v, ok := cmd.GetExtNumber("accel"); ok {
				p.Toolhead.Limits.SetMaxAcceleration(v)
			}
			if v, ok := cmd.GetExtNumber("accel_to_decel"); ok {
				p.Toolhead.Limits.SetMaxAccelToDecel(v)
			}
			if v, ok := cmd.GetExtNumber("square_corner_velocity"); ok {
				p.Toolhead.Limits.SetSquareCornerVelocity(v)
			}
		case "set_retraction":
			if p.retraction != nil {
				SetOptions(&p.Toolhead, cmd)
			}
		}
		p.operations.addFill()
		return 1

	case gcode.OpNop:
		if !cmd.HasComment {
			p.operations.addFill()
			return 1
		}
		comment := cmd.Comment
		switch {
		case strings.HasPrefix(comment, "TYPE:"):
			k := p.Kinds.Get(strings.TrimPrefix(comment, "TYPE:"))
			p.Kinds.SetCurrent(k, true)
			p.operations.addFill()
		case strings.HasPrefix(strings.TrimSpace(comment), "ESTIMATOR_ADD_TIME "):
			rest := strings.TrimPrefix(strings.TrimSpace(comment), "ESTIMATOR_ADD_TIME ")
			if d, ok := p.parseBufferCmd(rest); ok {
				p.operations.addDelay(d)
			} else {
				p.operations.addFill()
			}
		default:
			p.operations.addFill()
		}
		return 1
	}

	p.operations.addFill()
	return 1
}

func (p *Planner) processTraditional(cmd gcode.Command) int {
	switch {
	case cmd.Letter == 'G' && cmd.Code == 10:
		if p.retraction != nil {
			return p.retraction.Retract(p.Kinds, &p.Toolhead, &p.operations)
		}
	case cmd.Letter == 'G' && cmd.Code == 11:
		if p.retraction != nil {
			return p.retraction.Unretract(p.Kinds, &p.Toolhead, &p.operations)
		}
	case cmd.Letter == 'G' && (cmd.Code == 2 || cmd.Code == 3):
		moveKind, hasKind := p.Kinds.FromComment(cmd.Comment, cmd.HasComment)
		dir := Clockwise
		if cmd.Code == 3 {
			dir = CounterClockwise
		}
		return p.arc.GenerateArc(&p.Toolhead, &p.operations, moveKind, hasKind, cmd, dir)
	case cmd.Letter == 'G' && cmd.Code == 17:
		p.arc.SetPlane(PlaneXY)
	case cmd.Letter == 'G' && cmd.Code == 18:
		p.arc.SetPlane(PlaneXZ)
	case cmd.Letter == 'G' && cmd.Code == 19:
		p.arc.SetPlane(PlaneYZ)
	case cmd.Letter == 'G' && cmd.Code == 92:
		if v, ok := cmd.GetNumber('X'); ok {
			p.Toolhead.Position[0] = v
		}
		if v, ok := cmd.GetNumber('Y'); ok {
			p.Toolhead.Position[1] = v
		}
		if v, ok := cmd.GetNumber('Z'); ok {
			p.Toolhead.Position[2] = v
		}
		if v, ok := cmd.GetNumber('E'); ok {
			p.Toolhead.Position[3] = v
		}
	case cmd.Letter == 'M' && cmd.Code == 82:
		p.Toolhead.PositionModes[3] = Absolute
	case cmd.Letter == 'M' && cmd.Code == 83:
		p.Toolhead.PositionModes[3] = Relative
	case cmd.Letter == 'M' && cmd.Code == 204:
		s, sok := cmd.GetNumber('S')
		pp, pok := cmd.GetNumber('P')
		t, tok := cmd.GetNumber('T')
		switch {
		case sok:
			p.Toolhead.Limits.SetMaxAcceleration(s)
		case pok && tok:
			a := pp
			if t < a {
				a = t
			}
			p.Toolhead.Limits.SetMaxAcceleration(a)
		}
	}
	p.operations.addFill()
	return 1
}

const indeterminateDuration = 100 * time.Millisecond

func (p *Planner) isDwell(cmd gcode.Command) (Delay, bool) {
	switch {
	case cmd.Op == gcode.OpTraditional && cmd.Letter == 'G' && cmd.Code == 4:
		ms, ok := cmd.GetNumber('P')
		if !ok {
			ms = 250
		}
		return Delay{DelayKind: DelayPause, Duration: time.Duration(ms * float64(time.Millisecond))}, true

	case cmd.Op == gcode.OpTraditional && cmd.Letter == 'G' && cmd.Code == 28:
		k := p.Kinds.Get("Indeterminate time")
		return Delay{DelayKind: DelayIndeterminate, Duration: indeterminateDuration, Kind: k, HasKind: true}, true

	case cmd.Op == gcode.OpTraditional && cmd.Letter == 'M' && (cmd.Code == 109 || cmd.Code == 190):
		k := p.Kinds.Get("Indeterminate time")
		return Delay{DelayKind: DelayIndeterminate, Duration: indeterminateDuration, Kind: k, HasKind: true}, true

	case cmd.Op == gcode.OpExtended && cmd.Name == "temperature_wait":
		k := p.Kinds.Get("Indeterminate time")
		return Delay{DelayKind: DelayIndeterminate, Duration: indeterminateDuration, Kind: k, HasKind: true}, true

	case cmd.Op == gcode.OpTraditional && cmd.Letter == 'M' && cmd.Code == 600:
		k := p.Kinds.Get("Indeterminate time")
		return Delay{DelayKind: DelayIndeterminate, Duration: indeterminateDuration, Kind: k, HasKind: true}, true
	}
	return Delay{}, false
}

// parseBufferCmd parses "<duration-seconds> [kind label]" out of an
// ESTIMATOR_ADD_TIME comment.
func (p *Planner) parseBufferCmd(cmd string) (Delay, bool) {
	a, b, hasB := cmd, "", false
	if idx := strings.IndexByte(cmd, ' '); idx >= 0 {
		a, b, hasB = cmd[:idx], cmd[idx+1:], true
	}
	duration, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return Delay{}, false
	}
	d := Delay{DelayKind: DelayIndeterminate, Duration: time.Duration(duration * float64(time.Second))}
	if hasB {
		d.Kind, d.HasKind = p.Kinds.Get(b), true
	}
	return d, true
}

// Finalize settles every move that's still only provisionally planned.
// Call this once after the last ProcessCmd, before draining the remaining
// operations with NextOperation.
func (p *Planner) Finalize() {
	p.operations.flush()
}

// NextOperation returns the oldest operation the lookahead solver has
// fully settled, or false if nothing is ready yet (more commands need to
// be fed in, or Finalize needs to be called).
func (p *Planner) NextOperation() (PlanningOp, bool) {
	return p.operations.nextOperation()
}

// MoveKindLabel resolves a move's interned Kind back to its label string.
func (p *Planner) MoveKindLabel(m *Move) (string, bool) {
	if !m.HasKind {
		return "", false
	}
	return p.Kinds.Resolve(m.Kind), true
}

// KindLabel resolves any interned Kind back to its label string.
func (p *Planner) KindLabel(k kind.Kind, has bool) (string, bool) {
	if !has {
		return "", false
	}
	return p.Kinds.Resolve(k), true
}
