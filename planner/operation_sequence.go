package planner

import (
	"time"

	"github.com/Annex-Engineering/klipper-estimator/kind"
)

// PlanningOpKind discriminates the variants of PlanningOp.
type PlanningOpKind int

const (
	OpDelay PlanningOpKind = iota
	OpMove
	OpFill
)

// PlanningOp is one fully-settled unit the planner hands back to a
// consumer: either a timed delay, a planned move, or a fill (a gcode line
// that produced no time-affecting operation, kept so 1:1 command/operation
// alignment is preserved for post-processing).
type PlanningOp struct {
	Kind  PlanningOpKind
	Delay Delay
	Move  Move
}

// DelayKind distinguishes a fixed pause (G4, explicit dwell) from an
// indeterminate one (homing, heater wait) whose real duration can't be
// known statically but is still charged some nominal estimate.
type DelayKind int

const (
	DelayPause DelayKind = iota
	DelayIndeterminate
)

// Delay is a non-move planning operation that consumes wall-clock time.
type Delay struct {
	DelayKind DelayKind
	Duration  time.Duration
	Kind      kind.Kind
	HasKind   bool
}

type opSeqEntry struct {
	isDelay bool
	isFill  bool
	delay   Delay
	moves   *MoveSequence // non-nil only when neither isDelay nor isFill
}

// OperationSequence is the planner's full output queue: an ordered mix of
// delays, fills, and runs of moves (each run solved together as a
// MoveSequence). Consecutive moves/fills collapse into a single
// MoveSequence so the lookahead solver sees them as one lookahead window;
// a Delay always starts a fresh window, since nothing can be planned
// across a dwell.
type OperationSequence struct {
	ops []opSeqEntry
}

func (s *OperationSequence) addDelay(d Delay) {
	s.ops = append(s.ops, opSeqEntry{isDelay: true, delay: d})
}

func (s *OperationSequence) addMove(m Move, th *ToolheadState) {
	if n := len(s.ops); n > 0 && s.ops[n-1].moves != nil {
		s.ops[n-1].moves.addMove(m, th)
		return
	}
	ms := &MoveSequence{}
	ms.addMove(m, th)
	s.ops = append(s.ops, opSeqEntry{moves: ms})
}

func (s *OperationSequence) addFill() {
	if n := len(s.ops); n > 0 && s.ops[n-1].moves != nil {
		s.ops[n-1].moves.addFill()
		return
	}
	s.ops = append(s.ops, opSeqEntry{isFill: true})
}

// flush settles every still-open MoveSequence, used once at end of input.
func (s *OperationSequence) flush() {
	for i := range s.ops {
		if s.ops[i].moves != nil {
			s.ops[i].moves.flush()
		}
	}
}

// nextOperation pops the oldest operation the solver has fully settled, or
// false if nothing is ready yet (more input must be fed in first).
func (s *OperationSequence) nextOperation() (PlanningOp, bool) {
	if len(s.ops) == 0 {
		return PlanningOp{}, false
	}
	front := &s.ops[0]
	if front.moves != nil {
		op, ok := front.moves.nextMove()
		if front.moves.isEmpty() {
			s.ops = s.ops[1:]
		}
		return op, ok
	}
	entry := s.ops[0]
	s.ops = s.ops[1:]
	if entry.isDelay {
		return PlanningOp{Kind: OpDelay, Delay: entry.delay}, true
	}
	return PlanningOp{Kind: OpFill}, true
}
