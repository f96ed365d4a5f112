package planner

import "math"

type moveSeqOp struct {
	isMove bool
	move   Move
}

// MoveSequence holds one uninterrupted run of moves (and fills) between two
// non-move planning operations, and runs the backward-sweep lookahead
// solver over it. This is the heart of the estimator: it decides each
// move's actual start/cruise/end velocity by looking ahead through every
// move that hasn't been finalized yet.
type MoveSequence struct {
	ops        []moveSeqOp
	flushCount int
}

func (s *MoveSequence) addFill() {
	s.ops = append(s.ops, moveSeqOp{isMove: false})
}

// addMove appends m, applying the junction-deviation cornering limit
// against whatever move precedes it in this sequence.
func (s *MoveSequence) addMove(m Move, th *ToolheadState) {
	if m.Distance == 0 {
		s.addFill()
		return
	}
	if prev, ok := s.lastMove(); ok {
		m.applyJunction(prev, th)
	}
	s.ops = append(s.ops, moveSeqOp{isMove: true, move: m})
}

func (s *MoveSequence) isEmpty() bool { return len(s.ops) == 0 }

func (s *MoveSequence) lastMove() (*Move, bool) {
	for i := len(s.ops) - 1; i >= 0; i-- {
		if s.ops[i].isMove {
			return &s.ops[i].move, true
		}
	}
	return nil, false
}

type delayedEntry struct {
	idx            int
	startV2, endV2 float64
}

// process runs (or re-runs) the lookahead solver. With partial set, only
// moves at or after flushCount are considered unsettled and the sweep may
// freeze flushCount at the first move whose velocity plan is still only
// provisional (waiting on a move not yet seen); this is what lets moves be
// handed to the caller incrementally instead of only at end of file. With
// partial unset (an explicit flush), every move is settled.
func (s *MoveSequence) process(partial bool) {
	if s.flushCount == len(s.ops) {
		return
	}

	var delayed []delayedEntry

	nextEndV2 := 0.0
	nextSmoothedV2 := 0.0
	peakCruiseV2 := 0.0

	updateFlushCount := partial
	skip := 0
	if partial {
		skip = s.flushCount
	} else {
		s.flushCount = len(s.ops)
	}

	for idx := len(s.ops) - 1; idx >= skip; idx-- {
		op := &s.ops[idx]
		if !op.isMove {
			continue
		}
		m := &op.move

		reachableStartV2 := nextEndV2 + m.MaxDV2
		startV2 := math.Min(m.MaxStartV2, reachableStartV2)
		reachableSmoothedV2 := nextSmoothedV2 + m.SmoothedDV2
		smoothedV2 := math.Min(m.MaxSmoothedV2, reachableSmoothedV2)

		if smoothedV2 < reachableSmoothedV2 {
			if smoothedV2+m.SmoothedDV2 > nextSmoothedV2 || len(delayed) != 0 {
				if updateFlushCount && peakCruiseV2 != 0 {
					s.flushCount = idx
					updateFlushCount = false
				}

				peakCruiseV2 = math.Min(m.MaxCruiseV2, (smoothedV2+reachableSmoothedV2)*0.5)

				if len(delayed) != 0 {
					if !updateFlushCount && idx < s.flushCount {
						mcV2 := peakCruiseV2
						for j := len(delayed) - 1; j >= 0; j-- {
							d := delayed[j]
							mcV2 = math.Min(mcV2, d.startV2)
							dm := &s.ops[d.idx].move
							dm.setJunction(math.Min(d.startV2, mcV2), mcV2, math.Min(d.endV2, mcV2))
						}
					}
					delayed = delayed[:0]
				}
			}

			if !updateFlushCount && idx < s.flushCount {
				cruiseV2 := math.Min(math.Min((startV2+reachableStartV2)*0.5, m.MaxCruiseV2), peakCruiseV2)
				m.setJunction(math.Min(startV2, cruiseV2), cruiseV2, math.Min(nextEndV2, cruiseV2))
			}
		} else {
			delayed = append(delayed, delayedEntry{idx: idx, startV2: startV2, endV2: nextEndV2})
		}

		nextEndV2 = startV2
		nextSmoothedV2 = smoothedV2
	}

	if updateFlushCount {
		s.flushCount = 0
	}

	for s.flushCount < len(s.ops) && !s.ops[s.flushCount].isMove {
		s.flushCount++
	}
}

func (s *MoveSequence) flush() { s.process(false) }

// nextMove pops and returns the oldest settled operation, or false if
// nothing is settled enough to hand out yet.
func (s *MoveSequence) nextMove() (PlanningOp, bool) {
	s.process(true)
	if s.flushCount == 0 {
		return PlanningOp{}, false
	}
	op := s.ops[0]
	s.ops = s.ops[1:]
	s.flushCount--
	if op.isMove {
		return PlanningOp{Kind: OpMove, Move: op.move}, true
	}
	return PlanningOp{Kind: OpFill}, true
}
