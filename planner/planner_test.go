package planner

import (
	"math"
	"testing"

	"github.com/Annex-Engineering/klipper-estimator/gcode"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func drain(p *Planner) []PlanningOp {
	var ops []PlanningOp
	for {
		op, ok := p.NextOperation()
		if !ok {
			break
		}
		ops = append(ops, op)
	}
	return ops
}

func feed(t *testing.T, p *Planner, lines ...string) {
	t.Helper()
	for _, l := range lines {
		cmd, err := gcode.Parse(l)
		if err != nil {
			t.Fatalf("parse %q: %v", l, err)
		}
		p.ProcessCmd(cmd)
	}
}

func TestSingleStraightMove(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxVelocity = 100
	limits.MaxAcceleration = 1000
	limits.SquareCornerVelocity = 5
	limits.UpdateJunctionDeviation()

	p := NewPlanner(limits)
	feed(t, p, "G1 X100 F6000")
	p.Finalize()

	ops := drain(p)
	if len(ops) != 1 || ops[0].Kind != OpMove {
		t.Fatalf("expected a single move, got %+v", ops)
	}
	m := ops[0].Move
	if !almostEqual(m.Distance, 100, 1e-9) {
		t.Errorf("distance = %v, want 100", m.Distance)
	}
	if m.StartV != 0 || m.EndV != 0 {
		t.Errorf("start_v/end_v = %v/%v, want 0/0", m.StartV, m.EndV)
	}
	if !almostEqual(m.CruiseV, 100, 1e-9) {
		t.Errorf("cruise_v = %v, want 100", m.CruiseV)
	}
	// 5mm accel (0.1s) + 90mm cruise at 100mm/s (0.9s) + 5mm decel (0.1s).
	if !almostEqual(m.TotalTime(), 1.1, 1e-9) {
		t.Errorf("total_time = %v, want ~1.1", m.TotalTime())
	}
}

func TestRightAngleCorner(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxVelocity = 200
	limits.MaxAcceleration = 1000
	limits.SquareCornerVelocity = 5
	limits.UpdateJunctionDeviation()

	wantJD := 5.0 * 5.0 * (math.Sqrt2 - 1.0) / 1000.0
	if !almostEqual(limits.JunctionDeviation, wantJD, 1e-12) {
		t.Fatalf("junction_deviation = %v, want %v", limits.JunctionDeviation, wantJD)
	}

	p := NewPlanner(limits)
	feed(t, p, "G1 X100", "G1 Y100")
	p.Finalize()

	ops := drain(p)
	if len(ops) != 2 || ops[0].Kind != OpMove || ops[1].Kind != OpMove {
		t.Fatalf("expected two moves, got %+v", ops)
	}
	second := ops[1].Move
	if !almostEqual(second.StartV, 5.0, 1e-2) {
		t.Errorf("corner start_v = %v, want ~5.0", second.StartV)
	}
}

func TestDwellSegmentation(t *testing.T) {
	p := NewPlanner(DefaultLimits())
	feed(t, p, "G1 X10", "G4 P500", "G1 X20")
	p.Finalize()

	ops := drain(p)
	if len(ops) != 3 {
		t.Fatalf("expected move, delay, move; got %d ops: %+v", len(ops), ops)
	}
	if ops[0].Kind != OpMove || ops[0].Move.EndV != 0 {
		t.Errorf("first move should decelerate to 0, got %+v", ops[0].Move)
	}
	if ops[1].Kind != OpDelay || ops[1].Delay.Duration.Seconds() != 0.5 {
		t.Errorf("expected a 0.5s delay, got %+v", ops[1])
	}
	if ops[2].Kind != OpMove || ops[2].Move.StartV != 0 {
		t.Errorf("second move should accelerate from 0, got %+v", ops[2].Move)
	}
}

func TestFirmwareRetractRoundTrip(t *testing.T) {
	limits := DefaultLimits()
	limits.FirmwareRetraction = &RetractionOptions{
		RetractLength:        1,
		UnretractExtraLength: 0.5,
		LiftZ:                0.2,
		RetractSpeed:         40,
		UnretractSpeed:       40,
	}
	p := NewPlanner(limits)
	feed(t, p, "G10", "G11")
	p.Finalize()

	ops := drain(p)
	if len(ops) != 4 {
		t.Fatalf("expected 4 synthetic moves, got %d: %+v", len(ops), ops)
	}
	if !almostEqual(ops[0].Move.Delta()[3], -1, 1e-9) {
		t.Errorf("retract extruder delta = %v, want -1", ops[0].Move.Delta()[3])
	}
	if !almostEqual(ops[1].Move.Delta()[2], 0.2, 1e-9) {
		t.Errorf("retract z-hop delta = %v, want 0.2", ops[1].Move.Delta()[2])
	}
	if !almostEqual(ops[2].Move.Delta()[3], 1.5, 1e-9) {
		t.Errorf("unretract extruder delta = %v, want 1.5", ops[2].Move.Delta()[3])
	}
	if !almostEqual(ops[3].Move.Delta()[2], -0.2, 1e-9) {
		t.Errorf("unretract z-hop delta = %v, want -0.2", ops[3].Move.Delta()[2])
	}
}

func TestArcFullCircle(t *testing.T) {
	limits := DefaultLimits()
	limits.MMPerArcSegment = 1

	p := NewPlanner(limits)
	feed(t, p, "G17", "G1 X10 Y0", "G2 X10 Y0 I-10 J0")
	p.Finalize()

	ops := drain(p)
	var moveCount int
	var totalDist float64
	for _, op := range ops {
		if op.Kind == OpMove {
			moveCount++
			totalDist += op.Move.Distance
		}
	}
	// One straight move to (10,0) plus the arc's segments.
	arcSegments := moveCount - 1
	wantSegments := int(math.Floor(2 * math.Pi * 10))
	if arcSegments != wantSegments {
		t.Errorf("arc segments = %d, want %d", arcSegments, wantSegments)
	}
	last := ops[len(ops)-1].Move
	if !almostEqual(last.End[0], 10, 1e-9) || !almostEqual(last.End[1], 0, 1e-9) {
		t.Errorf("final position = (%v,%v), want (10,0)", last.End[0], last.End[1])
	}
}

func TestStreamingMatchesBatchTotalTime(t *testing.T) {
	lines := []string{"G1 X100 F6000", "G1 Y50", "G1 X50 Y0"}

	batch := NewPlanner(DefaultLimits())
	feed(t, batch, lines...)
	batch.Finalize()
	var batchTotal float64
	for _, op := range drain(batch) {
		if op.Kind == OpMove {
			batchTotal += op.Move.TotalTime()
		} else if op.Kind == OpDelay {
			batchTotal += op.Delay.Duration.Seconds()
		}
	}

	streaming := NewPlanner(DefaultLimits())
	var streamTotal float64
	for _, l := range lines {
		feed(t, streaming, l)
		for {
			op, ok := streaming.NextOperation()
			if !ok {
				break
			}
			if op.Kind == OpMove {
				streamTotal += op.Move.TotalTime()
			} else if op.Kind == OpDelay {
				streamTotal += op.Delay.Duration.Seconds()
			}
		}
	}
	streaming.Finalize()
	for _, op := range drain(streaming) {
		if op.Kind == OpMove {
			streamTotal += op.Move.TotalTime()
		} else if op.Kind == OpDelay {
			streamTotal += op.Delay.Duration.Seconds()
		}
	}

	if !almostEqual(batchTotal, streamTotal, 1e-9) {
		t.Errorf("streaming total %v != batch total %v", streamTotal, batchTotal)
	}
}
