package main

import (
	"flag"
	"fmt"
	"io"
	"math"

	"github.com/Annex-Engineering/klipper-estimator/gcode"
	"github.com/Annex-Engineering/klipper-estimator/planner"
)

func runDumpMoves(args []string) error {
	fs := flag.NewFlagSet("dump-moves", flag.ExitOnError)
	cf := registerCommonFlags(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("dump-moves: expected exactly one input file (or -)")
	}

	limits, err := loadLimits(cf)
	if err != nil {
		return err
	}

	src, err := openInput(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("opening gcode file failed: %w", err)
	}
	defer src.Close()

	p := planner.NewPlanner(limits)
	reader := gcode.NewReader(src)
	dm := &dumpMovesState{ctime: 0.25}

	n := 0
	for {
		cmd, _, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("gcode read: %w", err)
		}
		p.ProcessCmd(cmd)
		n++
		if n%flushEvery == 0 {
			dm.flush(p)
		}
	}
	p.Finalize()
	dm.flush(p)
	return nil
}

type dumpMovesState struct {
	moveIdx int
	ctime   float64
	ztime   float64
}

func (d *dumpMovesState) flush(p *planner.Planner) {
	for {
		op, ok := p.NextOperation()
		if !ok {
			return
		}
		if op.Kind != planner.OpMove {
			continue
		}
		m := op.Move
		d.moveIdx++

		kindLetters := ""
		if m.IsExtrudeMove() {
			kindLetters += "E"
		}
		if m.IsKinematicMove() {
			kindLetters += "K"
		}

		fmt.Printf("N%d[%s] @ %.8f => %.8f / z%.8f:\n", d.moveIdx, kindLetters, d.ctime, d.ctime+m.TotalTime(), d.ztime)
		fmt.Printf("    Path:       %v => %v [%.3f]\n", round3(m.Start), round3(m.End), m.Distance)
		fmt.Printf("    Axes %v\n", round3(m.Rate))
		if lw, ok := m.LineWidth(1.75/2.0, 0.25); ok {
			fmt.Printf("    Line width: %.4f\n", lw)
		} else {
			fmt.Println("    Line width: <none>")
		}
		if fr, ok := m.FlowRate(1.75 / 2.0); ok {
			fmt.Printf("    Flow rate: %.4f\n", fr)
		} else {
			fmt.Println("    Flow rate: <none>")
		}
		label, ok := p.MoveKindLabel(&m)
		if !ok {
			label = "Other"
		}
		fmt.Printf("    Kind: %s\n", label)
		fmt.Printf("    Acceleration %.4f\n", m.Acceleration)
		fmt.Printf("    Max dv2: %.4f\n", m.MaxDV2)
		fmt.Printf("    Max start_v2: %.4f\n", m.MaxStartV2)
		fmt.Printf("    Max cruise_v2: %.4f\n", m.MaxCruiseV2)
		fmt.Printf("    Max smoothed_v2: %.4f\n", m.MaxSmoothedV2)
		fmt.Printf("    Velocity:   %.3f => %.3f => %.3f\n", m.StartV, m.CruiseV, m.EndV)
		fmt.Printf("    Time:       %.4f+%.4f+%.4f = %.4f\n", m.AccelTime(), m.CruiseTime(), m.DecelTime(), m.TotalTime())
		d.ctime += m.TotalTime()
		fmt.Printf("    Distances:  %.3f+%.3f+%.3f = %.3f\n", m.AccelDistance(), m.CruiseDistance(), m.DecelDistance(), m.Distance)
		fmt.Println()
		d.ztime += m.TotalTime()
	}
}

func round3(v [4]float64) [4]float64 {
	var out [4]float64
	for i, c := range v {
		out[i] = math.Round(c*1000) / 1000
	}
	return out
}
