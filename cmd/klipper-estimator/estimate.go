package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/Annex-Engineering/klipper-estimator/gcode"
	"github.com/Annex-Engineering/klipper-estimator/planner"
)

func openInput(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(name)
}

// flushEvery matches the planner-draining cadence the other consumers use,
// keeping the input-alignment buffer small without making draining the hot
// path.
const flushEvery = 1000

// phaseTimes splits a run's time into Klipper's own trapezoid phases.
type phaseTimes struct {
	Acceleration float64 `json:"acceleration"`
	Cruise       float64 `json:"cruise"`
	Deceleration float64 `json:"deceleration"`
}

// sequence is one uninterrupted run of moves (a dwell starts a new one).
type sequence struct {
	TotalTime            float64            `json:"total_time"`
	TotalDistance        float64            `json:"total_distance"`
	TotalExtrudeDistance float64            `json:"total_extrude_distance"`
	NumMoves             int                `json:"num_moves"`
	TotalZTime           float64            `json:"total_z_time"`
	TotalOutputTime      float64            `json:"total_output_time"`
	TotalTravelTime      float64            `json:"total_travel_time"`
	TotalExtrudeOnlyTime float64            `json:"total_extrude_only_time"`
	PhaseTimes           phaseTimes         `json:"phase_times"`
	KindTimes            map[string]float64 `json:"kind_times"`
	LayerTimes           [][2]float64       `json:"layer_times"`
}

type estimationState struct {
	Sequences []*sequence `json:"sequences"`
}

func (s *estimationState) current() *sequence {
	if len(s.Sequences) == 0 {
		s.Sequences = append(s.Sequences, &sequence{KindTimes: map[string]float64{}})
	}
	return s.Sequences[len(s.Sequences)-1]
}

func (s *estimationState) addDelay(seconds float64) {
	if last := s.current(); last.NumMoves != 0 {
		s.Sequences = append(s.Sequences, &sequence{KindTimes: map[string]float64{}})
	}
	s.current().TotalTime += seconds
}

func (s *estimationState) addMove(p *planner.Planner, m planner.Move) {
	seq := s.current()
	if seq.TotalTime == 0 && seq.NumMoves == 0 {
		seq.TotalTime += 0.25
	}

	t := m.TotalTime()
	seq.TotalTime += t
	seq.TotalDistance += m.Distance
	seq.TotalExtrudeDistance += m.End[3] - m.Start[3]
	seq.NumMoves++

	switch {
	case m.IsExtrudeMove() && m.IsKinematicMove():
		seq.TotalOutputTime += t
	case m.IsExtrudeMove():
		seq.TotalExtrudeOnlyTime += t
	case m.IsKinematicMove():
		seq.TotalTravelTime += t
	}

	seq.PhaseTimes.Acceleration += m.AccelTime()
	seq.PhaseTimes.Cruise += m.CruiseTime()
	seq.PhaseTimes.Deceleration += m.DecelTime()

	label, ok := p.MoveKindLabel(&m)
	if !ok {
		label = "Other"
	}
	seq.KindTimes[label] += t

	if math.Abs(m.Start[2]-m.End[2]) < 1e-9 {
		z := math.Round(m.Start[2]*1000) / 1000
		found := false
		for i := range seq.LayerTimes {
			if seq.LayerTimes[i][0] == z {
				seq.LayerTimes[i][1] += t
				found = true
				break
			}
		}
		if !found {
			seq.LayerTimes = append(seq.LayerTimes, [2]float64{z, t})
		}
	} else {
		seq.TotalZTime += t
	}
}

func formatDuration(seconds float64) string {
	var parts []string
	if seconds > 86400 {
		parts = append(parts, fmt.Sprintf("%.0fd", math.Floor(seconds/86400)))
		seconds = math.Mod(seconds, 86400)
	}
	if seconds > 3600 {
		parts = append(parts, fmt.Sprintf("%.0fh", math.Floor(seconds/3600)))
		seconds = math.Mod(seconds, 3600)
	}
	if seconds > 60 {
		parts = append(parts, fmt.Sprintf("%.0fm", math.Floor(seconds/60)))
		seconds = math.Mod(seconds, 60)
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%.3fs", seconds))
	}
	if len(parts) == 0 {
		return "0s"
	}
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}

func runEstimate(args []string) error {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	cf := registerCommonFlags(fs)
	format := fs.String("format", "human", "output format: human or json")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("estimate: expected exactly one input file (or -)")
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
	state := &estimationState{}
	reader := gcode.NewReader(src)

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
			drainEstimate(p, state)
		}
	}
	p.Finalize()
	drainEstimate(p, state)

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	printEstimateHuman(state)
	return nil
}

func drainEstimate(p *planner.Planner, state *estimationState) {
	for {
		op, ok := p.NextOperation()
		if !ok {
			return
		}
		switch op.Kind {
		case planner.OpMove:
			state.addMove(p, op.Move)
		case planner.OpDelay:
			state.addDelay(op.Delay.Duration.Seconds())
		case planner.OpFill:
		}
	}
}

func printEstimateHuman(state *estimationState) {
	const crossSection = math.Pi * (1.75 / 2.0) * (1.75 / 2.0)

	fmt.Println("Sequences:")
	for i, seq := range state.Sequences {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf(" Run %d:\n", i)
		fmt.Printf("  Total moves:                 %d\n", seq.NumMoves)
		fmt.Printf("  Total distance:              %.3fmm\n", seq.TotalDistance)
		fmt.Printf("  Total extrude distance:      %.3fmm\n", seq.TotalExtrudeDistance)
		fmt.Printf("  Minimal time:                %s (%.3fs)\n", formatDuration(seq.TotalTime), seq.TotalTime)
		fmt.Printf("  Total print move time:       %s (%.3fs)\n", formatDuration(seq.TotalOutputTime), seq.TotalOutputTime)
		fmt.Printf("  Total extrude-only time:     %s (%.3fs)\n", formatDuration(seq.TotalExtrudeOnlyTime), seq.TotalExtrudeOnlyTime)
		fmt.Printf("  Total travel time:           %s (%.3fs)\n", formatDuration(seq.TotalTravelTime), seq.TotalTravelTime)
		if seq.TotalTime > 0 {
			fmt.Printf("  Average flow:                %.3f mm³/s\n", seq.TotalExtrudeDistance*crossSection/seq.TotalTime)
		}
		if seq.TotalOutputTime > 0 {
			fmt.Printf("  Average flow (output only):  %.3f mm³/s\n", seq.TotalExtrudeDistance*crossSection/seq.TotalOutputTime)
		}
		fmt.Println("  Phases:")
		fmt.Printf("   Acceleration:               %s\n", formatDuration(seq.PhaseTimes.Acceleration))
		fmt.Printf("   Cruise:                     %s\n", formatDuration(seq.PhaseTimes.Cruise))
		fmt.Printf("   Deceleration:               %s\n", formatDuration(seq.PhaseTimes.Deceleration))

		if len(seq.KindTimes) > 0 {
			type kt struct {
				kind string
				t    float64
			}
			var kts []kt
			for k, t := range seq.KindTimes {
				kts = append(kts, kt{k, t})
			}
			sort.Slice(kts, func(i, j int) bool { return kts[i].t > kts[j].t })
			fmt.Println("  Move kind distribution:")
			for _, e := range kts {
				fmt.Printf("   %-12s %s\n", formatDuration(e.t), e.kind)
			}
		}

		if len(seq.LayerTimes) > 0 {
			sorted := append([][2]float64{}, seq.LayerTimes...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })
			fmt.Println("  Layer time distribution:")
			for _, lt := range sorted {
				fmt.Printf("   %8.3f: %s\n", lt[0], formatDuration(lt[1]))
			}
		}
	}
}
