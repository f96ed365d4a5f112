// Package postprocess drives a planner.Planner over a whole gcode file to
// produce a total time estimate, then rewrites that file's own slicer
// progress markers (M73, "estimated printing time", TIME:, ...) with the
// real numbers, the way the original tool's post-process subcommand does.
package postprocess

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Annex-Engineering/klipper-estimator/gcode"
	"github.com/Annex-Engineering/klipper-estimator/planner"
	"github.com/Annex-Engineering/klipper-estimator/slicer"
)

// flushEvery matches the original's `n % 1000 == 0` bookkeeping cadence:
// often enough that the buffer of not-yet-settled commands stays small,
// rarely enough that draining the planner isn't the hot path.
const flushEvery = 1000

// Result is what a pass over a whole file produces: the total estimated
// wall-clock time, and the slicer detected from its header comments, if
// any.
type Result struct {
	TotalTime float64
	Slicer    slicer.Preset
	HasSlicer bool
}

type bufEntry struct {
	remaining int
	cmd       gcode.Command
}

// Runner pairs a Planner with the slicer-specific Interceptor its detected
// preset picks, and keeps the input-command buffer that lets flush() stay
// in lockstep with however many planning operations each command produced.
type Runner struct {
	planner     *planner.Planner
	interceptor slicer.Interceptor
	result      Result
	buffer      []bufEntry
}

// NewRunner builds a Runner around a fresh Planner built from limits. The
// slicer (and its interceptor) are detected lazily from the first comment
// line Estimate sees that names a known slicer.
func NewRunner(limits planner.Limits) *Runner {
	return &Runner{
		planner:     planner.NewPlanner(limits),
		interceptor: slicer.ForPreset(slicer.Preset{}),
	}
}

// Estimate reads every line of r as gcode, plans it, and returns the
// settled Result. It must be called exactly once per Runner.
func (rn *Runner) Estimate(r io.Reader) (Result, error) {
	reader := gcode.NewReader(r)
	n := 0
	for {
		cmd, _, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("postprocess: %w", err)
		}

		if cmd.IsNop() && cmd.HasComment && !rn.result.HasSlicer {
			if preset, ok := slicer.Determine(cmd.Comment); ok {
				rn.result.Slicer = preset
				rn.result.HasSlicer = true
				rn.interceptor = slicer.ForPreset(preset)
			}
		}

		count := rn.planner.ProcessCmd(cmd)
		rn.buffer = append(rn.buffer, bufEntry{remaining: count, cmd: cmd})

		n++
		if n%flushEvery == 0 {
			rn.flush()
		}
	}

	rn.planner.Finalize()
	rn.flush()
	return rn.result, nil
}

// flush drains every planning operation the planner has settled so far,
// folding its time cost into the running total and feeding the matching
// source command to the interceptor, advancing the buffer in step with
// however many operations each command produced.
func (rn *Runner) flush() {
	for {
		op, ok := rn.planner.NextOperation()
		if !ok {
			return
		}
		switch op.Kind {
		case planner.OpDelay:
			rn.result.TotalTime += op.Delay.Duration.Seconds()
		case planner.OpMove:
			rn.result.TotalTime += op.Move.TotalTime()
		case planner.OpFill:
		}

		if len(rn.buffer) == 0 {
			continue
		}
		front := &rn.buffer[0]
		rn.interceptor.PostCommand(front.cmd, rn.result.TotalTime)
		if front.remaining <= 1 {
			rn.buffer = rn.buffer[1:]
		} else {
			front.remaining--
		}
	}
}

// ApplyChanges re-reads the gcode file at path, rewrites any line the
// interceptor recognizes with the settled Result, and atomically replaces
// the original file, appending a trailer comment naming the tool and the
// detected slicer. toolVersion is embedded in that trailer.
func ApplyChanges(path string, result Result, interceptor slicer.Interceptor, toolVersion string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("postprocess: open %s: %w", path, err)
	}
	defer src.Close()

	dir := filepath.Dir(path)
	dstPath := filepath.Join(dir, ".estimate."+filepath.Base(path))
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("postprocess: create %s: %w", dstPath, err)
	}

	w := bufio.NewWriter(dst)
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		cmd, err := gcode.Parse(line)
		if err == nil {
			if out, ok := interceptor.OutputProcess(cmd, result.TotalTime); ok {
				fmt.Fprintln(w, out.String())
				continue
			}
		}
		fmt.Fprintln(w, line)
	}
	if err := sc.Err(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return fmt.Errorf("postprocess: read %s: %w", path, err)
	}

	slicerNote := "no slicer detected"
	if result.HasSlicer {
		slicerNote = "detected slicer " + result.Slicer.String()
	}
	fmt.Fprintf(w, "; Processed by klipper-estimator %s, %s\n", toolVersion, slicerNote)

	if err := w.Flush(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return fmt.Errorf("postprocess: write %s: %w", dstPath, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("postprocess: close %s: %w", dstPath, err)
	}
	if err := os.Rename(dstPath, path); err != nil {
		return fmt.Errorf("postprocess: rename %s -> %s: %w", dstPath, path, err)
	}
	return nil
}

// Interceptor exposes the Runner's detected interceptor so ApplyChanges
// can be called with the exact same stateful interceptor Estimate used
// (the M73/PSSS interceptors carry a time_buffer queue that must survive
// from the estimate pass into the output pass).
func (rn *Runner) Interceptor() slicer.Interceptor { return rn.interceptor }
