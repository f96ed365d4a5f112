package postprocess

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Annex-Engineering/klipper-estimator/planner"
)

func TestEstimateTotalsMovesAndDelays(t *testing.T) {
	input := "G1 X100 F6000\nG4 P500\nG1 X0\n"
	rn := NewRunner(planner.DefaultLimits())
	result, err := rn.Estimate(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if result.TotalTime <= 0.5 {
		t.Errorf("total_time = %v, want more than the 0.5s dwell alone", result.TotalTime)
	}
	if result.HasSlicer {
		t.Errorf("expected no slicer detected, got %v", result.Slicer)
	}
}

func TestEstimateDetectsSlicer(t *testing.T) {
	input := "; generated by PrusaSlicer 2.6.0 on 2024-01-01\nG1 X10 F3000\n"
	rn := NewRunner(planner.DefaultLimits())
	result, err := rn.Estimate(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if !result.HasSlicer || result.Slicer.Name != "PrusaSlicer" {
		t.Errorf("slicer = %+v, %v; want PrusaSlicer", result.Slicer, result.HasSlicer)
	}
}

func TestApplyChangesRewritesAndRenames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.gcode")
	content := "; generated by PrusaSlicer 2.6.0 on 2024-01-01\nG1 X10 F3000\n; estimated printing time (normal mode) = 1m 0s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rn := NewRunner(planner.DefaultLimits())
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	result, err := rn.Estimate(f)
	f.Close()
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if err := ApplyChanges(path, result, rn.Interceptor(), "test-version"); err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(out)
	if !strings.Contains(text, "Processed by klipper-estimator test-version") {
		t.Errorf("missing trailer comment: %s", text)
	}
	if !strings.Contains(text, "detected slicer PrusaSlicer") {
		t.Errorf("missing slicer note: %s", text)
	}
	if strings.Contains(text, "1m 0s") {
		t.Errorf("estimated printing time line was not rewritten: %s", text)
	}
}
