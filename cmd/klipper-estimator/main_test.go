package main

import (
	"testing"

	"github.com/Annex-Engineering/klipper-estimator/planner"
)

func TestApplyOverrides(t *testing.T) {
	l := planner.DefaultLimits()
	if err := applyOverrides(&l, []string{"max_velocity=250", "square_corner_velocity=8"}); err != nil {
		t.Fatalf("applyOverrides: %v", err)
	}
	if l.MaxVelocity != 250 {
		t.Errorf("max_velocity = %v, want 250", l.MaxVelocity)
	}
	if l.SquareCornerVelocity != 8 {
		t.Errorf("square_corner_velocity = %v, want 8", l.SquareCornerVelocity)
	}
	wantJD := 8.0 * 8.0 * 0.41421356 / l.MaxAcceleration
	if diff := l.JunctionDeviation - wantJD; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("junction_deviation not recomputed: got %v, want ~%v", l.JunctionDeviation, wantJD)
	}
}

func TestApplyOverridesRejectsBadSyntax(t *testing.T) {
	l := planner.DefaultLimits()
	if err := applyOverrides(&l, []string{"no-equals-sign"}); err == nil {
		t.Fatal("expected an error for a malformed override")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0.5, "0.500s"},
		{65, "1m5.000s"},
		{3665, "1h1m5.000s"},
	}
	for _, test := range tests {
		if got := formatDuration(test.seconds); got != test.want {
			t.Errorf("formatDuration(%v) = %q, want %q", test.seconds, got, test.want)
		}
	}
}
