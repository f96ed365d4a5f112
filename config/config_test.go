package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	f, err := Load([]byte(`{"max_velocity": 250}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.MaxVelocity != 250 {
		t.Errorf("max_velocity = %v, want 250", f.MaxVelocity)
	}
	if f.MaxAcceleration != Default().MaxAcceleration {
		t.Errorf("max_acceleration = %v, want default %v", f.MaxAcceleration, Default().MaxAcceleration)
	}
}

func TestLoadStripsLineComments(t *testing.T) {
	data := []byte(`{
		"max_velocity": 300, // top speed
		"max_acceleration": 3000
	}`)
	f, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.MaxVelocity != 300 || f.MaxAcceleration != 3000 {
		t.Errorf("got %+v", f)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	if _, err := Load([]byte(`{not json`)); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestApplyOverrides(t *testing.T) {
	f := Default()
	if err := f.ApplyOverrides([]string{"max_velocity=500", "max_accel_to_decel=250"}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if f.MaxVelocity != 500 || f.MaxAccelToDecel != 250 {
		t.Errorf("got %+v", f)
	}
}

func TestApplyOverridesRejectsUnknownKey(t *testing.T) {
	f := Default()
	err := f.ApplyOverrides([]string{"bogus_key=1"})
	if err == nil || !strings.Contains(err.Error(), "bogus_key") {
		t.Fatalf("ApplyOverrides error = %v, want mention of bogus_key", err)
	}
}

func TestToLimitsBuildsMoveCheckers(t *testing.T) {
	f := Default()
	f.MoveCheckers = []MoveCheckerConfig{
		{Type: "axis_limiter", Axis: [3]float64{0, 0, 1}, MaxVelocity: 10, MaxAccel: 100},
		{Type: "extruder_limiter", MaxVelocity: 25, MaxAccel: 800},
	}
	l := f.ToLimits()
	if len(l.MoveCheckers) != 2 {
		t.Fatalf("expected 2 move checkers, got %d", len(l.MoveCheckers))
	}
}
