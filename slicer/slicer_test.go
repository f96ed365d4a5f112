package slicer

import "testing"

func TestDetermine(t *testing.T) {
	tests := []struct {
		comment  string
		wantName string
	}{
		{"PrusaSlicer 2.6.0 on 2023-08-01", "PrusaSlicer"},
		{"SuperSlicer 2.5.59 on 2023-01-01", "SuperSlicer"},
		{"OrcaSlicer 1.8.0 on 2024-01-01", "OrcaSlicer"},
		{"Sliced by ideaMaker 4.2.1, ", "ideaMaker"},
		{"Generated with Cura_SteamEngine 5.4.0", "Cura"},
		{"GENERATOR.NAME:Cura_SteamEngine", "Cura"},
		{"Simplify3D(R) Version 5.0.1", "Simplify3D"},
		{"just some random comment", ""},
	}

	for _, test := range tests {
		p, ok := Determine(test.comment)
		if test.wantName == "" {
			if ok {
				t.Errorf("Determine(%q) = %v, want no match", test.comment, p)
			}
			continue
		}
		if !ok || p.Name != test.wantName {
			t.Errorf("Determine(%q) = %v, %v; want name %q", test.comment, p, ok, test.wantName)
		}
	}
}

func TestFormatDHMS(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{5, " 5s"},
		{65, " 1m 5s"},
		{3665, " 1h 1m 5s"},
		{90065, " 1d 1h 1m 5s"},
	}
	for _, test := range tests {
		got := formatDHMS(test.seconds)
		if got != test.want {
			t.Errorf("formatDHMS(%v) = %q, want %q", test.seconds, got, test.want)
		}
	}
}
