package gcode

import "testing"

func TestParseMoveCommands(t *testing.T) {
	tests := []struct {
		input  string
		x, y, z, e, f *float64
	}{
		{"G0 X10 Y20", f64p(10), f64p(20), nil, nil, nil},
		{"G1 X100.5 Y200.25 F3000", f64p(100.5), f64p(200.25), nil, nil, f64p(3000)},
		{"G1 X-10.5 Y-20", f64p(-10.5), f64p(-20), nil, nil, nil},
		{"g1 x10 y20", f64p(10), f64p(20), nil, nil, nil},
	}

	for _, test := range tests {
		cmd, err := Parse(test.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", test.input, err)
			continue
		}
		if cmd.Op != OpMove {
			t.Errorf("Parse(%q): got Op %v, want OpMove", test.input, cmd.Op)
			continue
		}
		checkOptF(t, test.input, "X", cmd.X, test.x)
		checkOptF(t, test.input, "Y", cmd.Y, test.y)
		checkOptF(t, test.input, "Z", cmd.Z, test.z)
		checkOptF(t, test.input, "E", cmd.E, test.e)
		checkOptF(t, test.input, "F", cmd.F, test.f)
	}
}

func TestParseTraditionalCommands(t *testing.T) {
	tests := []struct {
		input  string
		letter byte
		code   uint16
		params map[byte]string
	}{
		{"G28", 'G', 28, map[byte]string{}},
		{"M104 S200", 'M', 104, map[byte]string{'S': "200"}},
		{"G92 X0 Y0 Z0", 'G', 92, map[byte]string{'X': "0", 'Y': "0", 'Z': "0"}},
		{"N12 G4 P250", 'G', 4, map[byte]string{'P': "250"}},
	}

	for _, test := range tests {
		cmd, err := Parse(test.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", test.input, err)
			continue
		}
		if cmd.Op != OpTraditional {
			t.Errorf("Parse(%q): got Op %v, want OpTraditional", test.input, cmd.Op)
			continue
		}
		if cmd.Letter != test.letter || cmd.Code != test.code {
			t.Errorf("Parse(%q): got %c%d, want %c%d", test.input, cmd.Letter, cmd.Code, test.letter, test.code)
		}
		for letter, want := range test.params {
			got, ok := cmd.GetString(letter)
			if !ok || got != want {
				t.Errorf("Parse(%q): param %c = %q, want %q", test.input, letter, got, want)
			}
		}
	}
}

func TestParseExtendedCommands(t *testing.T) {
	cmd, err := Parse("SET_VELOCITY_LIMIT VELOCITY=300 ACCEL=3000")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Op != OpExtended || cmd.Name != "set_velocity_limit" {
		t.Fatalf("got %+v", cmd)
	}
	if v, ok := cmd.GetExtNumber("velocity"); !ok || v != 300 {
		t.Errorf("VELOCITY = %v, %v, want 300, true", v, ok)
	}

	cmd, err = Parse(`ESTIMATOR_ADD_TIME duration="1.5" kind=skirt`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v, ok := cmd.GetExtString("duration"); !ok || v != "1.5" {
		t.Errorf("duration = %q, %v, want \"1.5\", true", v, ok)
	}
}

func TestParseComments(t *testing.T) {
	tests := []string{
		"; This is a comment",
		"G0 X10 ; Move to X10",
	}

	for _, test := range tests {
		cmd, err := Parse(test)
		if err != nil {
			t.Errorf("Parse(%q): %v", test, err)
		}
		if !cmd.HasComment {
			t.Errorf("Parse(%q): expected a comment", test)
		}
	}
}

func TestParseEmptyLine(t *testing.T) {
	cmd, err := Parse("")
	if err != nil {
		t.Errorf("empty line should not error: %v", err)
	}
	if cmd.Op != OpNop {
		t.Errorf("empty line should be OpNop, got %v", cmd.Op)
	}
}

func f64p(v float64) *float64 { return &v }

func checkOptF(t *testing.T, input, name string, got, want *float64) {
	t.Helper()
	if (got == nil) != (want == nil) {
		t.Errorf("Parse(%q): %s presence = %v, want %v", input, name, got != nil, want != nil)
		return
	}
	if got != nil && *got != *want {
		t.Errorf("Parse(%q): %s = %v, want %v", input, name, *got, *want)
	}
}
