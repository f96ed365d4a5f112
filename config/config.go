// Package config loads printer limits from a local JSON file or from a
// running Moonraker instance, and applies command-line overrides, the way
// the original tool's -c/--config_moonraker_url flags do.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Annex-Engineering/klipper-estimator/planner"
)

// File is the on-disk / over-the-wire JSON shape of printer limits. It
// mirrors standalone/config.go's two-step "unmarshal, then default" load
// pattern, generalized from a single-axis MachineConfig to the full
// PrinterLimits the lookahead solver needs.
type File struct {
	MaxVelocity           float64             `json:"max_velocity"`
	MaxAcceleration       float64             `json:"max_acceleration"`
	MaxAccelToDecel       float64             `json:"max_accel_to_decel"`
	SquareCornerVelocity  float64             `json:"square_corner_velocity"`
	InstantCornerVelocity float64             `json:"instant_corner_velocity"`
	FirmwareRetraction    *RetractionConfig   `json:"firmware_retraction,omitempty"`
	MMPerArcSegment       float64             `json:"mm_per_arc_segment,omitempty"`
	MoveCheckers          []MoveCheckerConfig `json:"move_checkers,omitempty"`
}

// RetractionConfig is the JSON shape of planner.RetractionOptions.
type RetractionConfig struct {
	RetractLength        float64 `json:"retract_length"`
	UnretractExtraLength float64 `json:"unretract_extra_length"`
	UnretractSpeed       float64 `json:"unretract_speed"`
	RetractSpeed         float64 `json:"retract_speed"`
	LiftZ                float64 `json:"lift_z,omitempty"`
}

// MoveCheckerConfig is the JSON shape of a planner.MoveChecker: a tagged
// union discriminated by Type, matching the original's
// #[serde(rename_all = "snake_case")] enum encoding.
type MoveCheckerConfig struct {
	Type        string     `json:"type"`
	Axis        [3]float64 `json:"axis,omitempty"`
	MaxVelocity float64    `json:"max_velocity"`
	MaxAccel    float64    `json:"max_accel"`
}

// Default returns the same baseline the original tool ships when no config
// file or Moonraker connection is available.
func Default() File {
	l := planner.DefaultLimits()
	return fromLimits(l)
}

// Load reads and parses a JSON limits file, applying defaults for any
// field the file leaves at its zero value. Lines may carry a trailing
// "// comment" (stripped before parsing) so a config file can be annotated
// without needing a JSON5/HJSON dependency this pack has no precedent for.
func Load(data []byte) (File, error) {
	stripped := stripLineComments(data)
	f := Default()
	if err := json.Unmarshal(stripped, &f); err != nil {
		return File{}, fmt.Errorf("config: parse: %w", err)
	}
	applyDefaults(&f)
	return f, nil
}

func applyDefaults(f *File) {
	d := Default()
	if f.MaxVelocity == 0 {
		f.MaxVelocity = d.MaxVelocity
	}
	if f.MaxAcceleration == 0 {
		f.MaxAcceleration = d.MaxAcceleration
	}
	if f.MaxAccelToDecel == 0 {
		f.MaxAccelToDecel = d.MaxAccelToDecel
	}
	if f.SquareCornerVelocity == 0 {
		f.SquareCornerVelocity = d.SquareCornerVelocity
	}
	if f.InstantCornerVelocity == 0 {
		f.InstantCornerVelocity = d.InstantCornerVelocity
	}
}

func fromLimits(l planner.Limits) File {
	return File{
		MaxVelocity:           l.MaxVelocity,
		MaxAcceleration:       l.MaxAcceleration,
		MaxAccelToDecel:       l.MaxAccelToDecel,
		SquareCornerVelocity:  l.SquareCornerVelocity,
		InstantCornerVelocity: l.InstantCornerVelocity,
		MMPerArcSegment:       l.MMPerArcSegment,
	}
}

// ToLimits converts a loaded File into planner.Limits, ready to build a
// Planner from.
func (f File) ToLimits() planner.Limits {
	l := planner.Limits{
		MaxVelocity:           f.MaxVelocity,
		MaxAcceleration:       f.MaxAcceleration,
		MaxAccelToDecel:       f.MaxAccelToDecel,
		SquareCornerVelocity:  f.SquareCornerVelocity,
		InstantCornerVelocity: f.InstantCornerVelocity,
		MMPerArcSegment:       f.MMPerArcSegment,
	}
	l.UpdateJunctionDeviation()
	if f.FirmwareRetraction != nil {
		l.FirmwareRetraction = &planner.RetractionOptions{
			RetractLength:        f.FirmwareRetraction.RetractLength,
			UnretractExtraLength: f.FirmwareRetraction.UnretractExtraLength,
			UnretractSpeed:       f.FirmwareRetraction.UnretractSpeed,
			RetractSpeed:         f.FirmwareRetraction.RetractSpeed,
			LiftZ:                f.FirmwareRetraction.LiftZ,
		}
	}
	for _, mc := range f.MoveCheckers {
		switch mc.Type {
		case "axis_limiter":
			axis := [4]float64{mc.Axis[0], mc.Axis[1], mc.Axis[2], 0}
			l.MoveCheckers = append(l.MoveCheckers, planner.NewAxisLimiter(axis, mc.MaxVelocity, mc.MaxAccel))
		case "extruder_limiter":
			l.MoveCheckers = append(l.MoveCheckers, planner.NewExtruderLimiter(mc.MaxVelocity, mc.MaxAccel))
		}
	}
	return l
}

// FromLimits converts planner.Limits back into its JSON File shape,
// including firmware-retraction settings and move checkers. Used by
// dump-config to report the effective configuration, and by the Moonraker
// cache writer to persist what was fetched.
func FromLimits(l planner.Limits) File {
	f := fromLimits(l)
	if l.FirmwareRetraction != nil {
		f.FirmwareRetraction = &RetractionConfig{
			RetractLength:        l.FirmwareRetraction.RetractLength,
			UnretractExtraLength: l.FirmwareRetraction.UnretractExtraLength,
			UnretractSpeed:       l.FirmwareRetraction.UnretractSpeed,
			RetractSpeed:         l.FirmwareRetraction.RetractSpeed,
			LiftZ:                l.FirmwareRetraction.LiftZ,
		}
	}
	for _, mc := range l.MoveCheckers {
		switch mc.Kind() {
		case planner.AxisLimiterKind:
			axis := mc.Axis
			f.MoveCheckers = append(f.MoveCheckers, MoveCheckerConfig{
				Type:        "axis_limiter",
				Axis:        [3]float64{axis[0], axis[1], axis[2]},
				MaxVelocity: mc.MaxVelocity,
				MaxAccel:    mc.MaxAccel,
			})
		case planner.ExtruderLimiterKind:
			f.MoveCheckers = append(f.MoveCheckers, MoveCheckerConfig{
				Type:        "extruder_limiter",
				MaxVelocity: mc.MaxVelocity,
				MaxAccel:    mc.MaxAccel,
			})
		}
	}
	return f
}

// ApplyOverrides applies "key=value" strings as produced by the CLI's
// repeated -c flag, in order, each one overwriting whatever came before.
// Keys match the JSON field names in File.
func (f *File) ApplyOverrides(kvs []string) error {
	for _, kv := range kvs {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			return fmt.Errorf("config: invalid override %q, want key=value", kv)
		}
		key, value := kv[:eq], kv[eq+1:]
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("config: override %q: %w", kv, err)
		}
		switch key {
		case "max_velocity":
			f.MaxVelocity = v
		case "max_acceleration":
			f.MaxAcceleration = v
		case "max_accel_to_decel":
			f.MaxAccelToDecel = v
		case "square_corner_velocity":
			f.SquareCornerVelocity = v
		case "instant_corner_velocity":
			f.InstantCornerVelocity = v
		case "mm_per_arc_segment":
			f.MMPerArcSegment = v
		default:
			return fmt.Errorf("config: unknown override key %q", key)
		}
	}
	return nil
}

func stripLineComments(data []byte) []byte {
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	var out strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if idx := findCommentStart(line); idx >= 0 {
			line = line[:idx]
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return []byte(out.String())
}

// findCommentStart finds a "//" that isn't inside a JSON string literal.
func findCommentStart(line string) int {
	inString := false
	escaped := false
	for i := 0; i < len(line)-1; i++ {
		c := line[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		} else if c == '/' && line[i+1] == '/' {
			return i
		}
	}
	return -1
}
