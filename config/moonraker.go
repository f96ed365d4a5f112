package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/Annex-Engineering/klipper-estimator/planner"
)

// moonrakerResult is the response envelope from Moonraker's
// printer/objects/query endpoint, ported from
// tool/src/moonraker.rs's MoonrakerResultRoot/MoonrakerResult/
// MoonrakerResultStatus chain.
type moonrakerResult struct {
	Result struct {
		Status struct {
			ConfigFile moonrakerConfigFile `json:"configfile"`
		} `json:"status"`
	} `json:"result"`
}

type moonrakerConfigFile struct {
	// Settings is kept as raw sections so that arbitrary "gcode_macro
	// <name>" keys (one per user macro, an unbounded and dynamically
	// named set) can be picked out after the known printer/extruder/
	// firmware_retraction sections are decoded.
	Settings map[string]json.RawMessage `json:"settings"`
}

type moonrakerPrinterSection struct {
	MaxVelocity          float64 `json:"max_velocity"`
	MaxAccel             float64 `json:"max_accel"`
	MaxAccelToDecel      float64 `json:"max_accel_to_decel"`
	SquareCornerVelocity float64 `json:"square_corner_velocity"`

	MaxXVelocity *float64 `json:"max_x_velocity,omitempty"`
	MaxXAccel    *float64 `json:"max_x_accel,omitempty"`
	MaxYVelocity *float64 `json:"max_y_velocity,omitempty"`
	MaxYAccel    *float64 `json:"max_y_accel,omitempty"`
	MaxZVelocity *float64 `json:"max_z_velocity,omitempty"`
	MaxZAccel    *float64 `json:"max_z_accel,omitempty"`
}

type moonrakerExtruderSection struct {
	MaxExtrudeOnlyVelocity      float64 `json:"max_extrude_only_velocity"`
	MaxExtrudeOnlyAccel         float64 `json:"max_extrude_only_accel"`
	InstantaneousCornerVelocity float64 `json:"instantaneous_corner_velocity"`
}

type moonrakerRetractionSection struct {
	RetractLength        float64 `json:"retract_length"`
	RetractSpeed         float64 `json:"retract_speed"`
	UnretractExtraLength float64 `json:"unretract_extra_length"`
	UnretractSpeed       float64 `json:"unretract_speed"`
	ZHop                 float64 `json:"z_hop"`
}

// GCodeMacro is a user-defined "gcode_macro <name>" section from Moonraker's
// settings, carried through unexpanded: the estimator has no macro/template
// interpreter, so a macro's body is stored for inspection rather than run.
// dump-config does not print macros.
type GCodeMacro struct {
	Name        string
	Description string
	GCode       string
	Variables   map[string]json.RawMessage
}

// moonrakerSettings is the decoded shape this package actually works with,
// after moonrakerConfigFile.Settings' raw sections are picked apart.
type moonrakerSettings struct {
	Printer            moonrakerPrinterSection
	Extruder           moonrakerExtruderSection
	FirmwareRetraction *moonrakerRetractionSection
	Macros             []GCodeMacro
}

func decodeSettings(raw map[string]json.RawMessage) moonrakerSettings {
	var s moonrakerSettings
	if v, ok := raw["printer"]; ok {
		_ = json.Unmarshal(v, &s.Printer)
	}
	if v, ok := raw["extruder"]; ok {
		_ = json.Unmarshal(v, &s.Extruder)
	}
	if v, ok := raw["firmware_retraction"]; ok {
		var fr moonrakerRetractionSection
		if json.Unmarshal(v, &fr) == nil {
			s.FirmwareRetraction = &fr
		}
	}

	names := make([]string, 0, len(raw))
	for key := range raw {
		names = append(names, key)
	}
	sort.Strings(names)
	for _, key := range names {
		const prefix = "gcode_macro "
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		var fields map[string]json.RawMessage
		if json.Unmarshal(raw[key], &fields) != nil {
			continue
		}
		macro := GCodeMacro{Name: strings.TrimPrefix(key, prefix), Variables: map[string]json.RawMessage{}}
		for fk, fv := range fields {
			switch {
			case fk == "description":
				_ = json.Unmarshal(fv, &macro.Description)
			case fk == "gcode":
				_ = json.Unmarshal(fv, &macro.GCode)
			case strings.HasPrefix(fk, "variable_"):
				macro.Variables[strings.TrimPrefix(fk, "variable_")] = fv
			}
		}
		s.Macros = append(s.Macros, macro)
	}
	return s
}

// MoonrakerConfig is what a successful Moonraker query yields: limits ready
// to build a Planner from, plus whatever gcode_macro sections the printer
// config defined (carried through, never expanded).
type MoonrakerConfig struct {
	Limits planner.Limits
	Macros []GCodeMacro
}

// QueryMoonraker fetches the printer's active settings from a running
// Moonraker instance, the way tool/src/moonraker.rs's query_moonraker does:
// a GET to printer/objects/query?configfile=settings, with an optional
// X-Api-Key header.
func QueryMoonraker(client *http.Client, sourceURL, apiKey string) (MoonrakerConfig, error) {
	u, err := url.Parse(strings.TrimRight(sourceURL, "/") + "/printer/objects/query")
	if err != nil {
		return MoonrakerConfig{}, fmt.Errorf("moonraker: bad url: %w", err)
	}
	q := u.Query()
	q.Set("configfile", "settings")
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return MoonrakerConfig{}, fmt.Errorf("moonraker: build request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return MoonrakerConfig{}, fmt.Errorf("moonraker: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return MoonrakerConfig{}, fmt.Errorf("moonraker: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return MoonrakerConfig{}, fmt.Errorf("moonraker: %s returned %d: %s", u, resp.StatusCode, body)
	}

	var result moonrakerResult
	if err := json.Unmarshal(body, &result); err != nil {
		return MoonrakerConfig{}, fmt.Errorf("moonraker: decode: %w", err)
	}
	settings := decodeSettings(result.Result.Status.ConfigFile.Settings)
	return MoonrakerConfig{Limits: limitsFromMoonraker(settings), Macros: settings.Macros}, nil
}

// limitsFromMoonraker builds planner.Limits from a Moonraker settings
// snapshot, mirroring moonraker_config's sequence of target.set_* calls
// and its per-axis AxisLimiter / single ExtruderLimiter synthesis.
func limitsFromMoonraker(s moonrakerSettings) planner.Limits {
	l := planner.DefaultLimits()
	if s.Printer.MaxVelocity > 0 {
		l.SetMaxVelocity(s.Printer.MaxVelocity)
	}
	if s.Printer.MaxAccel > 0 {
		l.SetMaxAcceleration(s.Printer.MaxAccel)
	}
	if s.Printer.MaxAccelToDecel > 0 {
		l.SetMaxAccelToDecel(s.Printer.MaxAccelToDecel)
	}
	if s.Printer.SquareCornerVelocity > 0 {
		l.SetSquareCornerVelocity(s.Printer.SquareCornerVelocity)
	}
	if s.Extruder.InstantaneousCornerVelocity > 0 {
		l.SetInstantCornerVelocity(s.Extruder.InstantaneousCornerVelocity)
	}

	if s.FirmwareRetraction != nil {
		fr := s.FirmwareRetraction
		l.FirmwareRetraction = &planner.RetractionOptions{
			RetractLength:        fr.RetractLength,
			RetractSpeed:         fr.RetractSpeed,
			UnretractExtraLength: fr.UnretractExtraLength,
			UnretractSpeed:       fr.UnretractSpeed,
			LiftZ:                fr.ZHop,
		}
	}

	for _, axis := range []struct {
		vec             [4]float64
		velocity, accel *float64
	}{
		{[4]float64{1, 0, 0, 0}, s.Printer.MaxXVelocity, s.Printer.MaxXAccel},
		{[4]float64{0, 1, 0, 0}, s.Printer.MaxYVelocity, s.Printer.MaxYAccel},
		{[4]float64{0, 0, 1, 0}, s.Printer.MaxZVelocity, s.Printer.MaxZAccel},
	} {
		if axis.velocity != nil && axis.accel != nil {
			l.MoveCheckers = append(l.MoveCheckers, planner.NewAxisLimiter(axis.vec, *axis.velocity, *axis.accel))
		}
	}
	if s.Extruder.MaxExtrudeOnlyVelocity > 0 && s.Extruder.MaxExtrudeOnlyAccel > 0 {
		l.MoveCheckers = append(l.MoveCheckers, planner.NewExtruderLimiter(s.Extruder.MaxExtrudeOnlyVelocity, s.Extruder.MaxExtrudeOnlyAccel))
	}

	return l
}
