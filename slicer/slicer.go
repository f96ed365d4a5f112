// Package slicer identifies which slicer produced a gcode file from its
// header comments, and rewrites that slicer's own time-remaining markers
// (M73, "estimated printing time", PRINTING_TIME:, TIME:, ...) with the
// times this estimator actually computed.
package slicer

import (
	"fmt"
	"regexp"
	"strings"
)

// Preset identifies a detected slicer and its reported version string.
type Preset struct {
	Name    string
	Version string // empty when the slicer doesn't report one (bare Cura)
}

func (p Preset) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + " " + p.Version
}

var (
	rePrusa = regexp.MustCompile(`PrusaSlicer\s(.*)\son`)
	reSuper = regexp.MustCompile(`SuperSlicer\s(.*)\son`)
	reOrca  = regexp.MustCompile(`OrcaSlicer\s(.*)\son`)
	reIdea  = regexp.MustCompile(`Sliced by ideaMaker\s(.*),`)
	reCuraOld = regexp.MustCompile(`Generated with Cura_SteamEngine\s(.*)`)
	reCuraNew = regexp.MustCompile(`GENERATOR\.NAME:Cura_SteamEngine`)
	reSimplify3D = regexp.MustCompile(`Simplify3D\(R\)\sVersion\s(.*)`)
)

// Determine inspects a single gcode comment line and reports the slicer it
// identifies, trying each known slicer's signature comment in turn.
func Determine(comment string) (Preset, bool) {
	if m := rePrusa.FindStringSubmatch(comment); m != nil {
		return Preset{Name: "PrusaSlicer", Version: m[1]}, true
	}
	if m := reSuper.FindStringSubmatch(comment); m != nil {
		return Preset{Name: "SuperSlicer", Version: m[1]}, true
	}
	if m := reOrca.FindStringSubmatch(comment); m != nil {
		return Preset{Name: "OrcaSlicer", Version: m[1]}, true
	}
	if m := reIdea.FindStringSubmatch(comment); m != nil {
		return Preset{Name: "ideaMaker", Version: m[1]}, true
	}
	if m := reCuraOld.FindStringSubmatch(comment); m != nil {
		return Preset{Name: "Cura", Version: m[1]}, true
	}
	if reCuraNew.MatchString(comment) {
		return Preset{Name: "Cura"}, true
	}
	if m := reSimplify3D.FindStringSubmatch(comment); m != nil {
		return Preset{Name: "Simplify3D", Version: m[1]}, true
	}
	return Preset{}, false
}

// formatDHMS renders a duration in seconds as PrusaSlicer/SuperSlicer's
// " XdXhXmXs" format, omitting leading zero components.
func formatDHMS(seconds float64) string {
	t := int64(seconds + 0.999999) // ceil
	var b strings.Builder
	d := t / 86400
	t %= 86400
	if d > 0 {
		fmt.Fprintf(&b, " %dd", d)
	}
	h := t / 3600
	t %= 3600
	if h > 0 {
		fmt.Fprintf(&b, " %dh", h)
	}
	m := t / 60
	t %= 60
	if m > 0 {
		fmt.Fprintf(&b, " %dm", m)
	}
	fmt.Fprintf(&b, " %ds", t)
	return b.String()
}
