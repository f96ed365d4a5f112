package slicer

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/Annex-Engineering/klipper-estimator/gcode"
)

var reEstTime = regexp.MustCompile(`^estimated printing time \(.*?\) =`)

// Interceptor lets a detected slicer rewrite its own progress markers once
// the real total print time is known. PostCommand observes each command as
// it's planned (to capture the time at which the original marker
// appeared); OutputProcess is called again during the output pass and may
// replace the line entirely.
type Interceptor interface {
	PostCommand(cmd gcode.Command, totalTimeSoFar float64)
	OutputProcess(cmd gcode.Command, finalTotalTime float64) (gcode.Command, bool)
}

// ForPreset returns the interceptor appropriate for a detected slicer.
// PrusaSlicer and SuperSlicer/OrcaSlicer share the same metadata format.
func ForPreset(p Preset) Interceptor {
	switch p.Name {
	case "PrusaSlicer", "SuperSlicer", "OrcaSlicer":
		return &psssInterceptor{}
	case "ideaMaker":
		return &ideaMakerInterceptor{}
	case "Cura":
		return &curaInterceptor{}
	default:
		return noopInterceptor{}
	}
}

type noopInterceptor struct{}

func (noopInterceptor) PostCommand(gcode.Command, float64)                       {}
func (noopInterceptor) OutputProcess(gcode.Command, float64) (gcode.Command, bool) { return gcode.Command{}, false }

func isM73(cmd gcode.Command) bool {
	return cmd.Op == gcode.OpTraditional && cmd.Letter == 'M' && cmd.Code == 73
}

// m73Interceptor rewrites M73 P<percent> R<minutes-remaining> lines.
type m73Interceptor struct {
	timeBuffer []float64
}

func (m *m73Interceptor) PostCommand(cmd gcode.Command, totalTimeSoFar float64) {
	if isM73(cmd) {
		m.timeBuffer = append(m.timeBuffer, totalTimeSoFar)
	}
}

func (m *m73Interceptor) OutputProcess(cmd gcode.Command, finalTotalTime float64) (gcode.Command, bool) {
	if !isM73(cmd) || len(m.timeBuffer) == 0 {
		return gcode.Command{}, false
	}
	next := m.timeBuffer[0]
	m.timeBuffer = m.timeBuffer[1:]
	return gcode.Command{
		Op:     gcode.OpTraditional,
		Letter: 'M',
		Code:   73,
		Params: []gcode.Param{
			{Letter: 'P', Value: fmt.Sprintf("%.3f", next/finalTotalTime*100.0)},
			{Letter: 'R', Value: fmt.Sprintf("%.0f", math.Round((finalTotalTime-next)/60.0))},
		},
	}, true
}

// psssInterceptor handles PrusaSlicer/SuperSlicer/OrcaSlicer output, which
// is M73 plus an "estimated printing time" comment.
type psssInterceptor struct {
	m73 m73Interceptor
}

func (p *psssInterceptor) PostCommand(cmd gcode.Command, totalTimeSoFar float64) {
	p.m73.PostCommand(cmd, totalTimeSoFar)
}

func (p *psssInterceptor) OutputProcess(cmd gcode.Command, finalTotalTime float64) (gcode.Command, bool) {
	if out, ok := p.m73.OutputProcess(cmd, finalTotalTime); ok {
		return out, true
	}
	if !cmd.HasComment {
		return gcode.Command{}, false
	}
	if loc := reEstTime.FindStringIndex(cmd.Comment); loc != nil {
		prefix := cmd.Comment[loc[0]:loc[1]]
		return gcode.Command{
			Op:         gcode.OpNop,
			Comment:    prefix + formatDHMS(finalTotalTime),
			HasComment: true,
		}, true
	}
	return gcode.Command{}, false
}

// ideaMakerInterceptor rewrites ideaMaker's Print Time/PRINTING_TIME/
// REMAINING_TIME comments.
type ideaMakerInterceptor struct {
	timeBuffer []float64
}

func (ik *ideaMakerInterceptor) PostCommand(cmd gcode.Command, totalTimeSoFar float64) {
	if cmd.HasComment && strings.HasPrefix(cmd.Comment, "PRINTING_TIME: ") {
		ik.timeBuffer = append(ik.timeBuffer, totalTimeSoFar)
	}
}

func (ik *ideaMakerInterceptor) OutputProcess(cmd gcode.Command, finalTotalTime float64) (gcode.Command, bool) {
	if !cmd.HasComment {
		return gcode.Command{}, false
	}
	switch {
	case strings.HasPrefix(cmd.Comment, "Print Time: "):
		return nopComment(fmt.Sprintf("Print Time: %.0f", math.Ceil(finalTotalTime))), true
	case strings.HasPrefix(cmd.Comment, "PRINTING_TIME: "):
		if len(ik.timeBuffer) == 0 {
			return gcode.Command{}, false
		}
		return nopComment(fmt.Sprintf("PRINTING_TIME: %.0f", math.Ceil(ik.timeBuffer[0]))), true
	case strings.HasPrefix(cmd.Comment, "REMAINING_TIME: "):
		if len(ik.timeBuffer) == 0 {
			return gcode.Command{}, false
		}
		next := ik.timeBuffer[0]
		ik.timeBuffer = ik.timeBuffer[1:]
		return nopComment(fmt.Sprintf("REMAINING_TIME: %.0f", math.Ceil(finalTotalTime-next))), true
	}
	return gcode.Command{}, false
}

// curaInterceptor rewrites Cura's TIME:/PRINT.TIME:/TIME_ELAPSED: comments.
type curaInterceptor struct {
	timeBuffer []float64
}

func (c *curaInterceptor) PostCommand(cmd gcode.Command, totalTimeSoFar float64) {
	if cmd.HasComment && strings.HasPrefix(cmd.Comment, "TIME_ELAPSED:") {
		c.timeBuffer = append(c.timeBuffer, totalTimeSoFar)
	}
}

func (c *curaInterceptor) OutputProcess(cmd gcode.Command, finalTotalTime float64) (gcode.Command, bool) {
	if !cmd.HasComment {
		return gcode.Command{}, false
	}
	switch {
	case strings.HasPrefix(cmd.Comment, "TIME:"):
		return nopComment(fmt.Sprintf("TIME:%.0f", math.Ceil(finalTotalTime))), true
	case strings.HasPrefix(cmd.Comment, "PRINT.TIME:"):
		return nopComment(fmt.Sprintf("PRINT.TIME:%.0f", math.Ceil(finalTotalTime))), true
	case strings.HasPrefix(cmd.Comment, "TIME_ELAPSED:"):
		if len(c.timeBuffer) == 0 {
			return gcode.Command{}, false
		}
		next := c.timeBuffer[0]
		c.timeBuffer = c.timeBuffer[1:]
		return nopComment(fmt.Sprintf("TIME_ELAPSED:%.0f", math.Ceil(next))), true
	}
	return gcode.Command{}, false
}

func nopComment(s string) gcode.Command {
	return gcode.Command{Op: gcode.OpNop, Comment: s, HasComment: true}
}
