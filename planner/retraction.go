package planner

import (
	"github.com/Annex-Engineering/klipper-estimator/gcode"
	"github.com/Annex-Engineering/klipper-estimator/kind"
)

// RetractionState is the firmware-retraction (G10/G11) two-state machine:
// either the extruder is sitting unretracted, or it's retracted by some
// length and optionally lifted in Z, waiting for the matching unretract.
// Folded into this package for the same reason as ArcState: it drives
// ToolheadState/OperationSequence directly.
type RetractionState struct {
	retracted        bool
	liftedZ          float64
	unretractLength  float64
}

// SetOptions applies a set_retraction extended command's parameters to the
// toolhead's firmware-retraction settings.
func SetOptions(th *ToolheadState, cmd gcode.Command) {
	opts := th.Limits.FirmwareRetraction
	if opts == nil {
		return
	}
	if v, ok := cmd.GetExtNumber("retract_length"); ok {
		opts.RetractLength = maxf(v, 0)
	}
	if v, ok := cmd.GetExtNumber("retract_speed"); ok {
		opts.RetractSpeed = maxf(v, 0)
	}
	if v, ok := cmd.GetExtNumber("unretract_extra_length"); ok {
		opts.UnretractExtraLength = maxf(v, 0)
	}
	if v, ok := cmd.GetExtNumber("unretract_speed"); ok {
		opts.UnretractSpeed = maxf(v, 0)
	}
	if v, ok := cmd.GetExtNumber("lift_z"); ok {
		opts.LiftZ = maxf(v, 0)
	}
}

// Retract executes a G10: retracts the extruder and optionally lifts Z, if
// not already retracted. Returns the number of moves produced.
func (r *RetractionState) Retract(kt *kind.Tracker, th *ToolheadState, seq *OperationSequence) int {
	if r.retracted {
		return 0
	}
	opts := th.Limits.FirmwareRetraction
	n := 0

	if opts.RetractLength > 0 {
		v := th.Velocity
		th.Velocity = opts.RetractSpeed
		length := -opts.RetractLength
		k := kt.Get("Firmware retract")
		m := th.PerformRelativeMove([4]*float64{nil, nil, nil, &length}, Kind{kind: k, has: true})
		seq.addMove(m, th)
		th.Velocity = v
		n++
	}

	if opts.LiftZ > 0 {
		z := opts.LiftZ
		k := kt.Get("Firmware retract Z hop")
		m := th.PerformRelativeMove([4]*float64{nil, nil, &z, nil}, Kind{kind: k, has: true})
		seq.addMove(m, th)
		n++
	}

	r.liftedZ = opts.LiftZ
	r.unretractLength = opts.RetractLength + opts.UnretractExtraLength
	r.retracted = true
	return n
}

// Unretract executes a G11: undoes a pending Retract. Returns the number of
// moves produced.
func (r *RetractionState) Unretract(kt *kind.Tracker, th *ToolheadState, seq *OperationSequence) int {
	if !r.retracted {
		return 0
	}
	opts := th.Limits.FirmwareRetraction
	n := 0

	if r.unretractLength > 0 {
		v := th.Velocity
		th.Velocity = opts.UnretractSpeed
		length := r.unretractLength
		k := kt.Get("Firmware unretract")
		m := th.PerformRelativeMove([4]*float64{nil, nil, nil, &length}, Kind{kind: k, has: true})
		seq.addMove(m, th)
		th.Velocity = v
		n++
	}

	if r.liftedZ > 0 {
		z := -r.liftedZ
		k := kt.Get("Firmware unretract Z hop")
		m := th.PerformRelativeMove([4]*float64{nil, nil, &z, nil}, Kind{kind: k, has: true})
		seq.addMove(m, th)
		n++
	}

	r.retracted = false
	return n
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
