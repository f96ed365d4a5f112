package planner

import "math"

// Limits holds the printer-wide kinematic ceilings the planner enforces,
// generalized from the single-axis limits in the teacher's
// standalone/config.MachineConfig into the full set the lookahead solver
// needs (junction deviation, accel-to-decel smoothing, per-axis/extruder
// move checkers).
type Limits struct {
	MaxVelocity           float64
	MaxAcceleration       float64
	MaxAccelToDecel       float64
	SquareCornerVelocity  float64
	JunctionDeviation     float64
	InstantCornerVelocity float64

	FirmwareRetraction *RetractionOptions
	MMPerArcSegment    float64 // 0 disables arc expansion: G2/G3 produce no moves

	MoveCheckers []MoveChecker
}

// RetractionOptions configures the firmware-retraction state machine. The
// state machine itself is RetractionState (retraction.go), but Limits
// carries the settings so config loading stays in one place.
type RetractionOptions struct {
	RetractLength       float64
	RetractSpeed        float64
	UnretractExtraLength float64
	UnretractSpeed      float64
	LiftZ               float64
}

// DefaultLimits returns the same baseline the original tool ships when no
// config file or Moonraker connection is available.
func DefaultLimits() Limits {
	l := Limits{
		MaxVelocity:           100.0,
		MaxAcceleration:       100.0,
		MaxAccelToDecel:       50.0,
		SquareCornerVelocity:  5.0,
		InstantCornerVelocity: 1.0,
	}
	l.UpdateJunctionDeviation()
	return l
}

// UpdateJunctionDeviation recomputes JunctionDeviation from the current
// square corner velocity and max acceleration. Call it after changing
// either input.
func (l *Limits) UpdateJunctionDeviation() {
	l.JunctionDeviation = scvToJD(l.SquareCornerVelocity, l.MaxAcceleration)
}

func (l *Limits) SetMaxVelocity(v float64) { l.MaxVelocity = v }

func (l *Limits) SetMaxAcceleration(v float64) {
	l.MaxAcceleration = v
	l.UpdateJunctionDeviation()
}

func (l *Limits) SetMaxAccelToDecel(v float64) { l.MaxAccelToDecel = v }

func (l *Limits) SetSquareCornerVelocity(scv float64) {
	l.SquareCornerVelocity = scv
	l.UpdateJunctionDeviation()
}

func (l *Limits) SetInstantCornerVelocity(icv float64) { l.InstantCornerVelocity = icv }

// scvToJD converts a square corner velocity into the junction deviation
// distance Klipper's cornering formula is expressed in terms of.
func scvToJD(scv, acceleration float64) float64 {
	scv2 := scv * scv
	return scv2 * (math.Sqrt2 - 1.0) / acceleration
}
