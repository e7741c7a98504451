package calibration

import (
	"math"
	"time"

	"trainload/internal/stress"
)

// timeWeightHalfLifeDays controls how quickly old calibration evidence
// fades: a point loses half its weight every 30 days.
const timeWeightHalfLifeDays = 30.0

// Method records how a calibration point's ground-truth TSS was obtained
type Method string

const (
	MethodDirect         Method = "direct"          // ground-truth TSS observed directly
	MethodCTLDerived     Method = "ctl_derived"     // implied from a CTL delta
	MethodCrossValidated Method = "cross_validated" // CTL and ATL deltas reconciled
)

// Point is one ground-truth-vs-estimate comparison. Points are immutable
// once created except for Valid, which an operator can clear to soft-delete
// an erroneous observation; corrections are new points, never edits.
type Point struct {
	ID               string
	EffectiveDate    time.Time
	Extracted        float64 // ground-truth TSS
	Calculated       float64 // this system's estimate for the same period
	SourceConfidence float64 // 0..1, e.g. OCR confidence
	Sport            stress.Sport
	Band             stress.Band
	Method           Method
	Valid            bool
	CreatedAt        time.Time
}

// Ratio is the correction factor this point suggests. Undefined when the
// calculated value is not positive.
func (p Point) Ratio() (float64, bool) {
	if p.Calculated <= 0 {
		return 0, false
	}
	return p.Extracted / p.Calculated, true
}

// TimeWeight decays exponentially with the point's age in days.
func (p Point) TimeWeight(now time.Time) float64 {
	ageDays := now.Sub(p.EffectiveDate).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/timeWeightHalfLifeDays)
}

// LearningWeight is the point's total influence on the recompute.
func (p Point) LearningWeight(now time.Time) float64 {
	return p.TimeWeight(now) * p.SourceConfidence
}
