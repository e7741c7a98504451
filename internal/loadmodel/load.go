package loadmodel

import (
	"errors"
	"time"
)

// Default time constants in days for the chronic and acute load averages.
const (
	DefaultCTLTau = 42.0
	DefaultATLTau = 7.0
)

// ErrInvalidTau is returned when a time constant is zero or negative
var ErrInvalidTau = errors.New("time constant must be positive")

// Metrics represents CTL/ATL/TSB for a single day
type Metrics struct {
	CTL float64 // Chronic Training Load (42-day EMA) - "Fitness"
	ATL float64 // Acute Training Load (7-day EMA) - "Fatigue"
	TSB float64 // Training Stress Balance (CTL - ATL) - "Form"
}

// DailyPoint is one day of the performance management chart
type DailyPoint struct {
	Date   time.Time
	Stress float64
	CTL    float64
	ATL    float64
	TSB    float64
}

// Advance applies one day of training stress to the previous day's loads.
// CTL and ATL are single-pole exponential moving averages with time
// constants ctlTau and atlTau (days); TSB is always derived as CTL - ATL.
func Advance(prevCTL, prevATL, stress, ctlTau, atlTau float64) (Metrics, error) {
	if ctlTau <= 0 || atlTau <= 0 {
		return Metrics{}, ErrInvalidTau
	}

	ctl := prevCTL + (stress-prevCTL)/ctlTau
	atl := prevATL + (stress-prevATL)/atlTau

	return Metrics{
		CTL: ctl,
		ATL: atl,
		TSB: ctl - atl,
	}, nil
}

// ComputeSeries runs the recurrence over every calendar day in [start, end].
// Days without an entry in stressByDay are treated as zero-stress days, so
// fitness decays through gaps rather than skipping them. Keys use the
// YYYY-MM-DD format. The fold is strictly sequential: each day's input is
// the previous day's output.
func ComputeSeries(stressByDay map[string]float64, start, end time.Time, initialCTL, initialATL float64) []DailyPoint {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil
	}

	var points []DailyPoint
	ctl := initialCTL
	atl := initialATL

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		stress := stressByDay[d.Format("2006-01-02")]

		m, _ := Advance(ctl, atl, stress, DefaultCTLTau, DefaultATLTau)
		ctl = m.CTL
		atl = m.ATL

		points = append(points, DailyPoint{
			Date:   d,
			Stress: stress,
			CTL:    ctl,
			ATL:    atl,
			TSB:    m.TSB,
		})
	}

	return points
}

// Project runs the recurrence forward over a hypothetical sequence of
// future daily stress values, for planning.
func Project(currentCTL, currentATL float64, plannedStress []float64) []Metrics {
	out := make([]Metrics, 0, len(plannedStress))
	ctl := currentCTL
	atl := currentATL

	for _, stress := range plannedStress {
		m, _ := Advance(ctl, atl, stress, DefaultCTLTau, DefaultATLTau)
		ctl = m.CTL
		atl = m.ATL
		out = append(out, m)
	}

	return out
}

// DaysToTargetTSB simulates complete rest until TSB reaches the target.
// Returns the number of rest days needed and whether the target was
// reached within maxDays.
func DaysToTargetTSB(currentCTL, currentATL, targetTSB float64, maxDays int) (int, bool) {
	if currentCTL-currentATL >= targetTSB {
		return 0, true
	}

	ctl := currentCTL
	atl := currentATL

	for day := 1; day <= maxDays; day++ {
		m, _ := Advance(ctl, atl, 0, DefaultCTLTau, DefaultATLTau)
		ctl = m.CTL
		atl = m.ATL
		if m.TSB >= targetTSB {
			return day, true
		}
	}

	return 0, false
}

// ACWR returns the acute:chronic workload ratio, a common injury-risk
// heuristic. Returns 0 when CTL is 0 (no chronic base to compare against).
func ACWR(atl, ctl float64) float64 {
	if ctl <= 0 {
		return 0
	}
	return atl / ctl
}

// FormDescription returns a human-readable description of TSB
func FormDescription(tsb float64) string {
	switch {
	case tsb > 25:
		return "Very fresh (possibly detrained)"
	case tsb > 10:
		return "Fresh and ready to race"
	case tsb > 0:
		return "Neutral - good for training"
	case tsb > -10:
		return "Slightly fatigued"
	case tsb > -25:
		return "Tired but building fitness"
	default:
		return "Very fatigued - rest needed"
	}
}

// truncateDay strips the time-of-day component, keeping the location.
func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
