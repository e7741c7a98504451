// Package match reconciles workout records observed by independent data
// sources. Given one observation and a pool of local candidates it picks
// at most one best match with a confidence score; callers use the
// decision for deduplication and enrichment. The matcher never mutates
// its inputs.
package match

import (
	"math"
	"time"

	"trainload/internal/stress"
)

// Score bonuses. Tuned so that an exact duplicate scores well above the
// acceptance threshold while a same-day workout of a different kind with
// a different duration falls below it.
const (
	timeWithinMinute     = 50.0
	timeWithin5Min       = 40.0
	timeWithin30Min      = 30.0
	timeWithin2Hours     = 20.0
	timeSameDay          = 10.0
	impreciseTimeSameDay = 30.0
	impreciseTimeNextDay = 15.0

	durationWithin2Pct  = 30.0
	durationWithin5Pct  = 25.0
	durationWithin10Pct = 15.0
	durationWithin20Pct = 5.0

	sportMatch = 20.0

	distanceWithin2Pct  = 25.0
	distanceWithin5Pct  = 20.0
	distanceWithin10Pct = 10.0
	distanceWithin20Pct = 3.0

	// MinScore is the acceptance threshold; candidates below it are
	// genuinely unrelated, which is an expected outcome, not an error.
	MinScore = 60.0
)

// impreciseStampWindow is how close to "now" a timestamp must be to be
// treated as operator-entered rather than device-recorded.
const impreciseStampWindow = 5 * time.Minute

// Observation is an externally sourced activity record.
type Observation struct {
	SourceID        string
	StartTime       time.Time
	DurationSeconds float64
	DistanceMeters  *float64
	Sport           stress.Sport
}

// Candidate is a locally stored workout considered as a match target.
type Candidate struct {
	WorkoutID       int64
	StartTime       time.Time
	DurationSeconds float64
	DistanceMeters  *float64
	Sport           stress.Sport
}

// Decision is the matcher's verdict for the best surviving candidate.
type Decision struct {
	WorkoutID int64
	Score     float64
}

// Best scores every candidate in the pool and returns the single highest
// scorer at or above MinScore. Ties are broken by pool order: the first
// candidate to reach the top score wins. This is a deliberate, documented
// policy, not an accident of iteration. now is passed explicitly so the
// imprecise-timestamp heuristic is testable.
func Best(obs Observation, pool []Candidate, now time.Time) (Decision, bool) {
	best := Decision{}
	found := false

	for _, cand := range pool {
		score, ok := scoreCandidate(obs, cand, now)
		if !ok || score < MinScore {
			continue
		}
		if !found || score > best.Score {
			best = Decision{WorkoutID: cand.WorkoutID, Score: score}
			found = true
		}
	}

	return best, found
}

// scoreCandidate computes the additive match score. Returns false when
// the time delta alone disqualifies the candidate.
func scoreCandidate(obs Observation, cand Candidate, now time.Time) (float64, bool) {
	score, ok := scoreTime(obs, cand, now)
	if !ok {
		return 0, false
	}

	score += scoreDuration(obs.DurationSeconds, cand.DurationSeconds)

	if obs.Sport == cand.Sport {
		score += sportMatch
	}

	if obs.DistanceMeters != nil && cand.DistanceMeters != nil {
		score += scoreDistance(*obs.DistanceMeters, *cand.DistanceMeters)
	}

	return score, true
}

// scoreTime awards graduated bonuses for start-time proximity.
//
// When an observation's timestamp looks imprecise (exactly midnight, or
// stamped within the last 5 minutes of now, both strong hints that an
// operator typed today's date rather than the real start time), precise
// minute-level comparison would systematically reject legitimate
// matches, so scoring degrades to same-day / adjacent-day bonuses.
func scoreTime(obs Observation, cand Candidate, now time.Time) (float64, bool) {
	if hasImpreciseTime(obs.StartTime, now) {
		days := calendarDaysApart(obs.StartTime, cand.StartTime)
		switch days {
		case 0:
			return impreciseTimeSameDay, true
		case 1:
			return impreciseTimeNextDay, true
		}
		return 0, false
	}

	delta := obs.StartTime.Sub(cand.StartTime)
	if delta < 0 {
		delta = -delta
	}

	switch {
	case delta <= time.Minute:
		return timeWithinMinute, true
	case delta <= 5*time.Minute:
		return timeWithin5Min, true
	case delta <= 30*time.Minute:
		return timeWithin30Min, true
	case delta <= 2*time.Hour:
		return timeWithin2Hours, true
	case calendarDaysApart(obs.StartTime, cand.StartTime) == 0:
		return timeSameDay, true
	}

	return 0, false
}

// hasImpreciseTime applies the exact empirical heuristic: a timestamp at
// exactly 00:00, or one stamped within the last impreciseStampWindow of
// now, is treated as "operator didn't know the real time".
func hasImpreciseTime(t, now time.Time) bool {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return true
	}
	age := now.Sub(t)
	return age >= 0 && age <= impreciseStampWindow
}

func scoreDuration(a, b float64) float64 {
	switch pct := percentDiff(a, b); {
	case pct <= 0.02:
		return durationWithin2Pct
	case pct <= 0.05:
		return durationWithin5Pct
	case pct <= 0.10:
		return durationWithin10Pct
	case pct <= 0.20:
		return durationWithin20Pct
	}
	return 0
}

func scoreDistance(a, b float64) float64 {
	switch pct := percentDiff(a, b); {
	case pct <= 0.02:
		return distanceWithin2Pct
	case pct <= 0.05:
		return distanceWithin5Pct
	case pct <= 0.10:
		return distanceWithin10Pct
	case pct <= 0.20:
		return distanceWithin20Pct
	}
	return 0
}

// percentDiff is the absolute difference relative to the larger value.
func percentDiff(a, b float64) float64 {
	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return 0
	}
	return math.Abs(a-b) / larger
}

// calendarDaysApart counts whole calendar days between two timestamps,
// comparing both in the observation's location.
func calendarDaysApart(a, b time.Time) int {
	b = b.In(a.Location())
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, a.Location())
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, a.Location())
	days := int(math.Round(ad.Sub(bd).Hours() / 24))
	if days < 0 {
		days = -days
	}
	return days
}
