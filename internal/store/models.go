package store

import (
	"time"

	"trainload/internal/stress"
)

// Workout is one stored activity, merged across data sources. Signal
// fields are pointers: a nil value means the source never reported it.
type Workout struct {
	ID                 int64
	Source             string
	SourceID           string
	Name               string
	Sport              stress.Sport
	StartTime          time.Time
	DurationSeconds    float64
	DistanceMeters     *float64
	AvgPower           *float64
	NormalizedPower    *float64
	AvgHeartRate       *float64
	AvgPaceSecPerKm    *float64
	ElevationGain      *float64
	PerceivedIntensity *float64

	// Scoring output, recorded with the workout for auditability.
	TSS             float64
	TSSMethod       string
	IntensityFactor float64
	ScalingApplied  bool
	ScalingFactor   float64
	PreScalingTSS   *float64
}

// DailyLoad is one day of the training-load time series.
type DailyLoad struct {
	Date   string // "2006-01-02"
	Stress float64
	CTL    float64
	ATL    float64
	TSB    float64
}
