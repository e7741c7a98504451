package service

import (
	"errors"
	"fmt"
	"time"

	"trainload/internal/calibration"
	"trainload/internal/store"
	"trainload/internal/stress"
)

// ErrUnreadableScreenshot is returned when a screenshot's fragments
// can't be resolved into a PMC reading.
var ErrUnreadableScreenshot = errors.New("could not locate CTL/TSB/ATL in screenshot")

// CalibrationService feeds ground-truth observations into the learning
// engine, resolving each reading's context (calculated stress and the
// previous day's load baseline) from the store.
type CalibrationService struct {
	store  *store.Store
	engine *calibration.Engine
}

// NewCalibrationService creates a calibration service backed by the store.
func NewCalibrationService(st *store.Store) *CalibrationService {
	return &CalibrationService{
		store:  st,
		engine: calibration.NewEngine(st),
	}
}

// Reading is one externally observed ground truth for a single day.
// At least one of TSS, CTL must be set for the reading to be usable.
type Reading struct {
	Date       time.Time
	TSS        *float64
	CTL        *float64
	ATL        *float64
	Confidence float64
	Sport      stress.Sport
	Band       stress.Band
}

// IngestReading runs one ground-truth reading through the learning
// engine. A skipped reading (learning disabled, nothing to compare) is
// a normal outcome reported in the result, not an error.
func (c *CalibrationService) IngestReading(r Reading) (calibration.Result, error) {
	day := r.Date.Format("2006-01-02")

	var ctx calibration.Context
	dl, err := c.store.GetDailyLoad(day)
	if err == nil {
		ctx.CalculatedTSS = dl.Stress
	} else if !errors.Is(err, store.ErrNoDailyLoad) {
		return calibration.Result{}, fmt.Errorf("loading daily load: %w", err)
	}

	prev, err := c.store.DailyLoadBefore(day)
	if err == nil {
		ctx.PrevCTL = prev.CTL
		ctx.PrevATL = prev.ATL
		ctx.PrevKnown = true
	} else if !errors.Is(err, store.ErrNoDailyLoad) {
		return calibration.Result{}, fmt.Errorf("loading load baseline: %w", err)
	}

	return c.engine.Ingest(calibration.GroundTruth{
		EffectiveDate: r.Date,
		TSS:           r.TSS,
		CTL:           r.CTL,
		ATL:           r.ATL,
		Confidence:    r.Confidence,
		Sport:         r.Sport,
		Band:          r.Band,
	}, ctx)
}

// IngestScreenshot parses recognized text fragments from a PMC
// screenshot and ingests the resulting CTL/ATL reading, dated to the
// given day.
func (c *CalibrationService) IngestScreenshot(fragments []calibration.Fragment, date time.Time) (calibration.Result, error) {
	reading, ok := calibration.ParsePMCScreenshot(fragments)
	if !ok {
		return calibration.Result{}, ErrUnreadableScreenshot
	}

	return c.IngestReading(Reading{
		Date:       date,
		CTL:        &reading.CTL,
		ATL:        &reading.ATL,
		Confidence: reading.Confidence,
	})
}

// InvalidatePoint soft-deletes an erroneous calibration point and
// recomputes the scaling factors from the remaining valid set.
func (c *CalibrationService) InvalidatePoint(id string) (stress.Profile, error) {
	if err := c.store.InvalidatePoint(id); err != nil {
		return stress.Profile{}, err
	}

	profile, err := c.store.Profile()
	if err != nil {
		return stress.Profile{}, fmt.Errorf("loading profile: %w", err)
	}
	points, err := c.store.ValidPoints()
	if err != nil {
		return stress.Profile{}, fmt.Errorf("loading points: %w", err)
	}

	updated := calibration.Recompute(profile, points, time.Now())
	if err := c.store.SaveProfile(updated); err != nil {
		return stress.Profile{}, fmt.Errorf("saving profile: %w", err)
	}
	return updated, nil
}

// SetLearningEnabled flips the learning switch on the stored profile.
func (c *CalibrationService) SetLearningEnabled(enabled bool) error {
	profile, err := c.store.Profile()
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}
	profile.LearningEnabled = enabled
	return c.store.SaveProfile(profile)
}

// Points lists every stored calibration point, newest first included.
func (c *CalibrationService) Points() ([]calibration.Point, error) {
	return c.store.AllPoints()
}

// Profile returns the current scaling profile.
func (c *CalibrationService) Profile() (stress.Profile, error) {
	return c.store.Profile()
}
