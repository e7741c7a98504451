package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"trainload/internal/loadmodel"
	"trainload/internal/match"
	"trainload/internal/platform"
	"trainload/internal/store"
	"trainload/internal/stress"
)

const (
	// PlatformSource identifies workouts imported from the activity platform
	PlatformSource = "platform"
	// ManualSource identifies workouts entered by hand
	ManualSource = "manual"

	// matchWindowDays bounds the candidate pool around an observation
	matchWindowDays = 2
	// streamBatchSize limits stream fetches per sync to respect rate limits
	streamBatchSize = 50
)

// ImportService orchestrates importing workouts from all sources:
// platform sync, manual entry. Every import runs the same pipeline:
// match against stored workouts, merge or insert, score, recompute load.
type ImportService struct {
	client     *platform.Client
	store      *store.Store
	thresholds stress.Thresholds
	now        func() time.Time
}

// NewImportService creates an import service. client may be nil for
// manual-only use.
func NewImportService(client *platform.Client, st *store.Store, thresholds stress.Thresholds) *ImportService {
	return &ImportService{
		client:     client,
		store:      st,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Observation is a workout observed by one source, before matching.
type Observation struct {
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

	// Raw series, used for scoring but not persisted.
	PowerSamples []stress.PowerSample
	Trackpoints  []stress.Trackpoint
}

// ImportResult describes what happened to one observation.
type ImportResult struct {
	WorkoutID int64
	Merged    bool // true when matched into an existing workout
	TSS       float64
	Method    stress.Method
}

// SyncProgress reports progress during sync
type SyncProgress struct {
	Phase          string // "activities", "streams", "load"
	Total          int
	Completed      int
	CurrentWorkout string
	Error          error
}

// SyncResult contains the results of a sync operation
type SyncResult struct {
	ActivitiesFetched int
	WorkoutsStored    int
	WorkoutsMerged    int
	StreamsFetched    int
	DaysRecomputed    int
	Errors            []error
}

// Import runs one observation through the dedup-and-enrich pipeline:
// match against the stored pool, merge signals into the winning workout
// or insert a new one, then score with the given profile snapshot.
// The daily load series is NOT recomputed here; callers batch that.
func (s *ImportService) Import(obs Observation, profile stress.Profile) (ImportResult, error) {
	pool, err := s.store.WorkoutsBetween(
		obs.StartTime.AddDate(0, 0, -matchWindowDays),
		obs.StartTime.AddDate(0, 0, matchWindowDays+1))
	if err != nil {
		return ImportResult{}, fmt.Errorf("loading candidate pool: %w", err)
	}

	candidates := make([]match.Candidate, 0, len(pool))
	byID := make(map[int64]store.Workout, len(pool))
	for _, w := range pool {
		// Same-source duplicates are handled by the (source, source_id)
		// upsert key; the matcher only reconciles across sources.
		if w.Source == obs.Source {
			continue
		}
		candidates = append(candidates, match.Candidate{
			WorkoutID:       w.ID,
			StartTime:       w.StartTime,
			DurationSeconds: w.DurationSeconds,
			DistanceMeters:  w.DistanceMeters,
			Sport:           w.Sport,
		})
		byID[w.ID] = w
	}

	decision, matched := match.Best(match.Observation{
		SourceID:        obs.SourceID,
		StartTime:       obs.StartTime,
		DurationSeconds: obs.DurationSeconds,
		DistanceMeters:  obs.DistanceMeters,
		Sport:           obs.Sport,
	}, candidates, s.now())

	var workout store.Workout
	if matched {
		workout = byID[decision.WorkoutID]
		mergeObservation(&workout, obs)
	} else {
		workout = store.Workout{
			Source:             obs.Source,
			SourceID:           obs.SourceID,
			Name:               obs.Name,
			Sport:              obs.Sport,
			StartTime:          obs.StartTime,
			DurationSeconds:    obs.DurationSeconds,
			DistanceMeters:     obs.DistanceMeters,
			AvgPower:           obs.AvgPower,
			NormalizedPower:    obs.NormalizedPower,
			AvgHeartRate:       obs.AvgHeartRate,
			AvgPaceSecPerKm:    obs.AvgPaceSecPerKm,
			ElevationGain:      obs.ElevationGain,
			PerceivedIntensity: obs.PerceivedIntensity,
		}
	}

	s.scoreWorkout(&workout, obs.PowerSamples, obs.Trackpoints, profile)

	id, err := s.store.UpsertWorkout(&workout)
	if err != nil {
		return ImportResult{}, fmt.Errorf("storing workout: %w", err)
	}

	return ImportResult{
		WorkoutID: id,
		Merged:    matched,
		TSS:       workout.TSS,
		Method:    stress.Method(workout.TSSMethod),
	}, nil
}

// AddManualWorkout imports a manually entered workout and recomputes the
// load series for the affected day forward.
func (s *ImportService) AddManualWorkout(obs Observation) (ImportResult, error) {
	if obs.Source == "" {
		obs.Source = ManualSource
	}
	if obs.SourceID == "" {
		obs.SourceID = fmt.Sprintf("manual-%d", s.now().UnixNano())
	}

	profile, err := s.store.Profile()
	if err != nil {
		return ImportResult{}, fmt.Errorf("loading profile: %w", err)
	}

	result, err := s.Import(obs, profile)
	if err != nil {
		return ImportResult{}, err
	}

	if _, err := s.RecomputeLoadFrom(obs.StartTime); err != nil {
		return result, fmt.Errorf("recomputing load: %w", err)
	}
	return result, nil
}

// mergeObservation enriches a stored workout with the observation's
// signals. Existing values win; only missing signals are filled in, so
// the richer source never loses data to the poorer one.
func mergeObservation(w *store.Workout, obs Observation) {
	if w.DistanceMeters == nil {
		w.DistanceMeters = obs.DistanceMeters
	}
	if w.AvgPower == nil {
		w.AvgPower = obs.AvgPower
	}
	if w.NormalizedPower == nil {
		w.NormalizedPower = obs.NormalizedPower
	}
	if w.AvgHeartRate == nil {
		w.AvgHeartRate = obs.AvgHeartRate
	}
	if w.AvgPaceSecPerKm == nil {
		w.AvgPaceSecPerKm = obs.AvgPaceSecPerKm
	}
	if w.ElevationGain == nil {
		w.ElevationGain = obs.ElevationGain
	}
	if w.PerceivedIntensity == nil {
		w.PerceivedIntensity = obs.PerceivedIntensity
	}
	if w.Name == "" {
		w.Name = obs.Name
	}
}

// scoreWorkout computes the workout's stress score and applies the
// learned scaling factors from the profile snapshot. Scaling metadata
// is recorded on the workout so a re-score can never double-apply.
func (s *ImportService) scoreWorkout(w *store.Workout, samples []stress.PowerSample, tracks []stress.Trackpoint, profile stress.Profile) {
	result := stress.Score(stress.Workout{
		Sport:              w.Sport,
		DurationSeconds:    w.DurationSeconds,
		DistanceMeters:     w.DistanceMeters,
		AvgHeartrate:       w.AvgHeartRate,
		AvgPower:           w.AvgPower,
		NormalizedPower:    w.NormalizedPower,
		PowerSamples:       samples,
		Trackpoints:        tracks,
		PerceivedIntensity: w.PerceivedIntensity,
	}, s.thresholds)

	stress.ApplyScaling(&result, profile, w.Sport, stress.BandForIF(result.IntensityFactor))

	w.TSS = result.Value
	w.TSSMethod = string(result.Method)
	w.IntensityFactor = result.IntensityFactor
	w.ScalingApplied = result.Scaling.Applied
	w.ScalingFactor = result.Scaling.Factor
	if result.Scaling.Applied {
		pre := result.Scaling.PreScalingValue
		w.PreScalingTSS = &pre
	}

	// Persist the derived NP when the power path produced one.
	if result.DerivedMetric != nil &&
		(result.Method == stress.MethodPower || result.Method == stress.MethodRunningPower) {
		w.NormalizedPower = result.DerivedMetric
	}
}

// RecomputeLoadFrom rebuilds the daily load series from the given day
// through today, seeding the recurrence from the last stored day before
// it. Returns the number of days written.
func (s *ImportService) RecomputeLoadFrom(from time.Time) (int, error) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	now := s.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(start) {
		end = start
	}

	workouts, err := s.store.WorkoutsBetween(start, end.AddDate(0, 0, 1))
	if err != nil {
		return 0, fmt.Errorf("loading workouts: %w", err)
	}

	stressByDay := make(map[string]float64)
	for _, w := range workouts {
		day := w.StartTime.UTC().Format("2006-01-02")
		stressByDay[day] += w.TSS
	}

	var initialCTL, initialATL float64
	prev, err := s.store.DailyLoadBefore(start.Format("2006-01-02"))
	if err == nil {
		initialCTL, initialATL = prev.CTL, prev.ATL
	} else if !errors.Is(err, store.ErrNoDailyLoad) {
		return 0, fmt.Errorf("loading baseline: %w", err)
	}

	series := loadmodel.ComputeSeries(stressByDay, start, end, initialCTL, initialATL)

	points := make([]store.DailyLoad, 0, len(series))
	for _, p := range series {
		points = append(points, store.DailyLoad{
			Date:   p.Date.Format("2006-01-02"),
			Stress: p.Stress,
			CTL:    p.CTL,
			ATL:    p.ATL,
			TSB:    p.TSB,
		})
	}
	if err := s.store.SaveDailyLoad(points); err != nil {
		return 0, fmt.Errorf("saving daily load: %w", err)
	}

	return len(points), nil
}

// SyncAll performs a full platform sync: activities -> streams -> load
func (s *ImportService) SyncAll(ctx context.Context, progress chan<- SyncProgress) (*SyncResult, error) {
	if progress != nil {
		defer close(progress)
	}

	result := &SyncResult{}

	// The profile snapshot is read once: every workout in the batch is
	// scored with the same factors even if calibration runs mid-sync.
	profile, err := s.store.Profile()
	if err != nil {
		return result, fmt.Errorf("loading profile: %w", err)
	}

	needStreams, earliest, err := s.syncActivities(ctx, progress, result, profile)
	if err != nil {
		return result, fmt.Errorf("syncing activities: %w", err)
	}

	if err := s.syncStreams(ctx, progress, result, profile, needStreams); err != nil {
		return result, fmt.Errorf("syncing streams: %w", err)
	}

	if !earliest.IsZero() {
		if progress != nil {
			progress <- SyncProgress{Phase: "load"}
		}
		days, err := s.RecomputeLoadFrom(earliest)
		if err != nil {
			return result, fmt.Errorf("recomputing load: %w", err)
		}
		result.DaysRecomputed = days
	}

	return result, nil
}

// streamTarget pairs a stored workout with its platform activity for
// the stream-fetch phase.
type streamTarget struct {
	workoutID int64
	activity  platform.Activity
}

// syncActivities fetches activity summaries and runs each through the
// import pipeline. Returns the workouts that warrant a stream fetch and
// the earliest affected start time.
func (s *ImportService) syncActivities(ctx context.Context, progress chan<- SyncProgress, result *SyncResult, profile stress.Profile) ([]streamTarget, time.Time, error) {
	lastSyncStr, _ := s.store.GetSyncState("last_activity_sync")
	var after time.Time
	if lastSyncStr != "" {
		after, _ = time.Parse(time.RFC3339, lastSyncStr)
	}

	if progress != nil {
		progress <- SyncProgress{Phase: "activities"}
	}

	var needStreams []streamTarget
	var earliest time.Time

	page := 1
	perPage := 100

	for {
		select {
		case <-ctx.Done():
			return needStreams, earliest, ctx.Err()
		default:
		}

		activities, err := s.client.GetActivities(ctx, after, page, perPage)
		if err != nil {
			return needStreams, earliest, fmt.Errorf("fetching page %d: %w", page, err)
		}

		if len(activities) == 0 {
			break
		}

		result.ActivitiesFetched += len(activities)

		for _, a := range activities {
			imported, err := s.Import(activityObservation(a), profile)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("importing activity %d: %w", a.ID, err))
				continue
			}
			if imported.Merged {
				result.WorkoutsMerged++
			} else {
				result.WorkoutsStored++
			}

			if earliest.IsZero() || a.StartDate.Before(earliest) {
				earliest = a.StartDate
			}

			// Device power warrants a stream fetch for true NP; runs
			// with elevation benefit from grade-adjusted pace.
			if a.DeviceWatts || a.Sport() == stress.SportRun {
				needStreams = append(needStreams, streamTarget{
					workoutID: imported.WorkoutID,
					activity:  a,
				})
			}
		}

		if progress != nil {
			progress <- SyncProgress{
				Phase:     "activities",
				Total:     result.ActivitiesFetched,
				Completed: result.WorkoutsStored + result.WorkoutsMerged,
			}
		}

		if len(activities) < perPage {
			break // Last page
		}

		page++
	}

	s.store.SetSyncState("last_activity_sync", s.now().Format(time.RFC3339))

	return needStreams, earliest, nil
}

// syncStreams fetches raw series for workouts that can be scored more
// precisely with them, and re-scores those workouts.
func (s *ImportService) syncStreams(ctx context.Context, progress chan<- SyncProgress, result *SyncResult, profile stress.Profile, targets []streamTarget) error {
	if len(targets) > streamBatchSize {
		targets = targets[:streamBatchSize]
	}
	if len(targets) == 0 {
		return nil
	}

	if progress != nil {
		progress <- SyncProgress{Phase: "streams", Total: len(targets)}
	}

	for i, target := range targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if progress != nil {
			progress <- SyncProgress{
				Phase:          "streams",
				Total:          len(targets),
				Completed:      i,
				CurrentWorkout: target.activity.Name,
			}
		}

		streams, err := s.client.GetActivityStreams(ctx, target.activity.ID)
		if err != nil {
			// Some activities have no streams; keep the summary score
			result.Errors = append(result.Errors, fmt.Errorf("activity %d (%s): %w", target.activity.ID, target.activity.Name, err))
			continue
		}

		workout, err := s.store.GetWorkout(target.workoutID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("loading workout %d: %w", target.workoutID, err))
			continue
		}

		s.scoreWorkout(workout, streams.PowerSamples(), streams.Trackpoints(), profile)
		if _, err := s.store.UpsertWorkout(workout); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("re-scoring workout %d: %w", target.workoutID, err))
			continue
		}

		result.StreamsFetched++
	}

	if progress != nil {
		progress <- SyncProgress{Phase: "streams", Total: len(targets), Completed: len(targets)}
	}

	return nil
}

// activityObservation converts a platform activity into the import
// pipeline's source-neutral observation.
func activityObservation(a platform.Activity) Observation {
	obs := Observation{
		Source:          PlatformSource,
		SourceID:        strconv.FormatInt(a.ID, 10),
		Name:            a.Name,
		Sport:           a.Sport(),
		StartTime:       a.StartDate,
		DurationSeconds: float64(a.MovingTime),
	}

	if a.Distance > 0 {
		d := a.Distance
		obs.DistanceMeters = &d
	}
	if a.AverageWatts > 0 {
		p := a.AverageWatts
		obs.AvgPower = &p
	}
	if a.WeightedAverageWatts > 0 && a.DeviceWatts {
		np := a.WeightedAverageWatts
		obs.NormalizedPower = &np
	}
	if a.AverageHeartrate > 0 {
		hr := a.AverageHeartrate
		obs.AvgHeartRate = &hr
	}
	if pace := a.AvgPaceSecPerKm(); pace > 0 {
		obs.AvgPaceSecPerKm = &pace
	}
	if a.TotalElevationGain > 0 {
		e := a.TotalElevationGain
		obs.ElevationGain = &e
	}
	if a.PerceivedExertion > 0 {
		// Platform exertion is 1..10; the estimator wants 0..1
		perceived := (a.PerceivedExertion - 1) / 9
		obs.PerceivedIntensity = &perceived
	}

	return obs
}

// RateLimitStatus returns the current rate limit status from the client
func (s *ImportService) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return s.client.RateLimitStatus()
}
