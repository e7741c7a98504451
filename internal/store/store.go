package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trainload/internal/stress"
)

// Store provides the application's data access layer.
type Store struct {
	db *sql.DB
}

// newStore creates a Store from a database connection.
func newStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Workout Methods ---

const workoutColumns = `id, source, source_id, name, sport, start_time,
	duration_seconds, distance_meters, avg_power, normalized_power,
	avg_heartrate, avg_pace, elevation_gain, perceived_intensity,
	tss, tss_method, intensity_factor, scaling_applied, scaling_factor,
	pre_scaling_tss`

// UpsertWorkout inserts or updates a workout keyed by (source, source_id)
// and returns its row ID.
func (s *Store) UpsertWorkout(w *Workout) (int64, error) {
	_, err := s.db.Exec(`
		INSERT INTO workouts (
			source, source_id, name, sport, start_time, duration_seconds,
			distance_meters, avg_power, normalized_power, avg_heartrate,
			avg_pace, elevation_gain, perceived_intensity,
			tss, tss_method, intensity_factor, scaling_applied,
			scaling_factor, pre_scaling_tss
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, source_id) DO UPDATE SET
			name = excluded.name,
			sport = excluded.sport,
			start_time = excluded.start_time,
			duration_seconds = excluded.duration_seconds,
			distance_meters = excluded.distance_meters,
			avg_power = excluded.avg_power,
			normalized_power = excluded.normalized_power,
			avg_heartrate = excluded.avg_heartrate,
			avg_pace = excluded.avg_pace,
			elevation_gain = excluded.elevation_gain,
			perceived_intensity = excluded.perceived_intensity,
			tss = excluded.tss,
			tss_method = excluded.tss_method,
			intensity_factor = excluded.intensity_factor,
			scaling_applied = excluded.scaling_applied,
			scaling_factor = excluded.scaling_factor,
			pre_scaling_tss = excluded.pre_scaling_tss,
			updated_at = CURRENT_TIMESTAMP`,
		w.Source, w.SourceID, w.Name, string(w.Sport),
		w.StartTime.Format(time.RFC3339), w.DurationSeconds,
		ptrToNullFloat64(w.DistanceMeters), ptrToNullFloat64(w.AvgPower),
		ptrToNullFloat64(w.NormalizedPower), ptrToNullFloat64(w.AvgHeartRate),
		ptrToNullFloat64(w.AvgPaceSecPerKm), ptrToNullFloat64(w.ElevationGain),
		ptrToNullFloat64(w.PerceivedIntensity),
		w.TSS, w.TSSMethod, w.IntensityFactor, boolToInt64(w.ScalingApplied),
		w.ScalingFactor, ptrToNullFloat64(w.PreScalingTSS),
	)
	if err != nil {
		return 0, fmt.Errorf("upserting workout: %w", err)
	}

	var id int64
	err = s.db.QueryRow(
		`SELECT id FROM workouts WHERE source = ? AND source_id = ?`,
		w.Source, w.SourceID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolving workout id: %w", err)
	}
	w.ID = id
	return id, nil
}

// GetWorkout retrieves a workout by ID.
func (s *Store) GetWorkout(id int64) (*Workout, error) {
	row := s.db.QueryRow(
		`SELECT `+workoutColumns+` FROM workouts WHERE id = ?`, id)
	w, err := scanWorkout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkoutNotFound
	}
	return w, err
}

// ListWorkouts returns workouts ordered by start time descending.
func (s *Store) ListWorkouts(limit, offset int) ([]Workout, error) {
	rows, err := s.db.Query(
		`SELECT `+workoutColumns+` FROM workouts
		ORDER BY start_time DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWorkouts(rows)
}

// WorkoutsBetween returns workouts with a start time in [start, end),
// ordered ascending. Used for the match candidate pool and for daily
// stress aggregation.
func (s *Store) WorkoutsBetween(start, end time.Time) ([]Workout, error) {
	rows, err := s.db.Query(
		`SELECT `+workoutColumns+` FROM workouts
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time ASC`,
		start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWorkouts(rows)
}

// CountWorkouts returns the total number of stored workouts.
func (s *Store) CountWorkouts() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM workouts`).Scan(&count)
	return count, err
}

// EarliestWorkoutStart returns the start time of the oldest workout.
// ok is false when no workouts are stored.
func (s *Store) EarliestWorkoutStart() (time.Time, bool, error) {
	var raw sql.NullString
	err := s.db.QueryRow(`SELECT MIN(start_time) FROM workouts`).Scan(&raw)
	if err != nil {
		return time.Time{}, false, err
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing earliest start_time %q: %w", raw.String, err)
	}
	return t, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkout(row rowScanner) (*Workout, error) {
	var w Workout
	var sport, startTime string
	var distance, avgPower, np, avgHR, avgPace, elev, perceived, preScaling sql.NullFloat64
	var scalingApplied int64

	err := row.Scan(
		&w.ID, &w.Source, &w.SourceID, &w.Name, &sport, &startTime,
		&w.DurationSeconds, &distance, &avgPower, &np,
		&avgHR, &avgPace, &elev, &perceived,
		&w.TSS, &w.TSSMethod, &w.IntensityFactor, &scalingApplied,
		&w.ScalingFactor, &preScaling,
	)
	if err != nil {
		return nil, err
	}

	w.Sport = stress.Sport(sport)
	w.StartTime, err = time.Parse(time.RFC3339, startTime)
	if err != nil {
		return nil, fmt.Errorf("parsing start_time %q: %w", startTime, err)
	}
	w.DistanceMeters = nullFloat64ToPtr(distance)
	w.AvgPower = nullFloat64ToPtr(avgPower)
	w.NormalizedPower = nullFloat64ToPtr(np)
	w.AvgHeartRate = nullFloat64ToPtr(avgHR)
	w.AvgPaceSecPerKm = nullFloat64ToPtr(avgPace)
	w.ElevationGain = nullFloat64ToPtr(elev)
	w.PerceivedIntensity = nullFloat64ToPtr(perceived)
	w.PreScalingTSS = nullFloat64ToPtr(preScaling)
	w.ScalingApplied = scalingApplied == 1

	return &w, nil
}

func collectWorkouts(rows *sql.Rows) ([]Workout, error) {
	var workouts []Workout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		workouts = append(workouts, *w)
	}
	return workouts, rows.Err()
}

// --- Conversion Helpers ---

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func ptrToNullFloat64(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullFloat64ToPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}
