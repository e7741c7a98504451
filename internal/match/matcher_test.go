package match

import (
	"testing"
	"time"

	"trainload/internal/stress"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestBest(t *testing.T) {
	// A fixed "now" far from every test timestamp keeps the
	// recently-stamped heuristic out of the way unless a case wants it.
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	start := time.Date(2024, 3, 15, 7, 30, 0, 0, time.UTC)

	obs := Observation{
		SourceID:        "platform-123",
		StartTime:       start,
		DurationSeconds: 3600,
		DistanceMeters:  floatPtr(12000),
		Sport:           stress.SportRun,
	}

	tests := []struct {
		name     string
		obs      Observation
		pool     []Candidate
		wantID   int64
		wantOK   bool
		checkFn  func(t *testing.T, d Decision)
	}{
		{
			name:   "empty pool",
			obs:    obs,
			pool:   nil,
			wantOK: false,
		},
		{
			name: "identical candidate always matches",
			obs:  obs,
			pool: []Candidate{
				{WorkoutID: 1, StartTime: start, DurationSeconds: 3600, DistanceMeters: floatPtr(12000), Sport: stress.SportRun},
			},
			wantID: 1,
			wantOK: true,
			checkFn: func(t *testing.T, d Decision) {
				if d.Score < MinScore {
					t.Errorf("identical candidate score = %v, want at least %v", d.Score, MinScore)
				}
			},
		},
		{
			name: "ten days away on a different activity type never matches",
			obs:  obs,
			pool: []Candidate{
				{WorkoutID: 2, StartTime: start.AddDate(0, 0, 10), DurationSeconds: 3600, DistanceMeters: floatPtr(12000), Sport: stress.SportBike},
			},
			wantOK: false,
		},
		{
			name: "same day different sport and duration falls below threshold",
			obs:  obs,
			pool: []Candidate{
				{WorkoutID: 3, StartTime: start.Add(4 * time.Hour), DurationSeconds: 1200, Sport: stress.SportBike},
			},
			wantOK: false,
		},
		{
			name: "closest of several plausible candidates wins",
			obs:  obs,
			pool: []Candidate{
				{WorkoutID: 4, StartTime: start.Add(20 * time.Minute), DurationSeconds: 3650, DistanceMeters: floatPtr(12100), Sport: stress.SportRun},
				{WorkoutID: 5, StartTime: start.Add(30 * time.Second), DurationSeconds: 3605, DistanceMeters: floatPtr(12010), Sport: stress.SportRun},
			},
			wantID: 5,
			wantOK: true,
		},
		{
			name: "tie broken by pool order",
			obs:  obs,
			pool: []Candidate{
				{WorkoutID: 6, StartTime: start, DurationSeconds: 3600, DistanceMeters: floatPtr(12000), Sport: stress.SportRun},
				{WorkoutID: 7, StartTime: start, DurationSeconds: 3600, DistanceMeters: floatPtr(12000), Sport: stress.SportRun},
			},
			wantID: 6,
			wantOK: true,
		},
		{
			name: "missing distance on one side still matches on time and duration",
			obs: Observation{
				StartTime:       start,
				DurationSeconds: 3600,
				Sport:           stress.SportRun,
			},
			pool: []Candidate{
				{WorkoutID: 8, StartTime: start.Add(2 * time.Minute), DurationSeconds: 3590, DistanceMeters: floatPtr(12000), Sport: stress.SportRun},
			},
			wantID: 8,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Best(tt.obs, tt.pool, now)
			if ok != tt.wantOK {
				t.Fatalf("Best() ok = %v, want %v (decision %+v)", ok, tt.wantOK, d)
			}
			if ok && d.WorkoutID != tt.wantID {
				t.Errorf("Best() workout = %d, want %d", d.WorkoutID, tt.wantID)
			}
			if tt.checkFn != nil && ok {
				tt.checkFn(t, d)
			}
		})
	}
}

func TestBestMidnightHeuristic(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	obs := Observation{
		StartTime:       midnight,
		DurationSeconds: 3600,
		DistanceMeters:  floatPtr(12000),
		Sport:           stress.SportRun,
	}

	tests := []struct {
		name   string
		cand   Candidate
		wantOK bool
	}{
		{
			name: "same day match despite an 18 hour gap",
			cand: Candidate{
				WorkoutID:       1,
				StartTime:       midnight.Add(18 * time.Hour),
				DurationSeconds: 3600,
				DistanceMeters:  floatPtr(12000),
				Sport:           stress.SportRun,
			},
			wantOK: true,
		},
		{
			name: "adjacent day still matches with strong field agreement",
			cand: Candidate{
				WorkoutID:       2,
				StartTime:       midnight.AddDate(0, 0, 1).Add(9 * time.Hour),
				DurationSeconds: 3600,
				DistanceMeters:  floatPtr(12000),
				Sport:           stress.SportRun,
			},
			wantOK: true,
		},
		{
			name: "two days out is rejected",
			cand: Candidate{
				WorkoutID:       3,
				StartTime:       midnight.AddDate(0, 0, 2),
				DurationSeconds: 3600,
				DistanceMeters:  floatPtr(12000),
				Sport:           stress.SportRun,
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Best(obs, []Candidate{tt.cand}, now)
			if ok != tt.wantOK {
				t.Errorf("Best() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestBestRecentlyStampedObservation(t *testing.T) {
	// An observation stamped two minutes ago is treated as manually
	// dated: a device-recorded workout from that morning should still
	// match even though the clock times are hours apart.
	now := time.Date(2024, 3, 15, 21, 2, 0, 0, time.UTC)
	obs := Observation{
		StartTime:       now.Add(-2 * time.Minute),
		DurationSeconds: 2700,
		DistanceMeters:  floatPtr(9000),
		Sport:           stress.SportRun,
	}

	cand := Candidate{
		WorkoutID:       9,
		StartTime:       time.Date(2024, 3, 15, 6, 45, 0, 0, time.UTC),
		DurationSeconds: 2700,
		DistanceMeters:  floatPtr(9000),
		Sport:           stress.SportRun,
	}

	d, ok := Best(obs, []Candidate{cand}, now)
	if !ok {
		t.Fatal("expected a match for a manually stamped observation")
	}
	if d.WorkoutID != 9 {
		t.Errorf("workout = %d, want 9", d.WorkoutID)
	}
}

func TestScoreTimePrecision(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	start := time.Date(2024, 3, 15, 7, 30, 0, 0, time.UTC)
	obs := Observation{StartTime: start, DurationSeconds: 3600, Sport: stress.SportRun}

	tests := []struct {
		name      string
		candStart time.Time
		want      float64
		wantOK    bool
	}{
		{"within a minute", start.Add(45 * time.Second), timeWithinMinute, true},
		{"within five minutes", start.Add(4 * time.Minute), timeWithin5Min, true},
		{"within thirty minutes", start.Add(-25 * time.Minute), timeWithin30Min, true},
		{"within two hours", start.Add(90 * time.Minute), timeWithin2Hours, true},
		{"same calendar day", start.Add(10 * time.Hour), timeSameDay, true},
		{"next day", start.AddDate(0, 0, 1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scoreTime(obs, Candidate{StartTime: tt.candStart}, now)
			if ok != tt.wantOK {
				t.Fatalf("scoreTime() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("scoreTime() = %v, want %v", got, tt.want)
			}
		})
	}
}
