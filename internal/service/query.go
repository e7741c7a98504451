package service

import (
	"errors"
	"time"

	"trainload/internal/loadmodel"
	"trainload/internal/store"
	"trainload/internal/stress"
)

const (
	// LoadHistoryDays is the chart window for the load series
	LoadHistoryDays = 90
	// ProjectionDays is how far ahead the form projection looks
	ProjectionDays = 14
	// RecentWorkoutsLimit bounds the dashboard's workout list
	RecentWorkoutsLimit = 10
)

// QueryService provides read-only queries for the TUI
type QueryService struct {
	store *store.Store
	now   func() time.Time
}

// NewQueryService creates a new query service
func NewQueryService(st *store.Store) *QueryService {
	return &QueryService{store: st, now: time.Now}
}

// DashboardData contains all data needed for the dashboard
type DashboardData struct {
	// Current training load
	CurrentFitness  float64 // CTL
	CurrentFatigue  float64 // ATL
	CurrentForm     float64 // TSB
	FormDescription string
	ACWR            float64

	// This week
	WeekWorkoutCount int
	WeekTSS          float64

	// Recent activity
	RecentWorkouts []store.Workout

	// For charts
	LoadHistory []store.DailyLoad

	// Form projection at the recent average stress level
	Projection []loadmodel.Metrics

	// Calibration status
	Profile    stress.Profile
	PointCount int
}

// GetDashboardData fetches all data needed for the dashboard
func (q *QueryService) GetDashboardData() (*DashboardData, error) {
	data := &DashboardData{}

	latest, err := q.store.LatestDailyLoad()
	if err != nil && !errors.Is(err, store.ErrNoDailyLoad) {
		return nil, err
	}
	if latest != nil {
		data.CurrentFitness = latest.CTL
		data.CurrentFatigue = latest.ATL
		data.CurrentForm = latest.TSB
		data.FormDescription = loadmodel.FormDescription(latest.TSB)
		data.ACWR = loadmodel.ACWR(latest.ATL, latest.CTL)
	}

	now := q.now()
	history, err := q.store.DailyLoadBetween(
		now.AddDate(0, 0, -LoadHistoryDays).Format("2006-01-02"),
		now.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	data.LoadHistory = history

	data.WeekWorkoutCount, data.WeekTSS = q.weekStats(history, now)

	recent, err := q.store.ListWorkouts(RecentWorkoutsLimit, 0)
	if err != nil {
		return nil, err
	}
	data.RecentWorkouts = recent

	if latest != nil {
		planned := make([]float64, ProjectionDays)
		avg := recentAverageStress(history, 7)
		for i := range planned {
			planned[i] = avg
		}
		data.Projection = loadmodel.Project(latest.CTL, latest.ATL, planned)
	}

	profile, err := q.store.Profile()
	if err != nil {
		return nil, err
	}
	data.Profile = profile

	points, err := q.store.ValidPoints()
	if err != nil {
		return nil, err
	}
	data.PointCount = len(points)

	return data, nil
}

// weekStats sums training days and stress for the current week (Monday start)
func (q *QueryService) weekStats(history []store.DailyLoad, now time.Time) (count int, total float64) {
	weekStart := getMonday(now).Format("2006-01-02")
	for _, d := range history {
		if d.Date >= weekStart && d.Stress > 0 {
			count++
			total += d.Stress
		}
	}
	return count, total
}

// recentAverageStress averages the last n days of the history, counting
// rest days as zeros.
func recentAverageStress(history []store.DailyLoad, n int) float64 {
	if n <= 0 || len(history) == 0 {
		return 0
	}
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, d := range history[start:] {
		sum += d.Stress
	}
	return sum / float64(len(history)-start)
}

// getMonday returns the Monday of the given date's week
func getMonday(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return t.AddDate(0, 0, -(weekday - 1))
}

// GetWorkoutsList returns paginated workouts, newest first
func (q *QueryService) GetWorkoutsList(limit, offset int) ([]store.Workout, error) {
	return q.store.ListWorkouts(limit, offset)
}

// GetTotalWorkoutCount returns the total number of workouts
func (q *QueryService) GetTotalWorkoutCount() (int, error) {
	return q.store.CountWorkouts()
}

// GetLoadHistory returns the daily load series for the last n days
func (q *QueryService) GetLoadHistory(days int) ([]store.DailyLoad, error) {
	now := q.now()
	return q.store.DailyLoadBetween(
		now.AddDate(0, 0, -days).Format("2006-01-02"),
		now.Format("2006-01-02"))
}

// DaysToFreshness estimates rest days needed to reach the target form
func (q *QueryService) DaysToFreshness(targetTSB float64) (int, bool, error) {
	latest, err := q.store.LatestDailyLoad()
	if errors.Is(err, store.ErrNoDailyLoad) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	days, ok := loadmodel.DaysToTargetTSB(latest.CTL, latest.ATL, targetTSB, 60)
	return days, ok, nil
}
