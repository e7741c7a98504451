package platform

import (
	"time"

	"trainload/internal/stress"
)

// Activity represents an activity summary from the platform API
type Activity struct {
	ID                   int64     `json:"id"`
	Athlete              Athlete   `json:"athlete"`
	Name                 string    `json:"name"`
	Type                 string    `json:"type"`
	SportType            string    `json:"sport_type"`
	StartDate            time.Time `json:"start_date"`
	StartDateLocal       time.Time `json:"start_date_local"`
	Timezone             string    `json:"timezone"`
	Distance             float64   `json:"distance"`             // meters
	MovingTime           int       `json:"moving_time"`          // seconds
	ElapsedTime          int       `json:"elapsed_time"`         // seconds
	TotalElevationGain   float64   `json:"total_elevation_gain"` // meters
	AverageSpeed         float64   `json:"average_speed"`        // m/s
	MaxSpeed             float64   `json:"max_speed"`            // m/s
	AverageHeartrate     float64   `json:"average_heartrate"`    // bpm
	MaxHeartrate         float64   `json:"max_heartrate"`        // bpm
	AverageWatts         float64   `json:"average_watts"`
	WeightedAverageWatts float64   `json:"weighted_average_watts"`
	DeviceWatts          bool      `json:"device_watts"`
	PerceivedExertion    float64   `json:"perceived_exertion"` // 1..10
	HasHeartrate         bool      `json:"has_heartrate"`
}

// Athlete represents the activity owner (minimal info in activity response)
type Athlete struct {
	ID int64 `json:"id"`
}

// Sport maps the platform's activity type to a scoring sport.
func (a Activity) Sport() stress.Sport {
	sportType := a.SportType
	if sportType == "" {
		sportType = a.Type
	}
	switch sportType {
	case "Run", "TrailRun", "VirtualRun", "Treadmill":
		return stress.SportRun
	case "Ride", "VirtualRide", "MountainBikeRide", "GravelRide", "EBikeRide":
		return stress.SportBike
	case "Swim", "OpenWaterSwim":
		return stress.SportSwim
	case "WeightTraining", "Workout", "Crossfit", "HIIT":
		return stress.SportStrength
	}
	return stress.SportOther
}

// AvgPaceSecPerKm derives average pace from speed, 0 when unknown.
func (a Activity) AvgPaceSecPerKm() float64 {
	if a.AverageSpeed <= 0 {
		return 0
	}
	return 1000 / a.AverageSpeed
}

// Streams represents activity stream data from the API,
// keyed by type when key_by_type=true
type Streams struct {
	Time           *StreamData[int]     `json:"time"`
	Altitude       *StreamData[float64] `json:"altitude"`
	VelocitySmooth *StreamData[float64] `json:"velocity_smooth"`
	Heartrate      *StreamData[int]     `json:"heartrate"`
	Watts          *StreamData[float64] `json:"watts"`
	GradeSmooth    *StreamData[float64] `json:"grade_smooth"`
	Distance       *StreamData[float64] `json:"distance"`
}

// StreamData represents a single stream type
type StreamData[T any] struct {
	Data         []T    `json:"data"`
	SeriesType   string `json:"series_type"`
	OriginalSize int    `json:"original_size"`
	Resolution   string `json:"resolution"`
}

// Len returns the length of the stream, or 0 if nil
func (s *Streams) Len() int {
	if s == nil || s.Time == nil {
		return 0
	}
	return len(s.Time.Data)
}

// HasPower returns true if device power data exists
func (s *Streams) HasPower() bool {
	return s != nil && s.Watts != nil && len(s.Watts.Data) > 0
}

// PowerSamples converts the time and watts streams into scorer samples.
// Returns nil when either stream is missing.
func (s *Streams) PowerSamples() []stress.PowerSample {
	if s == nil || s.Time == nil || s.Watts == nil {
		return nil
	}
	n := len(s.Time.Data)
	if len(s.Watts.Data) < n {
		n = len(s.Watts.Data)
	}
	samples := make([]stress.PowerSample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, stress.PowerSample{
			TimeOffset: float64(s.Time.Data[i]),
			Watts:      s.Watts.Data[i],
		})
	}
	return samples
}

// Trackpoints converts the time, altitude and velocity streams into
// scorer trackpoints for grade-adjusted pace. Returns nil when any of
// the three streams is missing.
func (s *Streams) Trackpoints() []stress.Trackpoint {
	if s == nil || s.Time == nil || s.Altitude == nil || s.VelocitySmooth == nil {
		return nil
	}
	n := len(s.Time.Data)
	if len(s.Altitude.Data) < n {
		n = len(s.Altitude.Data)
	}
	if len(s.VelocitySmooth.Data) < n {
		n = len(s.VelocitySmooth.Data)
	}
	points := make([]stress.Trackpoint, 0, n)
	for i := 0; i < n; i++ {
		pace := 0.0
		if v := s.VelocitySmooth.Data[i]; v > 0 {
			pace = 1000 / v // sec per km
		}
		points = append(points, stress.Trackpoint{
			TimeOffset: float64(s.Time.Data[i]),
			Elevation:  s.Altitude.Data[i],
			Pace:       pace,
		})
	}
	return points
}
