package stress

import (
	"math"
	"testing"
)

// climbPoints builds a series at a constant pace (sec/km) and a constant
// elevation change per 10-second segment.
func climbPoints(n int, pace, elevPerSegment float64) []Trackpoint {
	points := make([]Trackpoint, n)
	for i := range points {
		points[i] = Trackpoint{
			TimeOffset: float64(i * 10),
			Elevation:  100 + float64(i)*elevPerSegment,
			Pace:       pace,
		}
	}
	return points
}

func TestGradeMultiplier(t *testing.T) {
	tests := []struct {
		name    string
		grade   float64
		checkFn func(t *testing.T, m float64)
	}{
		{
			name:  "flat ground is cost-neutral",
			grade: 0,
			checkFn: func(t *testing.T, m float64) {
				if math.Abs(m-1.0) > 0.0001 {
					t.Errorf("multiplier = %v, want 1.0", m)
				}
			},
		},
		{
			name:  "moderate climb costs more",
			grade: 0.05,
			checkFn: func(t *testing.T, m float64) {
				if m <= 1.0 || m > 1.5 {
					t.Errorf("multiplier = %v, want modestly above 1.0", m)
				}
			},
		},
		{
			name:  "moderate descent costs less",
			grade: -0.05,
			checkFn: func(t *testing.T, m float64) {
				if m >= 1.0 || m < minGradeMultiplier {
					t.Errorf("multiplier = %v, want modestly below 1.0", m)
				}
			},
		},
		{
			name:  "extreme climb is clamped",
			grade: 1.0,
			checkFn: func(t *testing.T, m float64) {
				if m != maxGradeMultiplier {
					t.Errorf("multiplier = %v, want clamped to %v", m, maxGradeMultiplier)
				}
			},
		},
		{
			name:  "extreme descent is clamped",
			grade: -1.0,
			checkFn: func(t *testing.T, m float64) {
				if m != minGradeMultiplier {
					t.Errorf("multiplier = %v, want clamped to %v", m, minGradeMultiplier)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.checkFn(t, gradeMultiplier(tt.grade))
		})
	}
}

func TestNormalizedGradedPace(t *testing.T) {
	tests := []struct {
		name    string
		points  []Trackpoint
		checkFn func(t *testing.T, ngp float64, ok bool)
	}{
		{
			name:   "single point is insufficient",
			points: climbPoints(1, 300, 0),
			checkFn: func(t *testing.T, ngp float64, ok bool) {
				if ok {
					t.Errorf("expected no result, got %v", ngp)
				}
			},
		},
		{
			name:   "flat run keeps its raw pace",
			points: climbPoints(60, 300, 0),
			checkFn: func(t *testing.T, ngp float64, ok bool) {
				if !ok {
					t.Fatal("expected a result")
				}
				if math.Abs(ngp-300) > 0.001 {
					t.Errorf("NGP = %v, want 300 on flat ground", ngp)
				}
			},
		},
		{
			name: "uphill run maps to a faster equivalent flat pace",
			// 10s at 300 s/km covers ~33m; +2m per segment is a ~6% grade
			points: climbPoints(60, 300, 2),
			checkFn: func(t *testing.T, ngp float64, ok bool) {
				if !ok {
					t.Fatal("expected a result")
				}
				if ngp >= 300 {
					t.Errorf("NGP = %v, want below the 300 raw pace uphill", ngp)
				}
			},
		},
		{
			name:   "downhill run maps to a slower equivalent flat pace",
			points: climbPoints(60, 300, -2),
			checkFn: func(t *testing.T, ngp float64, ok bool) {
				if !ok {
					t.Fatal("expected a result")
				}
				if ngp <= 300 {
					t.Errorf("NGP = %v, want above the 300 raw pace downhill", ngp)
				}
			},
		},
		{
			name: "segments with bad timestamps or pace are skipped",
			points: []Trackpoint{
				{TimeOffset: 0, Elevation: 100, Pace: 300},
				{TimeOffset: 0, Elevation: 100, Pace: 300},  // zero dt
				{TimeOffset: 10, Elevation: 100, Pace: 0}, // leaves one usable segment behind it
				{TimeOffset: 20, Elevation: 100, Pace: 280},
			},
			checkFn: func(t *testing.T, ngp float64, ok bool) {
				if !ok {
					t.Fatal("expected a result from the surviving segment")
				}
			},
		},
		{
			name: "all segments unusable",
			points: []Trackpoint{
				{TimeOffset: 0, Elevation: 100, Pace: 0},
				{TimeOffset: 10, Elevation: 100, Pace: 0},
			},
			checkFn: func(t *testing.T, ngp float64, ok bool) {
				if ok {
					t.Errorf("expected no result, got %v", ngp)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ngp, ok := NormalizedGradedPace(tt.points)
			tt.checkFn(t, ngp, ok)
		})
	}
}
