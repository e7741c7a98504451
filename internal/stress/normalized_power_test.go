package stress

import (
	"math"
	"testing"
)

func steadySamples(n int, watts float64) []PowerSample {
	samples := make([]PowerSample, n)
	for i := range samples {
		samples[i] = PowerSample{TimeOffset: float64(i), Watts: watts}
	}
	return samples
}

func TestNormalizedPower(t *testing.T) {
	tests := []struct {
		name    string
		samples []PowerSample
		checkFn func(t *testing.T, np float64, ok bool)
	}{
		{
			name:    "no samples",
			samples: nil,
			checkFn: func(t *testing.T, np float64, ok bool) {
				if ok {
					t.Errorf("expected no result, got %v", np)
				}
			},
		},
		{
			name:    "too few samples for a full window",
			samples: steadySamples(30, 250),
			checkFn: func(t *testing.T, np float64, ok bool) {
				if ok {
					t.Errorf("expected no result below window+1 points, got %v", np)
				}
			},
		},
		{
			name:    "minimum viable series",
			samples: steadySamples(31, 250),
			checkFn: func(t *testing.T, np float64, ok bool) {
				if !ok {
					t.Fatal("expected a result at window+1 points")
				}
				if math.Abs(np-250) > 0.001 {
					t.Errorf("NP = %v, want 250", np)
				}
			},
		},
		{
			name:    "constant power equals average power",
			samples: steadySamples(600, 200),
			checkFn: func(t *testing.T, np float64, ok bool) {
				if !ok {
					t.Fatal("expected a result")
				}
				if math.Abs(np-200) > 0.001 {
					t.Errorf("NP = %v, want exactly the 200W average", np)
				}
			},
		},
		{
			name: "variable power exceeds average power",
			samples: func() []PowerSample {
				// Alternate 60s blocks of 100W and 400W, average 250W
				samples := make([]PowerSample, 600)
				for i := range samples {
					watts := 100.0
					if (i/60)%2 == 1 {
						watts = 400.0
					}
					samples[i] = PowerSample{TimeOffset: float64(i), Watts: watts}
				}
				return samples
			}(),
			checkFn: func(t *testing.T, np float64, ok bool) {
				if !ok {
					t.Fatal("expected a result")
				}
				if np <= 250 {
					t.Errorf("NP = %v, want above the 250W arithmetic mean", np)
				}
			},
		},
		{
			name: "irregular spacing is resampled by interpolation",
			samples: func() []PowerSample {
				// One sample every 2 seconds, linear ramp 100->200W
				samples := make([]PowerSample, 50)
				for i := range samples {
					samples[i] = PowerSample{
						TimeOffset: float64(i * 2),
						Watts:      100 + float64(i*2),
					}
				}
				return samples
			}(),
			checkFn: func(t *testing.T, np float64, ok bool) {
				if !ok {
					t.Fatal("expected a result from 99 resampled points")
				}
				// A near-linear ramp has NP close to, and at least, its mean
				if np < 100 || np > 200 {
					t.Errorf("NP = %v, want within the 100-200W ramp range", np)
				}
			},
		},
		{
			name: "unsorted samples",
			samples: func() []PowerSample {
				samples := steadySamples(120, 300)
				samples[0], samples[119] = samples[119], samples[0]
				return samples
			}(),
			checkFn: func(t *testing.T, np float64, ok bool) {
				if !ok {
					t.Fatal("expected a result")
				}
				if math.Abs(np-300) > 0.001 {
					t.Errorf("NP = %v, want 300", np)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			np, ok := NormalizedPower(tt.samples)
			tt.checkFn(t, np, ok)
		})
	}
}
