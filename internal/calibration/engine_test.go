package calibration

import (
	"math"
	"testing"
	"time"

	"trainload/internal/stress"
)

func floatPtr(f float64) *float64 {
	return &f
}

// memStore is an in-memory calibration store for tests
type memStore struct {
	profile stress.Profile
	points  []Point
}

func newMemStore() *memStore {
	return &memStore{profile: stress.DefaultProfile()}
}

func (s *memStore) Profile() (stress.Profile, error) { return s.profile, nil }
func (s *memStore) SaveProfile(p stress.Profile) error {
	s.profile = p
	return nil
}
func (s *memStore) ValidPoints() ([]Point, error) {
	var out []Point
	for _, p := range s.points {
		if p.Valid {
			out = append(out, p)
		}
	}
	return out, nil
}
func (s *memStore) AddPoint(p Point) error {
	s.points = append(s.points, p)
	return nil
}

func TestEngineIngest(t *testing.T) {
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		setup      func(s *memStore)
		truth      GroundTruth
		ctx        Context
		wantState  State
		wantMethod Method
		wantSkip   bool
		checkFn    func(t *testing.T, s *memStore, r Result)
	}{
		{
			name: "learning disabled short-circuits to idle",
			setup: func(s *memStore) {
				s.profile.LearningEnabled = false
			},
			truth:     GroundTruth{EffectiveDate: date, TSS: floatPtr(95), Confidence: 0.9},
			ctx:       Context{CalculatedTSS: 80},
			wantState: StateIdle,
			wantSkip:  true,
			checkFn: func(t *testing.T, s *memStore, r Result) {
				if len(s.points) != 0 {
					t.Errorf("expected no points created, got %d", len(s.points))
				}
			},
		},
		{
			name:       "direct ground-truth TSS is the highest trust path",
			truth:      GroundTruth{EffectiveDate: date, TSS: floatPtr(96), Confidence: 0.9, Sport: stress.SportRun},
			ctx:        Context{CalculatedTSS: 80},
			wantState:  StatePersisted,
			wantMethod: MethodDirect,
			checkFn: func(t *testing.T, s *memStore, r Result) {
				ratio, ok := r.Point.Ratio()
				if !ok {
					t.Fatal("expected a defined ratio")
				}
				if math.Abs(ratio-1.2) > 0.0001 {
					t.Errorf("ratio = %v, want 1.2", ratio)
				}
				if math.Abs(s.profile.GlobalFactor-1.2) > 0.0001 {
					t.Errorf("GlobalFactor = %v, want 1.2", s.profile.GlobalFactor)
				}
				if s.profile.GlobalSampleCount != 1 {
					t.Errorf("GlobalSampleCount = %d, want 1", s.profile.GlobalSampleCount)
				}
			},
		},
		{
			name:  "zero calculated value skips without error",
			truth: GroundTruth{EffectiveDate: date, TSS: floatPtr(95), Confidence: 0.9},
			ctx:   Context{CalculatedTSS: 0},
			// Ratio is undefined; the point is simply not created.
			wantState: StateProfileLoaded,
			wantSkip:  true,
		},
		{
			name:  "TSS implied from the CTL delta",
			truth: GroundTruth{EffectiveDate: date, CTL: floatPtr(51), Confidence: 0.85},
			ctx:   Context{CalculatedTSS: 80, PrevCTL: 50, PrevATL: 60, PrevKnown: true},
			// tss = prev + tau*(ctl' - prev) = 50 + 42*1 = 92
			wantState:  StatePersisted,
			wantMethod: MethodCTLDerived,
			checkFn: func(t *testing.T, s *memStore, r Result) {
				if math.Abs(r.Point.Extracted-92) > 0.0001 {
					t.Errorf("Extracted = %v, want 92", r.Point.Extracted)
				}
			},
		},
		{
			name: "agreeing CTL and ATL deltas cross-validate",
			truth: GroundTruth{
				EffectiveDate: date,
				CTL:           floatPtr(51),   // implies 92
				ATL:           floatPtr(64.5), // implies 60 + 7*4.5 = 91.5
				Confidence:    0.8,
			},
			ctx:        Context{CalculatedTSS: 80, PrevCTL: 50, PrevATL: 60, PrevKnown: true},
			wantState:  StatePersisted,
			wantMethod: MethodCrossValidated,
			checkFn: func(t *testing.T, s *memStore, r Result) {
				if math.Abs(r.Point.Extracted-91.75) > 0.0001 {
					t.Errorf("Extracted = %v, want reconciled 91.75", r.Point.Extracted)
				}
				// Agreement earns a confidence boost over the raw 0.8
				if r.Point.SourceConfidence <= 0.8 {
					t.Errorf("SourceConfidence = %v, want above 0.8", r.Point.SourceConfidence)
				}
			},
		},
		{
			name: "disagreeing deltas fall back to CTL with a confidence penalty",
			truth: GroundTruth{
				EffectiveDate: date,
				CTL:           floatPtr(51), // implies 92
				ATL:           floatPtr(70), // implies 130, far from 92
				Confidence:    0.8,
			},
			ctx:        Context{CalculatedTSS: 80, PrevCTL: 50, PrevATL: 60, PrevKnown: true},
			wantState:  StatePersisted,
			wantMethod: MethodCTLDerived,
			checkFn: func(t *testing.T, s *memStore, r Result) {
				if math.Abs(r.Point.Extracted-92) > 0.0001 {
					t.Errorf("Extracted = %v, want the CTL-implied 92", r.Point.Extracted)
				}
				if math.Abs(r.Point.SourceConfidence-0.64) > 0.0001 {
					t.Errorf("SourceConfidence = %v, want penalized 0.64", r.Point.SourceConfidence)
				}
			},
		},
		{
			name:      "CTL without a previous-day baseline cannot derive",
			truth:     GroundTruth{EffectiveDate: date, CTL: floatPtr(51), Confidence: 0.85},
			ctx:       Context{CalculatedTSS: 80},
			wantState: StateProfileLoaded,
			wantSkip:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.setup != nil {
				tt.setup(store)
			}
			engine := NewEngine(store)

			result, err := engine.Ingest(tt.truth, tt.ctx)
			if err != nil {
				t.Fatalf("Ingest() unexpected error: %v", err)
			}
			if result.State != tt.wantState {
				t.Errorf("State = %q, want %q", result.State, tt.wantState)
			}
			if tt.wantSkip && result.SkipReason == "" {
				t.Error("expected a skip reason")
			}
			if !tt.wantSkip && result.SkipReason != "" {
				t.Errorf("unexpected skip reason %q", result.SkipReason)
			}
			if tt.wantMethod != "" {
				if result.Point == nil {
					t.Fatal("expected a created point")
				}
				if result.Point.Method != tt.wantMethod {
					t.Errorf("Method = %q, want %q", result.Point.Method, tt.wantMethod)
				}
			}
			if tt.checkFn != nil {
				tt.checkFn(t, store, result)
			}
		})
	}
}

func TestRecomputeConvergence(t *testing.T) {
	now := time.Now()

	// Ten identical, fresh, high-confidence points with ratio 1.2
	var points []Point
	for i := 0; i < 10; i++ {
		points = append(points, Point{
			EffectiveDate:    now.AddDate(0, 0, -i),
			Extracted:        120,
			Calculated:       100,
			SourceConfidence: 0.95,
			Valid:            true,
		})
	}

	profile := Recompute(stress.DefaultProfile(), points, now)

	if math.Abs(profile.GlobalFactor-1.2) > 0.001 {
		t.Errorf("GlobalFactor = %v, want 1.2", profile.GlobalFactor)
	}
	if profile.GlobalConfidence <= 0.5 {
		t.Errorf("GlobalConfidence = %v, want above 0.5", profile.GlobalConfidence)
	}
	if profile.GlobalSampleCount != 10 {
		t.Errorf("GlobalSampleCount = %d, want 10", profile.GlobalSampleCount)
	}
}

func TestRecompute(t *testing.T) {
	now := time.Now()
	freshPoint := func(ratio float64, sport stress.Sport, band stress.Band) Point {
		return Point{
			EffectiveDate:    now,
			Extracted:        ratio * 100,
			Calculated:       100,
			SourceConfidence: 0.9,
			Sport:            sport,
			Band:             band,
			Valid:            true,
		}
	}

	tests := []struct {
		name    string
		prior   stress.Profile
		points  []Point
		checkFn func(t *testing.T, p stress.Profile)
	}{
		{
			name:  "no points keeps the prior global factor",
			prior: stress.Profile{GlobalFactor: 1.15, LearningEnabled: true},
			checkFn: func(t *testing.T, p stress.Profile) {
				if p.GlobalFactor != 1.15 {
					t.Errorf("GlobalFactor = %v, want prior 1.15", p.GlobalFactor)
				}
				if p.GlobalSampleCount != 0 {
					t.Errorf("GlobalSampleCount = %d, want 0", p.GlobalSampleCount)
				}
			},
		},
		{
			name: "empty sport subset leaves the prior sport factor untouched",
			prior: stress.Profile{
				GlobalFactor:    1.0,
				SportFactors:    map[stress.Sport]float64{stress.SportSwim: 1.3},
				LearningEnabled: true,
			},
			points: []Point{freshPoint(1.1, stress.SportRun, stress.BandModerate)},
			checkFn: func(t *testing.T, p stress.Profile) {
				if p.SportFactors[stress.SportSwim] != 1.3 {
					t.Errorf("swim factor = %v, want prior 1.3 preserved", p.SportFactors[stress.SportSwim])
				}
				if math.Abs(p.SportFactors[stress.SportRun]-1.1) > 0.0001 {
					t.Errorf("run factor = %v, want 1.1", p.SportFactors[stress.SportRun])
				}
			},
		},
		{
			name:  "invalid points are excluded",
			prior: stress.DefaultProfile(),
			points: []Point{
				freshPoint(1.1, stress.SportRun, stress.BandModerate),
				{
					EffectiveDate:    now,
					Extracted:        500,
					Calculated:       100,
					SourceConfidence: 0.9,
					Valid:            false,
				},
			},
			checkFn: func(t *testing.T, p stress.Profile) {
				if math.Abs(p.GlobalFactor-1.1) > 0.0001 {
					t.Errorf("GlobalFactor = %v, want 1.1 from the single valid point", p.GlobalFactor)
				}
				if p.GlobalSampleCount != 1 {
					t.Errorf("GlobalSampleCount = %d, want 1", p.GlobalSampleCount)
				}
			},
		},
		{
			name:  "per-band factors computed from band subsets",
			prior: stress.DefaultProfile(),
			points: []Point{
				freshPoint(1.3, stress.SportBike, stress.BandHigh),
				freshPoint(1.3, stress.SportBike, stress.BandHigh),
				freshPoint(0.9, stress.SportBike, stress.BandLow),
			},
			checkFn: func(t *testing.T, p stress.Profile) {
				if math.Abs(p.BandFactors[stress.BandHigh]-1.3) > 0.0001 {
					t.Errorf("high band factor = %v, want 1.3", p.BandFactors[stress.BandHigh])
				}
				if math.Abs(p.BandFactors[stress.BandLow]-0.9) > 0.0001 {
					t.Errorf("low band factor = %v, want 0.9", p.BandFactors[stress.BandLow])
				}
			},
		},
		{
			name:  "scattered ratios earn less confidence than agreeing ones",
			prior: stress.DefaultProfile(),
			points: []Point{
				freshPoint(0.6, stress.SportRun, stress.BandLow),
				freshPoint(1.0, stress.SportRun, stress.BandLow),
				freshPoint(1.8, stress.SportRun, stress.BandLow),
				freshPoint(0.8, stress.SportRun, stress.BandLow),
				freshPoint(1.4, stress.SportRun, stress.BandLow),
			},
			checkFn: func(t *testing.T, p stress.Profile) {
				agreeing := Recompute(stress.DefaultProfile(), []Point{
					freshPoint(1.12, stress.SportRun, stress.BandLow),
					freshPoint(1.12, stress.SportRun, stress.BandLow),
					freshPoint(1.12, stress.SportRun, stress.BandLow),
					freshPoint(1.12, stress.SportRun, stress.BandLow),
					freshPoint(1.12, stress.SportRun, stress.BandLow),
				}, now)
				if p.GlobalConfidence >= agreeing.GlobalConfidence {
					t.Errorf("scattered confidence %v should be below agreeing confidence %v",
						p.GlobalConfidence, agreeing.GlobalConfidence)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.checkFn(t, Recompute(tt.prior, tt.points, now))
		})
	}
}

func TestPointWeights(t *testing.T) {
	now := time.Now()

	fresh := Point{EffectiveDate: now, SourceConfidence: 1.0}
	monthOld := Point{EffectiveDate: now.AddDate(0, 0, -30), SourceConfidence: 1.0}
	ancient := Point{EffectiveDate: now.AddDate(0, -6, 0), SourceConfidence: 1.0}

	if w := fresh.TimeWeight(now); math.Abs(w-1.0) > 0.001 {
		t.Errorf("fresh TimeWeight = %v, want ~1.0", w)
	}
	if w := monthOld.TimeWeight(now); math.Abs(w-0.5) > 0.001 {
		t.Errorf("30-day TimeWeight = %v, want ~0.5 at the half-life", w)
	}
	if ancient.TimeWeight(now) >= monthOld.TimeWeight(now) {
		t.Error("older points must weigh less")
	}

	lowConfidence := Point{EffectiveDate: now, SourceConfidence: 0.4}
	if lw := lowConfidence.LearningWeight(now); math.Abs(lw-0.4) > 0.001 {
		t.Errorf("LearningWeight = %v, want timeWeight * confidence = 0.4", lw)
	}
}
