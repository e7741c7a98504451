package calibration

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"trainload/internal/loadmodel"
	"trainload/internal/stress"
)

// State tracks a calibration event through its lifecycle. Every event
// walks the same path; a skipped event stops at the stage it reached.
type State string

const (
	StateIdle              State = "idle"
	StateProfileLoaded     State = "profile_loaded"
	StateDataPointsCreated State = "data_points_created"
	StateFactorsRecomputed State = "factors_recomputed"
	StatePersisted         State = "persisted"
)

// crossValidationTolerance is the maximum relative disagreement between
// CTL-implied and ATL-implied TSS for the two derivations to reconcile.
const crossValidationTolerance = 0.25

// GroundTruth is one externally observed PMC reading: either a directly
// observed TSS (highest trust), or CTL/ATL values from which a daily TSS
// can be derived.
type GroundTruth struct {
	EffectiveDate time.Time
	TSS           *float64
	CTL           *float64
	ATL           *float64
	Confidence    float64 // 0..1 source confidence
	Sport         stress.Sport
	Band          stress.Band
}

// Context supplies the engine's own view of the observed day: its
// calculated stress total and the previous day's CTL/ATL baseline
// needed for delta derivations.
type Context struct {
	CalculatedTSS float64
	PrevCTL       float64
	PrevATL       float64
	PrevKnown     bool
}

// Store is the persistence boundary for calibration state.
type Store interface {
	Profile() (stress.Profile, error)
	SaveProfile(stress.Profile) error
	ValidPoints() ([]Point, error)
	AddPoint(Point) error
}

// Result describes how far a calibration event progressed.
type Result struct {
	State      State
	Point      *Point
	Profile    stress.Profile
	SkipReason string
}

// Engine is the confidence-weighted online-learning loop. At most one
// calibration event is processed at a time: recompute reads the entire
// valid-point set and replaces the profile atomically, so interleaved
// ingestion would corrupt the aggregate.
type Engine struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

// NewEngine creates an engine backed by the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Ingest processes one ground-truth observation: derive a calibration
// point, persist it, and recompute all scaling factors from the full
// valid dataset. Skips (learning disabled, underivable TSS, undefined
// ratio) are expected steady-state outcomes, reported in the result and
// logged, never returned as errors.
func (e *Engine) Ingest(truth GroundTruth, ctx Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	profile, err := e.store.Profile()
	if err != nil {
		return Result{State: StateIdle}, err
	}

	if !profile.LearningEnabled {
		return Result{State: StateIdle, Profile: profile, SkipReason: "learning disabled"}, nil
	}

	result := Result{State: StateProfileLoaded, Profile: profile}

	point, skip := derivePoint(truth, ctx, e.now())
	if skip != "" {
		log.Printf("calibration: skipping observation for %s: %s",
			truth.EffectiveDate.Format("2006-01-02"), skip)
		result.SkipReason = skip
		return result, nil
	}

	if err := e.store.AddPoint(point); err != nil {
		return result, err
	}
	result.State = StateDataPointsCreated
	result.Point = &point

	points, err := e.store.ValidPoints()
	if err != nil {
		return result, err
	}

	updated := Recompute(profile, points, e.now())
	result.State = StateFactorsRecomputed
	result.Profile = updated

	if err := e.store.SaveProfile(updated); err != nil {
		return result, err
	}
	result.State = StatePersisted

	return result, nil
}

// derivePoint turns a ground-truth observation into a calibration point,
// in trust order: direct TSS, then a TSS implied by the CTL delta,
// cross-validated against the ATL delta when both are present.
// Returns a non-empty skip reason when no valid point can be created.
func derivePoint(truth GroundTruth, ctx Context, now time.Time) (Point, string) {
	if ctx.CalculatedTSS <= 0 {
		return Point{}, "calculated value is zero, ratio undefined"
	}

	extracted := 0.0
	confidence := clamp01(truth.Confidence)
	method := MethodDirect

	switch {
	case truth.TSS != nil:
		extracted = *truth.TSS

	case truth.CTL != nil && ctx.PrevKnown:
		// Invert the recurrence: CTL' = prev + (tss - prev)/tau
		fromCTL := ctx.PrevCTL + loadmodel.DefaultCTLTau*(*truth.CTL-ctx.PrevCTL)
		method = MethodCTLDerived
		extracted = fromCTL

		if truth.ATL != nil {
			fromATL := ctx.PrevATL + loadmodel.DefaultATLTau*(*truth.ATL-ctx.PrevATL)
			if fromCTL > 0 && fromATL > 0 && percentDisagreement(fromCTL, fromATL) <= crossValidationTolerance {
				// The two independent derivations agree; average them
				// and trust the point a little more.
				extracted = (fromCTL + fromATL) / 2
				confidence = clamp01(confidence * 1.1)
				method = MethodCrossValidated
			} else {
				// Disagreement means at least one reading is suspect.
				confidence *= 0.8
			}
		}

	default:
		return Point{}, "no TSS and no CTL baseline to derive one from"
	}

	if extracted <= 0 {
		return Point{}, "derived TSS is not positive"
	}
	if confidence <= 0 {
		return Point{}, "source confidence is zero"
	}

	return Point{
		ID:               uuid.NewString(),
		EffectiveDate:    truth.EffectiveDate,
		Extracted:        extracted,
		Calculated:       ctx.CalculatedTSS,
		SourceConfidence: confidence,
		Sport:            truth.Sport,
		Band:             truth.Band,
		Method:           method,
		Valid:            true,
		CreatedAt:        now,
	}, ""
}

// Recompute derives a complete scaling profile from the full valid-point
// set. It is a deterministic, stateless pass: the prior profile
// contributes only factors for subsets that currently have no points
// (absence of data never resets a learned factor) and the learning
// enabled flag.
func Recompute(prior stress.Profile, points []Point, now time.Time) stress.Profile {
	updated := stress.Profile{
		GlobalFactor:    prior.GlobalFactor,
		LearningEnabled: prior.LearningEnabled,
		SportFactors:    map[stress.Sport]float64{},
		BandFactors:     map[stress.Band]float64{},
	}
	for sport, f := range prior.SportFactors {
		updated.SportFactors[sport] = f
	}
	for band, f := range prior.BandFactors {
		updated.BandFactors[band] = f
	}

	usable := usablePoints(points)
	if factor, confidence, n, ok := weightedFactor(usable, now); ok {
		updated.GlobalFactor = factor
		updated.GlobalConfidence = confidence
		updated.GlobalSampleCount = n
	}

	for _, sport := range []stress.Sport{stress.SportRun, stress.SportBike, stress.SportSwim, stress.SportStrength, stress.SportOther} {
		subset := filterPoints(usable, func(p Point) bool { return p.Sport == sport })
		if factor, _, _, ok := weightedFactor(subset, now); ok {
			updated.SportFactors[sport] = factor
		}
	}

	for _, band := range []stress.Band{stress.BandLow, stress.BandModerate, stress.BandHigh} {
		subset := filterPoints(usable, func(p Point) bool { return p.Band == band })
		if factor, _, _, ok := weightedFactor(subset, now); ok {
			updated.BandFactors[band] = factor
		}
	}

	return updated
}

// weightedFactor computes the confidence-weighted mean ratio over a point
// subset, plus the composite confidence:
// 0.4 * sample-count saturation + 0.4 * ratio agreement + 0.2 * recency.
func weightedFactor(points []Point, now time.Time) (factor, confidence float64, n int, ok bool) {
	var ratios []float64
	var weightedSum, weightSum, timeWeightSum float64

	for _, p := range points {
		ratio, defined := p.Ratio()
		if !defined {
			continue
		}
		weight := p.LearningWeight(now)
		if weight <= 0 {
			continue
		}
		ratios = append(ratios, ratio)
		weightedSum += ratio * weight
		weightSum += weight
		timeWeightSum += p.TimeWeight(now)
	}

	n = len(ratios)
	if n == 0 || weightSum <= 0 {
		return 0, 0, 0, false
	}

	factor = weightedSum / weightSum

	sampleTerm := math.Min(1, float64(n)/10)
	agreementTerm := math.Max(0, 1-math.Sqrt(variance(ratios))/0.3)
	recencyTerm := timeWeightSum / float64(n)
	confidence = 0.4*sampleTerm + 0.4*agreementTerm + 0.2*recencyTerm

	return factor, confidence, n, true
}

func usablePoints(points []Point) []Point {
	return filterPoints(points, func(p Point) bool {
		if !p.Valid {
			return false
		}
		_, defined := p.Ratio()
		return defined
	})
}

func filterPoints(points []Point, keep func(Point) bool) []Point {
	var out []Point
	for _, p := range points {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

func percentDisagreement(a, b float64) float64 {
	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return 0
	}
	return math.Abs(a-b) / larger
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
