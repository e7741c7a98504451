package stress

// MinCalibrationSamples is the sample floor below which learned factors
// are not applied.
const MinCalibrationSamples = 1

// Profile holds the learned correction factors derived by the calibration
// engine. It is replaced wholesale on every recompute; readers work from a
// snapshot and never observe a partial update.
type Profile struct {
	GlobalFactor      float64
	GlobalConfidence  float64
	GlobalSampleCount int
	SportFactors      map[Sport]float64
	BandFactors       map[Band]float64
	LearningEnabled   bool
}

// DefaultProfile returns the identity profile used before any
// calibration data has been observed.
func DefaultProfile() Profile {
	return Profile{
		GlobalFactor:    1.0,
		LearningEnabled: true,
	}
}

// Applicable reports whether the profile has enough data behind it to be
// used for scaling. Confidence is continuous and left to callers to gate.
func (p Profile) Applicable() bool {
	return p.LearningEnabled && p.GlobalSampleCount >= MinCalibrationSamples
}

// FactorFor picks the most specific applicable factor:
// sport-specific, then intensity-band, then global.
func (p Profile) FactorFor(sport Sport, band Band) float64 {
	if f, ok := p.SportFactors[sport]; ok && f > 0 {
		return f
	}
	if f, ok := p.BandFactors[band]; ok && f > 0 {
		return f
	}
	return p.GlobalFactor
}

// ApplyScaling multiplies a result by the applicable learned factor,
// at most once. Re-applying to an already-scaled result is a no-op, so
// re-scoring a persisted workout cannot compound the correction.
func ApplyScaling(r *Result, p Profile, sport Sport, band Band) {
	if r == nil || r.Scaling.Applied {
		return
	}
	if !p.Applicable() {
		return
	}

	factor := p.FactorFor(sport, band)
	if factor <= 0 {
		return
	}

	r.Scaling = ScalingInfo{
		Applied:         true,
		Factor:          factor,
		PreScalingValue: r.Value,
	}
	r.Value *= factor
}
