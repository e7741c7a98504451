package stress

// Sport is the activity category of a workout
type Sport string

const (
	SportRun      Sport = "run"
	SportBike     Sport = "bike"
	SportSwim     Sport = "swim"
	SportStrength Sport = "strength"
	SportOther    Sport = "other"
)

// Method identifies which scoring strategy produced a result
type Method string

const (
	MethodPower        Method = "power"
	MethodRunningPower Method = "running_power"
	MethodPace         Method = "pace"
	MethodHeartRate    Method = "heart_rate"
	MethodEstimated    Method = "estimated"
)

// Band groups workouts by intensity for stratified calibration
type Band string

const (
	BandLow      Band = "low"      // IF < 0.75
	BandModerate Band = "moderate" // 0.75 <= IF < 0.95
	BandHigh     Band = "high"     // IF >= 0.95
)

// BandForIF maps an intensity factor to its calibration band
func BandForIF(intensityFactor float64) Band {
	switch {
	case intensityFactor >= 0.95:
		return BandHigh
	case intensityFactor >= 0.75:
		return BandModerate
	default:
		return BandLow
	}
}

// Thresholds holds the athlete's threshold values used to normalize
// workout intensity. A zero value means the threshold is unknown and
// the corresponding strategy is skipped.
type Thresholds struct {
	FTP               float64 // watts, cycling functional threshold power
	RunningFTP        float64 // watts, running functional threshold power
	ThresholdPaceRun  float64 // seconds per km
	ThresholdPaceSwim float64 // seconds per km
	ThresholdHR       float64 // bpm
}

// Workout is the signal set available for a single workout.
// Optional signals are nil when the recording device didn't capture them.
type Workout struct {
	Sport              Sport
	DurationSeconds    float64
	DistanceMeters     *float64
	AvgHeartrate       *float64
	AvgPower           *float64      // watts
	NormalizedPower    *float64      // watts, precomputed by the device
	PowerSamples       []PowerSample // raw series, preferred over NormalizedPower
	Trackpoints        []Trackpoint  // for grade-adjusted pace
	PerceivedIntensity *float64      // 0..1, for the estimate fallback
}

// ScalingInfo records whether a learned correction factor has been
// applied to a result, so re-scoring can never apply it twice.
type ScalingInfo struct {
	Applied         bool
	Factor          float64
	PreScalingValue float64
}

// Result is a computed training stress score.
// Value is normalized so that one hour at threshold intensity = 100.
type Result struct {
	Value           float64
	Method          Method
	IntensityFactor float64
	DerivedMetric   *float64 // NP in watts, or NGP in seconds per km
	Scaling         ScalingInfo
}

// Score computes the training stress for a workout, selecting the first
// applicable strategy in priority order: power > running power > pace >
// heart rate > perceived-intensity estimate. A strategy applies when its
// signal is present and its threshold is known. Invalid inputs produce a
// zero-value result tagged with the attempted method, never an error, so
// callers always have something to display.
func Score(w Workout, th Thresholds) Result {
	switch {
	case hasPower(w) && w.Sport == SportRun && th.RunningFTP > 0:
		return scorePower(w, th.RunningFTP, MethodRunningPower)
	case hasPower(w) && w.Sport != SportRun && th.FTP > 0:
		return scorePower(w, th.FTP, MethodPower)
	case hasPace(w) && thresholdPaceFor(w.Sport, th) > 0:
		return scorePace(w, thresholdPaceFor(w.Sport, th))
	case w.AvgHeartrate != nil && *w.AvgHeartrate > 0 && th.ThresholdHR > 0:
		return scoreHeartRate(w, th.ThresholdHR)
	default:
		return scoreEstimate(w)
	}
}

func hasPower(w Workout) bool {
	if len(w.PowerSamples) > 0 {
		return true
	}
	if w.NormalizedPower != nil && *w.NormalizedPower > 0 {
		return true
	}
	return w.AvgPower != nil && *w.AvgPower > 0
}

func hasPace(w Workout) bool {
	if w.Sport != SportRun && w.Sport != SportSwim {
		return false
	}
	if len(w.Trackpoints) >= 2 {
		return true
	}
	return w.DistanceMeters != nil && *w.DistanceMeters > 0
}

func thresholdPaceFor(sport Sport, th Thresholds) float64 {
	switch sport {
	case SportRun:
		return th.ThresholdPaceRun
	case SportSwim:
		return th.ThresholdPaceSwim
	}
	return 0
}

// scorePower computes TSS from power: IF = NP/FTP, TSS = hours * IF^2 * 100.
// Normalized power is taken from raw samples when available, falling back
// to the device-reported NP, then to average power.
func scorePower(w Workout, ftp float64, method Method) Result {
	if w.DurationSeconds <= 0 || ftp <= 0 {
		return Result{Method: method}
	}

	np := 0.0
	if v, ok := NormalizedPower(w.PowerSamples); ok {
		np = v
	} else if w.NormalizedPower != nil && *w.NormalizedPower > 0 {
		np = *w.NormalizedPower
	} else if w.AvgPower != nil {
		np = *w.AvgPower
	}
	if np <= 0 {
		return Result{Method: method}
	}

	intensity := np / ftp
	return Result{
		Value:           tss(w.DurationSeconds, intensity),
		Method:          method,
		IntensityFactor: intensity,
		DerivedMetric:   &np,
	}
}

// scorePace computes TSS from pace. Pace is seconds per km, so lower is
// faster and the intensity ratio is inverted: IF = threshold / actual.
// Grade-adjusted pace is used when trackpoints are available.
func scorePace(w Workout, thresholdPace float64) Result {
	if w.DurationSeconds <= 0 || thresholdPace <= 0 {
		return Result{Method: MethodPace}
	}

	pace := 0.0
	var derived *float64
	if ngp, ok := NormalizedGradedPace(w.Trackpoints); ok {
		pace = ngp
		derived = &ngp
	} else if w.DistanceMeters != nil && *w.DistanceMeters > 0 {
		pace = w.DurationSeconds / (*w.DistanceMeters / 1000)
	}
	if pace <= 0 {
		return Result{Method: MethodPace}
	}

	intensity := thresholdPace / pace
	return Result{
		Value:           tss(w.DurationSeconds, intensity),
		Method:          MethodPace,
		IntensityFactor: intensity,
		DerivedMetric:   derived,
	}
}

// scoreHeartRate computes TSS from average heart rate: IF = avgHR / thresholdHR.
func scoreHeartRate(w Workout, thresholdHR float64) Result {
	if w.DurationSeconds <= 0 || thresholdHR <= 0 {
		return Result{Method: MethodHeartRate}
	}
	if w.AvgHeartrate == nil || *w.AvgHeartrate <= 0 {
		return Result{Method: MethodHeartRate}
	}

	intensity := *w.AvgHeartrate / thresholdHR
	return Result{
		Value:           tss(w.DurationSeconds, intensity),
		Method:          MethodHeartRate,
		IntensityFactor: intensity,
	}
}

// scoreEstimate is the crude no-signal fallback: IF = 0.5 + perceived*0.6
// with perceived in [0,1]. An unrated workout is assumed moderate (0.5).
func scoreEstimate(w Workout) Result {
	if w.DurationSeconds <= 0 {
		return Result{Method: MethodEstimated}
	}

	perceived := 0.5
	if w.PerceivedIntensity != nil {
		perceived = *w.PerceivedIntensity
		if perceived < 0 {
			perceived = 0
		}
		if perceived > 1 {
			perceived = 1
		}
	}

	intensity := 0.5 + perceived*0.6
	return Result{
		Value:           tss(w.DurationSeconds, intensity),
		Method:          MethodEstimated,
		IntensityFactor: intensity,
	}
}

// tss normalizes stress so one hour at threshold (IF = 1.0) scores 100.
func tss(durationSeconds, intensityFactor float64) float64 {
	hours := durationSeconds / 3600
	return hours * intensityFactor * intensityFactor * 100
}
