package stress

// Grade multiplier clamp bounds. The cost polynomial is a fit to
// treadmill data and extrapolates badly beyond roughly +/-45% grade.
const (
	minGradeMultiplier = 0.7
	maxGradeMultiplier = 2.0
)

// flatCost is the metabolic cost of level running in J/kg/m, the
// denominator that normalizes the cost curve to 1.0 on flat ground.
const flatCost = 3.6

// Trackpoint is one sample of a pace/elevation series.
type Trackpoint struct {
	TimeOffset float64 // seconds from start
	Elevation  float64 // meters
	Pace       float64 // seconds per km at this point
}

// gradeMultiplier maps a local grade (rise over run, e.g. 0.05 for 5%)
// to a metabolic cost multiplier relative to flat ground, using a
// Minetti-style quintic fit of energy cost vs grade.
func gradeMultiplier(grade float64) float64 {
	g2 := grade * grade
	g3 := g2 * grade
	g4 := g3 * grade
	g5 := g4 * grade

	cost := 155.4*g5 - 30.4*g4 - 43.3*g3 + 46.3*g2 + 19.5*grade + flatCost
	m := cost / flatCost

	if m < minGradeMultiplier {
		return minGradeMultiplier
	}
	if m > maxGradeMultiplier {
		return maxGradeMultiplier
	}
	return m
}

// NormalizedGradedPace computes the flat-equivalent pace of a hilly run.
// For each adjacent pair of trackpoints the local grade is derived from
// the elevation change over the horizontal distance (speed x elapsed
// time), the pace is divided by the grade cost multiplier (uphill
// segments map to a faster equivalent flat pace), and the adjusted paces
// are averaged. Returns false when no usable segment exists.
func NormalizedGradedPace(points []Trackpoint) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}

	var sum float64
	var count int

	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]

		dt := b.TimeOffset - a.TimeOffset
		if dt <= 0 || a.Pace <= 0 {
			continue
		}

		speed := 1000 / a.Pace // m/s
		dist := speed * dt
		if dist <= 0 {
			continue
		}

		grade := (b.Elevation - a.Elevation) / dist
		sum += a.Pace / gradeMultiplier(grade)
		count++
	}

	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
