package calibration

import (
	"sort"
	"strconv"
	"strings"
)

// PMC screenshots follow a fixed three-column visual convention:
// leftmost = chronic load (CTL), center = form (TSB), rightmost =
// fatigue (ATL), with each number displayed above its label.
const labelAlignmentTolerance = 0.08

// Fragment is one recognized text fragment from the OCR collaborator,
// with a normalized bounding box (origin top-left, 0..1 coordinates).
type Fragment struct {
	Text       string
	Confidence float64
	X          float64
	Y          float64
	Width      float64
	Height     float64
}

// PMCReading is a parsed performance-management snapshot from a
// screenshot, with the combined OCR confidence of the numbers used.
type PMCReading struct {
	CTL        float64
	TSB        float64
	ATL        float64
	Confidence float64
}

// Column label synonyms seen across training platforms.
var (
	ctlLabels = []string{"ctl", "fitness", "chronic"}
	tsbLabels = []string{"tsb", "form", "balance"}
	atlLabels = []string{"atl", "fatigue", "acute"}
)

// ParsePMCScreenshot locates the CTL/TSB/ATL values in a recognized
// screenshot. For each matched label it picks the nearest number
// vertically above it within a small horizontal tolerance; if label
// alignment fails it falls back to assigning the numbers by column
// order (left to right = CTL, TSB, ATL). Returns false when neither
// approach yields all three values.
func ParsePMCScreenshot(fragments []Fragment) (PMCReading, bool) {
	numbers := numericFragments(fragments)
	if len(numbers) < 3 {
		return PMCReading{}, false
	}

	ctl, okCTL := numberAboveLabel(fragments, numbers, ctlLabels)
	tsb, okTSB := numberAboveLabel(fragments, numbers, tsbLabels)
	atl, okATL := numberAboveLabel(fragments, numbers, atlLabels)

	if okCTL && okTSB && okATL {
		return PMCReading{
			CTL:        ctl.value,
			TSB:        tsb.value,
			ATL:        atl.value,
			Confidence: (ctl.Confidence + tsb.Confidence + atl.Confidence) / 3,
		}, true
	}

	return parseByColumnOrder(numbers)
}

type numberFragment struct {
	Fragment
	value float64
}

// numericFragments extracts the fragments whose text parses as a number.
func numericFragments(fragments []Fragment) []numberFragment {
	var out []numberFragment
	for _, f := range fragments {
		text := strings.TrimSpace(f.Text)
		text = strings.TrimSuffix(text, "%")
		text = strings.ReplaceAll(text, ",", "")
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			continue
		}
		out = append(out, numberFragment{Fragment: f, value: v})
	}
	return out
}

// numberAboveLabel finds the label fragment matching any synonym, then
// the nearest number strictly above it within the horizontal tolerance.
func numberAboveLabel(fragments []Fragment, numbers []numberFragment, synonyms []string) (numberFragment, bool) {
	var label *Fragment
	for i := range fragments {
		text := strings.ToLower(strings.TrimSpace(fragments[i].Text))
		for _, syn := range synonyms {
			if strings.Contains(text, syn) {
				label = &fragments[i]
				break
			}
		}
		if label != nil {
			break
		}
	}
	if label == nil {
		return numberFragment{}, false
	}

	labelCenter := label.X + label.Width/2
	var best numberFragment
	bestGap := -1.0

	for _, n := range numbers {
		if n.Y >= label.Y {
			continue // numbers sit above their labels
		}
		center := n.X + n.Width/2
		if abs(center-labelCenter) > labelAlignmentTolerance {
			continue
		}
		gap := label.Y - n.Y
		if bestGap < 0 || gap < bestGap {
			best = n
			bestGap = gap
		}
	}

	return best, bestGap >= 0
}

// parseByColumnOrder is the fallback when labels are missing or
// misaligned: with exactly three numbers, column order decides.
func parseByColumnOrder(numbers []numberFragment) (PMCReading, bool) {
	if len(numbers) != 3 {
		return PMCReading{}, false
	}

	sorted := make([]numberFragment, len(numbers))
	copy(sorted, numbers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].X+sorted[i].Width/2 < sorted[j].X+sorted[j].Width/2
	})

	return PMCReading{
		CTL:        sorted[0].value,
		TSB:        sorted[1].value,
		ATL:        sorted[2].value,
		Confidence: (sorted[0].Confidence + sorted[1].Confidence + sorted[2].Confidence) / 3,
	}, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
