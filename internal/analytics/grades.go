package analytics

// GradeShare is one slice of the grade-mix chart
type GradeShare struct {
	Grade   string  `json:"grade"`
	KG      float64 `json:"kg"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

// fallbackShares keeps the chart from rendering empty when nothing is graded
var fallbackShares = [3]float64{33, 34, 33}

// GradeDistribution splits fine+premium+commercial kilograms into percentage
// shares in GradeOrder. A zero total falls back to 33/34/33.
func GradeDistribution(fine, premium, commercial float64) []GradeShare {
	kgs := [3]float64{fine, premium, commercial}
	total := fine + premium + commercial

	out := make([]GradeShare, 0, len(GradeOrder))
	for i, grade := range GradeOrder {
		pct := fallbackShares[i]
		if total > 0 {
			pct = kgs[i] / total * 100
		}
		out = append(out, GradeShare{
			Grade:   grade,
			KG:      kgs[i],
			Percent: pct,
			Color:   GradeColor(grade),
		})
	}
	return out
}
