// Package analytics turns farm, cluster, stage and harvest records into
// portfolio statistics, risk classifications and agronomic recommendations.
// Everything here is a pure function over in-memory records.
package analytics

import (
	"fmt"
	"strings"
)

// Range is an inclusive ideal interval for one agronomic factor
type Range struct {
	Min  float64
	Max  float64
	Unit string
}

// Contains reports whether v lies inside the range, bounds included
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// String renders the range the way recommendations quote it, e.g. "13–26°C"
func (r Range) String() string {
	return fmt.Sprintf("%s–%s%s", trimFloat(r.Min), trimFloat(r.Max), r.Unit)
}

// IdealRanges holds the agronomic targets for Robusta coffee
type IdealRanges struct {
	Elevation       Range
	Temperature     Range
	Humidity        Range
	Rainfall        Range
	SoilPH          Range
	PruningInterval Range
	BeanMoisture    Range
}

var ideals = IdealRanges{
	Elevation:       Range{Min: 600, Max: 1200, Unit: "m"},
	Temperature:     Range{Min: 13, Max: 26, Unit: "°C"},
	Humidity:        Range{Min: 75, Max: 85, Unit: "%"},
	Rainfall:        Range{Min: 150, Max: 250, Unit: "mm"},
	SoilPH:          Range{Min: 5.6, Max: 6.5},
	PruningInterval: Range{Min: 10, Max: 18, Unit: " months"},
	BeanMoisture:    Range{Min: 10.5, Max: 12.5, Unit: "%"},
}

// Ideals returns a copy of the ideal ranges
func Ideals() IdealRanges {
	return ideals
}

// Grade categories in display order
const (
	GradeFine       = "Fine"
	GradePremium    = "Premium"
	GradeCommercial = "Commercial"
)

// GradeOrder is the fixed order grades are listed and charted in
var GradeOrder = [3]string{GradeFine, GradePremium, GradeCommercial}

var gradeColors = map[string]string{
	GradeFine:       "#4CAF50",
	GradePremium:    "#2196F3",
	GradeCommercial: "#FF9800",
}

var statusColors = map[Status]string{
	StatusCriticalDrop: "#E53935",
	StatusModerateDrop: "#FB8C00",
	StatusStable:       "#FDD835",
	StatusImprovement:  "#43A047",
	StatusNotAvailable: "#9E9E9E",
}

var riskColors = map[RiskLevel]string{
	RiskCritical: "#B71C1C",
	RiskHigh:     "#E53935",
	RiskModerate: "#FB8C00",
	RiskLow:      "#43A047",
}

// GradeColor returns the chart colour for a grade category
func GradeColor(grade string) string {
	if c, ok := gradeColors[grade]; ok {
		return c
	}
	return "#9E9E9E"
}

// Color returns the chart colour for a yield status
func (s Status) Color() string {
	return statusColors[s]
}

// Color returns the badge colour for a risk level
func (l RiskLevel) Color() string {
	return riskColors[l]
}

var frequencyScores = map[string]float64{
	"never":     0,
	"rarely":    1,
	"sometimes": 2,
	"often":     3,
}

var inputTypeScores = map[string]float64{
	"none":        0,
	"organic":     1,
	"non-organic": 2,
	"both":        3,
}

// normalizeLabel folds free-text practice labels for lookups
func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FrequencyScore encodes a practice frequency on the never..often scale.
// Unknown or missing labels score 0.
func FrequencyScore(s *string) float64 {
	if s == nil {
		return 0
	}
	return frequencyScores[normalizeLabel(*s)]
}

// InputTypeScore encodes a fertilizer or pesticide type.
// Unknown or missing labels score 0.
func InputTypeScore(s *string) float64 {
	if s == nil {
		return 0
	}
	return inputTypeScores[normalizeLabel(*s)]
}
