package analytics

import (
	"fmt"
	"sort"

	"kape-platform/internal/models"
)

// Severity ranks how urgently a recommendation should be acted on
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Priority maps severity to the dashboard priority label
func (s Severity) Priority() string {
	switch s {
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	}
	return ""
}

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// Recommendation is one fired rule for one cluster
type Recommendation struct {
	Factor         string   `json:"factor"`
	Label          string   `json:"label"`
	Severity       Severity `json:"severity"`
	Priority       string   `json:"priority"`
	CurrentValue   string   `json:"current_value"`
	Ideal          string   `json:"ideal"`
	Explanation    string   `json:"explanation"`
	Recommendation string   `json:"recommendation"`
	ClusterID      string   `json:"cluster_id"`
	ClusterName    string   `json:"cluster_name"`
}

// Finding is what a rule reports when it fires; cluster identity is added by
// GenerateRecommendations.
type Finding struct {
	Severity       Severity
	CurrentValue   string
	Explanation    string
	Recommendation string
}

// Rule inspects exactly one factor of a stage snapshot. Evaluate returns nil
// when the factor is inside its ideal range or was not recorded.
type Rule struct {
	Factor   string
	Label    string
	Ideal    string
	Evaluate func(stage *models.StageData) *Finding
}

// rangeRule fires when a recorded reading falls outside r
func rangeRule(factor, label string, r Range, severity Severity,
	read func(*models.StageData) *float64,
	advise func(v float64, r Range) string) Rule {
	return Rule{
		Factor: factor,
		Label:  label,
		Ideal:  r.String(),
		Evaluate: func(stage *models.StageData) *Finding {
			v := read(stage)
			if !models.IsPresent(v) || r.Contains(*v) {
				return nil
			}
			return &Finding{
				Severity:     severity,
				CurrentValue: trimFloat(*v) + r.Unit,
				Explanation: fmt.Sprintf("%s is %s%s, outside the ideal range of %s.",
					label, trimFloat(*v), r.Unit, r.String()),
				Recommendation: advise(*v, r),
			}
		},
	}
}

func lowHigh(v float64, r Range, low, high string) string {
	if v < r.Min {
		return low
	}
	return high
}

var rules = buildRules()

func buildRules() []Rule {
	ir := Ideals()
	return []Rule{
		rangeRule("soil_ph", "Soil pH", ir.SoilPH, SeverityHigh,
			func(s *models.StageData) *float64 { return s.SoilPH },
			func(v float64, r Range) string {
				return lowHigh(v, r,
					"Apply agricultural lime to raise soil pH and retest after two months.",
					"Apply elemental sulfur or acidifying organic matter to lower soil pH.")
			}),
		rangeRule("avg_temp_c", "Average temperature", ir.Temperature, SeverityMedium,
			func(s *models.StageData) *float64 { return s.AvgTempC },
			func(v float64, r Range) string {
				return lowHigh(v, r,
					"Protect plants from cold with windbreaks and avoid pruning before cold spells.",
					"Increase shade cover and mulch to reduce canopy and soil temperature.")
			}),
		rangeRule("avg_rainfall_mm", "Average rainfall", ir.Rainfall, SeverityMedium,
			func(s *models.StageData) *float64 { return s.AvgRainfallMM },
			func(v float64, r Range) string {
				return lowHigh(v, r,
					"Irrigate during dry months and mulch to retain soil moisture.",
					"Improve drainage and clear canals to prevent waterlogging and root rot.")
			}),
		rangeRule("avg_humidity_pct", "Average humidity", ir.Humidity, SeverityMedium,
			func(s *models.StageData) *float64 { return s.AvgHumidityPct },
			func(v float64, r Range) string {
				return lowHigh(v, r,
					"Add shade trees and ground cover to raise humidity around the plants.",
					"Open the canopy by pruning and widen spacing to improve air flow and limit fungal disease.")
			}),
		rangeRule("pruning_interval_months", "Pruning interval", ir.PruningInterval, SeverityHigh,
			func(s *models.StageData) *float64 { return s.PruningIntervalMonths },
			func(v float64, r Range) string {
				return lowHigh(v, r,
					"Prune less often; allow at least 10 months for the plant to recover between cuts.",
					"Prune more regularly; remove old and unproductive stems at least every 18 months.")
			}),
		rangeRule("bean_moisture", "Bean moisture", ir.BeanMoisture, SeverityHigh,
			func(s *models.StageData) *float64 { return s.BeanMoisture },
			func(v float64, r Range) string {
				return lowHigh(v, r,
					"Shorten drying time; over-dried beans lose weight and break during hulling.",
					"Continue drying until moisture reaches 10.5-12.5% to prevent mould during storage.")
			}),
		{
			Factor:   "fertilizer_frequency",
			Label:    "Fertilizer frequency",
			Ideal:    "at least sometimes",
			Evaluate: evaluateFertilizer,
		},
		{
			Factor:   "pesticide_frequency",
			Label:    "Pesticide frequency",
			Ideal:    "at least rarely",
			Evaluate: evaluatePesticide,
		},
		{
			Factor:   "shade_tree_present",
			Label:    "Shade trees",
			Ideal:    "present",
			Evaluate: evaluateShade,
		},
	}
}

// Rules returns the rule battery in evaluation order
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

func frequencyDisplay(raw string) string {
	if raw == "" {
		return "none recorded"
	}
	return raw
}

func evaluateFertilizer(stage *models.StageData) *Finding {
	if stage.FertilizerFrequency == nil {
		return nil
	}
	raw := *stage.FertilizerFrequency
	switch normalizeLabel(raw) {
	case "", "never":
		return &Finding{
			Severity:       SeverityHigh,
			CurrentValue:   frequencyDisplay(raw),
			Explanation:    fmt.Sprintf("Fertilizer is applied %s; coffee needs feeding at least sometimes.", describeFrequency(raw)),
			Recommendation: "Start a fertilization program based on a soil test, splitting applications across the rainy season.",
		}
	case "rarely":
		return &Finding{
			Severity:       SeverityMedium,
			CurrentValue:   raw,
			Explanation:    "Fertilizer is applied rarely; coffee needs feeding at least sometimes.",
			Recommendation: "Increase fertilizer applications to two or three times per season.",
		}
	}
	return nil
}

func evaluatePesticide(stage *models.StageData) *Finding {
	if stage.PesticideFrequency == nil {
		return nil
	}
	raw := *stage.PesticideFrequency
	switch normalizeLabel(raw) {
	case "", "never":
		return &Finding{
			Severity:       SeverityLow,
			CurrentValue:   frequencyDisplay(raw),
			Explanation:    fmt.Sprintf("Pesticide is applied %s; pest pressure goes unmanaged.", describeFrequency(raw)),
			Recommendation: "Scout for coffee berry borer and leaf rust monthly and treat when thresholds are reached.",
		}
	}
	return nil
}

func evaluateShade(stage *models.StageData) *Finding {
	if stage.ShadeTreePresent == nil || *stage.ShadeTreePresent {
		return nil
	}
	return &Finding{
		Severity:       SeverityMedium,
		CurrentValue:   "No",
		Explanation:    "No shade trees are present; coffee grows best under partial shade.",
		Recommendation: "Plant shade trees such as Gliricidia or banana between rows to moderate temperature and humidity.",
	}
}

func describeFrequency(raw string) string {
	if raw == "" {
		return "with no recorded frequency"
	}
	return normalizeLabel(raw)
}

// GenerateRecommendations runs every rule against the cluster's latest stage
// snapshot. Output follows rule order; a nil snapshot yields no findings.
func GenerateRecommendations(cluster models.Cluster, stage *models.StageData) []Recommendation {
	recs := []Recommendation{}
	if stage == nil {
		return recs
	}

	for _, rule := range rules {
		f := rule.Evaluate(stage)
		if f == nil {
			continue
		}
		recs = append(recs, Recommendation{
			Factor:         rule.Factor,
			Label:          rule.Label,
			Severity:       f.Severity,
			Priority:       f.Severity.Priority(),
			CurrentValue:   f.CurrentValue,
			Ideal:          rule.Ideal,
			Explanation:    f.Explanation,
			Recommendation: f.Recommendation,
			ClusterID:      cluster.ID,
			ClusterName:    cluster.ClusterName,
		})
	}
	return recs
}

// SortBySeverity returns a copy of recs ordered high, medium, low.
// Equal severities keep rule order.
func SortBySeverity(recs []Recommendation) []Recommendation {
	out := make([]Recommendation, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.rank() < out[j].Severity.rank()
	})
	return out
}

// Performance is the overall agronomic tier of a cluster
type Performance string

const (
	PerformanceGood     Performance = "good"
	PerformanceModerate Performance = "moderate"
	PerformancePoor     Performance = "poor"
)

// ClassifyPerformance derives the tier from the mix of fired severities
func ClassifyPerformance(recs []Recommendation) Performance {
	var high, medium int
	for _, r := range recs {
		switch r.Severity {
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		}
	}

	switch {
	case high >= 2:
		return PerformancePoor
	case high >= 1 || medium >= 2:
		return PerformanceModerate
	default:
		return PerformanceGood
	}
}
