package analytics

import (
	"math"
	"strconv"
)

// Status is the qualitative year-on-year yield label
type Status string

const (
	StatusCriticalDrop Status = "Critical Drop (>20%)"
	StatusModerateDrop Status = "Moderate Drop (5-20%)"
	StatusStable       Status = "Stable (±5%)"
	StatusImprovement  Status = "Improvement (>5%)"
	StatusNotAvailable Status = "N/A"
)

// Statuses lists every status in dashboard order
var Statuses = []Status{
	StatusCriticalDrop,
	StatusModerateDrop,
	StatusStable,
	StatusImprovement,
	StatusNotAvailable,
}

// RiskLevel is the four-tier yield decline classification
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// RiskClassification pairs a risk level with its sort priority (1-4)
type RiskClassification struct {
	Level    RiskLevel `json:"level"`
	Priority int       `json:"priority"`
}

// usableBase reports whether previous can serve as a ratio denominator
func usableBase(previous float64) bool {
	return previous > 0 && !math.IsInf(previous, 0)
}

// ClassifyYieldStatus labels the change from previous to current yield.
// Boundaries are inclusive: a drop of exactly 20% is critical.
func ClassifyYieldStatus(current, previous float64) Status {
	if !usableBase(previous) || math.IsNaN(current) {
		return StatusNotAvailable
	}

	deltaPct := (current - previous) * 100 / previous
	switch {
	case deltaPct <= -20:
		return StatusCriticalDrop
	case deltaPct <= -5:
		return StatusModerateDrop
	case deltaPct <= 5:
		return StatusStable
	default:
		return StatusImprovement
	}
}

// ClassifyRisk grades how far current yield fell below previous yield.
// Thresholds are strict: a decline of exactly 50% is High, not Critical.
func ClassifyRisk(current, previous float64) RiskClassification {
	if !usableBase(previous) || math.IsNaN(current) {
		return RiskClassification{Level: RiskLow, Priority: 1}
	}

	decline := YieldDecline(current, previous)
	switch {
	case decline > 50:
		return RiskClassification{Level: RiskCritical, Priority: 4}
	case decline > 30:
		return RiskClassification{Level: RiskHigh, Priority: 3}
	case decline > 15:
		return RiskClassification{Level: RiskModerate, Priority: 2}
	default:
		return RiskClassification{Level: RiskLow, Priority: 1}
	}
}

// YieldDecline is the percentage drop from previous to current; positive
// when yield fell. Returns 0 without a usable previous yield.
func YieldDecline(current, previous float64) float64 {
	if !usableBase(previous) || math.IsNaN(current) {
		return 0
	}
	return (previous - current) * 100 / previous
}

// round1 rounds to one decimal place
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
