package analytics

import (
	"math"
	"sort"
	"time"

	"kape-platform/internal/models"
)

const (
	defaultFloweringToHarvestDays = 210
	minHistoricalIntervalDays     = 30
	maxHistoricalIntervalDays     = 450
)

// HarvestConditions are the site readings that shift the harvest date
type HarvestConditions struct {
	AvgTempC         *float64 `json:"avg_temp_c,omitempty"`
	ElevationM       *float64 `json:"elevation_m,omitempty"`
	ShadeTreePresent *bool    `json:"shade_tree_present,omitempty"`
}

// HarvestEstimate is the estimated harvest date and how it was reached
type HarvestEstimate struct {
	FloweringDate  time.Time `json:"flowering_date"`
	BaseDays       float64   `json:"base_days"`
	AdjustmentDays float64   `json:"adjustment_days"`
	EstimatedDays  int       `json:"estimated_days"`
	EstimatedDate  time.Time `json:"estimated_date"`
	HistoryUsed    int       `json:"history_used"`
}

// HistoricalIntervals returns the flowering-to-harvest spans, in days, of
// snapshots that recorded both actual dates. Spans outside 30..450 days are
// treated as data-entry errors and dropped.
func HistoricalIntervals(history []models.StageData) []float64 {
	var out []float64
	for _, sd := range history {
		if sd.ActualFloweringDate == nil || sd.ActualHarvestDate == nil {
			continue
		}
		days := sd.ActualHarvestDate.Sub(*sd.ActualFloweringDate).Hours() / 24
		if days >= minHistoricalIntervalDays && days <= maxHistoricalIntervalDays {
			out = append(out, days)
		}
	}
	return out
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// EstimateHarvest projects the harvest date from a flowering date. The base
// interval is the median of the cluster's history, or 210 days without one.
// Heat delays ripening, cold hastens it; altitude delays it and shade brings
// it forward by a week.
func EstimateHarvest(flowering time.Time, c HarvestConditions, history []models.StageData) HarvestEstimate {
	intervals := HistoricalIntervals(history)
	base := float64(defaultFloweringToHarvestDays)
	if len(intervals) > 0 {
		base = median(intervals)
	}

	var adj float64
	if t := c.AvgTempC; models.IsPresent(t) {
		switch {
		case *t > 26:
			adj += (*t - 26) * 3
		case *t < 18:
			adj -= (18 - *t) * 2
		}
	}
	if e := c.ElevationM; models.IsPresent(e) && *e > 1000 {
		adj += (*e - 1000) * 0.05
	}
	if c.ShadeTreePresent != nil && *c.ShadeTreePresent {
		adj -= 7
	}

	days := int(math.Trunc(base + adj))
	return HarvestEstimate{
		FloweringDate:  flowering,
		BaseDays:       base,
		AdjustmentDays: adj,
		EstimatedDays:  days,
		EstimatedDate:  flowering.AddDate(0, 0, days),
		HistoryUsed:    len(intervals),
	}
}
