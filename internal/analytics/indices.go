package analytics

import (
	"math"

	"kape-platform/internal/models"
)

// ConditionIndices are the derived per-cluster features the dashboards and
// KPI exports show next to raw readings. Pointer fields are nil when their
// inputs were not recorded.
type ConditionIndices struct {
	ManagementScore float64  `json:"management_score"`
	ClimateStress   *float64 `json:"climate_stress,omitempty"`
	YieldPerTree    *float64 `json:"yield_per_tree,omitempty"`
	FinePct         *float64 `json:"fine_pct,omitempty"`
	PremiumPct      *float64 `json:"premium_pct,omitempty"`
	CommercialPct   *float64 `json:"commercial_pct,omitempty"`
}

// ManagementScore weights how consistently inputs are applied.
// Pesticide frequency carries the most weight.
func ManagementScore(stage *models.StageData) float64 {
	if stage == nil {
		return 0
	}
	return FrequencyScore(stage.FertilizerFrequency)*0.30 +
		InputTypeScore(stage.FertilizerType)*0.15 +
		FrequencyScore(stage.PesticideFrequency)*0.40 +
		InputTypeScore(stage.PesticideType)*0.15
}

// ClimateStress measures distance from the climatic optimum (22°C, 200mm,
// pH 6.05, 80% humidity). It needs all four readings.
func ClimateStress(stage *models.StageData) *float64 {
	if stage == nil {
		return nil
	}
	t, r, ph, h := stage.AvgTempC, stage.AvgRainfallMM, stage.SoilPH, stage.AvgHumidityPct
	if !models.IsPresent(t) || !models.IsPresent(r) || !models.IsPresent(ph) || !models.IsPresent(h) {
		return nil
	}
	stress := math.Abs(*t-22)*0.3 +
		math.Abs(*r-200)*0.005 +
		math.Abs(*ph-6.05)*3.0 +
		math.Abs(*h-80)*0.1
	return &stress
}

// ComputeIndices derives the condition indices from a cluster's latest
// snapshot and latest harvest.
func ComputeIndices(cluster models.Cluster, stage *models.StageData, harvest *models.HarvestRecord) ConditionIndices {
	ci := ConditionIndices{
		ManagementScore: ManagementScore(stage),
		ClimateStress:   ClimateStress(stage),
	}
	if harvest == nil || !models.IsPresent(harvest.YieldKg) {
		return ci
	}

	yield := *harvest.YieldKg
	if cluster.PlantCount > 0 {
		ci.YieldPerTree = models.Float(yield / float64(cluster.PlantCount))
	}
	if yield > 0 {
		share := func(kg *float64) *float64 {
			if !models.IsPresent(kg) {
				return nil
			}
			return models.Float(*kg / yield * 100)
		}
		ci.FinePct = share(harvest.GradeFine)
		ci.PremiumPct = share(harvest.GradePremium)
		ci.CommercialPct = share(harvest.GradeCommercial)
	}
	return ci
}
