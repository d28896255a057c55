package models

import (
	"strings"
	"time"
)

// Role scopes what a user sees: farmers their own farm, admins the portfolio
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleAdmin  Role = "admin"
)

// PlantStage is the growth stage shared by the plants of a cluster
type PlantStage string

const (
	StageSeedSapling    PlantStage = "seed-sapling"
	StageTree           PlantStage = "tree"
	StageFlowering      PlantStage = "flowering"
	StageReadyToHarvest PlantStage = "ready-to-harvest"
)

// Valid reports whether s is one of the known growth stages
func (s PlantStage) Valid() bool {
	switch s {
	case StageSeedSapling, StageTree, StageFlowering, StageReadyToHarvest:
		return true
	}
	return false
}

// User is a registered farmer or administrator
type User struct {
	ID           string    `json:"id" db:"id"`
	Role         Role      `json:"role" db:"role"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Municipality string    `json:"municipality" db:"municipality"`
	Province     string    `json:"province" db:"province"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// FullName joins first and last name, skipping blanks
func (u User) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Farm is owned by exactly one user; one farm per user is enforced by the store
type Farm struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	FarmName         string    `json:"farm_name" db:"farm_name"`
	FarmArea         *float64  `json:"farm_area,omitempty" db:"farm_area"`
	ElevationM       *float64  `json:"elevation_m,omitempty" db:"elevation_m"`
	OverallTreeCount *int      `json:"overall_tree_count,omitempty" db:"overall_tree_count"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Cluster is a plot of coffee plants at a shared growth stage
type Cluster struct {
	ID          string     `json:"id" db:"id"`
	FarmID      string     `json:"farm_id" db:"farm_id"`
	ClusterName string     `json:"cluster_name" db:"cluster_name"`
	AreaSizeSqm *float64   `json:"area_size_sqm,omitempty" db:"area_size_sqm"`
	PlantCount  int        `json:"plant_count" db:"plant_count"`
	PlantStage  PlantStage `json:"plant_stage" db:"plant_stage"`
	Variety     string     `json:"variety" db:"variety"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// StageData is a timestamped snapshot of a cluster's environment and practices.
// Optional readings are pointers; nil means "not recorded".
type StageData struct {
	ID        string `json:"id" db:"id"`
	ClusterID string `json:"cluster_id" db:"cluster_id"`
	Season    string `json:"season" db:"season"`

	DatePlanted    *time.Time `json:"date_planted,omitempty" db:"date_planted"`
	PlantAgeMonths *float64   `json:"plant_age_months,omitempty" db:"plant_age_months"`
	NumberOfPlants *int       `json:"number_of_plants,omitempty" db:"number_of_plants"`

	FertilizerType      *string `json:"fertilizer_type,omitempty" db:"fertilizer_type"`
	FertilizerFrequency *string `json:"fertilizer_frequency,omitempty" db:"fertilizer_frequency"`
	PesticideType       *string `json:"pesticide_type,omitempty" db:"pesticide_type"`
	PesticideFrequency  *string `json:"pesticide_frequency,omitempty" db:"pesticide_frequency"`

	LastPrunedDate        *time.Time `json:"last_pruned_date,omitempty" db:"last_pruned_date"`
	PreviousPrunedDate    *time.Time `json:"previous_pruned_date,omitempty" db:"previous_pruned_date"`
	PruningIntervalMonths *float64   `json:"pruning_interval_months,omitempty" db:"pruning_interval_months"`

	ShadeTreePresent *bool   `json:"shade_tree_present,omitempty" db:"shade_tree_present"`
	ShadeTreeSpecies *string `json:"shade_tree_species,omitempty" db:"shade_tree_species"`

	SoilPH         *float64 `json:"soil_ph,omitempty" db:"soil_ph"`
	AvgTempC       *float64 `json:"avg_temp_c,omitempty" db:"avg_temp_c"`
	AvgRainfallMM  *float64 `json:"avg_rainfall_mm,omitempty" db:"avg_rainfall_mm"`
	AvgHumidityPct *float64 `json:"avg_humidity_pct,omitempty" db:"avg_humidity_pct"`

	EstimatedFloweringDate *time.Time `json:"estimated_flowering_date,omitempty" db:"estimated_flowering_date"`
	ActualFloweringDate    *time.Time `json:"actual_flowering_date,omitempty" db:"actual_flowering_date"`
	EstimatedHarvestDate   *time.Time `json:"estimated_harvest_date,omitempty" db:"estimated_harvest_date"`
	ActualHarvestDate      *time.Time `json:"actual_harvest_date,omitempty" db:"actual_harvest_date"`

	// Pre-harvest history. The previous grade mix is in percent.
	PreTotalTrees         *int       `json:"pre_total_trees,omitempty" db:"pre_total_trees"`
	PreYieldKg            *float64   `json:"pre_yield_kg,omitempty" db:"pre_yield_kg"`
	PreviousFinePct       *float64   `json:"previous_fine_pct,omitempty" db:"previous_fine_pct"`
	PreviousPremiumPct    *float64   `json:"previous_premium_pct,omitempty" db:"previous_premium_pct"`
	PreviousCommercialPct *float64   `json:"previous_commercial_pct,omitempty" db:"previous_commercial_pct"`
	PreLastHarvestDate    *time.Time `json:"pre_last_harvest_date,omitempty" db:"pre_last_harvest_date"`

	// Post-harvest
	DefectCount    *int     `json:"defect_count,omitempty" db:"defect_count"`
	BeanMoisture   *float64 `json:"bean_moisture,omitempty" db:"bean_moisture"`
	BeanScreenSize *string  `json:"bean_screen_size,omitempty" db:"bean_screen_size"`
	PredictedYield *float64 `json:"predicted_yield,omitempty" db:"predicted_yield"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HarvestRecord is a dated yield with its grade breakdown.
// Grade fields are kilograms; see NormalizeGrades for percentage input.
type HarvestRecord struct {
	ID                string     `json:"id" db:"id"`
	ClusterID         string     `json:"cluster_id" db:"cluster_id"`
	Season            string     `json:"season" db:"season"`
	ActualHarvestDate *time.Time `json:"actual_harvest_date,omitempty" db:"actual_harvest_date"`
	YieldKg           *float64   `json:"yield_kg,omitempty" db:"yield_kg"`
	GradeFine         *float64   `json:"grade_fine,omitempty" db:"grade_fine"`
	GradePremium      *float64   `json:"grade_premium,omitempty" db:"grade_premium"`
	GradeCommercial   *float64   `json:"grade_commercial,omitempty" db:"grade_commercial"`
	Notes             *string    `json:"notes,omitempty" db:"notes"`
	RecordedAt        time.Time  `json:"recorded_at" db:"recorded_at"`
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
