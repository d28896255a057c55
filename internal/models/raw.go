package models

import (
	"strings"
	"time"
	"unicode"
)

// RawRecord is one row from an external source, keyed by normalized column name.
// Source naming drifts between snake_case and camelCase (avg_temp_c vs avgTempC);
// all of that is resolved here so the analytics code only sees canonical types.
type RawRecord map[string]string

// NormalizeKey folds a column name to snake_case: "avgTempC" and "Avg Temp C"
// both become "avg_temp_c".
func NormalizeKey(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "\uFEFF")
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == ' ' || r == '-' || r == '.':
			b.WriteRune('_')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

// NewRawRecord zips a header row with a value row. Short rows leave the
// trailing columns unset.
func NewRawRecord(header, values []string) RawRecord {
	rec := make(RawRecord, len(header))
	for i, h := range header {
		if i >= len(values) {
			break
		}
		rec[NormalizeKey(h)] = values[i]
	}
	return rec
}

// lookup returns the value of the first alias present as a column
func (r RawRecord) lookup(aliases ...string) (string, bool) {
	for _, a := range aliases {
		if v, ok := r[a]; ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func (r RawRecord) str(aliases ...string) string {
	v, _ := r.lookup(aliases...)
	return v
}

// optionalStr distinguishes a missing column (nil) from a recorded blank ("")
func (r RawRecord) optionalStr(aliases ...string) *string {
	v, ok := r.lookup(aliases...)
	if !ok {
		return nil
	}
	return &v
}

func (r RawRecord) float(aliases ...string) *float64 {
	return ParseOptionalFloat(r.str(aliases...))
}

func (r RawRecord) integer(aliases ...string) *int {
	return ParseOptionalInt(r.str(aliases...))
}

func (r RawRecord) date(aliases ...string) *time.Time {
	return ParseOptionalDate(r.str(aliases...))
}

func (r RawRecord) timestamp(now time.Time, aliases ...string) time.Time {
	if t := r.date(aliases...); t != nil {
		return *t
	}
	return now
}

// ToUser converts the row to a User
func (r RawRecord) ToUser(now time.Time) (*User, error) {
	id := r.str("id", "user_id")
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "user id is required"}
	}

	role := Role(strings.ToLower(r.str("role")))
	if role == "" {
		role = RoleFarmer
	}
	if role != RoleFarmer && role != RoleAdmin {
		return nil, &ValidationError{Field: "role", Value: string(role), Message: "role must be farmer or admin"}
	}

	return &User{
		ID:           id,
		Role:         role,
		FirstName:    r.str("first_name"),
		LastName:     r.str("last_name"),
		Municipality: r.str("municipality"),
		Province:     r.str("province"),
		CreatedAt:    r.timestamp(now, "created_at"),
	}, nil
}

// ToFarm converts the row to a Farm
func (r RawRecord) ToFarm(now time.Time) (*Farm, error) {
	userID := r.str("user_id")
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "farm owner is required"}
	}

	return &Farm{
		ID:               r.str("id", "farm_id"),
		UserID:           userID,
		FarmName:         r.str("farm_name", "name"),
		FarmArea:         r.float("farm_area", "area"),
		ElevationM:       r.float("elevation_m", "elevation"),
		OverallTreeCount: r.integer("overall_tree_count", "tree_count"),
		CreatedAt:        r.timestamp(now, "created_at"),
	}, nil
}

// ToCluster converts the row to a Cluster
func (r RawRecord) ToCluster(now time.Time) (*Cluster, error) {
	farmID := r.str("farm_id")
	if farmID == "" {
		return nil, &ValidationError{Field: "farm_id", Message: "cluster farm is required"}
	}

	stage := PlantStage(strings.ToLower(r.str("plant_stage", "stage")))
	if stage != "" && !stage.Valid() {
		return nil, &ValidationError{Field: "plant_stage", Value: string(stage), Message: "unknown plant stage"}
	}

	return &Cluster{
		ID:          r.str("id", "cluster_id"),
		FarmID:      farmID,
		ClusterName: r.str("cluster_name", "name"),
		AreaSizeSqm: r.float("area_size_sqm", "area_size"),
		PlantCount:  IntValue(r.integer("plant_count")),
		PlantStage:  stage,
		Variety:     r.str("variety"),
		CreatedAt:   r.timestamp(now, "created_at"),
	}, nil
}

// ToStageData converts the row to a StageData snapshot
func (r RawRecord) ToStageData(now time.Time) (*StageData, error) {
	clusterID := r.str("cluster_id")
	if clusterID == "" {
		return nil, &ValidationError{Field: "cluster_id", Message: "stage data cluster is required"}
	}

	var shade *bool
	if v, ok := r.lookup("shade_tree_present", "shade_trees"); ok {
		shade = ParseOptionalBool(v)
	}

	return &StageData{
		ID:        r.str("id"),
		ClusterID: clusterID,
		Season:    r.str("season"),

		DatePlanted:    r.date("date_planted"),
		PlantAgeMonths: r.float("plant_age_months"),
		NumberOfPlants: r.integer("number_of_plants"),

		FertilizerType:      r.optionalStr("fertilizer_type"),
		FertilizerFrequency: r.optionalStr("fertilizer_frequency"),
		PesticideType:       r.optionalStr("pesticide_type"),
		PesticideFrequency:  r.optionalStr("pesticide_frequency"),

		LastPrunedDate:        r.date("last_pruned_date"),
		PreviousPrunedDate:    r.date("previous_pruned_date"),
		PruningIntervalMonths: r.float("pruning_interval_months"),

		ShadeTreePresent: shade,
		ShadeTreeSpecies: r.optionalStr("shade_tree_species"),

		SoilPH:         r.float("soil_ph"),
		AvgTempC:       r.float("avg_temp_c", "monthly_temperature", "temperature"),
		AvgRainfallMM:  r.float("avg_rainfall_mm", "rainfall"),
		AvgHumidityPct: r.float("avg_humidity_pct", "humidity"),

		EstimatedFloweringDate: r.date("estimated_flowering_date"),
		ActualFloweringDate:    r.date("actual_flowering_date"),
		EstimatedHarvestDate:   r.date("estimated_harvest_date"),
		ActualHarvestDate:      r.date("actual_harvest_date"),

		PreTotalTrees:         r.integer("pre_total_trees"),
		PreYieldKg:            r.float("pre_yield_kg", "previous_yield"),
		PreviousFinePct:       r.float("previous_fine_pct", "pre_grade_fine"),
		PreviousPremiumPct:    r.float("previous_premium_pct", "pre_grade_premium"),
		PreviousCommercialPct: r.float("previous_commercial_pct", "pre_grade_commercial"),
		PreLastHarvestDate:    r.date("pre_last_harvest_date"),

		DefectCount:    r.integer("defect_count"),
		BeanMoisture:   r.float("bean_moisture"),
		BeanScreenSize: r.optionalStr("bean_screen_size"),
		PredictedYield: r.float("predicted_yield"),

		CreatedAt: r.timestamp(now, "created_at"),
	}, nil
}

// ToHarvestRecord converts the row to a HarvestRecord with grades in kg.
// A grade_unit column overrides the unit passed by the caller.
func (r RawRecord) ToHarvestRecord(now time.Time, unit GradeUnit) (*HarvestRecord, error) {
	clusterID := r.str("cluster_id")
	if clusterID == "" {
		return nil, &ValidationError{Field: "cluster_id", Message: "harvest cluster is required"}
	}

	yield := r.float("yield_kg", "yield")
	if IsPresent(yield) && *yield < 0 {
		return nil, &ValidationError{Field: "yield_kg", Value: r.str("yield_kg", "yield"), Message: "yield cannot be negative"}
	}

	if u, ok := r.lookup("grade_unit"); ok && u != "" {
		unit = ParseGradeUnit(u)
	}
	fine, premium, commercial := NormalizeGrades(yield, unit,
		r.float("grade_fine"), r.float("grade_premium"), r.float("grade_commercial"))

	var notes *string
	if n := r.str("notes"); n != "" {
		notes = &n
	}

	return &HarvestRecord{
		ID:                r.str("id"),
		ClusterID:         clusterID,
		Season:            r.str("season"),
		ActualHarvestDate: r.date("actual_harvest_date"),
		YieldKg:           yield,
		GradeFine:         fine,
		GradePremium:      premium,
		GradeCommercial:   commercial,
		Notes:             notes,
		RecordedAt:        r.timestamp(now, "recorded_at", "created_at"),
	}, nil
}
