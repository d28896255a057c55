package analytics

import (
	"sort"
	"strings"

	"kape-platform/internal/models"
)

// UnknownSeason groups records that carry no season label
const UnknownSeason = "Unknown"

// Snapshot is the fully materialised input of one aggregation run. The engine
// does not copy or lock it; callers must not mutate it during a call.
type Snapshot struct {
	Users     []models.User
	Farms     []models.Farm
	Clusters  []models.Cluster
	StageData []models.StageData
	Harvests  []models.HarvestRecord
}

// EnrichedCluster is a cluster joined with its latest data and derived fields
type EnrichedCluster struct {
	models.Cluster
	FarmName        string                `json:"farm_name"`
	FarmerName      string                `json:"farmer_name"`
	LatestStage     *models.StageData     `json:"latest_stage,omitempty"`
	LatestHarvest   *models.HarvestRecord `json:"latest_harvest,omitempty"`
	CurrentYield    float64               `json:"current_yield"`
	PreviousYield   float64               `json:"previous_yield"`
	PredictedYield  float64               `json:"predicted_yield"`
	YieldDecline    float64               `json:"yield_decline"`
	Status          Status                `json:"status"`
	Risk            RiskClassification    `json:"risk"`
	Indices         ConditionIndices      `json:"indices"`
	Recommendations []Recommendation      `json:"recommendations"`
	Performance     Performance           `json:"performance"`
}

// Stats are the headline totals. Yield and grade totals cover every harvest
// record; predicted and previous totals cover every stage row.
type Stats struct {
	TotalFarmers        int     `json:"total_farmers"`
	TotalFarms          int     `json:"total_farms"`
	TotalClusters       int     `json:"total_clusters"`
	TotalTrees          int     `json:"total_trees"`
	TotalHarvests       int     `json:"total_harvests"`
	TotalYieldKg        float64 `json:"total_yield_kg"`
	TotalFineKg         float64 `json:"total_fine_kg"`
	TotalPremiumKg      float64 `json:"total_premium_kg"`
	TotalCommercialKg   float64 `json:"total_commercial_kg"`
	TotalPredictedYield float64 `json:"total_predicted_yield"`
	TotalPreviousYield  float64 `json:"total_previous_yield"`
}

// TrendPoint is one season of the yield trend series
type TrendPoint struct {
	Season       string  `json:"season"`
	Actual       float64 `json:"actual"`
	Predicted    float64 `json:"predicted"`
	Fine         float64 `json:"fine"`
	Premium      float64 `json:"premium"`
	Commercial   float64 `json:"commercial"`
	HarvestCount int     `json:"harvest_count"`
	AvgYield     float64 `json:"avg_yield"`
}

// StatusCount is the number of clusters carrying one yield status
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
	Color  string `json:"color"`
}

// FarmSummary rolls a farm's clusters up over their latest snapshots
type FarmSummary struct {
	FarmID         string  `json:"farm_id"`
	FarmName       string  `json:"farm_name"`
	FarmerName     string  `json:"farmer_name"`
	ClusterCount   int     `json:"cluster_count"`
	PredictedYield float64 `json:"predicted_yield"`
	ActualYield    float64 `json:"actual_yield"`
	PreviousYield  float64 `json:"previous_yield"`
}

// PortfolioAnalytics is the admin dashboard view across all farms
type PortfolioAnalytics struct {
	Stats             Stats             `json:"stats"`
	YieldTrends       []TrendPoint      `json:"yield_trends"`
	EnrichedClusters  []EnrichedCluster `json:"enriched_clusters"`
	GradeDistribution []GradeShare      `json:"grade_distribution"`
	FarmSummaries     []FarmSummary     `json:"farm_summaries"`
	StatusCounts      []StatusCount     `json:"status_counts"`
}

// FarmAnalytics is the farmer dashboard view of one farm
type FarmAnalytics struct {
	FarmID            string            `json:"farm_id"`
	Stats             Stats             `json:"stats"`
	YieldTrends       []TrendPoint      `json:"yield_trends"`
	EnrichedClusters  []EnrichedCluster `json:"enriched_clusters"`
	GradeDistribution []GradeShare      `json:"grade_distribution"`
	StatusCounts      []StatusCount     `json:"status_counts"`
	Seasons           []string          `json:"seasons"`
}

// AggregatePortfolio computes the admin view over the whole snapshot
func AggregatePortfolio(s Snapshot) PortfolioAnalytics {
	idx := newIndex(s)
	enriched := idx.enrich(s.Clusters)
	stats := totals(s.StageData, s.Harvests)
	stats.TotalFarmers = countFarmers(s.Users)
	stats.TotalFarms = len(s.Farms)
	stats.TotalClusters = len(s.Clusters)
	stats.TotalTrees = countTrees(s.Clusters)

	return PortfolioAnalytics{
		Stats:             stats,
		YieldTrends:       BuildTrends(s.StageData, s.Harvests),
		EnrichedClusters:  enriched,
		GradeDistribution: GradeDistribution(stats.TotalFineKg, stats.TotalPremiumKg, stats.TotalCommercialKg),
		FarmSummaries:     idx.farmSummaries(s.Farms, enriched),
		StatusCounts:      CountStatuses(enriched),
	}
}

// AggregateFarm computes the same view restricted to one farm's clusters and
// their stage and harvest rows, plus the seasons observed on the farm.
func AggregateFarm(farmID string, s Snapshot) FarmAnalytics {
	var clusters []models.Cluster
	ids := make(map[string]bool)
	for _, c := range s.Clusters {
		if c.FarmID == farmID {
			clusters = append(clusters, c)
			ids[c.ID] = true
		}
	}

	var stages []models.StageData
	for _, sd := range s.StageData {
		if ids[sd.ClusterID] {
			stages = append(stages, sd)
		}
	}
	var harvests []models.HarvestRecord
	for _, hr := range s.Harvests {
		if ids[hr.ClusterID] {
			harvests = append(harvests, hr)
		}
	}

	scoped := Snapshot{
		Users:     s.Users,
		Farms:     s.Farms,
		Clusters:  clusters,
		StageData: stages,
		Harvests:  harvests,
	}
	idx := newIndex(scoped)
	enriched := idx.enrich(clusters)

	stats := totals(stages, harvests)
	stats.TotalClusters = len(clusters)
	stats.TotalTrees = countTrees(clusters)
	for _, f := range s.Farms {
		if f.ID == farmID {
			stats.TotalFarms = 1
			if u, ok := idx.users[f.UserID]; ok && u.Role == models.RoleFarmer {
				stats.TotalFarmers = 1
			}
		}
	}

	return FarmAnalytics{
		FarmID:            farmID,
		Stats:             stats,
		YieldTrends:       BuildTrends(stages, harvests),
		EnrichedClusters:  enriched,
		GradeDistribution: GradeDistribution(stats.TotalFineKg, stats.TotalPremiumKg, stats.TotalCommercialKg),
		StatusCounts:      CountStatuses(enriched),
		Seasons:           Seasons(stages, harvests),
	}
}

// index groups snapshot rows by foreign key
type index struct {
	users    map[string]models.User
	farms    map[string]models.Farm
	stages   map[string][]models.StageData
	harvests map[string][]models.HarvestRecord
}

func newIndex(s Snapshot) *index {
	idx := &index{
		users:    make(map[string]models.User, len(s.Users)),
		farms:    make(map[string]models.Farm, len(s.Farms)),
		stages:   make(map[string][]models.StageData),
		harvests: make(map[string][]models.HarvestRecord),
	}
	for _, u := range s.Users {
		idx.users[u.ID] = u
	}
	for _, f := range s.Farms {
		idx.farms[f.ID] = f
	}
	for _, sd := range s.StageData {
		idx.stages[sd.ClusterID] = append(idx.stages[sd.ClusterID], sd)
	}
	for _, hr := range s.Harvests {
		idx.harvests[hr.ClusterID] = append(idx.harvests[hr.ClusterID], hr)
	}
	return idx
}

// enrich derives per-cluster fields. Every cluster is returned, including
// those with no stage or harvest data.
func (idx *index) enrich(clusters []models.Cluster) []EnrichedCluster {
	out := make([]EnrichedCluster, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, idx.enrichOne(c))
	}
	return out
}

func (idx *index) enrichOne(c models.Cluster) EnrichedCluster {
	stage := LatestStage(idx.stages[c.ID])
	harvest := LatestHarvest(idx.harvests[c.ID])

	ec := EnrichedCluster{
		Cluster:       c,
		LatestStage:   stage,
		LatestHarvest: harvest,
		Status:        StatusNotAvailable,
		Risk:          RiskClassification{Level: RiskLow, Priority: 1},
	}
	if f, ok := idx.farms[c.FarmID]; ok {
		ec.FarmName = f.FarmName
		if u, ok := idx.users[f.UserID]; ok {
			ec.FarmerName = u.FullName()
		}
	}
	if stage != nil {
		ec.PreviousYield = models.FloatValue(stage.PreYieldKg)
		ec.PredictedYield = models.FloatValue(stage.PredictedYield)
	}

	// A missing harvest or yield counts as 0 against the previous yield.
	// Without a usable previous yield the cluster stays Low and N/A.
	if harvest != nil {
		ec.CurrentYield = models.FloatValue(harvest.YieldKg)
	}
	ec.Status = ClassifyYieldStatus(ec.CurrentYield, ec.PreviousYield)
	ec.Risk = ClassifyRisk(ec.CurrentYield, ec.PreviousYield)
	ec.YieldDecline = round1(YieldDecline(ec.CurrentYield, ec.PreviousYield))

	ec.Indices = ComputeIndices(c, stage, harvest)
	ec.Recommendations = GenerateRecommendations(c, stage)
	ec.Performance = ClassifyPerformance(ec.Recommendations)
	return ec
}

func (idx *index) farmSummaries(farms []models.Farm, enriched []EnrichedCluster) []FarmSummary {
	byFarm := make(map[string]*FarmSummary, len(farms))
	out := make([]FarmSummary, 0, len(farms))
	for _, f := range farms {
		fs := FarmSummary{FarmID: f.ID, FarmName: f.FarmName}
		if u, ok := idx.users[f.UserID]; ok {
			fs.FarmerName = u.FullName()
		}
		out = append(out, fs)
	}
	for i := range out {
		byFarm[out[i].FarmID] = &out[i]
	}

	for _, ec := range enriched {
		fs, ok := byFarm[ec.FarmID]
		if !ok {
			continue
		}
		fs.ClusterCount++
		fs.PredictedYield += ec.PredictedYield
		fs.ActualYield += ec.CurrentYield
		fs.PreviousYield += ec.PreviousYield
	}
	return out
}

func totals(stages []models.StageData, harvests []models.HarvestRecord) Stats {
	var st Stats
	for _, hr := range harvests {
		st.TotalHarvests++
		st.TotalYieldKg += models.FloatValue(hr.YieldKg)
		st.TotalFineKg += models.FloatValue(hr.GradeFine)
		st.TotalPremiumKg += models.FloatValue(hr.GradePremium)
		st.TotalCommercialKg += models.FloatValue(hr.GradeCommercial)
	}
	for _, sd := range stages {
		st.TotalPredictedYield += models.FloatValue(sd.PredictedYield)
		st.TotalPreviousYield += models.FloatValue(sd.PreYieldKg)
	}
	return st
}

func countFarmers(users []models.User) int {
	n := 0
	for _, u := range users {
		if u.Role == models.RoleFarmer {
			n++
		}
	}
	return n
}

func countTrees(clusters []models.Cluster) int {
	n := 0
	for _, c := range clusters {
		n += c.PlantCount
	}
	return n
}

// seasonKey maps a blank season label to UnknownSeason
func seasonKey(season string) string {
	if s := strings.TrimSpace(season); s != "" {
		return s
	}
	return UnknownSeason
}

// BuildTrends groups harvests and stage rows by season, sorted by season
// label. Harvests contribute actual and grade totals, stage rows predicted.
func BuildTrends(stages []models.StageData, harvests []models.HarvestRecord) []TrendPoint {
	points := make(map[string]*TrendPoint)
	point := func(season string) *TrendPoint {
		key := seasonKey(season)
		p, ok := points[key]
		if !ok {
			p = &TrendPoint{Season: key}
			points[key] = p
		}
		return p
	}

	for _, hr := range harvests {
		p := point(hr.Season)
		p.Actual += models.FloatValue(hr.YieldKg)
		p.Fine += models.FloatValue(hr.GradeFine)
		p.Premium += models.FloatValue(hr.GradePremium)
		p.Commercial += models.FloatValue(hr.GradeCommercial)
		p.HarvestCount++
	}
	for _, sd := range stages {
		point(sd.Season).Predicted += models.FloatValue(sd.PredictedYield)
	}

	keys := make([]string, 0, len(points))
	for k := range points {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]TrendPoint, 0, len(keys))
	for _, k := range keys {
		p := points[k]
		if p.HarvestCount > 0 {
			p.AvgYield = p.Actual / float64(p.HarvestCount)
		}
		out = append(out, *p)
	}
	return out
}

// Seasons lists the distinct, sorted season labels recorded on stage and
// harvest rows. Blank labels are left out.
func Seasons(stages []models.StageData, harvests []models.HarvestRecord) []string {
	seen := make(map[string]bool)
	for _, sd := range stages {
		if s := strings.TrimSpace(sd.Season); s != "" {
			seen[s] = true
		}
	}
	for _, hr := range harvests {
		if s := strings.TrimSpace(hr.Season); s != "" {
			seen[s] = true
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// CountStatuses tallies clusters per yield status in Statuses order
func CountStatuses(clusters []EnrichedCluster) []StatusCount {
	counts := make(map[Status]int, len(Statuses))
	for _, ec := range clusters {
		counts[ec.Status]++
	}

	out := make([]StatusCount, 0, len(Statuses))
	for _, s := range Statuses {
		out = append(out, StatusCount{Status: s, Count: counts[s], Color: s.Color()})
	}
	return out
}

// NeedsAttention returns clusters at High or Critical risk, most urgent first:
// priority, then yield decline, then cluster name.
func NeedsAttention(clusters []EnrichedCluster) []EnrichedCluster {
	out := []EnrichedCluster{}
	for _, ec := range clusters {
		if ec.Risk.Priority >= 3 {
			out = append(out, ec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Risk.Priority != b.Risk.Priority {
			return a.Risk.Priority > b.Risk.Priority
		}
		if a.YieldDecline != b.YieldDecline {
			return a.YieldDecline > b.YieldDecline
		}
		return a.ClusterName < b.ClusterName
	})
	return out
}
