package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kape-platform/internal/analytics"
	"kape-platform/internal/cache"
	"kape-platform/internal/models"
	"kape-platform/internal/repository"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

// fakeRepository serves a snapshot from memory and records writes
type fakeRepository struct {
	snap analytics.Snapshot

	failFarmID    string
	failHarvests  bool
	stageBatches  int
	harvestBatch  int
	snapshotLoads int
}

var _ repository.FarmRepository = (*fakeRepository)(nil)

func (f *fakeRepository) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	var out []models.User
	for _, u := range f.snap.Users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	for _, u := range f.snap.Users {
		if u.ID == userID {
			u := u
			return &u, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "user", ID: userID}
}

func (f *fakeRepository) ListFarms(ctx context.Context) ([]models.Farm, error) {
	return f.snap.Farms, nil
}

func (f *fakeRepository) GetFarm(ctx context.Context, farmID string) (*models.Farm, error) {
	for _, farm := range f.snap.Farms {
		if farm.ID == farmID {
			farm := farm
			return &farm, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "farm", ID: farmID}
}

func (f *fakeRepository) GetFarmByUser(ctx context.Context, userID string) (*models.Farm, error) {
	for _, farm := range f.snap.Farms {
		if farm.UserID == userID {
			farm := farm
			return &farm, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "farm for user", ID: userID}
}

func (f *fakeRepository) ListClusters(ctx context.Context, farmID string) ([]models.Cluster, error) {
	var out []models.Cluster
	for _, c := range f.snap.Clusters {
		if farmID == "" || c.FarmID == farmID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepository) GetCluster(ctx context.Context, clusterID string) (*models.Cluster, error) {
	for _, c := range f.snap.Clusters {
		if c.ID == clusterID {
			c := c
			return &c, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "cluster", ID: clusterID}
}

func idSet(ids []string) func(string) bool {
	if ids == nil {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(id string) bool { return set[id] }
}

func (f *fakeRepository) ListStageData(ctx context.Context, clusterIDs []string) ([]models.StageData, error) {
	keep := idSet(clusterIDs)
	out := []models.StageData{}
	for _, sd := range f.snap.StageData {
		if keep(sd.ClusterID) {
			out = append(out, sd)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListHarvestRecords(ctx context.Context, clusterIDs []string) ([]models.HarvestRecord, error) {
	keep := idSet(clusterIDs)
	out := []models.HarvestRecord{}
	for _, hr := range f.snap.Harvests {
		if keep(hr.ClusterID) {
			out = append(out, hr)
		}
	}
	return out, nil
}

func (f *fakeRepository) LoadSnapshot(ctx context.Context) (analytics.Snapshot, error) {
	f.snapshotLoads++
	return f.snap, nil
}

func (f *fakeRepository) LoadFarmSnapshot(ctx context.Context, farmID string) (analytics.Snapshot, error) {
	f.snapshotLoads++
	if _, err := f.GetFarm(ctx, farmID); err != nil {
		return analytics.Snapshot{}, err
	}
	return f.snap, nil
}

func (f *fakeRepository) UpsertUser(ctx context.Context, user *models.User) error {
	f.snap.Users = append(f.snap.Users, *user)
	return nil
}

func (f *fakeRepository) UpsertFarm(ctx context.Context, farm *models.Farm) error {
	if farm.ID == f.failFarmID {
		return errors.New("duplicate key value violates unique constraint \"farms_user_id_key\"")
	}
	f.snap.Farms = append(f.snap.Farms, *farm)
	return nil
}

func (f *fakeRepository) UpsertCluster(ctx context.Context, cluster *models.Cluster) error {
	f.snap.Clusters = append(f.snap.Clusters, *cluster)
	return nil
}

func (f *fakeRepository) CreateStageDataBatch(ctx context.Context, rows []*models.StageData) error {
	f.stageBatches++
	for _, r := range rows {
		f.snap.StageData = append(f.snap.StageData, *r)
	}
	return nil
}

func (f *fakeRepository) CreateHarvestRecordsBatch(ctx context.Context, rows []*models.HarvestRecord) error {
	f.harvestBatch++
	if f.failHarvests {
		return errors.New("connection reset by peer")
	}
	for _, r := range rows {
		f.snap.Harvests = append(f.snap.Harvests, *r)
	}
	return nil
}

func (f *fakeRepository) HealthCheck(ctx context.Context) error {
	return nil
}

type testDeps struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	cache   *cache.AnalyticsCache
}

func newTestDeps(t *testing.T) testDeps {
	t.Helper()
	logger := logging.NewStructuredLogger("kape-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollectorWithRegistry("kape_test", prometheus.NewRegistry())
	return testDeps{
		logger:  logger,
		metrics: collector,
		cache:   cache.NewAnalyticsCache(cache.Config{}, logger, collector),
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

// hillsideSnapshot is one farm with a struggling cluster (Alpha, 55% decline)
// and a steady one (Bravo, 5% decline).
func hillsideSnapshot() analytics.Snapshot {
	return analytics.Snapshot{
		Users: []models.User{
			{ID: "u-1", Role: models.RoleFarmer, FirstName: "Ana", LastName: "Reyes"},
			{ID: "u-9", Role: models.RoleAdmin, FirstName: "Ops"},
		},
		Farms: []models.Farm{
			{ID: "f-1", UserID: "u-1", FarmName: "Hillside", ElevationM: models.Float(1200)},
		},
		Clusters: []models.Cluster{
			{ID: "c-1", FarmID: "f-1", ClusterName: "Alpha", PlantCount: 100},
			{ID: "c-2", FarmID: "f-1", ClusterName: "Bravo", PlantCount: 50},
		},
		StageData: []models.StageData{
			{
				ClusterID: "c-1", Season: "2024 Dry",
				PreYieldKg: models.Float(400), PredictedYield: models.Float(420),
				SoilPH: models.Float(4.5), AvgTempC: models.Float(30),
				ShadeTreePresent: models.Bool(true), PesticideFrequency: models.String("never"),
				ActualFloweringDate: dayPtr("2023-03-01"), ActualHarvestDate: dayPtr("2023-10-07"),
				CreatedAt: day("2024-01-15"),
			},
			{
				ClusterID: "c-2", Season: "2024 Dry",
				PreYieldKg: models.Float(200), PredictedYield: models.Float(210),
				CreatedAt: day("2024-01-10"),
			},
		},
		Harvests: []models.HarvestRecord{
			{ClusterID: "c-1", Season: "2024 Dry", ActualHarvestDate: dayPtr("2024-05-01"), YieldKg: models.Float(180),
				GradeFine: models.Float(30), GradePremium: models.Float(60), GradeCommercial: models.Float(90)},
			{ClusterID: "c-2", Season: "2024 Dry", ActualHarvestDate: dayPtr("2024-05-03"), YieldKg: models.Float(190)},
		},
	}
}
