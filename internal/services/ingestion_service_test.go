package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kape-platform/internal/export"
	"kape-platform/internal/models"
)

func writeSeedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"users.csv": "id,role,first_name,last_name\n" +
			"u-1,farmer,Ana,Reyes\n",
		"farms.csv": "id,user_id,farm_name,elevation_m\n" +
			"f-1,u-1,Hillside,1200\n",
		"clusters.csv": "id,farm_id,cluster_name,plant_count,plant_stage\n" +
			"c-1,f-1,Alpha,100,flowering\n" +
			"c-2,f-1,Bravo,50,tree\n",
		"cluster_stage_data.csv": "cluster_id,season,avgTempC,soil_ph\n" +
			"c-1,2024 Dry,24,5.9\n" +
			"c-2,2024 Dry,27.5,\n",
		"harvest_records.csv": "cluster_id,season,yield_kg,grade_fine,grade_premium,grade_commercial,grade_unit\n" +
			"c-1,2024 Dry,200,25,50,25,percent\n" +
			"c-2,2024 Dry,-5,,,,\n" +
			"c-2,2024 Dry,80,,,,\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func TestIngestionService_IngestDirectory(t *testing.T) {
	deps := newTestDeps(t)
	repo := &fakeRepository{}
	svc := NewIngestionService(repo, deps.cache, deps.logger, deps.metrics)

	result, err := svc.IngestDirectory(context.Background(), writeSeedDir(t), 1, models.GradeUnitKg)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalFiles)
	assert.Equal(t, 9, result.TotalRecords)
	assert.Equal(t, 8, result.SuccessfulRecords)
	assert.Equal(t, 1, result.FailedRecords)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "harvest_records.csv row 3")

	assert.Equal(t, 2, repo.stageBatches)
	assert.Equal(t, 2, repo.harvestBatch)

	require.Len(t, repo.snap.StageData, 2)
	require.NotNil(t, repo.snap.StageData[0].AvgTempC)
	assert.Equal(t, 24.0, *repo.snap.StageData[0].AvgTempC)
	assert.Nil(t, repo.snap.StageData[1].SoilPH)
	assert.NotEmpty(t, repo.snap.StageData[0].ID, "blank ids are generated")

	require.Len(t, repo.snap.Harvests, 2)
	require.NotNil(t, repo.snap.Harvests[0].GradeFine)
	assert.Equal(t, 50.0, *repo.snap.Harvests[0].GradeFine)

	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.IngestionRowsTotal.WithLabelValues("harvest_records", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(deps.metrics.IngestionRowsTotal.WithLabelValues("clusters", "ok")))
}

func TestIngestionService_StoreFailures(t *testing.T) {
	deps := newTestDeps(t)
	repo := &fakeRepository{failFarmID: "f-1", failHarvests: true}
	svc := NewIngestionService(repo, deps.cache, deps.logger, deps.metrics)

	result, err := svc.IngestDirectory(context.Background(), writeSeedDir(t), 10, models.GradeUnitKg)
	require.NoError(t, err)

	// one bad row, one rejected farm, one failed batch of two harvests
	assert.Equal(t, 4, result.FailedRecords)
	assert.Equal(t, 5, result.SuccessfulRecords)
	assert.Equal(t, 1, result.Entities[SeedFarms].Failed)
	assert.Equal(t, 3, result.Entities[SeedHarvests].Failed)
	assert.Len(t, result.Errors, 3)
}

func TestIngestionService_Errors(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewIngestionService(&fakeRepository{}, deps.cache, deps.logger, deps.metrics)
	ctx := context.Background()

	_, err := svc.IngestDirectory(ctx, t.TempDir(), 10, models.GradeUnitKg)
	assert.ErrorContains(t, err, "no seed files")

	_, err = svc.IngestDirectory(ctx, writeSeedDir(t), 0, models.GradeUnitKg)
	assert.Error(t, err)
}

func TestLoadSeedDir_Workbook(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "harvest_records.xlsx"))
	require.NoError(t, err)
	require.NoError(t, export.WriteWorkbook(f, "Harvests", []export.Row{
		{export.F("Cluster ID", "c-1"), export.F("Season", "2024 Wet"), export.F("Yield", 120.0)},
		{export.F("Cluster ID", "c-2"), export.F("Season", "2024 Wet"), export.F("Yield", 95.5)},
	}))
	require.NoError(t, f.Close())

	set, err := LoadSeedDir(dir, models.GradeUnitKg, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, set.Snapshot.Harvests, 2)
	assert.Equal(t, "c-2", set.Snapshot.Harvests[1].ClusterID)
	assert.Equal(t, 95.5, *set.Snapshot.Harvests[1].YieldKg)
	assert.True(t, set.Snapshot.Harvests[1].RecordedAt.After(set.Snapshot.Harvests[0].RecordedAt))
	assert.Equal(t, 0, set.Failed())
}
