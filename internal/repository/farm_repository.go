package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"kape-platform/internal/analytics"
	"kape-platform/internal/models"
	"kape-platform/pkg/database"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

// FarmRepository provides data access for farms and their cluster records
type FarmRepository interface {
	// User and farm operations
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListFarms(ctx context.Context) ([]models.Farm, error)
	GetFarm(ctx context.Context, farmID string) (*models.Farm, error)
	GetFarmByUser(ctx context.Context, userID string) (*models.Farm, error)

	// Cluster operations
	ListClusters(ctx context.Context, farmID string) ([]models.Cluster, error)
	GetCluster(ctx context.Context, clusterID string) (*models.Cluster, error)
	ListStageData(ctx context.Context, clusterIDs []string) ([]models.StageData, error)
	ListHarvestRecords(ctx context.Context, clusterIDs []string) ([]models.HarvestRecord, error)

	// Snapshot operations
	LoadSnapshot(ctx context.Context) (analytics.Snapshot, error)
	LoadFarmSnapshot(ctx context.Context, farmID string) (analytics.Snapshot, error)

	// Write operations used by seed ingestion
	UpsertUser(ctx context.Context, user *models.User) error
	UpsertFarm(ctx context.Context, farm *models.Farm) error
	UpsertCluster(ctx context.Context, cluster *models.Cluster) error
	CreateStageDataBatch(ctx context.Context, rows []*models.StageData) error
	CreateHarvestRecordsBatch(ctx context.Context, rows []*models.HarvestRecord) error

	// Utility operations
	HealthCheck(ctx context.Context) error
}

const (
	userColumns    = `id, role, first_name, last_name, municipality, province, created_at`
	farmColumns    = `id, user_id, farm_name, farm_area, elevation_m, overall_tree_count, created_at`
	clusterColumns = `id, farm_id, cluster_name, area_size_sqm, plant_count, plant_stage, variety, created_at`
	stageColumns   = `id, cluster_id, season,
		date_planted, plant_age_months, number_of_plants,
		fertilizer_type, fertilizer_frequency, pesticide_type, pesticide_frequency,
		last_pruned_date, previous_pruned_date, pruning_interval_months,
		shade_tree_present, shade_tree_species,
		soil_ph, avg_temp_c, avg_rainfall_mm, avg_humidity_pct,
		estimated_flowering_date, actual_flowering_date, estimated_harvest_date, actual_harvest_date,
		pre_total_trees, pre_yield_kg, previous_fine_pct, previous_premium_pct, previous_commercial_pct, pre_last_harvest_date,
		defect_count, bean_moisture, bean_screen_size, predicted_yield,
		created_at`
	harvestColumns = `id, cluster_id, season, actual_harvest_date, yield_kg,
		grade_fine, grade_premium, grade_commercial, notes, recorded_at`
)

// farmRepository implements FarmRepository
type farmRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFarmRepository creates a new farm repository
func NewFarmRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) FarmRepository {
	return &farmRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListUsers returns users, optionally restricted to one role ("" for all)
func (r *farmRepository) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []interface{}{}
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, string(role))
	}
	query += ` ORDER BY id`

	var users []models.User
	if err := r.db.SelectContext(ctx, "list_users", &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUser retrieves a user by ID
func (r *farmRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, "get_user", &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "user", ID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListFarms returns every farm ordered by name
func (r *farmRepository) ListFarms(ctx context.Context) ([]models.Farm, error) {
	var farms []models.Farm
	err := r.db.SelectContext(ctx, "list_farms", &farms,
		`SELECT `+farmColumns+` FROM farms ORDER BY farm_name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list farms: %w", err)
	}
	return farms, nil
}

// GetFarm retrieves a farm by ID
func (r *farmRepository) GetFarm(ctx context.Context, farmID string) (*models.Farm, error) {
	var farm models.Farm
	err := r.db.GetContext(ctx, "get_farm", &farm,
		`SELECT `+farmColumns+` FROM farms WHERE id = $1`, farmID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "farm", ID: farmID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get farm: %w", err)
	}
	return &farm, nil
}

// GetFarmByUser retrieves the farm owned by a user
func (r *farmRepository) GetFarmByUser(ctx context.Context, userID string) (*models.Farm, error) {
	var farm models.Farm
	err := r.db.GetContext(ctx, "get_farm_by_user", &farm,
		`SELECT `+farmColumns+` FROM farms WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "farm for user", ID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get farm for user: %w", err)
	}
	return &farm, nil
}

// ListClusters returns the clusters of one farm, or all clusters when farmID is empty
func (r *farmRepository) ListClusters(ctx context.Context, farmID string) ([]models.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters`
	args := []interface{}{}
	if farmID != "" {
		query += ` WHERE farm_id = $1`
		args = append(args, farmID)
	}
	query += ` ORDER BY cluster_name, id`

	var clusters []models.Cluster
	if err := r.db.SelectContext(ctx, "list_clusters", &clusters, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	return clusters, nil
}

// GetCluster retrieves a cluster by ID
func (r *farmRepository) GetCluster(ctx context.Context, clusterID string) (*models.Cluster, error) {
	var cluster models.Cluster
	err := r.db.GetContext(ctx, "get_cluster", &cluster,
		`SELECT `+clusterColumns+` FROM clusters WHERE id = $1`, clusterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "cluster", ID: clusterID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster: %w", err)
	}
	return &cluster, nil
}

// ListStageData returns the stage snapshots of the given clusters; nil means
// every cluster. Rows come back oldest first.
func (r *farmRepository) ListStageData(ctx context.Context, clusterIDs []string) ([]models.StageData, error) {
	query := `SELECT ` + stageColumns + ` FROM cluster_stage_data`
	args := []interface{}{}
	if clusterIDs != nil {
		if len(clusterIDs) == 0 {
			return []models.StageData{}, nil
		}
		query += ` WHERE cluster_id = ANY($1)`
		args = append(args, pq.Array(clusterIDs))
	}
	query += ` ORDER BY created_at, id`

	var rows []models.StageData
	if err := r.db.SelectContext(ctx, "list_stage_data", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list stage data: %w", err)
	}
	return rows, nil
}

// ListHarvestRecords returns the harvests of the given clusters; nil means
// every cluster.
func (r *farmRepository) ListHarvestRecords(ctx context.Context, clusterIDs []string) ([]models.HarvestRecord, error) {
	query := `SELECT ` + harvestColumns + ` FROM harvest_records`
	args := []interface{}{}
	if clusterIDs != nil {
		if len(clusterIDs) == 0 {
			return []models.HarvestRecord{}, nil
		}
		query += ` WHERE cluster_id = ANY($1)`
		args = append(args, pq.Array(clusterIDs))
	}
	query += ` ORDER BY actual_harvest_date NULLS FIRST, id`

	var rows []models.HarvestRecord
	if err := r.db.SelectContext(ctx, "list_harvest_records", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list harvest records: %w", err)
	}
	return rows, nil
}

// LoadSnapshot reads every collection the portfolio analytics need
func (r *farmRepository) LoadSnapshot(ctx context.Context) (analytics.Snapshot, error) {
	timer := time.Now()
	var s analytics.Snapshot
	var err error

	if s.Users, err = r.ListUsers(ctx, ""); err != nil {
		return s, err
	}
	if s.Farms, err = r.ListFarms(ctx); err != nil {
		return s, err
	}
	if s.Clusters, err = r.ListClusters(ctx, ""); err != nil {
		return s, err
	}
	if s.StageData, err = r.ListStageData(ctx, nil); err != nil {
		return s, err
	}
	if s.Harvests, err = r.ListHarvestRecords(ctx, nil); err != nil {
		return s, err
	}

	r.logger.Debug(ctx, "[REPO_SNAPSHOT] Portfolio snapshot loaded", logging.Fields{
		"farms":       len(s.Farms),
		"clusters":    len(s.Clusters),
		"stage_rows":  len(s.StageData),
		"harvests":    len(s.Harvests),
		"duration_ms": time.Since(timer).Milliseconds(),
	})
	return s, nil
}

// LoadFarmSnapshot reads one farm, its owner and its cluster records
func (r *farmRepository) LoadFarmSnapshot(ctx context.Context, farmID string) (analytics.Snapshot, error) {
	var s analytics.Snapshot

	farm, err := r.GetFarm(ctx, farmID)
	if err != nil {
		return s, err
	}
	s.Farms = []models.Farm{*farm}

	owner, err := r.GetUser(ctx, farm.UserID)
	var nf *NotFoundError
	switch {
	case err == nil:
		s.Users = []models.User{*owner}
	case errors.As(err, &nf):
		r.logger.Warn(ctx, "[REPO_SNAPSHOT] Farm owner missing", logging.Fields{
			"farm_id": farmID,
			"user_id": farm.UserID,
		})
	default:
		return s, err
	}

	if s.Clusters, err = r.ListClusters(ctx, farmID); err != nil {
		return s, err
	}
	ids := make([]string, 0, len(s.Clusters))
	for _, c := range s.Clusters {
		ids = append(ids, c.ID)
	}
	if s.StageData, err = r.ListStageData(ctx, ids); err != nil {
		return s, err
	}
	if s.Harvests, err = r.ListHarvestRecords(ctx, ids); err != nil {
		return s, err
	}
	return s, nil
}

// UpsertUser creates or updates a user
func (r *farmRepository) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (:id, :role, :first_name, :last_name, :municipality, :province, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			municipality = EXCLUDED.municipality,
			province = EXCLUDED.province
	`
	if _, err := r.db.NamedExecContext(ctx, "upsert_user", query, user); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// UpsertFarm creates or updates a farm. A second farm for the same user is
// rejected by the unique constraint on user_id.
func (r *farmRepository) UpsertFarm(ctx context.Context, farm *models.Farm) error {
	query := `
		INSERT INTO farms (` + farmColumns + `)
		VALUES (:id, :user_id, :farm_name, :farm_area, :elevation_m, :overall_tree_count, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			farm_name = EXCLUDED.farm_name,
			farm_area = EXCLUDED.farm_area,
			elevation_m = EXCLUDED.elevation_m,
			overall_tree_count = EXCLUDED.overall_tree_count
	`
	if _, err := r.db.NamedExecContext(ctx, "upsert_farm", query, farm); err != nil {
		return fmt.Errorf("failed to upsert farm: %w", err)
	}
	return nil
}

// UpsertCluster creates or updates a cluster
func (r *farmRepository) UpsertCluster(ctx context.Context, cluster *models.Cluster) error {
	query := `
		INSERT INTO clusters (` + clusterColumns + `)
		VALUES (:id, :farm_id, :cluster_name, :area_size_sqm, :plant_count, :plant_stage, :variety, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			cluster_name = EXCLUDED.cluster_name,
			area_size_sqm = EXCLUDED.area_size_sqm,
			plant_count = EXCLUDED.plant_count,
			plant_stage = EXCLUDED.plant_stage,
			variety = EXCLUDED.variety
	`
	if _, err := r.db.NamedExecContext(ctx, "upsert_cluster", query, cluster); err != nil {
		return fmt.Errorf("failed to upsert cluster: %w", err)
	}
	return nil
}

const insertStageData = `
	INSERT INTO cluster_stage_data (` + stageColumns + `)
	VALUES (:id, :cluster_id, :season,
		:date_planted, :plant_age_months, :number_of_plants,
		:fertilizer_type, :fertilizer_frequency, :pesticide_type, :pesticide_frequency,
		:last_pruned_date, :previous_pruned_date, :pruning_interval_months,
		:shade_tree_present, :shade_tree_species,
		:soil_ph, :avg_temp_c, :avg_rainfall_mm, :avg_humidity_pct,
		:estimated_flowering_date, :actual_flowering_date, :estimated_harvest_date, :actual_harvest_date,
		:pre_total_trees, :pre_yield_kg, :previous_fine_pct, :previous_premium_pct, :previous_commercial_pct, :pre_last_harvest_date,
		:defect_count, :bean_moisture, :bean_screen_size, :predicted_yield,
		:created_at)
	ON CONFLICT (id) DO NOTHING
`

const insertHarvest = `
	INSERT INTO harvest_records (` + harvestColumns + `)
	VALUES (:id, :cluster_id, :season, :actual_harvest_date, :yield_kg,
		:grade_fine, :grade_premium, :grade_commercial, :notes, :recorded_at)
	ON CONFLICT (id) DO NOTHING
`

// CreateStageDataBatch inserts stage snapshots in a single transaction
func (r *farmRepository) CreateStageDataBatch(ctx context.Context, rows []*models.StageData) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.insertBatch(ctx, "insert_stage_data_batch", insertStageData, len(rows), func(stmt *sqlx.NamedStmt) error {
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("failed to insert stage data for cluster %s: %w", row.ClusterID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert stage data batch: %w", err)
	}
	return nil
}

// CreateHarvestRecordsBatch inserts harvest records in a single transaction
func (r *farmRepository) CreateHarvestRecordsBatch(ctx context.Context, rows []*models.HarvestRecord) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.insertBatch(ctx, "insert_harvest_batch", insertHarvest, len(rows), func(stmt *sqlx.NamedStmt) error {
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("failed to insert harvest for cluster %s: %w", row.ClusterID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert harvest batch: %w", err)
	}
	return nil
}

func (r *farmRepository) insertBatch(ctx context.Context, queryType, query string, count int, exec func(*sqlx.NamedStmt) error) error {
	timer := time.Now()
	defer func() {
		r.metrics.IngestionBatchSize.Observe(float64(count))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"query_type":  queryType,
			"count":       count,
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	return r.db.WithTx(ctx, queryType, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()
		return exec(stmt)
	})
}

// HealthCheck performs a repository health check
func (r *farmRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
