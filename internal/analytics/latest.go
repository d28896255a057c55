package analytics

import (
	"time"

	"kape-platform/internal/models"
)

// MaxBy returns the item with the latest key. Ties go to the earliest item in
// input order, so repeated calls over the same slice agree.
func MaxBy[T any](items []T, key func(T) time.Time) (T, bool) {
	var best T
	if len(items) == 0 {
		return best, false
	}

	best = items[0]
	bestKey := key(best)
	for _, item := range items[1:] {
		if k := key(item); k.After(bestKey) {
			best, bestKey = item, k
		}
	}
	return best, true
}

// LatestStage picks the most recently created snapshot, or nil
func LatestStage(rows []models.StageData) *models.StageData {
	s, ok := MaxBy(rows, func(sd models.StageData) time.Time { return sd.CreatedAt })
	if !ok {
		return nil
	}
	return &s
}

// LatestHarvest picks the record with the latest actual harvest date, or nil.
// Undated records sort before any dated one.
func LatestHarvest(rows []models.HarvestRecord) *models.HarvestRecord {
	h, ok := MaxBy(rows, func(hr models.HarvestRecord) time.Time {
		if hr.ActualHarvestDate == nil {
			return time.Time{}
		}
		return *hr.ActualHarvestDate
	})
	if !ok {
		return nil
	}
	return &h
}
