package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"kape-platform/internal/analytics"
	"kape-platform/internal/models"
)

// SeedEntity names one seed table
type SeedEntity string

const (
	SeedUsers     SeedEntity = "users"
	SeedFarms     SeedEntity = "farms"
	SeedClusters  SeedEntity = "clusters"
	SeedStageData SeedEntity = "cluster_stage_data"
	SeedHarvests  SeedEntity = "harvest_records"
)

// SeedOrder is the load order; each table references the ones before it
var SeedOrder = []SeedEntity{SeedUsers, SeedFarms, SeedClusters, SeedStageData, SeedHarvests}

// EntityCount tallies the rows of one seed table
type EntityCount struct {
	File   string `json:"file"`
	Rows   int    `json:"rows"`
	Failed int    `json:"failed"`
}

// SeedSet is a decoded seed directory
type SeedSet struct {
	Snapshot analytics.Snapshot
	Counts   map[SeedEntity]*EntityCount
	Errors   []string
}

// FindSeedFile returns the entity's file in dir, preferring .csv over .xlsx,
// or "" when neither exists.
func FindSeedFile(dir string, entity SeedEntity) string {
	for _, ext := range []string{".csv", ".xlsx"} {
		path := filepath.Join(dir, string(entity)+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ReadSeedFile reads a header-driven .csv or .xlsx file into raw records
func ReadSeedFile(path string) ([]models.RawRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readWorkbook(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return readDelimited(f)
}

func readDelimited(r io.Reader) ([]models.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records []models.RawRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("failed to read CSV row %d: %w", len(records)+2, err)
		}
		records = append(records, models.NewRawRecord(header, row))
	}
	return records, nil
}

// readWorkbook reads the first sheet; the first row is the header
func readWorkbook(path string) ([]models.RawRecord, error) {
	x, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer x.Close()

	sheets := x.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := x.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]models.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, models.NewRawRecord(rows[0], row))
	}
	return records, nil
}

// LoadSeedDir decodes every seed table found in dir. Rows that fail to decode
// are counted and reported, not fatal. Rows without a creation timestamp are
// stamped from now in file order, so later rows count as newer.
func LoadSeedDir(dir string, unit models.GradeUnit, now time.Time) (*SeedSet, error) {
	set := &SeedSet{Counts: make(map[SeedEntity]*EntityCount)}

	found := 0
	for _, entity := range SeedOrder {
		path := FindSeedFile(dir, entity)
		if path == "" {
			continue
		}
		found++

		records, err := ReadSeedFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
		}

		count := &EntityCount{File: filepath.Base(path), Rows: len(records)}
		set.Counts[entity] = count

		for i, rec := range records {
			rowNow := now.Add(time.Duration(i) * time.Millisecond)
			if err := set.add(entity, rec, unit, rowNow); err != nil {
				count.Failed++
				set.Errors = append(set.Errors, fmt.Sprintf("%s row %d: %v", count.File, i+2, err))
			}
		}
	}

	if found == 0 {
		return nil, fmt.Errorf("no seed files found in %s", dir)
	}
	return set, nil
}

func (s *SeedSet) add(entity SeedEntity, rec models.RawRecord, unit models.GradeUnit, now time.Time) error {
	switch entity {
	case SeedUsers:
		u, err := rec.ToUser(now)
		if err != nil {
			return err
		}
		s.Snapshot.Users = append(s.Snapshot.Users, *u)
	case SeedFarms:
		f, err := rec.ToFarm(now)
		if err != nil {
			return err
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		s.Snapshot.Farms = append(s.Snapshot.Farms, *f)
	case SeedClusters:
		c, err := rec.ToCluster(now)
		if err != nil {
			return err
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		s.Snapshot.Clusters = append(s.Snapshot.Clusters, *c)
	case SeedStageData:
		sd, err := rec.ToStageData(now)
		if err != nil {
			return err
		}
		if sd.ID == "" {
			sd.ID = uuid.NewString()
		}
		s.Snapshot.StageData = append(s.Snapshot.StageData, *sd)
	case SeedHarvests:
		h, err := rec.ToHarvestRecord(now, unit)
		if err != nil {
			return err
		}
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		s.Snapshot.Harvests = append(s.Snapshot.Harvests, *h)
	default:
		return fmt.Errorf("unknown seed entity %q", entity)
	}
	return nil
}

// Failed sums decode failures across tables
func (s *SeedSet) Failed() int {
	n := 0
	for _, c := range s.Counts {
		n += c.Failed
	}
	return n
}
