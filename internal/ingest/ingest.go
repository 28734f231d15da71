package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/agrade-energy/solarportal/internal/audit"
	"github.com/agrade-energy/solarportal/internal/database"
	"github.com/agrade-energy/solarportal/internal/log"
	"github.com/agrade-energy/solarportal/pkg/config"
)

// Ingester loads one CSV upload into raw_measurements.
type Ingester struct {
	DB    *database.Client
	Audit *audit.Recorder
	Cfg   *config.ConfigData
	Site  *time.Location
}

// Result carries the ingestion counts recorded on the run.
type Result struct {
	Uploaded int // data rows found in the file
	Valid    int // rows that survived validation and deduplication
}

// Run parses, validates and stores the upload. Row-level problems are
// audited and skipped; the returned error is reserved for file-level
// failures that abort the run.
func (ing *Ingester) Run(uploadID, csvPath string) (Result, error) {
	var res Result

	info, err := os.Stat(csvPath)
	if err != nil {
		return res, fmt.Errorf("unable to stat upload: %w", err)
	}
	maxBytes := int64(ing.Cfg.Analysis.MaxFileSizeMB) * 1024 * 1024
	if maxBytes > 0 && info.Size() > maxBytes {
		return res, fmt.Errorf("upload is %d bytes, limit is %d MB", info.Size(), ing.Cfg.Analysis.MaxFileSizeMB)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return res, fmt.Errorf("unable to open upload: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return res, fmt.Errorf("unable to read CSV header: %w", err)
	}
	idx, err := parseHeader(header)
	if err != nil {
		return res, err
	}

	rows := ing.readRows(reader, idx, &res)

	if res.Uploaded == 0 {
		return res, errors.New("upload contains no data rows")
	}
	if res.Uploaded > ing.Cfg.Analysis.MaxRows {
		return res, fmt.Errorf("upload has %d rows, limit is %d", res.Uploaded, ing.Cfg.Analysis.MaxRows)
	}
	if res.Uploaded < ing.Cfg.Analysis.MinRows {
		return res, fmt.Errorf("upload has %d rows, minimum is %d", res.Uploaded, ing.Cfg.Analysis.MinRows)
	}

	findings := checkTimeline(rows)
	if findings.nonMonotonic {
		ing.Audit.Warning(audit.StageIngest, "timestamps are not monotonically increasing")
	}
	if findings.gapCount > 0 {
		ing.Audit.Warning(audit.StageIngest, "%d sampling gaps larger than 1h detected (largest %s)", findings.gapCount, findings.largestGap)
	}

	rows, err = ing.dropDuplicates(rows)
	if err != nil {
		return res, err
	}

	measurements := ing.toMeasurements(uploadID, rows)
	if err := ing.DB.InsertMeasurements(measurements); err != nil {
		return res, err
	}
	res.Valid = len(measurements)

	log.Infof("ingested %d of %d rows from %s for run %s", res.Valid, res.Uploaded, csvPath, uploadID)
	return res, nil
}

// readRows walks the CSV body, keeping rows that parse and validate.
func (ing *Ingester) readRows(reader *csv.Reader, idx columnIndex, res *Result) []Row {
	var rows []Row
	line := 1 // header was line 1

	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Uploaded++
			ing.Audit.Error(audit.StageIngest, "line %d: malformed CSV record: %v", line, err)
			continue
		}
		res.Uploaded++

		row, err := parseRow(record, idx, line, ing.Site)
		if err != nil {
			ing.Audit.Error(audit.StageIngest, "line %d: %v", line, err)
			continue
		}
		if row.Location == "" {
			row.Location = ing.Cfg.Location.Name
		}
		if row.RatedPowerW == 0 {
			row.RatedPowerW = ing.Cfg.Panel.RatedPowerW
		}

		rejects, warnings := checkRow(row, ing.Cfg.Validation, ing.Cfg.Analysis, row.RatedPowerW)
		if len(rejects) > 0 {
			ing.Audit.Error(audit.StageIngest, "line %d rejected: %s", line, strings.Join(rejects, "; "))
			continue
		}
		for _, w := range warnings {
			ing.Audit.Warning(audit.StageIngest, "line %d: %s", line, w)
		}

		rows = append(rows, row)
	}

	return rows
}

// dropDuplicates enforces store-wide timestamp uniqueness: duplicates inside
// the upload and collisions with previously stored measurements are audited
// and skipped.
func (ing *Ingester) dropDuplicates(rows []Row) ([]Row, error) {
	candidates := make([]time.Time, len(rows))
	for i, r := range rows {
		candidates[i] = r.Timestamp
	}
	existing, err := ing.DB.ExistingTimestamps(candidates)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]int, len(rows))
	kept := rows[:0]
	for _, r := range rows {
		key := r.Timestamp.Unix()
		if existing[key] {
			ing.Audit.Error(audit.StageIngest, "line %d rejected: timestamp %s already exists in the store", r.Line, r.Timestamp.Format(time.RFC3339))
			continue
		}
		if prev, dup := seen[key]; dup {
			ing.Audit.Error(audit.StageIngest, "line %d rejected: duplicate timestamp %s (first seen on line %d)", r.Line, r.Timestamp.Format(time.RFC3339), prev)
			continue
		}
		seen[key] = r.Line
		kept = append(kept, r)
	}

	return kept, nil
}

// toMeasurements converts surviving rows to their stored form, deriving the
// date and hour grouping keys in the site timezone.
func (ing *Ingester) toMeasurements(uploadID string, rows []Row) []database.RawMeasurement {
	now := time.Now()
	out := make([]database.RawMeasurement, 0, len(rows))
	for _, r := range rows {
		local := r.Timestamp.In(ing.Site)
		out = append(out, database.RawMeasurement{
			UploadID:     uploadID,
			Timestamp:    r.Timestamp,
			Date:         local.Format("2006-01-02"),
			Hour:         local.Hour(),
			VoltageV:     r.VoltageV,
			CurrentA:     r.CurrentA,
			PowerW:       r.PowerW,
			TemperatureC: r.TemperatureC,
			Location:     r.Location,
			RatedPowerW:  r.RatedPowerW,
			UploadedAt:   now,
		})
	}
	return out
}
