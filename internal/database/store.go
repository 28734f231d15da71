package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// insertBatchSize bounds multi-row inserts so a large upload never builds a
// single oversized statement.
const insertBatchSize = 500

// CreateRun inserts the metadata row for a new upload.
func (c *Client) CreateRun(run *AnalysisMetadata) error {
	if err := c.DB.Create(run).Error; err != nil {
		return fmt.Errorf("error creating analysis run %s: %w", run.UploadID, err)
	}
	return nil
}

// GetRun fetches the metadata row for an upload.
func (c *Client) GetRun(uploadID string) (*AnalysisMetadata, error) {
	var run AnalysisMetadata
	if err := c.DB.Where("upload_id = ?", uploadID).First(&run).Error; err != nil {
		return nil, fmt.Errorf("error loading analysis run %s: %w", uploadID, err)
	}
	return &run, nil
}

// UpdateRunStatus moves a run to a new lifecycle state.
func (c *Client) UpdateRunStatus(uploadID, status string) error {
	err := c.DB.Model(&AnalysisMetadata{}).
		Where("upload_id = ?", uploadID).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("error updating run %s to status %s: %w", uploadID, status, err)
	}
	return nil
}

// SetRunCounts records the uploaded and valid measurement counts.
func (c *Client) SetRunCounts(uploadID string, uploaded, valid int) error {
	err := c.DB.Model(&AnalysisMetadata{}).
		Where("upload_id = ?", uploadID).
		Updates(map[string]interface{}{
			"data_points_uploaded": uploaded,
			"data_points_valid":    valid,
		}).Error
	if err != nil {
		return fmt.Errorf("error recording counts for run %s: %w", uploadID, err)
	}
	return nil
}

// CompleteRun marks a run COMPLETED and stamps its completion time.
func (c *Client) CompleteRun(uploadID string) error {
	now := time.Now()
	err := c.DB.Model(&AnalysisMetadata{}).
		Where("upload_id = ?", uploadID).
		Updates(map[string]interface{}{
			"status":       StatusCompleted,
			"completed_at": &now,
		}).Error
	if err != nil {
		return fmt.Errorf("error completing run %s: %w", uploadID, err)
	}
	return nil
}

// FailRun marks a run FAILED with the reason preserved for the audit trail.
func (c *Client) FailRun(uploadID, message string) error {
	now := time.Now()
	err := c.DB.Model(&AnalysisMetadata{}).
		Where("upload_id = ?", uploadID).
		Updates(map[string]interface{}{
			"status":        StatusFailed,
			"error_message": message,
			"completed_at":  &now,
		}).Error
	if err != nil {
		return fmt.Errorf("error failing run %s: %w", uploadID, err)
	}
	return nil
}

// InsertMeasurements stores validated measurement rows in batches.
func (c *Client) InsertMeasurements(rows []RawMeasurement) error {
	if len(rows) == 0 {
		return nil
	}
	if err := c.DB.CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("error inserting %d measurements: %w", len(rows), err)
	}
	return nil
}

// ExistingTimestamps reports which of the candidate instants already exist in
// raw_measurements, keyed by Unix seconds. Used for store-wide duplicate
// detection before insert.
func (c *Client) ExistingTimestamps(candidates []time.Time) (map[int64]bool, error) {
	existing := make(map[int64]bool)
	for start := 0; start < len(candidates); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		var found []time.Time
		err := c.DB.Model(&RawMeasurement{}).
			Where("timestamp IN ?", candidates[start:end]).
			Pluck("timestamp", &found).Error
		if err != nil {
			return nil, fmt.Errorf("error checking existing timestamps: %w", err)
		}
		for _, ts := range found {
			existing[ts.Unix()] = true
		}
	}
	return existing, nil
}

// MeasurementsByUpload returns an upload's valid measurements ordered by time.
func (c *Client) MeasurementsByUpload(uploadID string) ([]RawMeasurement, error) {
	var rows []RawMeasurement
	err := c.DB.Where("upload_id = ?", uploadID).Order("timestamp").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error loading measurements for run %s: %w", uploadID, err)
	}
	return rows, nil
}

// UpsertWeatherRecord creates or refreshes the observation row for one
// (upload, date, hour).
func (c *Client) UpsertWeatherRecord(rec *WeatherRecord) error {
	var existing WeatherRecord
	err := c.DB.Where("upload_id = ? AND date = ? AND hour = ?", rec.UploadID, rec.Date, rec.Hour).
		First(&existing).Error

	if err == gorm.ErrRecordNotFound {
		return c.DB.Create(rec).Error
	} else if err == nil {
		existing.POAIrradianceWm2 = rec.POAIrradianceWm2
		existing.GHIWm2 = rec.GHIWm2
		existing.CloudCoverPct = rec.CloudCoverPct
		existing.AmbientTempC = rec.AmbientTempC
		existing.PressureHPa = rec.PressureHPa
		existing.WindSpeedMs = rec.WindSpeedMs
		existing.Source = rec.Source
		existing.FetchedAt = rec.FetchedAt
		return c.DB.Save(&existing).Error
	}
	return err
}

// WeatherByUpload returns an upload's weather rows ordered by date and hour.
func (c *Client) WeatherByUpload(uploadID string) ([]WeatherRecord, error) {
	var rows []WeatherRecord
	err := c.DB.Where("upload_id = ?", uploadID).Order("date, hour").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error loading weather records for run %s: %w", uploadID, err)
	}
	return rows, nil
}

// ReplaceClassifications atomically rewrites an upload's classified rows.
// Classification is deterministic, so rewriting keeps re-runs idempotent.
func (c *Client) ReplaceClassifications(uploadID string, rows []ClassifiedMeasurement) error {
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("upload_id = ?", uploadID).Delete(&ClassifiedMeasurement{}).Error; err != nil {
			return fmt.Errorf("error clearing classifications for run %s: %w", uploadID, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("error inserting %d classifications: %w", len(rows), err)
		}
		return nil
	})
}

// ClassificationsByUpload returns an upload's classified rows ordered by time.
func (c *Client) ClassificationsByUpload(uploadID string) ([]ClassifiedMeasurement, error) {
	var rows []ClassifiedMeasurement
	err := c.DB.Where("upload_id = ?", uploadID).Order("timestamp").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error loading classifications for run %s: %w", uploadID, err)
	}
	return rows, nil
}

// ReplaceHourlySummaries atomically rewrites an upload's hourly summaries.
func (c *Client) ReplaceHourlySummaries(uploadID string, rows []HourlySummary) error {
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("upload_id = ?", uploadID).Delete(&HourlySummary{}).Error; err != nil {
			return fmt.Errorf("error clearing hourly summaries for run %s: %w", uploadID, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("error inserting %d hourly summaries: %w", len(rows), err)
		}
		return nil
	})
}

// ReplaceDailySummaries atomically rewrites an upload's daily summaries.
func (c *Client) ReplaceDailySummaries(uploadID string, rows []DailySummary) error {
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("upload_id = ?", uploadID).Delete(&DailySummary{}).Error; err != nil {
			return fmt.Errorf("error clearing daily summaries for run %s: %w", uploadID, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("error inserting %d daily summaries: %w", len(rows), err)
		}
		return nil
	})
}

// HourlyByUpload returns an upload's hourly summaries ordered by date and hour.
func (c *Client) HourlyByUpload(uploadID string) ([]HourlySummary, error) {
	var rows []HourlySummary
	err := c.DB.Where("upload_id = ?", uploadID).Order("date, hour").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error loading hourly summaries for run %s: %w", uploadID, err)
	}
	return rows, nil
}

// DailyByUpload returns an upload's daily summaries ordered by date.
func (c *Client) DailyByUpload(uploadID string) ([]DailySummary, error) {
	var rows []DailySummary
	err := c.DB.Where("upload_id = ?", uploadID).Order("date").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error loading daily summaries for run %s: %w", uploadID, err)
	}
	return rows, nil
}

// AppendAudit adds one entry to the append-only audit trail.
func (c *Client) AppendAudit(entry *AuditLogEntry) error {
	if err := c.DB.Create(entry).Error; err != nil {
		return fmt.Errorf("error appending audit entry for run %s: %w", entry.UploadID, err)
	}
	return nil
}

// AuditByUpload returns an upload's audit trail in insertion order.
func (c *Client) AuditByUpload(uploadID string) ([]AuditLogEntry, error) {
	var rows []AuditLogEntry
	err := c.DB.Where("upload_id = ?", uploadID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error loading audit log for run %s: %w", uploadID, err)
	}
	return rows, nil
}
