package weather

import (
	"context"
	"sort"
	"time"

	"github.com/agrade-energy/solarportal/internal/audit"
	"github.com/agrade-energy/solarportal/internal/database"
	"github.com/agrade-energy/solarportal/internal/log"
)

const (
	fetchAttempts = 3
	maxRetryDelay = 10 * time.Second
)

var baseRetryDelay = time.Second

// Enricher joins uploaded measurements with archive weather, one record per
// distinct site-local hour.
type Enricher struct {
	DB     *database.Client
	Audit  *audit.Recorder
	Source Source
}

// Run fetches the archive range covering the upload and upserts a weather
// record for every measured hour. A source failure degrades to null
// observations with a warning; only storage errors are returned.
func (e *Enricher) Run(ctx context.Context, uploadID string, site Site) error {
	rows, err := e.DB.MeasurementsByUpload(uploadID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	needed := make(map[HourKey]bool)
	startDate, endDate := rows[0].Date, rows[0].Date
	for _, r := range rows {
		needed[HourKey{Date: r.Date, Hour: r.Hour}] = true
		if r.Date < startDate {
			startDate = r.Date
		}
		if r.Date > endDate {
			endDate = r.Date
		}
	}

	obs, fetchErr := e.fetchWithRetry(ctx, site, startDate, endDate)
	if fetchErr != nil {
		e.Audit.Warning(audit.StageEnrich, "weather enrichment degraded, storing null observations: %v", fetchErr)
		obs = map[HourKey]Observation{}
	}

	keys := make([]HourKey, 0, len(needed))
	for k := range needed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].Hour < keys[j].Hour
	})

	now := time.Now()
	missing := 0
	for _, k := range keys {
		rec := &database.WeatherRecord{
			UploadID:  uploadID,
			Date:      k.Date,
			Hour:      k.Hour,
			Source:    e.Source.Name(),
			FetchedAt: now,
		}
		if o, ok := obs[k]; ok {
			rec.POAIrradianceWm2 = o.POAIrradianceWm2
			rec.GHIWm2 = o.GHIWm2
			rec.CloudCoverPct = o.CloudCoverPct
			rec.AmbientTempC = o.AmbientTempC
			rec.PressureHPa = o.PressureHPa
			rec.WindSpeedMs = o.WindSpeedMs
		} else {
			missing++
			log.Debugf("no %s archive observation for %s hour %02d", e.Source.Name(), k.Date, k.Hour)
		}
		if err := e.DB.UpsertWeatherRecord(rec); err != nil {
			return err
		}
	}

	if fetchErr == nil && missing > 0 {
		e.Audit.Warning(audit.StageEnrich, "%d of %d measured hours missing from the %s archive", missing, len(keys), e.Source.Name())
	}
	e.Audit.Info(audit.StageEnrich, "stored %d weather records from %s", len(keys), e.Source.Name())
	return nil
}

// fetchWithRetry calls the source up to fetchAttempts times with exponential
// backoff between attempts.
func (e *Enricher) fetchWithRetry(ctx context.Context, site Site, startDate, endDate string) (map[HourKey]Observation, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<attempt)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			log.Debugf("retrying %s fetch in %v (attempt %d of %d)", e.Source.Name(), delay, attempt+1, fetchAttempts)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		obs, err := e.Source.FetchHourly(ctx, site, startDate, endDate)
		if err == nil {
			return obs, nil
		}
		lastErr = err
		log.Warnf("attempt %d to fetch the %s archive failed: %v", attempt+1, e.Source.Name(), err)
	}
	return nil, lastErr
}
