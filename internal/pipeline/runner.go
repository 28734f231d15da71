// Package pipeline drives an upload through ingestion, weather enrichment,
// classification, aggregation and reporting as one analysis run.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/agrade-energy/solarportal/internal/aggregate"
	"github.com/agrade-energy/solarportal/internal/audit"
	"github.com/agrade-energy/solarportal/internal/classify"
	"github.com/agrade-energy/solarportal/internal/database"
	"github.com/agrade-energy/solarportal/internal/ingest"
	"github.com/agrade-energy/solarportal/internal/log"
	"github.com/agrade-energy/solarportal/internal/report"
	"github.com/agrade-energy/solarportal/internal/weather"
	"github.com/agrade-energy/solarportal/pkg/config"
)

// Runner executes analysis runs against one store. Source may be nil to skip
// weather enrichment entirely.
type Runner struct {
	DB        *database.Client
	Cfg       *config.ConfigData
	Source    weather.Source
	OutputDir string
}

// Run ingests csvPath as a new upload and carries it through every pipeline
// stage. The new upload ID is returned even when the run fails so callers
// can point at its audit trail.
func (r *Runner) Run(ctx context.Context, csvPath string) (string, error) {
	uploadID := uuid.NewString()

	loc, err := r.Cfg.TimeLocation()
	if err != nil {
		return uploadID, fmt.Errorf("resolving site timezone: %w", err)
	}

	run := r.newRun(uploadID, csvPath)
	if err := r.DB.CreateRun(run); err != nil {
		return uploadID, fmt.Errorf("creating run %s: %w", uploadID, err)
	}

	rec := audit.NewRecorder(r.DB, uploadID)
	rec.Info(audit.StageRun, "analysis run started for %s", filepath.Base(csvPath))

	if err := r.DB.UpdateRunStatus(uploadID, database.StatusRunning); err != nil {
		return uploadID, r.fail(rec, uploadID, audit.StageRun, err)
	}

	ing := &ingest.Ingester{DB: r.DB, Audit: rec, Cfg: r.Cfg, Site: loc}
	res, err := ing.Run(uploadID, csvPath)
	if err != nil {
		return uploadID, r.fail(rec, uploadID, audit.StageIngest, err)
	}
	if err := r.DB.SetRunCounts(uploadID, res.Uploaded, res.Valid); err != nil {
		return uploadID, r.fail(rec, uploadID, audit.StageIngest, err)
	}
	if res.Valid == 0 {
		err := fmt.Errorf("no valid measurements remained from %d uploaded rows", res.Uploaded)
		return uploadID, r.fail(rec, uploadID, audit.StageIngest, err)
	}
	rec.Info(audit.StageIngest, "stored %d of %d rows", res.Valid, res.Uploaded)

	if r.Source == nil || run.WeatherSource == config.WeatherSourceNone {
		rec.Info(audit.StageEnrich, "weather enrichment disabled, skipping")
	} else {
		site := weather.Site{
			Latitude:  run.Latitude,
			Longitude: run.Longitude,
			Timezone:  run.Timezone,
			Loc:       loc,
		}
		enr := &weather.Enricher{DB: r.DB, Audit: rec, Source: r.Source}
		if err := enr.Run(ctx, uploadID, site); err != nil {
			return uploadID, r.fail(rec, uploadID, audit.StageEnrich, err)
		}
	}

	if err := r.analyze(ctx, rec, run); err != nil {
		return uploadID, err
	}

	if err := r.DB.CompleteRun(uploadID); err != nil {
		return uploadID, r.fail(rec, uploadID, audit.StageRun, err)
	}
	rec.Info(audit.StageRun, "analysis run completed")
	return uploadID, nil
}

// Reprocess reruns classification, aggregation and reporting over the stored
// measurements of an existing upload, using the parameters saved with the
// run. Ingestion and weather enrichment are not repeated.
func (r *Runner) Reprocess(ctx context.Context, uploadID string) error {
	run, err := r.DB.GetRun(uploadID)
	if err != nil {
		return fmt.Errorf("loading run %s: %w", uploadID, err)
	}

	rec := audit.NewRecorder(r.DB, uploadID)
	rec.Info(audit.StageRun, "reprocessing stored measurements")

	if err := r.DB.UpdateRunStatus(uploadID, database.StatusRunning); err != nil {
		return r.fail(rec, uploadID, audit.StageRun, err)
	}
	if err := r.analyze(ctx, rec, run); err != nil {
		return err
	}
	if err := r.DB.CompleteRun(uploadID); err != nil {
		return r.fail(rec, uploadID, audit.StageRun, err)
	}
	rec.Info(audit.StageRun, "reprocess completed")
	return nil
}

// analyze runs the classification, aggregation and reporting stages. The run
// is marked FAILED on any stage error.
func (r *Runner) analyze(ctx context.Context, rec *audit.Recorder, run *database.AnalysisMetadata) error {
	raw, err := r.DB.MeasurementsByUpload(run.UploadID)
	if err != nil {
		return r.fail(rec, run.UploadID, audit.StageClassify, err)
	}

	result := classify.Classify(raw, classify.Params{
		ClearThreshold: run.ClearThreshold,
		CloudyCutoff:   run.CloudyCutoff,
		MinHourSamples: run.MinHourSamples,
	})
	if err := r.DB.ReplaceClassifications(run.UploadID, result.Rows); err != nil {
		return r.fail(rec, run.UploadID, audit.StageClassify, err)
	}
	rec.Info(audit.StageClassify, "classified %d measurements: %d clear, %d marginal, %d cloudy, %d indeterminate",
		len(result.Rows),
		result.Counts[database.ClassificationClear],
		result.Counts[database.ClassificationMarginal],
		result.Counts[database.ClassificationCloudy],
		result.Counts[database.ClassificationIndeterminate])
	warnUnclassifiableHours(rec, raw, result, run.MinHourSamples)

	if err := ctx.Err(); err != nil {
		return r.fail(rec, run.UploadID, audit.StageRun, err)
	}

	weatherRows, err := r.DB.WeatherByUpload(run.UploadID)
	if err != nil {
		return r.fail(rec, run.UploadID, audit.StageAggregate, err)
	}
	hourly, daily, err := aggregate.Build(run.UploadID, raw, result.Rows, weatherRows)
	if err != nil {
		return r.fail(rec, run.UploadID, audit.StageAggregate, err)
	}
	if err := r.DB.ReplaceHourlySummaries(run.UploadID, hourly); err != nil {
		return r.fail(rec, run.UploadID, audit.StageAggregate, err)
	}
	if err := r.DB.ReplaceDailySummaries(run.UploadID, daily); err != nil {
		return r.fail(rec, run.UploadID, audit.StageAggregate, err)
	}
	rec.Info(audit.StageAggregate, "aggregated %d hourly and %d daily summaries", len(hourly), len(daily))

	rep := report.Compute(run, raw, result.Rows, hourly, daily)
	files, err := report.Export(r.OutputDir, rep, hourly, daily, result.Rows)
	if err != nil {
		return r.fail(rec, run.UploadID, audit.StageReport, err)
	}
	rec.Info(audit.StageReport, "wrote %d report files to %s", len(files), filepath.Join(r.OutputDir, run.UploadID))

	return nil
}

// warnUnclassifiableHours audits one warning per hour of day that produced
// power but could not support a ratio. Hours that never generate, like night
// hours, are indeterminate by construction and stay quiet.
func warnUnclassifiableHours(rec *audit.Recorder, raw []database.RawMeasurement, result classify.Result, minSamples int) {
	generating := make(map[int]bool)
	for _, m := range raw {
		if m.PowerW > 0 {
			generating[m.Hour] = true
		}
	}
	for h := 0; h < 24; h++ {
		b, ok := result.Baselines[h]
		if !ok || !generating[h] {
			continue
		}
		if b.MedianPowerW == 0 || b.SampleCount < minSamples {
			rec.Warning(audit.StageClassify, "hour %02d:00 could not be classified: median %.1f W over %d samples",
				h, b.MedianPowerW, b.SampleCount)
		}
	}
}

// fail marks the run FAILED, records the error in the audit trail and
// returns it wrapped with its stage.
func (r *Runner) fail(rec *audit.Recorder, uploadID, stage string, err error) error {
	rec.Error(stage, "analysis run failed: %v", err)
	if dbErr := r.DB.FailRun(uploadID, err.Error()); dbErr != nil {
		log.Errorf("unable to mark run %s failed: %v", uploadID, dbErr)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

func (r *Runner) newRun(uploadID, csvPath string) *database.AnalysisMetadata {
	return &database.AnalysisMetadata{
		UploadID:         uploadID,
		SourceFile:       filepath.Base(csvPath),
		Location:         r.Cfg.Location.Name,
		Latitude:         r.Cfg.Location.Latitude,
		Longitude:        r.Cfg.Location.Longitude,
		Timezone:         r.Cfg.Location.Timezone,
		AltitudeM:        r.Cfg.Location.AltitudeM,
		RatedPowerW:      r.Cfg.Panel.RatedPowerW,
		ClearThreshold:   r.Cfg.Analysis.ClearThreshold,
		CloudyCutoff:     r.Cfg.Analysis.CloudyCutoff,
		MinHourSamples:   r.Cfg.Analysis.MinHourSamples,
		AnomalySigma:     r.Cfg.Analysis.AnomalySigma,
		TempCoeffPctPerC: r.Cfg.Panel.TempCoeffPctPerC,
		WeatherSource:    r.Cfg.Analysis.WeatherSource,
		ClearSkyModel:    r.Cfg.Analysis.ClearSkyModel,
		Status:           database.StatusPending,
		StartedAt:        time.Now(),
	}
}
