package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/agrade-energy/solarportal/internal/database"
)

// Export writes the report document and its four CSV companions into a
// per-upload directory under outputDir. Every file is attempted even when an
// earlier one fails; the returned error aggregates the failures and the
// returned paths are the files that were written.
func Export(outputDir string, rep *Report, hourly []database.HourlySummary, daily []database.DailySummary, classified []database.ClassifiedMeasurement) ([]string, error) {
	runDir := filepath.Join(outputDir, rep.UploadID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create output directory: %w", err)
	}

	var errs *multierror.Error
	var written []string

	writeCSV := func(name string, write func(w *csv.Writer) error) {
		path := filepath.Join(runDir, name)
		f, err := os.Create(path)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("creating %s: %w", name, err))
			return
		}
		w := csv.NewWriter(f)
		werr := write(w)
		w.Flush()
		if werr == nil {
			werr = w.Error()
		}
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			errs = multierror.Append(errs, fmt.Errorf("writing %s: %w", name, werr))
			return
		}
		written = append(written, path)
	}

	clearDates := make(map[string]bool)
	for _, d := range daily {
		if d.Classification == database.ClassificationClear {
			clearDates[d.Date] = true
		}
	}

	writeCSV("hourly_analysis_all_data.csv", func(w *csv.Writer) error {
		return writeHourly(w, hourly)
	})
	writeCSV("hourly_analysis_clear_days_only.csv", func(w *csv.Writer) error {
		var subset []database.HourlySummary
		for _, h := range hourly {
			if clearDates[h.Date] {
				subset = append(subset, h)
			}
		}
		return writeHourly(w, subset)
	})
	writeCSV("daily_summary.csv", func(w *csv.Writer) error {
		return writeDaily(w, daily)
	})
	writeCSV("classification_details.csv", func(w *csv.Writer) error {
		return writeClassified(w, classified)
	})

	reportPath := filepath.Join(runDir, "analysis_report.txt")
	rep.GeneratedFiles = append(append([]string{}, written...), reportPath)

	f, err := os.Create(reportPath)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("creating report document: %w", err))
		return written, errs.ErrorOrNil()
	}
	renderErr := Render(f, rep)
	if cerr := f.Close(); renderErr == nil {
		renderErr = cerr
	}
	if renderErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("writing report document: %w", renderErr))
	} else {
		written = append(written, reportPath)
	}

	return written, errs.ErrorOrNil()
}

var hourlyHeader = []string{
	"date", "hour", "avg_power_W", "std_power_W", "count",
	"clear_avg_power_W", "clear_std_power_W", "clear_count",
	"avg_voltage_V", "avg_current_A", "avg_temperature_C",
	"energy_Wh", "classification",
}

func writeHourly(w *csv.Writer, rows []database.HourlySummary) error {
	if err := w.Write(hourlyHeader); err != nil {
		return err
	}
	for _, h := range rows {
		rec := []string{
			h.Date,
			strconv.Itoa(h.Hour),
			f2(h.AvgPowerW),
			f2(h.StdPowerW),
			strconv.Itoa(h.CountMeasurements),
			optF2(h.ClearAvgPowerW),
			optF2(h.ClearStdPowerW),
			strconv.Itoa(h.ClearCount),
			f2(h.AvgVoltageV),
			f2(h.AvgCurrentA),
			f2(h.AvgTemperatureC),
			f2(h.EnergyWh),
			h.Classification,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

var dailyHeader = []string{
	"date", "peak_power_W", "peak_hour", "energy_Wh", "clear_energy_Wh",
	"clear_hours", "marginal_hours", "cloudy_hours", "indeterminate_hours",
	"classification", "avg_cloud_cover_pct", "avg_temperature_C",
}

func writeDaily(w *csv.Writer, rows []database.DailySummary) error {
	if err := w.Write(dailyHeader); err != nil {
		return err
	}
	for _, d := range rows {
		rec := []string{
			d.Date,
			f2(d.PeakPowerW),
			strconv.Itoa(d.PeakHour),
			f2(d.EnergyWh),
			f2(d.ClearEnergyWh),
			strconv.Itoa(d.ClearHours),
			strconv.Itoa(d.MarginalHours),
			strconv.Itoa(d.CloudyHours),
			strconv.Itoa(d.IndeterminateHours),
			d.Classification,
			optF2(d.AvgCloudCoverPct),
			f2(d.AvgTemperatureC),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

var classifiedHeader = []string{
	"timestamp", "date", "hour", "power_W", "median_power_W",
	"power_ratio", "threshold", "sample_count", "classification", "confidence",
}

func writeClassified(w *csv.Writer, rows []database.ClassifiedMeasurement) error {
	if err := w.Write(classifiedHeader); err != nil {
		return err
	}
	for _, c := range rows {
		rec := []string{
			c.Timestamp.Format("2006-01-02 15:04:05"),
			c.Date,
			strconv.Itoa(c.Hour),
			f2(c.PowerW),
			f2(c.MedianPowerW),
			optF4(c.PowerRatio),
			f2(c.Threshold),
			strconv.Itoa(c.SampleCount),
			c.Classification,
			f4(c.Confidence),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
func f4(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

func optF2(v *float64) string {
	if v == nil {
		return ""
	}
	return f2(*v)
}

func optF4(v *float64) string {
	if v == nil {
		return ""
	}
	return f4(*v)
}
