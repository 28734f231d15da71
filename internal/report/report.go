// Package report turns a completed analysis run into its report document and
// CSV exports.
package report

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/agrade-energy/solarportal/internal/database"
	"github.com/agrade-energy/solarportal/internal/log"
	"github.com/agrade-energy/solarportal/pkg/solar"
)

// Performance ratios are clipped to a sanity range so a bad rated-power
// setting cannot produce absurd headline numbers.
const maxPerformanceRatio = 1.5

// Report is the computed analysis document for one run. Pointer fields are
// nil when the underlying metric is undefined for the upload and render as
// N/A placeholders.
type Report struct {
	UploadID    string
	GeneratedAt time.Time
	Location    string
	Latitude    float64
	Longitude   float64

	StartDate         string
	EndDate           string
	Days              int
	UploadedRows      int
	ValidRows         int
	TotalMeasurements int

	PeakPowerW    float64
	PeakTimestamp time.Time
	AvgPowerW     float64

	TotalEnergyWh    float64
	ClearEnergyWh    float64
	AvgDailyEnergyWh float64

	ClearCount         int
	MarginalCount      int
	CloudyCount        int
	IndeterminateCount int

	ClearDays         int
	MarginalDays      int
	CloudyDays        int
	IndeterminateDays int

	RatedPowerW           float64
	PerformanceRatio      *float64
	ClearPerformanceRatio *float64
	TheoreticalYieldWh    *float64
	CaptureRatio          *float64

	AvgTemperatureC       float64
	MinTemperatureC       float64
	MaxTemperatureC       float64
	MeasuredTempCoeff     *float64
	RatedTempCoeffPctPerC float64

	ClearThreshold float64
	CloudyCutoff   float64
	AnomalySigma   float64
	WeatherSource  string
	ClearSkyModel  string

	Anomalies       []Anomaly
	Recommendations []string

	GeneratedFiles []string
}

// Compute derives every report metric from the stored run artifacts. It
// never fails: metrics that cannot be computed stay nil.
func Compute(run *database.AnalysisMetadata, raw []database.RawMeasurement, classified []database.ClassifiedMeasurement, hourly []database.HourlySummary, daily []database.DailySummary) *Report {
	r := &Report{
		UploadID:              run.UploadID,
		GeneratedAt:           time.Now(),
		Location:              run.Location,
		Latitude:              run.Latitude,
		Longitude:             run.Longitude,
		UploadedRows:          run.DataPointsUploaded,
		ValidRows:             run.DataPointsValid,
		TotalMeasurements:     len(raw),
		RatedPowerW:           run.RatedPowerW,
		RatedTempCoeffPctPerC: run.TempCoeffPctPerC,
		ClearThreshold:        run.ClearThreshold,
		CloudyCutoff:          run.CloudyCutoff,
		AnomalySigma:          run.AnomalySigma,
		WeatherSource:         run.WeatherSource,
		ClearSkyModel:         run.ClearSkyModel,
		Days:                  len(daily),
	}

	if len(daily) > 0 {
		r.StartDate = daily[0].Date
		r.EndDate = daily[len(daily)-1].Date
	}

	fillPowerSummary(r, raw, daily)
	fillClassification(r, classified, daily)
	fillPerformance(r, run, daily)
	fillTemperature(r, run, raw, classified)

	r.Anomalies = detectAnomalies(run.AnomalySigma, hourly, daily)
	r.Recommendations = recommend(r)

	return r
}

func fillPowerSummary(r *Report, raw []database.RawMeasurement, daily []database.DailySummary) {
	var powerSum float64
	for _, m := range raw {
		powerSum += m.PowerW
		if m.PowerW > r.PeakPowerW {
			r.PeakPowerW = m.PowerW
			r.PeakTimestamp = m.Timestamp
		}
	}
	if len(raw) > 0 {
		r.AvgPowerW = powerSum / float64(len(raw))
	}

	for _, d := range daily {
		r.TotalEnergyWh += d.EnergyWh
		r.ClearEnergyWh += d.ClearEnergyWh
	}
	if len(daily) > 0 {
		r.AvgDailyEnergyWh = r.TotalEnergyWh / float64(len(daily))
	}
}

func fillClassification(r *Report, classified []database.ClassifiedMeasurement, daily []database.DailySummary) {
	for _, c := range classified {
		switch c.Classification {
		case database.ClassificationClear:
			r.ClearCount++
		case database.ClassificationMarginal:
			r.MarginalCount++
		case database.ClassificationCloudy:
			r.CloudyCount++
		default:
			r.IndeterminateCount++
		}
	}
	for _, d := range daily {
		switch d.Classification {
		case database.ClassificationClear:
			r.ClearDays++
		case database.ClassificationMarginal:
			r.MarginalDays++
		case database.ClassificationCloudy:
			r.CloudyDays++
		default:
			r.IndeterminateDays++
		}
	}
}

// fillPerformance computes the performance ratios against rated output over
// daylight hours, and the capture ratio against the configured clear-sky
// model.
func fillPerformance(r *Report, run *database.AnalysisMetadata, daily []database.DailySummary) {
	if run.RatedPowerW <= 0 || len(daily) == 0 {
		return
	}

	var allDaylight, clearDaylight, clearEnergy float64
	for _, d := range daily {
		date, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			continue
		}
		hours := solar.DaylightHours(date, run.Latitude)
		allDaylight += hours
		if d.Classification == database.ClassificationClear {
			clearDaylight += hours
			clearEnergy += d.EnergyWh
		}
	}

	if allDaylight > 0 {
		pr := clipRatio(r.TotalEnergyWh / (run.RatedPowerW * allDaylight))
		r.PerformanceRatio = &pr
	}
	if clearDaylight > 0 {
		pr := clipRatio(clearEnergy / (run.RatedPowerW * clearDaylight))
		r.ClearPerformanceRatio = &pr
	}

	fillTheoreticalYield(r, run, daily)
}

// fillTheoreticalYield integrates the clear-sky model hourly across the
// analysis period. The model irradiance scales the rated output linearly
// against the 1000 W/m2 test condition.
func fillTheoreticalYield(r *Report, run *database.AnalysisMetadata, daily []database.DailySummary) {
	model, err := solar.ModelByName(run.ClearSkyModel)
	if err != nil {
		log.Warnf("skipping theoretical yield for run %s: %v", run.UploadID, err)
		return
	}
	loc, err := time.LoadLocation(run.Timezone)
	if err != nil {
		log.Warnf("skipping theoretical yield for run %s: unknown timezone %q", run.UploadID, run.Timezone)
		return
	}

	var yieldWh float64
	for _, d := range daily {
		date, err := time.ParseInLocation("2006-01-02", d.Date, loc)
		if err != nil {
			continue
		}
		for h := 0; h < 24; h++ {
			midpoint := date.Add(time.Duration(h)*time.Hour + 30*time.Minute)
			ghi := model(midpoint, run.Latitude, run.Longitude, run.AltitudeM)
			yieldWh += run.RatedPowerW * ghi / 1000
		}
	}
	if yieldWh <= 0 {
		return
	}
	r.TheoreticalYieldWh = &yieldWh

	capture := r.TotalEnergyWh / yieldWh
	r.CaptureRatio = &capture
}

// fillTemperature derives the measured temperature coefficient by regressing
// power against panel temperature over clear generating measurements,
// falling back to all generating measurements when the clear subset cannot
// support a regression.
func fillTemperature(r *Report, run *database.AnalysisMetadata, raw []database.RawMeasurement, classified []database.ClassifiedMeasurement) {
	if len(raw) == 0 {
		return
	}

	r.MinTemperatureC = raw[0].TemperatureC
	r.MaxTemperatureC = raw[0].TemperatureC
	var sum float64
	for _, m := range raw {
		sum += m.TemperatureC
		if m.TemperatureC < r.MinTemperatureC {
			r.MinTemperatureC = m.TemperatureC
		}
		if m.TemperatureC > r.MaxTemperatureC {
			r.MaxTemperatureC = m.TemperatureC
		}
	}
	r.AvgTemperatureC = sum / float64(len(raw))

	if run.RatedPowerW <= 0 {
		return
	}

	labels := make(map[int64]string, len(classified))
	for _, c := range classified {
		labels[c.Timestamp.Unix()] = c.Classification
	}

	var clearTemps, clearPowers, allTemps, allPowers []float64
	for _, m := range raw {
		if m.PowerW <= 0 {
			continue
		}
		allTemps = append(allTemps, m.TemperatureC)
		allPowers = append(allPowers, m.PowerW)
		if labels[m.Timestamp.Unix()] == database.ClassificationClear {
			clearTemps = append(clearTemps, m.TemperatureC)
			clearPowers = append(clearPowers, m.PowerW)
		}
	}

	coeff, ok := tempCoefficient(clearTemps, clearPowers, run.RatedPowerW)
	if !ok {
		coeff, ok = tempCoefficient(allTemps, allPowers, run.RatedPowerW)
	}
	if ok {
		r.MeasuredTempCoeff = &coeff
	}
}

// tempCoefficient regresses power on temperature and normalizes the slope by
// the rated power, yielding percent per degree. It needs at least two points
// and some temperature spread.
func tempCoefficient(temps, powers []float64, ratedPowerW float64) (float64, bool) {
	if len(temps) < 2 {
		return 0, false
	}
	if stat.Variance(temps, nil) == 0 {
		return 0, false
	}
	_, slope := stat.LinearRegression(temps, powers, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0, false
	}
	return slope / ratedPowerW * 100, true
}

func clipRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > maxPerformanceRatio {
		return maxPerformanceRatio
	}
	return v
}
