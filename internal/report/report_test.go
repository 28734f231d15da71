package report

import (
	"math"
	"testing"
	"time"

	"github.com/agrade-energy/solarportal/internal/database"
)

func testRun() *database.AnalysisMetadata {
	return &database.AnalysisMetadata{
		UploadID:           "test-upload",
		Location:           "Hong Kong",
		Latitude:           22.3193,
		Longitude:          114.1694,
		Timezone:           "UTC",
		RatedPowerW:        48,
		ClearThreshold:     0.70,
		CloudyCutoff:       0.35,
		MinHourSamples:     1,
		AnomalySigma:       2.0,
		TempCoeffPctPerC:   -0.29,
		WeatherSource:      "open-meteo",
		ClearSkyModel:      "haurwitz",
		Status:             database.StatusRunning,
		DataPointsUploaded: 4,
		DataPointsValid:    4,
		StartedAt:          time.Now(),
	}
}

func rawAt(hour int, power, temp float64) database.RawMeasurement {
	ts := time.Date(2024, 6, 15, hour, 0, 0, 0, time.UTC)
	return database.RawMeasurement{
		UploadID:     "test-upload",
		Timestamp:    ts,
		Date:         "2024-06-15",
		Hour:         hour,
		PowerW:       power,
		TemperatureC: temp,
	}
}

func classifiedAt(hour int, power float64, label string) database.ClassifiedMeasurement {
	ts := time.Date(2024, 6, 15, hour, 0, 0, 0, time.UTC)
	return database.ClassifiedMeasurement{
		UploadID:       "test-upload",
		Timestamp:      ts,
		Date:           "2024-06-15",
		Hour:           hour,
		PowerW:         power,
		Classification: label,
	}
}

func TestComputeHeadlineMetrics(t *testing.T) {
	raw := []database.RawMeasurement{
		rawAt(9, 100, 25),
		rawAt(12, 900, 35),
		rawAt(15, 400, 30),
		rawAt(21, 0, 20),
	}
	classified := []database.ClassifiedMeasurement{
		classifiedAt(9, 100, database.ClassificationClear),
		classifiedAt(12, 900, database.ClassificationClear),
		classifiedAt(15, 400, database.ClassificationMarginal),
		classifiedAt(21, 0, database.ClassificationIndeterminate),
	}
	daily := []database.DailySummary{{
		UploadID:       "test-upload",
		Date:           "2024-06-15",
		PeakPowerW:     900,
		PeakHour:       12,
		EnergyWh:       1400,
		ClearEnergyWh:  1000,
		ClearHours:     2,
		MarginalHours:  1,
		Classification: database.ClassificationClear,
	}}

	rep := Compute(testRun(), raw, classified, nil, daily)

	if rep.PeakPowerW != 900 {
		t.Errorf("expected peak power 900 W, got %.2f", rep.PeakPowerW)
	}
	if rep.PeakTimestamp.Hour() != 12 {
		t.Errorf("expected the peak at noon, got %s", rep.PeakTimestamp)
	}
	if rep.AvgPowerW != 350 {
		t.Errorf("expected average power 350 W, got %.2f", rep.AvgPowerW)
	}
	if rep.TotalEnergyWh != 1400 {
		t.Errorf("expected 1400 Wh total, got %.2f", rep.TotalEnergyWh)
	}
	if rep.StartDate != "2024-06-15" || rep.EndDate != "2024-06-15" {
		t.Errorf("unexpected period %s..%s", rep.StartDate, rep.EndDate)
	}

	if rep.ClearCount != 2 || rep.MarginalCount != 1 || rep.IndeterminateCount != 1 {
		t.Errorf("unexpected distribution: %d clear, %d marginal, %d indeterminate",
			rep.ClearCount, rep.MarginalCount, rep.IndeterminateCount)
	}
	if rep.ClearDays != 1 {
		t.Errorf("expected 1 clear day, got %d", rep.ClearDays)
	}

	if rep.PerformanceRatio == nil {
		t.Fatal("expected a performance ratio")
	}
	if *rep.PerformanceRatio < 0 || *rep.PerformanceRatio > maxPerformanceRatio {
		t.Errorf("performance ratio %.3f escaped its clip range", *rep.PerformanceRatio)
	}
	if rep.ClearPerformanceRatio == nil {
		t.Error("expected a clear-day performance ratio with a clear day present")
	}

	if rep.TheoreticalYieldWh == nil || *rep.TheoreticalYieldWh <= 0 {
		t.Error("expected a positive theoretical yield from the clear-sky model")
	}
	if rep.CaptureRatio == nil {
		t.Error("expected a capture ratio alongside the theoretical yield")
	}

	if rep.AvgTemperatureC != 27.5 {
		t.Errorf("expected 27.5 degC average, got %.2f", rep.AvgTemperatureC)
	}
	if rep.MinTemperatureC != 20 || rep.MaxTemperatureC != 35 {
		t.Errorf("unexpected temperature range [%.1f, %.1f]", rep.MinTemperatureC, rep.MaxTemperatureC)
	}

	if len(rep.Recommendations) == 0 {
		t.Error("expected at least one recommendation")
	}
}

func TestComputeWithoutRatedPower(t *testing.T) {
	run := testRun()
	run.RatedPowerW = 0

	raw := []database.RawMeasurement{rawAt(12, 900, 30)}
	daily := []database.DailySummary{{Date: "2024-06-15", EnergyWh: 900}}

	rep := Compute(run, raw, nil, nil, daily)
	if rep.PerformanceRatio != nil {
		t.Error("expected no performance ratio without a rated power")
	}
	if rep.MeasuredTempCoeff != nil {
		t.Error("expected no temperature coefficient without a rated power")
	}
}

func TestComputeClearRatioNilWithoutClearDays(t *testing.T) {
	raw := []database.RawMeasurement{rawAt(12, 100, 30)}
	daily := []database.DailySummary{{
		Date:           "2024-06-15",
		EnergyWh:       100,
		Classification: database.ClassificationCloudy,
	}}

	rep := Compute(testRun(), raw, nil, nil, daily)
	if rep.ClearPerformanceRatio != nil {
		t.Error("expected no clear-day ratio without clear days")
	}
	if rep.PerformanceRatio == nil {
		t.Error("the all-data ratio should still be computed")
	}
}

func TestTempCoefficient(t *testing.T) {
	// Power falls exactly 2.5 W per degree; 500 W rated gives -0.5 %/degC.
	temps := []float64{20, 25, 30, 35}
	powers := make([]float64, len(temps))
	for i, temp := range temps {
		powers[i] = 500 - 2.5*(temp-25)
	}

	coeff, ok := tempCoefficient(temps, powers, 500)
	if !ok {
		t.Fatal("expected a coefficient from well-spread data")
	}
	if math.Abs(coeff-(-0.5)) > 1e-9 {
		t.Errorf("expected -0.5 %%/degC, got %.4f", coeff)
	}

	if _, ok := tempCoefficient([]float64{25}, []float64{500}, 500); ok {
		t.Error("expected no coefficient from a single point")
	}
	if _, ok := tempCoefficient([]float64{25, 25, 25}, []float64{500, 480, 460}, 500); ok {
		t.Error("expected no coefficient without temperature spread")
	}
}

func TestComputeTempCoefficientPrefersClearRows(t *testing.T) {
	// Clear rows follow one slope; a cloudy outlier would drag a naive
	// all-data regression far off it.
	raw := []database.RawMeasurement{
		rawAt(9, 500, 20),
		rawAt(10, 490, 25),
		rawAt(11, 480, 30),
		rawAt(12, 50, 35),
	}
	classified := []database.ClassifiedMeasurement{
		classifiedAt(9, 500, database.ClassificationClear),
		classifiedAt(10, 490, database.ClassificationClear),
		classifiedAt(11, 480, database.ClassificationClear),
		classifiedAt(12, 50, database.ClassificationCloudy),
	}
	run := testRun()
	run.RatedPowerW = 500
	daily := []database.DailySummary{{Date: "2024-06-15", EnergyWh: 1520}}

	rep := Compute(run, raw, classified, nil, daily)
	if rep.MeasuredTempCoeff == nil {
		t.Fatal("expected a measured coefficient")
	}
	// The clear slope is -1 W/degC over 500 W rated: -0.2 %/degC.
	if math.Abs(*rep.MeasuredTempCoeff-(-0.2)) > 1e-9 {
		t.Errorf("expected -0.2 %%/degC from clear rows only, got %.4f", *rep.MeasuredTempCoeff)
	}
}

func TestClipRatio(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.2, 0},
		{0, 0},
		{0.75, 0.75},
		{1.5, 1.5},
		{2.8, 1.5},
	}
	for _, tt := range tests {
		if got := clipRatio(tt.in); got != tt.want {
			t.Errorf("clipRatio(%.2f): expected %.2f, got %.2f", tt.in, tt.want, got)
		}
	}
}
