package report

import (
	"testing"

	"github.com/agrade-energy/solarportal/internal/database"
)

func dailyEnergy(date string, energyWh float64) database.DailySummary {
	return database.DailySummary{Date: date, EnergyWh: energyWh}
}

func hourlyPower(date string, hour int, avgPowerW float64, label string) database.HourlySummary {
	return database.HourlySummary{
		Date:           date,
		Hour:           hour,
		AvgPowerW:      avgPowerW,
		Classification: label,
	}
}

func anomaliesOf(kind string, anomalies []Anomaly) []Anomaly {
	var out []Anomaly
	for _, a := range anomalies {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func TestDetectDailyEnergyAnomaly(t *testing.T) {
	daily := []database.DailySummary{
		dailyEnergy("2024-06-15", 1000),
		dailyEnergy("2024-06-16", 1000),
		dailyEnergy("2024-06-17", 100),
	}

	got := anomaliesOf(AnomalyDailyEnergy, detectAnomalies(1.0, nil, daily))
	if len(got) != 1 {
		t.Fatalf("expected 1 daily anomaly, got %d: %v", len(got), got)
	}
	if got[0].Date != "2024-06-17" {
		t.Errorf("flagged the wrong day: %s", got[0].Date)
	}
	if got[0].Hour != -1 {
		t.Errorf("daily anomalies should carry hour -1, got %d", got[0].Hour)
	}
}

func TestDetectDailyAnomalyNeedsTwoDays(t *testing.T) {
	daily := []database.DailySummary{dailyEnergy("2024-06-15", 1000)}
	if got := detectAnomalies(1.0, nil, daily); len(got) != 0 {
		t.Errorf("a single day has no peers to deviate from, got %v", got)
	}
}

func TestDetectHourlyPowerAnomaly(t *testing.T) {
	hourly := []database.HourlySummary{
		hourlyPower("2024-06-15", 12, 500, database.ClassificationClear),
		hourlyPower("2024-06-16", 12, 500, database.ClassificationClear),
		hourlyPower("2024-06-17", 12, 500, database.ClassificationClear),
		hourlyPower("2024-06-18", 12, 500, database.ClassificationClear),
		hourlyPower("2024-06-19", 12, 100, database.ClassificationCloudy),
		// No cross-day peer for this hour, so it is never compared.
		hourlyPower("2024-06-15", 6, 900, database.ClassificationClear),
	}

	got := anomaliesOf(AnomalyHourlyPower, detectAnomalies(1.0, hourly, nil))
	if len(got) != 1 {
		t.Fatalf("expected 1 hourly anomaly, got %d: %v", len(got), got)
	}
	if got[0].Date != "2024-06-19" || got[0].Hour != 12 {
		t.Errorf("flagged the wrong hour: %s hour %d", got[0].Date, got[0].Hour)
	}
}

func TestDetectIndeterminateGeneration(t *testing.T) {
	hourly := []database.HourlySummary{
		hourlyPower("2024-06-15", 10, 120, database.ClassificationIndeterminate),
		hourlyPower("2024-06-15", 22, 0, database.ClassificationIndeterminate),
		hourlyPower("2024-06-15", 12, 500, database.ClassificationClear),
	}

	got := anomaliesOf(AnomalyIndeterminate, detectAnomalies(2.0, hourly, nil))
	if len(got) != 1 {
		t.Fatalf("expected only the generating indeterminate hour, got %d: %v", len(got), got)
	}
	if got[0].Hour != 10 {
		t.Errorf("flagged hour %d, expected 10", got[0].Hour)
	}
}

func TestDetectNothingOnSteadyData(t *testing.T) {
	daily := []database.DailySummary{
		dailyEnergy("2024-06-15", 1000),
		dailyEnergy("2024-06-16", 1000),
	}
	hourly := []database.HourlySummary{
		hourlyPower("2024-06-15", 12, 500, database.ClassificationClear),
		hourlyPower("2024-06-16", 12, 500, database.ClassificationClear),
	}

	if got := detectAnomalies(2.0, hourly, daily); len(got) != 0 {
		t.Errorf("expected no anomalies on steady data, got %v", got)
	}
}
