package report

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/agrade-energy/solarportal/internal/database"
)

const (
	AnomalyDailyEnergy   = "daily_energy"
	AnomalyHourlyPower   = "hourly_power"
	AnomalyIndeterminate = "indeterminate_hour"
)

// Anomaly is one flagged irregularity in the aggregated data. Hour is -1 for
// whole-day findings.
type Anomaly struct {
	Kind    string
	Date    string
	Hour    int
	Message string
}

// detectAnomalies flags daily energies and hourly powers beyond sigma
// standard deviations of their peers, plus hours that produced power without
// earning a classification. Hourly powers are compared against the same hour
// of day across the other days, so a weak afternoon is not flagged merely
// for being weaker than noon.
func detectAnomalies(sigma float64, hourly []database.HourlySummary, daily []database.DailySummary) []Anomaly {
	var out []Anomaly

	if len(daily) >= 2 {
		energies := make([]float64, len(daily))
		for i, d := range daily {
			energies[i] = d.EnergyWh
		}
		mean, std := stat.Mean(energies, nil), stat.StdDev(energies, nil)
		if std > 0 {
			for _, d := range daily {
				z := (d.EnergyWh - mean) / std
				if math.Abs(z) > sigma {
					out = append(out, Anomaly{
						Kind: AnomalyDailyEnergy,
						Date: d.Date,
						Hour: -1,
						Message: fmt.Sprintf("daily energy %.1f Wh is %.1f standard deviations from the period mean %.1f Wh",
							d.EnergyWh, z, mean),
					})
				}
			}
		}
	}

	byHour := make(map[int][]float64)
	for _, h := range hourly {
		byHour[h.Hour] = append(byHour[h.Hour], h.AvgPowerW)
	}
	for _, h := range hourly {
		peers := byHour[h.Hour]
		if len(peers) < 2 {
			continue
		}
		mean, std := stat.Mean(peers, nil), stat.StdDev(peers, nil)
		if std == 0 {
			continue
		}
		z := (h.AvgPowerW - mean) / std
		if math.Abs(z) > sigma {
			out = append(out, Anomaly{
				Kind: AnomalyHourlyPower,
				Date: h.Date,
				Hour: h.Hour,
				Message: fmt.Sprintf("average power %.1f W at hour %02d is %.1f standard deviations from the cross-day mean %.1f W",
					h.AvgPowerW, h.Hour, z, mean),
			})
		}
	}

	for _, h := range hourly {
		if h.Classification == database.ClassificationIndeterminate && h.AvgPowerW > 0 {
			out = append(out, Anomaly{
				Kind: AnomalyIndeterminate,
				Date: h.Date,
				Hour: h.Hour,
				Message: fmt.Sprintf("hour %02d produced %.1f W on average but could not be classified",
					h.Hour, h.AvgPowerW),
			})
		}
	}

	return out
}
