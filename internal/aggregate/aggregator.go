// Package aggregate rolls classified measurements up into hourly and daily
// summaries.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/agrade-energy/solarportal/internal/database"
)

type bucketKey struct {
	date string
	hour int
}

// Build computes the hourly and daily summaries for one upload. Energy is
// integrated as power times the day's sampling interval, so a day of hourly
// readings sums its watt values directly into watt-hours.
func Build(uploadID string, raw []database.RawMeasurement, classified []database.ClassifiedMeasurement, weather []database.WeatherRecord) ([]database.HourlySummary, []database.DailySummary, error) {
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("no measurements to aggregate for upload %s", uploadID)
	}

	labels := make(map[int64]string, len(classified))
	for _, c := range classified {
		labels[c.Timestamp.Unix()] = c.Classification
	}

	byDay := make(map[string][]database.RawMeasurement)
	for _, r := range raw {
		byDay[r.Date] = append(byDay[r.Date], r)
	}

	intervals := make(map[string]time.Duration, len(byDay))
	for date, rows := range byDay {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
		byDay[date] = rows
		intervals[date] = dayInterval(rows)
	}

	hourly := buildHourly(uploadID, byDay, intervals, labels)
	daily := buildDaily(uploadID, byDay, intervals, labels, hourly, weather)
	return hourly, daily, nil
}

func buildHourly(uploadID string, byDay map[string][]database.RawMeasurement, intervals map[string]time.Duration, labels map[int64]string) []database.HourlySummary {
	type bucket struct {
		powers      []float64
		clearPowers []float64
		voltages    []float64
		currents    []float64
		temps       []float64
		labelCounts map[string]int
		energyWh    float64
	}

	buckets := make(map[bucketKey]*bucket)
	for date, rows := range byDay {
		hours := intervals[date].Hours()
		for _, r := range rows {
			k := bucketKey{date: date, hour: r.Hour}
			b := buckets[k]
			if b == nil {
				b = &bucket{labelCounts: make(map[string]int)}
				buckets[k] = b
			}
			b.powers = append(b.powers, r.PowerW)
			b.voltages = append(b.voltages, r.VoltageV)
			b.currents = append(b.currents, r.CurrentA)
			b.temps = append(b.temps, r.TemperatureC)
			b.energyWh += r.PowerW * hours

			label := labels[r.Timestamp.Unix()]
			b.labelCounts[label]++
			if label == database.ClassificationClear {
				b.clearPowers = append(b.clearPowers, r.PowerW)
			}
		}
	}

	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].hour < keys[j].hour
	})

	out := make([]database.HourlySummary, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		avg, std := meanStd(b.powers)
		hs := database.HourlySummary{
			UploadID:          uploadID,
			Date:              k.date,
			Hour:              k.hour,
			AvgPowerW:         avg,
			StdPowerW:         std,
			CountMeasurements: len(b.powers),
			ClearCount:        len(b.clearPowers),
			AvgVoltageV:       mean(b.voltages),
			AvgCurrentA:       mean(b.currents),
			AvgTemperatureC:   mean(b.temps),
			EnergyWh:          b.energyWh,
			Classification:    majorityLabel(b.labelCounts),
		}
		if len(b.clearPowers) > 0 {
			clearAvg, clearStd := meanStd(b.clearPowers)
			hs.ClearAvgPowerW = &clearAvg
			hs.ClearStdPowerW = &clearStd
		}
		out = append(out, hs)
	}
	return out
}

func buildDaily(uploadID string, byDay map[string][]database.RawMeasurement, intervals map[string]time.Duration, labels map[int64]string, hourly []database.HourlySummary, weather []database.WeatherRecord) []database.DailySummary {
	hoursByDay := make(map[string][]database.HourlySummary)
	for _, h := range hourly {
		hoursByDay[h.Date] = append(hoursByDay[h.Date], h)
	}

	cloudByDay := make(map[string][]float64)
	for _, w := range weather {
		if w.CloudCoverPct != nil {
			cloudByDay[w.Date] = append(cloudByDay[w.Date], *w.CloudCoverPct)
		}
	}

	dates := make([]string, 0, len(hoursByDay))
	for date := range hoursByDay {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]database.DailySummary, 0, len(dates))
	for _, date := range dates {
		hours := hoursByDay[date]
		ds := database.DailySummary{
			UploadID: uploadID,
			Date:     date,
			PeakHour: hours[0].Hour,
		}

		labelCounts := make(map[string]int)
		for _, h := range hours {
			ds.EnergyWh += h.EnergyWh
			if h.AvgPowerW > ds.PeakPowerW {
				ds.PeakPowerW = h.AvgPowerW
				ds.PeakHour = h.Hour
			}
			labelCounts[h.Classification]++
			switch h.Classification {
			case database.ClassificationClear:
				ds.ClearHours++
			case database.ClassificationMarginal:
				ds.MarginalHours++
			case database.ClassificationCloudy:
				ds.CloudyHours++
			default:
				ds.IndeterminateHours++
			}
		}
		ds.Classification = majorityLabel(labelCounts)

		// Clear energy counts clear rows, not clear-majority hours, so a
		// cloudy reading inside a mostly clear hour stays excluded.
		hoursPerSample := intervals[date].Hours()
		var temps []float64
		for _, r := range byDay[date] {
			temps = append(temps, r.TemperatureC)
			if labels[r.Timestamp.Unix()] == database.ClassificationClear {
				ds.ClearEnergyWh += r.PowerW * hoursPerSample
			}
		}
		ds.AvgTemperatureC = mean(temps)

		if clouds := cloudByDay[date]; len(clouds) > 0 {
			avg := mean(clouds)
			ds.AvgCloudCoverPct = &avg
		}

		out = append(out, ds)
	}
	return out
}

// dayInterval estimates one day's sampling cadence as the median of its
// consecutive timestamp deltas. Days with a single reading fall back to an
// hour, which keeps power and energy numerically equal for hourly uploads.
func dayInterval(rows []database.RawMeasurement) time.Duration {
	if len(rows) < 2 {
		return time.Hour
	}
	deltas := make([]time.Duration, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		if d := rows[i].Timestamp.Sub(rows[i-1].Timestamp); d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return time.Hour
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	if len(deltas)%2 == 1 {
		return deltas[len(deltas)/2]
	}
	return (deltas[len(deltas)/2-1] + deltas[len(deltas)/2]) / 2
}

// majorityLabel picks the dominant determinate label. A tie between
// determinate labels is marginal; no determinate votes at all is
// indeterminate.
func majorityLabel(counts map[string]int) string {
	clear := counts[database.ClassificationClear]
	marginal := counts[database.ClassificationMarginal]
	cloudy := counts[database.ClassificationCloudy]
	if clear+marginal+cloudy == 0 {
		return database.ClassificationIndeterminate
	}

	max := clear
	if marginal > max {
		max = marginal
	}
	if cloudy > max {
		max = cloudy
	}

	winner := ""
	winners := 0
	for _, c := range []struct {
		label string
		count int
	}{
		{database.ClassificationClear, clear},
		{database.ClassificationMarginal, marginal},
		{database.ClassificationCloudy, cloudy},
	} {
		if c.count == max {
			winner = c.label
			winners++
		}
	}
	if winners > 1 {
		return database.ClassificationMarginal
	}
	return winner
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// meanStd returns the mean and sample standard deviation, with a zero
// deviation for fewer than two values.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	m := stat.Mean(values, nil)
	if len(values) < 2 {
		return m, 0
	}
	return m, stat.StdDev(values, nil)
}
