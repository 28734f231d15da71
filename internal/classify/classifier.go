// Package classify labels each measurement's sky condition from its power
// ratio against the hour-of-day median baseline.
package classify

import (
	"math"
	"sort"

	"github.com/agrade-energy/solarportal/internal/database"
)

// Params control the power-ratio banding.
type Params struct {
	ClearThreshold float64
	CloudyCutoff   float64
	MinHourSamples int
}

// Baseline is the per-hour-of-day reference ratios are computed against.
type Baseline struct {
	MedianPowerW float64
	SampleCount  int
}

// Result carries the classified rows plus the baselines they were judged
// against, keyed by hour of day.
type Result struct {
	Rows      []database.ClassifiedMeasurement
	Baselines map[int]Baseline
	Counts    map[string]int
}

// Classify labels every measurement. The baseline for a measurement is the
// median power of all measurements sharing its hour of day, so a sunny noon
// and a cloudy noon on different days are judged against the same bar. An
// hour whose median is zero or whose sample count is below the minimum
// cannot support a ratio and is labeled indeterminate. Classification is
// deterministic: rerunning over the same measurements yields identical
// labels.
func Classify(rows []database.RawMeasurement, p Params) Result {
	res := Result{
		Baselines: baselines(rows),
		Counts:    make(map[string]int),
	}

	halfBand := (p.ClearThreshold - p.CloudyCutoff) / 2

	for _, r := range rows {
		b := res.Baselines[r.Hour]
		cm := database.ClassifiedMeasurement{
			UploadID:     r.UploadID,
			Timestamp:    r.Timestamp,
			Date:         r.Date,
			Hour:         r.Hour,
			PowerW:       r.PowerW,
			MedianPowerW: b.MedianPowerW,
			Threshold:    p.ClearThreshold,
			SampleCount:  b.SampleCount,
		}

		if b.MedianPowerW == 0 || b.SampleCount < p.MinHourSamples {
			cm.Classification = database.ClassificationIndeterminate
		} else {
			ratio := r.PowerW / b.MedianPowerW
			cm.PowerRatio = &ratio
			cm.Classification = band(ratio, p)
			cm.Confidence = confidence(ratio, p, halfBand)
		}

		res.Counts[cm.Classification]++
		res.Rows = append(res.Rows, cm)
	}

	return res
}

func band(ratio float64, p Params) string {
	switch {
	case ratio >= p.ClearThreshold:
		return database.ClassificationClear
	case ratio >= p.CloudyCutoff:
		return database.ClassificationMarginal
	default:
		return database.ClassificationCloudy
	}
}

// confidence grows with the distance from the nearest band boundary, scaled
// so the middle of the marginal band reaches full confidence.
func confidence(ratio float64, p Params, halfBand float64) float64 {
	if halfBand <= 0 {
		return 0
	}
	dClear := math.Abs(ratio - p.ClearThreshold)
	dCloudy := math.Abs(ratio - p.CloudyCutoff)
	c := math.Min(dClear, dCloudy) / halfBand
	if c > 1 {
		return 1
	}
	return c
}

func baselines(rows []database.RawMeasurement) map[int]Baseline {
	byHour := make(map[int][]float64)
	for _, r := range rows {
		byHour[r.Hour] = append(byHour[r.Hour], r.PowerW)
	}
	out := make(map[int]Baseline, len(byHour))
	for h, powers := range byHour {
		sort.Float64s(powers)
		out[h] = Baseline{MedianPowerW: median(powers), SampleCount: len(powers)}
	}
	return out
}

// median interpolates even-length inputs as the mean of the two middle
// values. gonum's Quantile kinds invert step CDFs and would pick the lower
// middle value instead.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
