package report

import "fmt"

const (
	lowClearPerformance = 0.70
	heavyCloudShare     = 0.60
	strongTempCoeff     = -0.50
	manyAnomalies       = 3
)

// recommend walks a fixed rule table over the computed metrics. Rules are
// ordered from most to least actionable; an empty result falls back to an
// all-nominal message.
func recommend(r *Report) []string {
	var recs []string

	if r.ClearPerformanceRatio != nil && *r.ClearPerformanceRatio < lowClearPerformance {
		recs = append(recs, fmt.Sprintf(
			"Clear-day performance ratio is %.2f, below the %.2f expected of a healthy array. Inspect the panels for soiling, shading or degradation.",
			*r.ClearPerformanceRatio, lowClearPerformance))
	}

	total := r.ClearCount + r.MarginalCount + r.CloudyCount + r.IndeterminateCount
	if total > 0 {
		if share := float64(r.CloudyCount) / float64(total); share > heavyCloudShare {
			recs = append(recs, fmt.Sprintf(
				"%.0f%% of measurements were classified cloudy. Extend the analysis window to capture more clear-sky behavior before judging panel health.",
				share*100))
		}
	}

	if r.MeasuredTempCoeff != nil && *r.MeasuredTempCoeff < strongTempCoeff {
		recs = append(recs, fmt.Sprintf(
			"Measured temperature coefficient is %.2f %%/degC, well beyond the rated %.2f %%/degC. Check panel ventilation and mounting clearance.",
			*r.MeasuredTempCoeff, r.RatedTempCoeffPctPerC))
	}

	if len(r.Anomalies) > manyAnomalies {
		recs = append(recs, fmt.Sprintf(
			"%d anomalies were flagged in this period. Verify sensor wiring and data logging before acting on the other findings.",
			len(r.Anomalies)))
	}

	if countAnomalies(r.Anomalies, AnomalyIndeterminate) > 0 {
		recs = append(recs,
			"Some generating hours had too little data to classify. Upload a longer period so every hour of day accumulates enough samples.")
	}

	if len(recs) == 0 {
		recs = append(recs, "No action needed. The system is performing within expected parameters.")
	}
	return recs
}

func countAnomalies(anomalies []Anomaly, kind string) int {
	n := 0
	for _, a := range anomalies {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
