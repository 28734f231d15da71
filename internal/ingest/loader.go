// Package ingest parses and validates uploaded measurement CSVs and stores
// the surviving rows.
package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agrade-energy/solarportal/pkg/config"
)

// Required CSV columns. Optional columns "location" and
// "panel_rated_power_W" override the configured site defaults per row.
var requiredColumns = []string{"timestamp", "voltage_V", "current_A", "power_W", "temperature_C"}

// timestampLayouts are tried in order when parsing the timestamp column.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
}

// Row is one parsed measurement before persistence.
type Row struct {
	Line         int
	Timestamp    time.Time
	VoltageV     float64
	CurrentA     float64
	PowerW       float64
	TemperatureC float64
	Location     string
	RatedPowerW  float64
}

// columnIndex maps header names to field positions.
type columnIndex map[string]int

// parseHeader builds the column map and verifies every required column is
// present. Header cells are trimmed and stripped of a UTF-8 BOM.
func parseHeader(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		idx[name] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

// parseTimestamp tries the accepted layouts in the site timezone.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// parseRow converts one CSV record into a Row. A parse failure anywhere in
// the record rejects the whole row.
func parseRow(record []string, idx columnIndex, line int, loc *time.Location) (Row, error) {
	field := func(name string) (string, bool) {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	tsStr, _ := field("timestamp")
	ts, err := parseTimestamp(tsStr, loc)
	if err != nil {
		return Row{}, err
	}

	row := Row{Line: line, Timestamp: ts}
	numeric := []struct {
		name string
		dst  *float64
	}{
		{"voltage_V", &row.VoltageV},
		{"current_A", &row.CurrentA},
		{"power_W", &row.PowerW},
		{"temperature_C", &row.TemperatureC},
	}
	for _, n := range numeric {
		s, _ := field(n.name)
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Row{}, fmt.Errorf("invalid %s value %q", n.name, s)
		}
		*n.dst = v
	}

	if name, ok := field("location"); ok {
		row.Location = name
	}
	if rated, ok := field("panel_rated_power_W"); ok && rated != "" {
		v, err := strconv.ParseFloat(rated, 64)
		if err != nil {
			return Row{}, fmt.Errorf("invalid panel_rated_power_W value %q", rated)
		}
		row.RatedPowerW = v
	}

	return row, nil
}

// checkRow applies the physical validation rules. Rejections exclude the row
// from the run; warnings keep it but flag it in the audit trail.
func checkRow(r Row, v config.ValidationData, a config.AnalysisData, ratedPowerW float64) (rejects, warnings []string) {
	if r.PowerW < 0 {
		rejects = append(rejects, fmt.Sprintf("negative power %.2f W", r.PowerW))
	}

	// Power must be consistent with voltage times current.
	derived := r.VoltageV * r.CurrentA
	tolerance := a.PowerToleranceW
	if rel := a.PowerTolerancePct / 100 * derived; rel > tolerance {
		tolerance = rel
	}
	if diff := r.PowerW - derived; diff > tolerance || diff < -tolerance {
		rejects = append(rejects, fmt.Sprintf("power %.2f W inconsistent with voltage*current %.2f W", r.PowerW, derived))
	}

	if !v.Temperature.Contains(r.TemperatureC) {
		rejects = append(rejects, fmt.Sprintf("temperature %.1f C outside [%.1f, %.1f]", r.TemperatureC, v.Temperature.Min, v.Temperature.Max))
	}

	if !v.Voltage.Contains(r.VoltageV) {
		warnings = append(warnings, fmt.Sprintf("voltage %.2f V outside expected [%.1f, %.1f]", r.VoltageV, v.Voltage.Min, v.Voltage.Max))
	}
	if !v.Current.Contains(r.CurrentA) {
		warnings = append(warnings, fmt.Sprintf("current %.2f A outside expected [%.1f, %.1f]", r.CurrentA, v.Current.Min, v.Current.Max))
	}
	if !v.Power.Contains(r.PowerW) {
		warnings = append(warnings, fmt.Sprintf("power %.2f W outside expected [%.1f, %.1f]", r.PowerW, v.Power.Min, v.Power.Max))
	}
	if ratedPowerW > 0 && r.PowerW > 2*ratedPowerW {
		warnings = append(warnings, fmt.Sprintf("power %.2f W exceeds twice the rated %.1f W", r.PowerW, ratedPowerW))
	}

	return rejects, warnings
}

// batchFindings summarizes whole-upload timing checks.
type batchFindings struct {
	nonMonotonic bool
	gapCount     int
	largestGap   time.Duration
}

// checkTimeline flags out-of-order timestamps in file order and sampling gaps
// larger than an hour on the sorted series.
func checkTimeline(rows []Row) batchFindings {
	var f batchFindings

	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp.Before(rows[i-1].Timestamp) {
			f.nonMonotonic = true
			break
		}
	}

	sorted := make([]time.Time, len(rows))
	for i, r := range rows {
		sorted[i] = r.Timestamp
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	for i := 1; i < len(sorted); i++ {
		if gap := sorted[i].Sub(sorted[i-1]); gap > time.Hour {
			f.gapCount++
			if gap > f.largestGap {
				f.largestGap = gap
			}
		}
	}

	return f
}
