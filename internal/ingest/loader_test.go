package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/agrade-energy/solarportal/pkg/config"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name        string
		header      []string
		wantErr     bool
		errContains string
	}{
		{
			name:   "all required columns",
			header: []string{"timestamp", "voltage_V", "current_A", "power_W", "temperature_C"},
		},
		{
			name:   "extra columns allowed",
			header: []string{"timestamp", "voltage_V", "current_A", "power_W", "temperature_C", "location", "panel_rated_power_W"},
		},
		{
			name:   "whitespace and BOM stripped",
			header: []string{"\ufefftimestamp", " voltage_V ", "current_A", "power_W", "temperature_C"},
		},
		{
			name:        "missing one column",
			header:      []string{"timestamp", "voltage_V", "current_A", "temperature_C"},
			wantErr:     true,
			errContains: "power_W",
		},
		{
			name:        "missing several columns reported together",
			header:      []string{"timestamp"},
			wantErr:     true,
			errContains: "voltage_V, current_A, power_W, temperature_C",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseHeader(tt.header)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not mention %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	hk := time.FixedZone("HKT", 8*3600)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "space separated",
			input: "2024-06-15 12:30:00",
			want:  time.Date(2024, 6, 15, 12, 30, 0, 0, hk),
		},
		{
			name:  "RFC3339 keeps its own offset",
			input: "2024-06-15T12:30:00+08:00",
			want:  time.Date(2024, 6, 15, 12, 30, 0, 0, hk),
		},
		{
			name:  "T separated without offset",
			input: "2024-06-15T12:30:00",
			want:  time.Date(2024, 6, 15, 12, 30, 0, 0, hk),
		},
		{
			name:  "slash separated",
			input: "2024/06/15 12:30:00",
			want:  time.Date(2024, 6, 15, 12, 30, 0, 0, hk),
		},
		{
			name:  "minute precision",
			input: "2024-06-15 12:30",
			want:  time.Date(2024, 6, 15, 12, 30, 0, 0, hk),
		},
		{
			name:  "surrounding whitespace",
			input: "  2024-06-15 12:30:00  ",
			want:  time.Date(2024, 6, 15, 12, 30, 0, 0, hk),
		},
		{
			name:    "garbage",
			input:   "not-a-time",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.input, hk)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCheckRow(t *testing.T) {
	cfg := config.Defaults()
	cfg.Normalize()

	tests := []struct {
		name         string
		row          Row
		rated        float64
		wantRejects  int
		wantWarnings int
	}{
		{
			name:  "clean midday row",
			row:   Row{VoltageV: 48.0, CurrentA: 0.9, PowerW: 43.2, TemperatureC: 31.0},
			rated: 48.0,
		},
		{
			name:        "negative power",
			row:         Row{VoltageV: 48.0, CurrentA: 0.9, PowerW: -5.0, TemperatureC: 31.0},
			rated:       48.0,
			wantRejects: 2, // negative and inconsistent with V*I
		},
		{
			name:        "power inconsistent with voltage and current",
			row:         Row{VoltageV: 48.0, CurrentA: 0.9, PowerW: 80.0, TemperatureC: 31.0},
			rated:       48.0,
			wantRejects: 1,
		},
		{
			name:  "small absolute tolerance near zero",
			row:   Row{VoltageV: 0.5, CurrentA: 0.1, PowerW: 1.5, TemperatureC: 25.0},
			rated: 48.0,
			// V*I = 0.05 W; 1.5 W is within the 2 W absolute allowance
		},
		{
			name:        "temperature out of range",
			row:         Row{VoltageV: 48.0, CurrentA: 0.9, PowerW: 43.2, TemperatureC: 95.0},
			rated:       48.0,
			wantRejects: 1,
		},
		{
			name:         "voltage outside expected range warns only",
			row:          Row{VoltageV: 120.0, CurrentA: 0.3, PowerW: 36.0, TemperatureC: 31.0},
			rated:        48.0,
			wantWarnings: 1,
		},
		{
			name:         "power above twice rated warns",
			row:          Row{VoltageV: 55.0, CurrentA: 2.0, PowerW: 110.0, TemperatureC: 31.0},
			rated:        48.0,
			wantWarnings: 1,
		},
		{
			name:  "zero rated power disables the rated check",
			row:   Row{VoltageV: 55.0, CurrentA: 2.0, PowerW: 110.0, TemperatureC: 31.0},
			rated: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejects, warnings := checkRow(tt.row, cfg.Validation, cfg.Analysis, tt.rated)
			if len(rejects) != tt.wantRejects {
				t.Errorf("expected %d rejects, got %d: %v", tt.wantRejects, len(rejects), rejects)
			}
			if len(warnings) != tt.wantWarnings {
				t.Errorf("expected %d warnings, got %d: %v", tt.wantWarnings, len(warnings), warnings)
			}
		})
	}
}

func TestCheckTimeline(t *testing.T) {
	base := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	hourly := func(offsets ...int) []Row {
		rows := make([]Row, len(offsets))
		for i, h := range offsets {
			rows[i] = Row{Line: i + 2, Timestamp: base.Add(time.Duration(h) * time.Hour)}
		}
		return rows
	}

	tests := []struct {
		name         string
		rows         []Row
		nonMonotonic bool
		gapCount     int
		largestGap   time.Duration
	}{
		{
			name: "steady hourly cadence",
			rows: hourly(0, 1, 2, 3),
		},
		{
			name:         "out of order rows",
			rows:         hourly(0, 2, 1, 3),
			nonMonotonic: true,
		},
		{
			name:       "single gap",
			rows:       hourly(0, 1, 4, 5),
			gapCount:   1,
			largestGap: 3 * time.Hour,
		},
		{
			name:       "gaps found on the sorted series",
			rows:       hourly(5, 0, 1, 2),
			gapCount:   1,
			largestGap: 3 * time.Hour,
			// file order is non-monotonic too
			nonMonotonic: true,
		},
		{
			name: "single row",
			rows: hourly(0),
		},
		{
			name: "empty",
			rows: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := checkTimeline(tt.rows)
			if f.nonMonotonic != tt.nonMonotonic {
				t.Errorf("nonMonotonic: expected %v, got %v", tt.nonMonotonic, f.nonMonotonic)
			}
			if f.gapCount != tt.gapCount {
				t.Errorf("gapCount: expected %d, got %d", tt.gapCount, f.gapCount)
			}
			if f.largestGap != tt.largestGap {
				t.Errorf("largestGap: expected %s, got %s", tt.largestGap, f.largestGap)
			}
		})
	}
}
