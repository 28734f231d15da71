// Package config provides provider-based access to portal configuration.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Weather source names accepted by Analysis.WeatherSource.
const (
	WeatherSourceOpenMeteo = "open-meteo"
	WeatherSourceNASAPower = "nasa-power"
	WeatherSourceNone      = "none"
)

// Clear-sky model names accepted by Analysis.ClearSkyModel.
const (
	ClearSkyIneichenPerez = "ineichen-perez"
	ClearSkyHaurwitz      = "haurwitz"
)

// ConfigData represents the complete portal configuration
type ConfigData struct {
	Location   LocationData   `yaml:"location"`
	Panel      PanelData      `yaml:"panel"`
	Analysis   AnalysisData   `yaml:"analysis"`
	Validation ValidationData `yaml:"validation"`
	Database   DatabaseData   `yaml:"database"`
	Output     OutputData     `yaml:"output"`
	Log        LogData        `yaml:"log"`
}

// LocationData holds the installation site used for weather lookups and
// solar geometry
type LocationData struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"`
	AltitudeM float64 `yaml:"altitude_m"`
}

// PanelData holds the electrical characteristics of the monitored panel
type PanelData struct {
	RatedPowerW      float64 `yaml:"rated_power_w"`
	VocV             float64 `yaml:"voc_v"`
	IscA             float64 `yaml:"isc_a"`
	TempCoeffPctPerC float64 `yaml:"temp_coefficient_pct_per_c"`
	ReferenceTempC   float64 `yaml:"reference_temp_c"`
	NominalCellTempC float64 `yaml:"noct_c"`
}

// AnalysisData holds the tunable parameters of the classification and
// reporting stages. The full set is copied onto every analysis run so a
// stored run can be reproduced later.
type AnalysisData struct {
	ClearThreshold    float64 `yaml:"clear_sky_threshold"`
	CloudyCutoff      float64 `yaml:"cloudy_cutoff"`
	MinHourSamples    int     `yaml:"min_hour_samples"`
	AnomalySigma      float64 `yaml:"anomaly_sigma"`
	WeatherSource     string  `yaml:"weather_source"`
	ClearSkyModel     string  `yaml:"clear_sky_model"`
	MinRows           int     `yaml:"min_rows"`
	MaxRows           int     `yaml:"max_rows"`
	MaxFileSizeMB     int     `yaml:"max_file_size_mb"`
	PowerTolerancePct float64 `yaml:"power_tolerance_pct"`
	PowerToleranceW   float64 `yaml:"power_tolerance_w"`
}

// ValidationData holds the accepted physical ranges for measurement channels
type ValidationData struct {
	Voltage     RangeData `yaml:"voltage"`
	Current     RangeData `yaml:"current"`
	Power       RangeData `yaml:"power"`
	Temperature RangeData `yaml:"temperature"`
}

// RangeData is an inclusive [Min, Max] bound for one channel
type RangeData struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies within the range.
func (r RangeData) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// DatabaseData holds the SQLite store location
type DatabaseData struct {
	Path string `yaml:"path"`
}

// OutputData holds the directory that receives reports and CSV exports
type OutputData struct {
	Dir string `yaml:"dir"`
}

// LogData holds logging options
type LogData struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

// Defaults returns a fully populated configuration for a typical small
// rooftop installation.
func Defaults() *ConfigData {
	return &ConfigData{
		Location: LocationData{
			Name:      "Hong Kong",
			Latitude:  22.3193,
			Longitude: 114.1694,
			Timezone:  "Asia/Hong_Kong",
			AltitudeM: 0,
		},
		Panel: PanelData{
			RatedPowerW:      48.0,
			VocV:             58.9,
			IscA:             1.18,
			TempCoeffPctPerC: -0.29,
			ReferenceTempC:   25.0,
			NominalCellTempC: 45.0,
		},
		Analysis: AnalysisData{
			ClearThreshold:    0.70,
			CloudyCutoff:      0, // derived from ClearThreshold in Normalize
			MinHourSamples:    1,
			AnomalySigma:      2.0,
			WeatherSource:     WeatherSourceOpenMeteo,
			ClearSkyModel:     ClearSkyIneichenPerez,
			MinRows:           1,
			MaxRows:           100000,
			MaxFileSizeMB:     100,
			PowerTolerancePct: 10.0,
			PowerToleranceW:   2.0,
		},
		Validation: ValidationData{
			Voltage:     RangeData{Min: 0, Max: 100},
			Current:     RangeData{Min: 0, Max: 10},
			Power:       RangeData{Min: 0, Max: 500},
			Temperature: RangeData{Min: -20, Max: 80},
		},
		Database: DatabaseData{Path: "solarportal.db"},
		Output:   OutputData{Dir: "output"},
	}
}

// Normalize clamps and derives dependent parameters. The clear threshold is
// held inside [0.5, 0.9]; the cloudy cutoff defaults to half the clear
// threshold and must stay below it.
func (c *ConfigData) Normalize() {
	if c.Analysis.ClearThreshold < 0.5 {
		c.Analysis.ClearThreshold = 0.5
	}
	if c.Analysis.ClearThreshold > 0.9 {
		c.Analysis.ClearThreshold = 0.9
	}
	if c.Analysis.CloudyCutoff <= 0 || c.Analysis.CloudyCutoff >= c.Analysis.ClearThreshold {
		c.Analysis.CloudyCutoff = 0.5 * c.Analysis.ClearThreshold
	}
	if c.Analysis.MinHourSamples < 1 {
		c.Analysis.MinHourSamples = 1
	}
	if c.Analysis.AnomalySigma <= 0 {
		c.Analysis.AnomalySigma = 2.0
	}
	if c.Analysis.MinRows < 1 {
		c.Analysis.MinRows = 1
	}
}

// Validate reports every configuration problem at once.
func (c *ConfigData) Validate() error {
	var result *multierror.Error

	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		result = multierror.Append(result, fmt.Errorf("location latitude %.4f out of range [-90, 90]", c.Location.Latitude))
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		result = multierror.Append(result, fmt.Errorf("location longitude %.4f out of range [-180, 180]", c.Location.Longitude))
	}
	if c.Location.Timezone != "" {
		if _, err := time.LoadLocation(c.Location.Timezone); err != nil {
			result = multierror.Append(result, fmt.Errorf("unknown timezone %q: %v", c.Location.Timezone, err))
		}
	}
	if c.Panel.RatedPowerW < 0 {
		result = multierror.Append(result, fmt.Errorf("panel rated power %.1f W must not be negative", c.Panel.RatedPowerW))
	}
	switch c.Analysis.WeatherSource {
	case WeatherSourceOpenMeteo, WeatherSourceNASAPower, WeatherSourceNone:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown weather source %q", c.Analysis.WeatherSource))
	}
	switch c.Analysis.ClearSkyModel {
	case ClearSkyIneichenPerez, ClearSkyHaurwitz:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown clear-sky model %q", c.Analysis.ClearSkyModel))
	}
	if c.Analysis.MaxRows < c.Analysis.MinRows {
		result = multierror.Append(result, fmt.Errorf("max_rows %d is below min_rows %d", c.Analysis.MaxRows, c.Analysis.MinRows))
	}
	for _, rc := range []struct {
		name string
		r    RangeData
	}{
		{"voltage", c.Validation.Voltage},
		{"current", c.Validation.Current},
		{"power", c.Validation.Power},
		{"temperature", c.Validation.Temperature},
	} {
		if rc.r.Min >= rc.r.Max {
			result = multierror.Append(result, fmt.Errorf("validation range for %s has min %.2f >= max %.2f", rc.name, rc.r.Min, rc.r.Max))
		}
	}
	if c.Database.Path == "" {
		result = multierror.Append(result, fmt.Errorf("database path is empty"))
	}
	if c.Output.Dir == "" {
		result = multierror.Append(result, fmt.Errorf("output directory is empty"))
	}

	return result.ErrorOrNil()
}

// TimeLocation resolves the configured site timezone, defaulting to UTC.
func (c *ConfigData) TimeLocation() (*time.Location, error) {
	if c.Location.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Location.Timezone)
}
