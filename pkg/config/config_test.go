package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should validate, got: %v", err)
	}
	if cfg.Analysis.CloudyCutoff != 0.35 {
		t.Errorf("expected derived cloudy cutoff 0.35, got %v", cfg.Analysis.CloudyCutoff)
	}
}

func TestNormalizeClampsThreshold(t *testing.T) {
	tests := []struct {
		name       string
		threshold  float64
		cutoff     float64
		wantThresh float64
		wantCutoff float64
	}{
		{"below minimum", 0.2, 0, 0.5, 0.25},
		{"above maximum", 0.95, 0, 0.9, 0.45},
		{"in range", 0.8, 0, 0.8, 0.4},
		{"explicit cutoff kept", 0.7, 0.3, 0.7, 0.3},
		{"cutoff above threshold rederived", 0.7, 0.75, 0.7, 0.35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Analysis.ClearThreshold = tt.threshold
			cfg.Analysis.CloudyCutoff = tt.cutoff
			cfg.Normalize()

			if cfg.Analysis.ClearThreshold != tt.wantThresh {
				t.Errorf("threshold: got %v, want %v", cfg.Analysis.ClearThreshold, tt.wantThresh)
			}
			if cfg.Analysis.CloudyCutoff != tt.wantCutoff {
				t.Errorf("cutoff: got %v, want %v", cfg.Analysis.CloudyCutoff, tt.wantCutoff)
			}
		})
	}
}

func TestValidateAccumulatesProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Location.Latitude = 123.0
	cfg.Analysis.WeatherSource = "carrier-pigeon"
	cfg.Database.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"latitude", "weather source", "database path"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error mentioning %q, got: %v", want, msg)
		}
	}
}

func TestYAMLProviderMergesOverDefaults(t *testing.T) {
	yamlContent := `
location:
  name: "Test Site"
  latitude: 1.5
  longitude: 103.8
  timezone: "Asia/Singapore"
panel:
  rated_power_w: 320
analysis:
  clear_sky_threshold: 0.75
  weather_source: "none"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewYAMLProvider(path).LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Location.Name != "Test Site" {
		t.Errorf("expected overridden site name, got %q", cfg.Location.Name)
	}
	if cfg.Panel.RatedPowerW != 320 {
		t.Errorf("expected rated power 320, got %v", cfg.Panel.RatedPowerW)
	}
	if cfg.Analysis.ClearThreshold != 0.75 {
		t.Errorf("expected threshold 0.75, got %v", cfg.Analysis.ClearThreshold)
	}
	// Absent keys keep defaults.
	if cfg.Panel.VocV != 58.9 {
		t.Errorf("expected default Voc, got %v", cfg.Panel.VocV)
	}
	if cfg.Analysis.MaxRows != 100000 {
		t.Errorf("expected default max rows, got %v", cfg.Analysis.MaxRows)
	}
	if cfg.Analysis.CloudyCutoff != 0.375 {
		t.Errorf("expected derived cutoff 0.375, got %v", cfg.Analysis.CloudyCutoff)
	}
}

func TestYAMLProviderMissingFile(t *testing.T) {
	_, err := NewYAMLProvider("/nonexistent/config.yaml").LoadConfig()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
