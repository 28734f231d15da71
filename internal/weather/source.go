// Package weather enriches uploaded measurements with hourly archive
// observations from public weather APIs. Enrichment is best-effort: a source
// outage degrades the run with a warning instead of failing it.
package weather

import (
	"context"
	"time"
)

// HourKey addresses one site-local hour of archive weather.
type HourKey struct {
	Date string // YYYY-MM-DD in the site timezone
	Hour int
}

// Observation is one hour of archive weather. Fields are nil when the source
// had no value for that hour.
type Observation struct {
	POAIrradianceWm2 *float64
	GHIWm2           *float64
	CloudCoverPct    *float64
	AmbientTempC     *float64
	PressureHPa      *float64
	WindSpeedMs      *float64
}

// Site is the location the archive is queried for.
type Site struct {
	Latitude  float64
	Longitude float64
	Timezone  string
	Loc       *time.Location
}

// Source fetches hourly archive observations covering the inclusive date
// range startDate..endDate (YYYY-MM-DD, site-local).
type Source interface {
	Name() string
	FetchHourly(ctx context.Context, site Site, startDate, endDate string) (map[HourKey]Observation, error)
}

// NoopSource disables enrichment. Every measurement keeps null weather.
type NoopSource struct{}

func (NoopSource) Name() string { return "none" }

func (NoopSource) FetchHourly(ctx context.Context, site Site, startDate, endDate string) (map[HourKey]Observation, error) {
	return map[HourKey]Observation{}, nil
}
