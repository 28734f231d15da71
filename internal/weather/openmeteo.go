package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agrade-energy/solarportal/internal/log"
)

const fetchTimeout = 10 * time.Second

// openMeteoBaseURL is the ERA5 reanalysis archive endpoint. Archive data
// trails realtime by a few days, which suits uploaded historical CSVs.
const openMeteoBaseURL = "https://archive-api.open-meteo.com/v1/archive"

var openMeteoHourlyFields = []string{
	"shortwave_radiation",
	"cloud_cover",
	"temperature_2m",
	"surface_pressure",
	"wind_speed_10m",
	"global_tilted_irradiance",
}

// OpenMeteoSource fetches hourly archive weather from the Open-Meteo
// historical API. No API key is required.
type OpenMeteoSource struct {
	// BaseURL overrides the archive endpoint, for tests.
	BaseURL string
}

type openMeteoResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
	Hourly struct {
		Time                   []string   `json:"time"`
		ShortwaveRadiation     []*float64 `json:"shortwave_radiation"`
		CloudCover             []*float64 `json:"cloud_cover"`
		Temperature2m          []*float64 `json:"temperature_2m"`
		SurfacePressure        []*float64 `json:"surface_pressure"`
		WindSpeed10m           []*float64 `json:"wind_speed_10m"`
		GlobalTiltedIrradiance []*float64 `json:"global_tilted_irradiance"`
	} `json:"hourly"`
}

func (o *OpenMeteoSource) Name() string { return "open-meteo" }

// FetchHourly queries the archive with timezone set to the site zone, so the
// returned hourly series is already keyed in site-local time.
func (o *OpenMeteoSource) FetchHourly(ctx context.Context, site Site, startDate, endDate string) (map[HourKey]Observation, error) {
	v := url.Values{}
	v.Set("latitude", fmt.Sprintf("%.4f", site.Latitude))
	v.Set("longitude", fmt.Sprintf("%.4f", site.Longitude))
	v.Set("start_date", startDate)
	v.Set("end_date", endDate)
	v.Set("timezone", site.Timezone)
	v.Set("hourly", strings.Join(openMeteoHourlyFields, ","))

	base := o.BaseURL
	if base == "" {
		base = openMeteoBaseURL
	}

	client := http.Client{
		Timeout: fetchTimeout,
	}

	reqURL := base + "?" + v.Encode()
	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating Open-Meteo request: %v", err)
	}

	log.Debugf("making request to Open-Meteo: %v", reqURL)
	req = req.WithContext(ctx)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request to Open-Meteo: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading Open-Meteo response body: %v", err)
	}

	response := &openMeteoResponse{}
	decoder := json.NewDecoder(bytes.NewReader(bodyBytes))
	if err := decoder.Decode(response); err != nil {
		return nil, fmt.Errorf("unable to decode Open-Meteo response: %v", err)
	}

	if response.Error {
		return nil, fmt.Errorf("bad response from Open-Meteo server: %s", response.Reason)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Open-Meteo returned status %s", resp.Status)
	}

	out := make(map[HourKey]Observation, len(response.Hourly.Time))
	for i, stamp := range response.Hourly.Time {
		t, err := time.Parse("2006-01-02T15:04", stamp)
		if err != nil {
			log.Debugf("skipping unparsable Open-Meteo time entry %q: %v", stamp, err)
			continue
		}
		key := HourKey{Date: t.Format("2006-01-02"), Hour: t.Hour()}
		out[key] = Observation{
			GHIWm2:           valueAt(response.Hourly.ShortwaveRadiation, i),
			POAIrradianceWm2: valueAt(response.Hourly.GlobalTiltedIrradiance, i),
			CloudCoverPct:    valueAt(response.Hourly.CloudCover, i),
			AmbientTempC:     valueAt(response.Hourly.Temperature2m, i),
			PressureHPa:      valueAt(response.Hourly.SurfacePressure, i),
			WindSpeedMs:      valueAt(response.Hourly.WindSpeed10m, i),
		}
	}

	return out, nil
}

// valueAt copies one series entry, tolerating short or null-padded arrays.
func valueAt(series []*float64, i int) *float64 {
	if i >= len(series) || series[i] == nil {
		return nil
	}
	v := *series[i]
	return &v
}
