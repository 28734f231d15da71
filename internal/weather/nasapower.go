package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agrade-energy/solarportal/internal/log"
)

const nasaPowerBaseURL = "https://power.larc.nasa.gov/api/temporal/hourly/point"

const (
	nasaParamGHI        = "ALLSKY_SFC_SW_DWN"
	nasaParamCloud      = "CLOUD_AMT"
	nasaParamTemp       = "T2M"
	nasaParamPressure   = "PS"
	nasaParamWindSpeed  = "WS10M"
	nasaPowerParameters = "ALLSKY_SFC_SW_DWN,CLOUD_AMT,T2M,PS,WS10M"
)

// NASAPowerSource fetches hourly archive weather from the NASA POWER API.
// POWER keys its hourly series in UTC, so fetched hours are converted to the
// site timezone before keying. There is no tilted irradiance product, so
// plane-of-array values stay null.
type NASAPowerSource struct {
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

type nasaPowerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

func (n *NASAPowerSource) Name() string { return "nasa-power" }

func (n *NASAPowerSource) FetchHourly(ctx context.Context, site Site, startDate, endDate string) (map[HourKey]Observation, error) {
	// Widen the UTC request window by a day on each side so every site-local
	// hour in the range is covered after conversion.
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %v", startDate, err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %v", endDate, err)
	}

	v := url.Values{}
	v.Set("latitude", fmt.Sprintf("%.4f", site.Latitude))
	v.Set("longitude", fmt.Sprintf("%.4f", site.Longitude))
	v.Set("start", start.AddDate(0, 0, -1).Format("20060102"))
	v.Set("end", end.AddDate(0, 0, 1).Format("20060102"))
	v.Set("parameters", nasaPowerParameters)
	v.Set("community", "RE")
	v.Set("format", "JSON")
	v.Set("time-standard", "UTC")

	base := n.BaseURL
	if base == "" {
		base = nasaPowerBaseURL
	}

	client := http.Client{
		Timeout: fetchTimeout,
	}

	reqURL := base + "?" + v.Encode()
	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating NASA POWER request: %v", err)
	}

	log.Debugf("making request to NASA POWER: %v", reqURL)
	req = req.WithContext(ctx)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request to NASA POWER: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading NASA POWER response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NASA POWER returned status %s", resp.Status)
	}

	response := &nasaPowerResponse{}
	decoder := json.NewDecoder(bytes.NewReader(bodyBytes))
	if err := decoder.Decode(response); err != nil {
		return nil, fmt.Errorf("unable to decode NASA POWER response: %v", err)
	}
	if len(response.Properties.Parameter) == 0 {
		return nil, fmt.Errorf("NASA POWER response carries no parameters")
	}

	out := make(map[HourKey]Observation)
	for stamp := range response.Properties.Parameter[nasaParamGHI] {
		t, err := time.ParseInLocation("2006010215", stamp, time.UTC)
		if err != nil {
			log.Debugf("skipping unparsable NASA POWER time entry %q: %v", stamp, err)
			continue
		}
		local := t.In(site.Loc)
		key := HourKey{Date: local.Format("2006-01-02"), Hour: local.Hour()}
		out[key] = Observation{
			GHIWm2:        nasaValue(response.Properties.Parameter, nasaParamGHI, stamp),
			CloudCoverPct: nasaValue(response.Properties.Parameter, nasaParamCloud, stamp),
			AmbientTempC:  nasaValue(response.Properties.Parameter, nasaParamTemp, stamp),
			PressureHPa:   nasaPressureHPa(response.Properties.Parameter, stamp),
			WindSpeedMs:   nasaValue(response.Properties.Parameter, nasaParamWindSpeed, stamp),
		}
	}

	return out, nil
}

// nasaValue reads one parameter hour, mapping the POWER fill value (-999)
// to a missing observation.
func nasaValue(params map[string]map[string]float64, name, stamp string) *float64 {
	series, ok := params[name]
	if !ok {
		return nil
	}
	v, ok := series[stamp]
	if !ok || v <= -900 {
		return nil
	}
	return &v
}

// nasaPressureHPa converts the PS parameter from kPa to hPa.
func nasaPressureHPa(params map[string]map[string]float64, stamp string) *float64 {
	v := nasaValue(params, nasaParamPressure, stamp)
	if v == nil {
		return nil
	}
	hpa := *v * 10
	return &hpa
}
