package report

import (
	"fmt"
	"io"
	"text/template"
)

var reportFuncs = template.FuncMap{
	"na": func(v *float64, format string) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprintf(format, *v)
	},
	"pct": func(part, total int) string {
		if total == 0 {
			return "0.0%"
		}
		return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
	},
	"kwh": func(wh float64) float64 {
		return wh / 1000
	},
	"add1": func(i int) int {
		return i + 1
	},
	"anomalyTag": func(a Anomaly) string {
		if a.Hour < 0 {
			return a.Date
		}
		return fmt.Sprintf("%s %02d:00", a.Date, a.Hour)
	},
}

var reportTemplate = template.Must(template.New("report").Funcs(reportFuncs).Parse(
	`================================================================
                SOLAR PANEL DATA ANALYSIS REPORT
================================================================
Generated:   {{.GeneratedAt.Format "2006-01-02 15:04:05"}}
Upload ID:   {{.UploadID}}
Location:    {{.Location}} ({{printf "%.4f" .Latitude}}, {{printf "%.4f" .Longitude}})

----------------------------------------------------------------
ANALYSIS PERIOD
----------------------------------------------------------------
Start date:             {{.StartDate}}
End date:               {{.EndDate}}
Days analyzed:          {{.Days}}
Rows uploaded:          {{.UploadedRows}}
Rows valid:             {{.ValidRows}} ({{pct .ValidRows .UploadedRows}})

----------------------------------------------------------------
KEY METRICS
----------------------------------------------------------------
Power Summary
  Peak power:           {{printf "%.2f" .PeakPowerW}} W{{if not .PeakTimestamp.IsZero}} at {{.PeakTimestamp.Format "2006-01-02 15:04"}}{{end}}
  Average power:        {{printf "%.2f" .AvgPowerW}} W
  Total energy:         {{printf "%.2f" .TotalEnergyWh}} Wh ({{printf "%.2f" (kwh .TotalEnergyWh)}} kWh)
  Clear-hour energy:    {{printf "%.2f" .ClearEnergyWh}} Wh
  Average daily yield:  {{printf "%.2f" .AvgDailyEnergyWh}} Wh/day

Sky Classification
  CLEAR:                {{.ClearCount}} ({{pct .ClearCount .TotalMeasurements}})
  MARGINAL:             {{.MarginalCount}} ({{pct .MarginalCount .TotalMeasurements}})
  CLOUDY:               {{.CloudyCount}} ({{pct .CloudyCount .TotalMeasurements}})
  INDETERMINATE:        {{.IndeterminateCount}} ({{pct .IndeterminateCount .TotalMeasurements}})
  Days:                 {{.ClearDays}} clear, {{.MarginalDays}} marginal, {{.CloudyDays}} cloudy, {{.IndeterminateDays}} indeterminate

Performance
  Rated power:          {{printf "%.2f" .RatedPowerW}} W
  Performance ratio:    {{na .PerformanceRatio "%.2f"}}
  Clear-day ratio:      {{na .ClearPerformanceRatio "%.2f"}}
  Theoretical yield:    {{na .TheoreticalYieldWh "%.2f"}}{{if .TheoreticalYieldWh}} Wh ({{.ClearSkyModel}} clear-sky model){{end}}
  Capture ratio:        {{na .CaptureRatio "%.2f"}}

----------------------------------------------------------------
TEMPERATURE ANALYSIS
----------------------------------------------------------------
Average panel temperature:   {{printf "%.1f" .AvgTemperatureC}} degC
Temperature range:           {{printf "%.1f" .MinTemperatureC}} to {{printf "%.1f" .MaxTemperatureC}} degC
Measured temp coefficient:   {{na .MeasuredTempCoeff "%.2f"}}{{if .MeasuredTempCoeff}} %/degC{{end}}
Rated temp coefficient:      {{printf "%.2f" .RatedTempCoeffPctPerC}} %/degC

----------------------------------------------------------------
ANOMALIES ({{len .Anomalies}})
----------------------------------------------------------------
{{- if .Anomalies}}
{{- range .Anomalies}}
  - [{{anomalyTag .}}] {{.Message}}
{{- end}}
{{- else}}
  None detected.
{{- end}}

----------------------------------------------------------------
RECOMMENDATIONS
----------------------------------------------------------------
{{- range $i, $r := .Recommendations}}
  {{add1 $i}}. {{$r}}
{{- end}}

----------------------------------------------------------------
ANALYSIS PARAMETERS
----------------------------------------------------------------
Clear threshold:        {{printf "%.2f" .ClearThreshold}}
Cloudy cutoff:          {{printf "%.2f" .CloudyCutoff}}
Anomaly sigma:          {{printf "%.1f" .AnomalySigma}}
Weather source:         {{.WeatherSource}}
Clear-sky model:        {{.ClearSkyModel}}

----------------------------------------------------------------
GENERATED FILES
----------------------------------------------------------------
{{- range .GeneratedFiles}}
  - {{.}}
{{- end}}
`))

// Render writes the report document.
func Render(w io.Writer, rep *Report) error {
	return reportTemplate.Execute(w, rep)
}
