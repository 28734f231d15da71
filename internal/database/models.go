package database

import (
	"time"
)

// Analysis run lifecycle states.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Sky condition labels assigned to measurements, hours and days.
const (
	ClassificationClear         = "CLEAR"
	ClassificationMarginal      = "MARGINAL"
	ClassificationCloudy        = "CLOUDY"
	ClassificationIndeterminate = "INDETERMINATE"
)

// Audit log severities.
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// AnalysisMetadata tracks one upload end to end: the parameters the run was
// started with, its lifecycle status and its row counts. Every other table
// references its upload_id.
type AnalysisMetadata struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement;column:id"`
	UploadID           string     `gorm:"column:upload_id;uniqueIndex;size:36;not null"`
	SourceFile         string     `gorm:"column:source_file"`
	Location           string     `gorm:"column:location"`
	Latitude           float64    `gorm:"column:latitude"`
	Longitude          float64    `gorm:"column:longitude"`
	Timezone           string     `gorm:"column:timezone"`
	AltitudeM          float64    `gorm:"column:altitude_m"`
	RatedPowerW        float64    `gorm:"column:rated_power_w"`
	ClearThreshold     float64    `gorm:"column:clear_threshold"`
	CloudyCutoff       float64    `gorm:"column:cloudy_cutoff"`
	MinHourSamples     int        `gorm:"column:min_hour_samples"`
	AnomalySigma       float64    `gorm:"column:anomaly_sigma"`
	TempCoeffPctPerC   float64    `gorm:"column:temp_coefficient_pct_per_c"`
	WeatherSource      string     `gorm:"column:weather_source"`
	ClearSkyModel      string     `gorm:"column:clear_sky_model"`
	Status             string     `gorm:"column:status;index;not null"`
	DataPointsUploaded int        `gorm:"column:data_points_uploaded"`
	DataPointsValid    int        `gorm:"column:data_points_valid"`
	ErrorMessage       string     `gorm:"column:error_message"`
	StartedAt          time.Time  `gorm:"column:started_at;not null"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
}

// TableName specifies the table name for AnalysisMetadata
func (AnalysisMetadata) TableName() string {
	return "analysis_metadata"
}

// RawMeasurement is one validated row from an uploaded CSV. Timestamps are
// unique across the whole store; date and hour are derived in the site
// timezone at ingest time.
type RawMeasurement struct {
	ID           uint      `gorm:"primaryKey;autoIncrement;column:id"`
	UploadID     string    `gorm:"column:upload_id;index;size:36;not null"`
	Timestamp    time.Time `gorm:"column:timestamp;uniqueIndex;not null"`
	Date         string    `gorm:"column:date;index;size:10;not null"`
	Hour         int       `gorm:"column:hour;not null"`
	VoltageV     float64   `gorm:"column:voltage_v"`
	CurrentA     float64   `gorm:"column:current_a"`
	PowerW       float64   `gorm:"column:power_w"`
	TemperatureC float64   `gorm:"column:temperature_c"`
	Location     string    `gorm:"column:location"`
	RatedPowerW  float64   `gorm:"column:rated_power_w"`
	UploadedAt   time.Time `gorm:"column:uploaded_at"`

	Run *AnalysisMetadata `gorm:"foreignKey:UploadID;references:UploadID;belongsTo"`
}

// TableName specifies the table name for RawMeasurement
func (RawMeasurement) TableName() string {
	return "raw_measurements"
}

// WeatherRecord holds the hourly archive observations fetched for an upload.
// Observation fields are pointers: a missing hour keeps its record with null
// values so enrichment gaps stay visible.
type WeatherRecord struct {
	ID               uint      `gorm:"primaryKey;autoIncrement;column:id"`
	UploadID         string    `gorm:"column:upload_id;uniqueIndex:idx_weather_upload_date_hour;size:36;not null"`
	Date             string    `gorm:"column:date;uniqueIndex:idx_weather_upload_date_hour;size:10;not null"`
	Hour             int       `gorm:"column:hour;uniqueIndex:idx_weather_upload_date_hour;not null"`
	POAIrradianceWm2 *float64  `gorm:"column:poa_irradiance_wm2"`
	GHIWm2           *float64  `gorm:"column:ghi_wm2"`
	CloudCoverPct    *float64  `gorm:"column:cloud_cover_pct"`
	AmbientTempC     *float64  `gorm:"column:ambient_temp_c"`
	PressureHPa      *float64  `gorm:"column:pressure_hpa"`
	WindSpeedMs      *float64  `gorm:"column:wind_speed_ms"`
	Source           string    `gorm:"column:source"`
	FetchedAt        time.Time `gorm:"column:fetched_at"`

	Run *AnalysisMetadata `gorm:"foreignKey:UploadID;references:UploadID;belongsTo"`
}

// TableName specifies the table name for WeatherRecord
func (WeatherRecord) TableName() string {
	return "weather_data"
}

// ClassifiedMeasurement carries the sky-condition decision for one
// measurement. PowerRatio is null when the classification is indeterminate.
type ClassifiedMeasurement struct {
	ID             uint      `gorm:"primaryKey;autoIncrement;column:id"`
	UploadID       string    `gorm:"column:upload_id;index;size:36;not null"`
	Timestamp      time.Time `gorm:"column:timestamp;uniqueIndex;not null"`
	Date           string    `gorm:"column:date;index;size:10;not null"`
	Hour           int       `gorm:"column:hour;not null"`
	PowerW         float64   `gorm:"column:power_w"`
	MedianPowerW   float64   `gorm:"column:median_power_w"`
	PowerRatio     *float64  `gorm:"column:power_ratio"`
	Threshold      float64   `gorm:"column:threshold"`
	SampleCount    int       `gorm:"column:sample_count"`
	Classification string    `gorm:"column:classification;index;size:16;not null"`
	Confidence     float64   `gorm:"column:confidence"`

	Run *AnalysisMetadata `gorm:"foreignKey:UploadID;references:UploadID;belongsTo"`
}

// TableName specifies the table name for ClassifiedMeasurement
func (ClassifiedMeasurement) TableName() string {
	return "classified_measurements"
}

// HourlySummary aggregates one (date, hour) bucket, with all-data statistics
// alongside the CLEAR-only subset. Clear columns are null when the hour has
// no CLEAR measurements.
type HourlySummary struct {
	ID                uint     `gorm:"primaryKey;autoIncrement;column:id"`
	UploadID          string   `gorm:"column:upload_id;uniqueIndex:idx_hourly_upload_date_hour;size:36;not null"`
	Date              string   `gorm:"column:date;uniqueIndex:idx_hourly_upload_date_hour;size:10;not null"`
	Hour              int      `gorm:"column:hour;uniqueIndex:idx_hourly_upload_date_hour;not null"`
	AvgPowerW         float64  `gorm:"column:avg_power_w"`
	StdPowerW         float64  `gorm:"column:std_power_w"`
	CountMeasurements int      `gorm:"column:count_measurements"`
	ClearAvgPowerW    *float64 `gorm:"column:clear_avg_power_w"`
	ClearStdPowerW    *float64 `gorm:"column:clear_std_power_w"`
	ClearCount        int      `gorm:"column:clear_count"`
	AvgVoltageV       float64  `gorm:"column:avg_voltage_v"`
	AvgCurrentA       float64  `gorm:"column:avg_current_a"`
	AvgTemperatureC   float64  `gorm:"column:avg_temperature_c"`
	EnergyWh          float64  `gorm:"column:energy_wh"`
	Classification    string   `gorm:"column:classification;size:16"`

	Run *AnalysisMetadata `gorm:"foreignKey:UploadID;references:UploadID;belongsTo"`
}

// TableName specifies the table name for HourlySummary
func (HourlySummary) TableName() string {
	return "hourly_summaries"
}

// DailySummary aggregates one calendar date of an upload.
type DailySummary struct {
	ID                 uint     `gorm:"primaryKey;autoIncrement;column:id"`
	UploadID           string   `gorm:"column:upload_id;uniqueIndex:idx_daily_upload_date;size:36;not null"`
	Date               string   `gorm:"column:date;uniqueIndex:idx_daily_upload_date;size:10;not null"`
	PeakPowerW         float64  `gorm:"column:peak_power_w"`
	PeakHour           int      `gorm:"column:peak_hour"`
	EnergyWh           float64  `gorm:"column:energy_wh"`
	ClearEnergyWh      float64  `gorm:"column:clear_energy_wh"`
	ClearHours         int      `gorm:"column:clear_hours"`
	MarginalHours      int      `gorm:"column:marginal_hours"`
	CloudyHours        int      `gorm:"column:cloudy_hours"`
	IndeterminateHours int      `gorm:"column:indeterminate_hours"`
	Classification     string   `gorm:"column:classification;size:16"`
	AvgCloudCoverPct   *float64 `gorm:"column:avg_cloud_cover_pct"`
	AvgTemperatureC    float64  `gorm:"column:avg_temperature_c"`

	Run *AnalysisMetadata `gorm:"foreignKey:UploadID;references:UploadID;belongsTo"`
}

// TableName specifies the table name for DailySummary
func (DailySummary) TableName() string {
	return "daily_summaries"
}

// AuditLogEntry is one append-only event in a run's audit trail.
type AuditLogEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement;column:id"`
	UploadID  string    `gorm:"column:upload_id;index;size:36;not null"`
	Timestamp time.Time `gorm:"column:timestamp;not null"`
	Severity  string    `gorm:"column:severity;size:10;not null"`
	Stage     string    `gorm:"column:stage;size:24"`
	Message   string    `gorm:"column:message;type:text"`

	Run *AnalysisMetadata `gorm:"foreignKey:UploadID;references:UploadID;belongsTo"`
}

// TableName specifies the table name for AuditLogEntry
func (AuditLogEntry) TableName() string {
	return "audit_log"
}

// AllModels lists every table in migration order, parent first.
func AllModels() []interface{} {
	return []interface{}{
		&AnalysisMetadata{},
		&RawMeasurement{},
		&WeatherRecord{},
		&ClassifiedMeasurement{},
		&HourlySummary{},
		&DailySummary{},
		&AuditLogEntry{},
	}
}
