package database

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client := NewClient(filepath.Join(t.TempDir(), "test.db"), zap.NewNop().Sugar())
	if err := client.Connect(); err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func makeRun(uploadID string) *AnalysisMetadata {
	return &AnalysisMetadata{
		UploadID:  uploadID,
		Location:  "Hong Kong",
		Timezone:  "UTC",
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
}

func measurementAt(uploadID string, ts time.Time, powerW float64) RawMeasurement {
	return RawMeasurement{
		UploadID:  uploadID,
		Timestamp: ts,
		Date:      ts.Format("2006-01-02"),
		Hour:      ts.Hour(),
		PowerW:    powerW,
	}
}

func ptrF(v float64) *float64 { return &v }

func TestRunLifecycle(t *testing.T) {
	client := newTestClient(t)

	if err := client.CreateRun(makeRun("run-1")); err != nil {
		t.Fatalf("creating run: %v", err)
	}

	run, err := client.GetRun("run-1")
	if err != nil {
		t.Fatalf("loading run: %v", err)
	}
	if run.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, run.Status)
	}
	if run.CompletedAt != nil {
		t.Error("a fresh run should have no completion time")
	}

	if err := client.UpdateRunStatus("run-1", StatusRunning); err != nil {
		t.Fatalf("updating status: %v", err)
	}
	if err := client.SetRunCounts("run-1", 24, 20); err != nil {
		t.Fatalf("recording counts: %v", err)
	}
	if err := client.CompleteRun("run-1"); err != nil {
		t.Fatalf("completing run: %v", err)
	}

	run, err = client.GetRun("run-1")
	if err != nil {
		t.Fatalf("reloading run: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, run.Status)
	}
	if run.DataPointsUploaded != 24 || run.DataPointsValid != 20 {
		t.Errorf("expected counts 24/20, got %d/%d", run.DataPointsUploaded, run.DataPointsValid)
	}
	if run.CompletedAt == nil {
		t.Error("expected a completion time")
	}
}

func TestFailRunKeepsReason(t *testing.T) {
	client := newTestClient(t)
	if err := client.CreateRun(makeRun("run-f")); err != nil {
		t.Fatalf("creating run: %v", err)
	}

	if err := client.FailRun("run-f", "no valid measurements"); err != nil {
		t.Fatalf("failing run: %v", err)
	}

	run, err := client.GetRun("run-f")
	if err != nil {
		t.Fatalf("loading run: %v", err)
	}
	if run.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, run.Status)
	}
	if run.ErrorMessage != "no valid measurements" {
		t.Errorf("unexpected error message %q", run.ErrorMessage)
	}
	if run.CompletedAt == nil {
		t.Error("a failed run still gets a completion time")
	}
}

func TestGetRunUnknown(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.GetRun("no-such-run"); err == nil {
		t.Fatal("expected an error for an unknown upload")
	}
}

func TestCreateRunDuplicateUploadID(t *testing.T) {
	client := newTestClient(t)
	if err := client.CreateRun(makeRun("dup")); err != nil {
		t.Fatalf("creating run: %v", err)
	}
	if err := client.CreateRun(makeRun("dup")); err == nil {
		t.Fatal("expected the unique index to reject a duplicate upload ID")
	}
}

func TestMeasurementsOrderedByTime(t *testing.T) {
	client := newTestClient(t)
	if err := client.CreateRun(makeRun("run-m")); err != nil {
		t.Fatalf("creating run: %v", err)
	}

	base := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	rows := []RawMeasurement{
		measurementAt("run-m", base.Add(2*time.Hour), 300),
		measurementAt("run-m", base, 100),
		measurementAt("run-m", base.Add(time.Hour), 200),
	}
	if err := client.InsertMeasurements(rows); err != nil {
		t.Fatalf("inserting measurements: %v", err)
	}

	got, err := client.MeasurementsByUpload("run-m")
	if err != nil {
		t.Fatalf("loading measurements: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i, want := range []float64{100, 200, 300} {
		if got[i].PowerW != want {
			t.Errorf("row %d: expected %.0f W, got %.0f W", i, want, got[i].PowerW)
		}
	}

	if err := client.InsertMeasurements(nil); err != nil {
		t.Errorf("inserting nothing should be a no-op, got %v", err)
	}
}

func TestMeasurementsRequireKnownRun(t *testing.T) {
	client := newTestClient(t)
	ts := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	err := client.InsertMeasurements([]RawMeasurement{measurementAt("ghost", ts, 100)})
	if err == nil {
		t.Fatal("expected the foreign key to reject an unknown upload")
	}
}

func TestExistingTimestamps(t *testing.T) {
	client := newTestClient(t)
	if err := client.CreateRun(makeRun("run-e")); err != nil {
		t.Fatalf("creating run: %v", err)
	}

	base := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	stored := []RawMeasurement{
		measurementAt("run-e", base, 0),
		measurementAt("run-e", base.Add(time.Hour), 10),
		measurementAt("run-e", base.Add(2*time.Hour), 20),
	}
	if err := client.InsertMeasurements(stored); err != nil {
		t.Fatalf("inserting measurements: %v", err)
	}

	// Enough candidates to span more than one lookup batch.
	var candidates []time.Time
	for i := 0; i < 700; i++ {
		candidates = append(candidates, base.Add(time.Duration(i)*time.Hour))
	}

	existing, err := client.ExistingTimestamps(candidates)
	if err != nil {
		t.Fatalf("checking timestamps: %v", err)
	}
	if len(existing) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(existing))
	}
	for _, m := range stored {
		if !existing[m.Timestamp.Unix()] {
			t.Errorf("missing hit for %s", m.Timestamp)
		}
	}
}

func TestUpsertWeatherRecord(t *testing.T) {
	client := newTestClient(t)
	if err := client.CreateRun(makeRun("run-w")); err != nil {
		t.Fatalf("creating run: %v", err)
	}

	rec := &WeatherRecord{
		UploadID:  "run-w",
		Date:      "2024-06-15",
		Hour:      12,
		GHIWm2:    ptrF(850),
		Source:    "test",
		FetchedAt: time.Now(),
	}
	if err := client.UpsertWeatherRecord(rec); err != nil {
		t.Fatalf("creating weather record: %v", err)
	}

	// Same key again with fresh values updates in place.
	update := &WeatherRecord{
		UploadID:  "run-w",
		Date:      "2024-06-15",
		Hour:      12,
		GHIWm2:    ptrF(900),
		Source:    "test",
		FetchedAt: time.Now(),
	}
	if err := client.UpsertWeatherRecord(update); err != nil {
		t.Fatalf("updating weather record: %v", err)
	}

	other := &WeatherRecord{
		UploadID:  "run-w",
		Date:      "2024-06-15",
		Hour:      13,
		Source:    "test",
		FetchedAt: time.Now(),
	}
	if err := client.UpsertWeatherRecord(other); err != nil {
		t.Fatalf("creating second weather record: %v", err)
	}

	rows, err := client.WeatherByUpload("run-w")
	if err != nil {
		t.Fatalf("loading weather: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].GHIWm2 == nil || *rows[0].GHIWm2 != 900 {
		t.Errorf("expected the upsert to refresh irradiance to 900")
	}
	if rows[1].GHIWm2 != nil {
		t.Errorf("hour 13 should carry a null irradiance")
	}
}

func TestReplaceClassifications(t *testing.T) {
	client := newTestClient(t)
	if err := client.CreateRun(makeRun("run-c")); err != nil {
		t.Fatalf("creating run: %v", err)
	}

	base := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	first := []ClassifiedMeasurement{
		{UploadID: "run-c", Timestamp: base, Date: "2024-06-15", Hour: 10, Classification: ClassificationClear},
		{UploadID: "run-c", Timestamp: base.Add(time.Hour), Date: "2024-06-15", Hour: 11, Classification: ClassificationCloudy},
	}
	if err := client.ReplaceClassifications("run-c", first); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	second := []ClassifiedMeasurement{
		{UploadID: "run-c", Timestamp: base, Date: "2024-06-15", Hour: 10, Classification: ClassificationMarginal},
	}
	if err := client.ReplaceClassifications("run-c", second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	rows, err := client.ClassificationsByUpload("run-c")
	if err != nil {
		t.Fatalf("loading classifications: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the replace to rewrite rows, got %d", len(rows))
	}
	if rows[0].Classification != ClassificationMarginal {
		t.Errorf("expected the rewritten label, got %s", rows[0].Classification)
	}

	if err := client.ReplaceClassifications("run-c", nil); err != nil {
		t.Fatalf("clearing classifications: %v", err)
	}
	rows, err = client.ClassificationsByUpload("run-c")
	if err != nil {
		t.Fatalf("reloading classifications: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows after clearing, got %d", len(rows))
	}
}

func TestReplaceSummaries(t *testing.T) {
	client := newTestClient(t)
	if err := client.CreateRun(makeRun("run-s")); err != nil {
		t.Fatalf("creating run: %v", err)
	}

	hourly := []HourlySummary{
		{UploadID: "run-s", Date: "2024-06-15", Hour: 11, AvgPowerW: 800},
		{UploadID: "run-s", Date: "2024-06-15", Hour: 10, AvgPowerW: 700},
	}
	if err := client.ReplaceHourlySummaries("run-s", hourly); err != nil {
		t.Fatalf("replacing hourly: %v", err)
	}
	daily := []DailySummary{
		{UploadID: "run-s", Date: "2024-06-15", EnergyWh: 1500},
	}
	if err := client.ReplaceDailySummaries("run-s", daily); err != nil {
		t.Fatalf("replacing daily: %v", err)
	}

	// Rewriting must not accumulate rows.
	if err := client.ReplaceHourlySummaries("run-s", hourly); err != nil {
		t.Fatalf("second hourly replace: %v", err)
	}

	gotHourly, err := client.HourlyByUpload("run-s")
	if err != nil {
		t.Fatalf("loading hourly: %v", err)
	}
	if len(gotHourly) != 2 {
		t.Fatalf("expected 2 hourly rows, got %d", len(gotHourly))
	}
	if gotHourly[0].Hour != 10 || gotHourly[1].Hour != 11 {
		t.Errorf("expected hour order 10,11, got %d,%d", gotHourly[0].Hour, gotHourly[1].Hour)
	}

	gotDaily, err := client.DailyByUpload("run-s")
	if err != nil {
		t.Fatalf("loading daily: %v", err)
	}
	if len(gotDaily) != 1 || gotDaily[0].EnergyWh != 1500 {
		t.Errorf("unexpected daily rows: %+v", gotDaily)
	}
}

func TestAuditTrailOrder(t *testing.T) {
	client := newTestClient(t)
	if err := client.CreateRun(makeRun("run-a")); err != nil {
		t.Fatalf("creating run: %v", err)
	}

	for i, severity := range []string{SeverityInfo, SeverityWarning, SeverityError} {
		entry := &AuditLogEntry{
			UploadID:  "run-a",
			Timestamp: time.Now(),
			Severity:  severity,
			Stage:     "ingest",
			Message:   "entry",
		}
		if err := client.AppendAudit(entry); err != nil {
			t.Fatalf("appending entry %d: %v", i, err)
		}
	}

	entries, err := client.AuditByUpload("run-a")
	if err != nil {
		t.Fatalf("loading audit trail: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{SeverityInfo, SeverityWarning, SeverityError}
	for i, e := range entries {
		if e.Severity != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], e.Severity)
		}
	}
}
