// Package audit writes the per-upload audit trail. Every event lands in the
// audit_log table and is mirrored to the process log at matching severity.
package audit

import (
	"fmt"
	"time"

	"github.com/agrade-energy/solarportal/internal/database"
	"github.com/agrade-energy/solarportal/internal/log"
)

// Pipeline stage names recorded with each event.
const (
	StageRun       = "run"
	StageIngest    = "ingest"
	StageEnrich    = "enrich"
	StageClassify  = "classify"
	StageAggregate = "aggregate"
	StageReport    = "report"
)

// Recorder appends audit entries for one upload. A failed append is logged
// and swallowed: the audit trail must never take the pipeline down.
type Recorder struct {
	client   *database.Client
	uploadID string
}

// NewRecorder returns a Recorder bound to an upload.
func NewRecorder(client *database.Client, uploadID string) *Recorder {
	return &Recorder{
		client:   client,
		uploadID: uploadID,
	}
}

// Info records a normal lifecycle event.
func (r *Recorder) Info(stage, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Infof("[%s] %s: %s", r.uploadID, stage, msg)
	r.append(database.SeverityInfo, stage, msg)
}

// Warning records a degraded-but-continuing condition.
func (r *Recorder) Warning(stage, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Warnf("[%s] %s: %s", r.uploadID, stage, msg)
	r.append(database.SeverityWarning, stage, msg)
}

// Error records a rejected row or failed stage.
func (r *Recorder) Error(stage, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Errorf("[%s] %s: %s", r.uploadID, stage, msg)
	r.append(database.SeverityError, stage, msg)
}

func (r *Recorder) append(severity, stage, msg string) {
	entry := &database.AuditLogEntry{
		UploadID:  r.uploadID,
		Timestamp: time.Now(),
		Severity:  severity,
		Stage:     stage,
		Message:   msg,
	}
	if err := r.client.AppendAudit(entry); err != nil {
		log.Errorf("unable to append audit entry for run %s: %v", r.uploadID, err)
	}
}
