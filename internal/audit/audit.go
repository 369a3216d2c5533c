// Package audit records console session lifecycle events to the database
// for operator review, with a retention window enforced by a scheduled
// purge.
package audit

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nutanixed/prism-vnc-proxy/internal/database"
)

// Event types for console audit logging.
const (
	EventSessionStarted   = "session_started"
	EventSessionEnded     = "session_ended"
	EventReconnect        = "reconnect"
	EventAuthExpired      = "auth_expired"
	EventRelayOpened      = "relay_opened"
	EventRelayClosed      = "relay_closed"
	EventPowerStateChange = "power_state_change"
)

// DefaultRetentionDays is the default number of days audit rows are kept.
const DefaultRetentionDays = 90

// Entry carries the fields for one audit record.
type Entry struct {
	SessionID  string
	VMUUID     string
	EventType  string
	SourceIP   string
	Details    string
	DurationMs int64
}

// Auditor writes and queries console audit records.
type Auditor struct {
	db            *gorm.DB
	retentionDays int
	nowFn         func() time.Time // injectable clock for testing
}

// NewAuditor creates an Auditor writing to db. retentionDays <= 0 selects
// the default.
func NewAuditor(db *gorm.DB, retentionDays int) *Auditor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Auditor{db: db, retentionDays: retentionDays, nowFn: time.Now}
}

// Log records an audit event to the database and the standard logger.
func (a *Auditor) Log(entry Entry) error {
	record := database.ConsoleAuditLog{
		SessionID: entry.SessionID,
		VMUUID:    entry.VMUUID,
		EventType: entry.EventType,
		SourceIP:  entry.SourceIP,
		Details:   sanitize(entry.Details),
		Duration:  entry.DurationMs,
	}
	if err := a.db.Create(&record).Error; err != nil {
		log.Printf("audit: failed to write record: %v", err)
		return err
	}
	log.Printf("audit: %s vm=%s session=%s ip=%s details=%s",
		entry.EventType, entry.VMUUID, entry.SessionID, entry.SourceIP, sanitize(entry.Details))
	return nil
}

// Purge deletes records older than the retention window and returns how
// many were removed.
func (a *Auditor) Purge() (int64, error) {
	cutoff := a.nowFn().AddDate(0, 0, -a.retentionDays)
	res := a.db.Where("created_at < ?", cutoff).Delete(&database.ConsoleAuditLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge audit logs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("audit: purged %d records older than %s", res.RowsAffected, cutoff.Format(time.RFC3339))
	}
	return res.RowsAffected, nil
}

// QueryOptions filters audit record retrieval.
type QueryOptions struct {
	VMUUID    string
	EventType string
	Since     *time.Time
	Limit     int
}

// Query returns matching records, newest first.
func (a *Auditor) Query(opts QueryOptions) ([]database.ConsoleAuditLog, error) {
	q := a.db.Model(&database.ConsoleAuditLog{}).Order("created_at DESC")
	if opts.VMUUID != "" {
		q = q.Where("vm_uuid = ?", opts.VMUUID)
	}
	if opts.EventType != "" {
		q = q.Where("event_type = ?", opts.EventType)
	}
	if opts.Since != nil {
		q = q.Where("created_at >= ?", *opts.Since)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var records []database.ConsoleAuditLog
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return records, nil
}

// sanitize strips newlines and tabs from user-influenced strings so a
// crafted value cannot inject fake log lines.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}
