package database

import "time"

// ConsoleAuditLog records one console session lifecycle event.
type ConsoleAuditLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"index;not null" json:"session_id"`
	VMUUID    string    `gorm:"index;not null" json:"vm_uuid"`
	EventType string    `gorm:"index;not null" json:"event_type"`
	SourceIP  string    `json:"source_ip"`
	Details   string    `json:"details"`
	Duration  int64     `json:"duration_ms"` // session duration, end events only
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
