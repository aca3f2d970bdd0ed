package models

import (
	"time"
)

// PublishAudit is one append-only record per publish batch, kept for
// postmortems and debugging. Rows are never updated or deleted.
type PublishAudit struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	JobID       string    `gorm:"not null;index;size:36" json:"job_id"`
	SiteKey     string    `gorm:"size:100" json:"site_key"`
	JobStatus   string    `gorm:"size:20" json:"job_status"`
	OKCount     int       `json:"ok_count"`
	FailedCount int       `json:"failed_count"`
	Results     string    `gorm:"type:jsonb" json:"results"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
