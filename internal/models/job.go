package models

import (
	"time"
)

// JobRecord stores one publish campaign aggregate wholesale as a JSON payload.
// Revision implements optimistic locking: a save with a stale revision is
// rejected, which guards against two concurrent publish triggers on one job.
type JobRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SiteKey   string    `gorm:"not null;index;size:100" json:"site_key"`
	Status    string    `gorm:"size:20" json:"status"`
	Payload   string    `gorm:"type:jsonb" json:"payload"`
	Revision  int       `gorm:"not null;default:0" json:"revision"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
