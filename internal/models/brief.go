package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Brief type constants
const (
	BriefTypeDaily  = "daily"
	BriefTypeWeekly = "weekly"
)

// Brief is the final artifact of a completed pipeline job: a hosted
// audio file plus its transcript and written digest. Created exactly
// once per job by the upload stage and read-only afterward, except for
// administrative cleanup.
type Brief struct {
	gorm.Model
	UserID uint `gorm:"not null;index"`
	User   User `gorm:"constraint:OnDelete:CASCADE;"`

	// JobID ties the brief back to the pipeline job that produced it.
	// The unique index makes brief creation idempotent under queue
	// redelivery of the upload message.
	JobID string `gorm:"uniqueIndex;not null"`

	Type        string         `gorm:"not null;default:'daily'"`
	AudioURL    string         `gorm:"not null"`
	Transcript  string         `gorm:"type:text"`
	Digest      string         `gorm:"type:text"`
	BillNumbers datatypes.JSON `gorm:"type:jsonb"`
	PolicyAreas datatypes.JSON `gorm:"type:jsonb"`

	DurationSeconds int
	GeneratedAt     *time.Time
}
