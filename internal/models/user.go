package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents an application user with civic profile and policy
// interests. Interests is a JSON-encoded string list written by the
// onboarding flow; it is parsed defensively by the scheduler because
// historical rows contain malformed values.
type User struct {
	gorm.Model
	Email     string         `gorm:"uniqueIndex:idx_users_email_not_deleted,where:deleted_at IS NULL;not null"`
	Name      string         `gorm:"not null;default:''"`
	State     string         `gorm:"size:2;default:''"`
	District  string         `gorm:"default:''"`
	Interests datatypes.JSON `gorm:"type:jsonb"`

	LastLoginAt *time.Time
	LastBriefAt *time.Time

	Briefs []Brief `gorm:"constraint:OnDelete:CASCADE;"`
}
