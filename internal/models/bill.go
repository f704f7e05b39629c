package models

import (
	"time"

	"gorm.io/gorm"
)

// Bill represents a piece of legislation tracked by the platform.
// Rows are written by the (out-of-band) ingestion jobs; the brief
// pipeline only reads them.
type Bill struct {
	gorm.Model
	BillNumber  string `gorm:"uniqueIndex;not null"`
	Title       string `gorm:"not null"`
	Summary     string `gorm:"type:text"`
	PolicyArea  string `gorm:"index;not null"`
	Sponsor     string
	State       string `gorm:"size:2;default:''"`
	Status      string `gorm:"default:'introduced'"`
	ImpactScore float64 `gorm:"index;default:0"`

	LastActionAt   *time.Time `gorm:"index"`
	LastActionText string     `gorm:"type:text"`
}
