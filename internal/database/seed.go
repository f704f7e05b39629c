package database

import (
	"log"
	"time"

	"github.com/civicbrief/civicbrief/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB) error {
	var existingUser models.User
	result := db.Where("email = ?", "dev@civicbrief.local").First(&existingUser)
	if result.Error == nil {
		log.Println("Seed data already exists, skipping")
		return nil
	}

	user := models.User{
		Email:     "dev@civicbrief.local",
		Name:      "Dev User",
		State:     "CA",
		District:  "12",
		Interests: datatypes.JSON([]byte(`["healthcare","education","environment"]`)),
	}

	if err := db.Create(&user).Error; err != nil {
		return err
	}

	// A user with a malformed interests value, for exercising the
	// scheduler's fallback path locally.
	broken := models.User{
		Email:     "broken@civicbrief.local",
		Name:      "Broken Interests",
		Interests: datatypes.JSON([]byte(`"not-a-list`)),
	}
	if err := db.Create(&broken).Error; err != nil {
		return err
	}

	recent := time.Now().Add(-48 * time.Hour)
	stale := time.Now().Add(-90 * 24 * time.Hour)

	bills := []models.Bill{
		{
			BillNumber:     "HR-1042",
			Title:          "Rural Hospital Stabilization Act",
			Summary:        "Expands grant funding for rural hospitals facing closure.",
			PolicyArea:     "healthcare",
			Sponsor:        "Rep. Alvarez",
			State:          "CA",
			Status:         "committee",
			ImpactScore:    8.7,
			LastActionAt:   &recent,
			LastActionText: "Referred to the Subcommittee on Health.",
		},
		{
			BillNumber:     "S-310",
			Title:          "Student Loan Interest Relief Act",
			Summary:        "Caps interest accrual on federal student loans.",
			PolicyArea:     "education",
			Sponsor:        "Sen. Okafor",
			Status:         "introduced",
			ImpactScore:    7.2,
			LastActionAt:   &recent,
			LastActionText: "Read twice and referred to committee.",
		},
		{
			BillNumber:     "HR-77",
			Title:          "Watershed Protection Act",
			Summary:        "Funds remediation of contaminated watersheds.",
			PolicyArea:     "environment",
			Sponsor:        "Rep. Lindqvist",
			Status:         "introduced",
			ImpactScore:    5.9,
			LastActionAt:   &stale,
			LastActionText: "Introduced in House.",
		},
	}

	for i := range bills {
		if err := db.Create(&bills[i]).Error; err != nil {
			return err
		}
	}

	log.Println("Seeded dev data: 2 users, 3 bills")
	return nil
}
