package database

import (
	"context"
	"fmt"
	"time"

	"github.com/civicbrief/civicbrief/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo wraps the GORM connection with the queries the pipeline and the
// HTTP API need. Pipeline stages depend on the narrow interfaces
// declared in internal/pipeline; Repo satisfies all of them.
type Repo struct {
	db *gorm.DB
}

// NewRepo creates a Repo backed by the given GORM connection.
func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// BriefUsers returns all users eligible for the daily brief run: not
// deleted and with a non-empty email.
func (r *Repo) BriefUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("email <> ''").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query brief users: %w", err)
	}
	return users, nil
}

// UserByID returns a single user by primary key.
func (r *Repo) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// TopBillsForInterests returns the highest-impact bills tagged with any
// of the given policy areas that saw activity within the window. The
// disjunction is expressed as a parameterized IN clause; interest values
// never reach the SQL text directly.
func (r *Repo) TopBillsForInterests(ctx context.Context, interests []string, window time.Duration, limit int) ([]models.Bill, error) {
	if len(interests) == 0 {
		return nil, nil
	}

	cutoff := time.Now().Add(-window)

	var bills []models.Bill
	err := r.db.WithContext(ctx).
		Where("policy_area IN ?", interests).
		Where("last_action_at >= ?", cutoff).
		Order("impact_score DESC").
		Limit(limit).
		Find(&bills).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	return bills, nil
}

// CreateBrief inserts the final brief record. The insert is a no-op if
// a brief for the same job id already exists, so queue redelivery of
// the upload message cannot create duplicates.
func (r *Repo) CreateBrief(ctx context.Context, brief *models.Brief) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoNothing: true,
		}).
		Create(brief).Error
	if err != nil {
		return fmt.Errorf("failed to create brief: %w", err)
	}
	return nil
}

// TouchLastBrief records when a user last received a brief.
func (r *Repo) TouchLastBrief(ctx context.Context, userID uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_brief_at", at).Error
}

// BriefsForUser lists a user's briefs, newest first.
func (r *Repo) BriefsForUser(ctx context.Context, userID uint, limit int) ([]models.Brief, error) {
	var briefs []models.Brief
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&briefs).Error
	return briefs, err
}

// BriefByID returns a single brief by primary key.
func (r *Repo) BriefByID(ctx context.Context, id uint) (*models.Brief, error) {
	var brief models.Brief
	if err := r.db.WithContext(ctx).First(&brief, id).Error; err != nil {
		return nil, err
	}
	return &brief, nil
}

// DeleteBriefsOlderThan removes briefs generated before the cutoff.
// Returns the number of rows deleted.
func (r *Repo) DeleteBriefsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.Brief{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete briefs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
