package repository

import (
	"context"
	"errors"
	"time"

	"launchpad-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrMigrationConflict is returned when a CAS transition loses the race, i.e.
// the record is no longer in the expected source status.
var ErrMigrationConflict = errors.New("migration status conflict")

// MigrationRepository stores the one-way launch migration lifecycle. All
// transitions are compare-and-set on the status column so a duplicate
// trigger can never re-execute a migration.
type MigrationRepository interface {
	EnsureActive(ctx context.Context, launchID string, chainID int64) (*models.MigrationRecord, error)
	Get(ctx context.Context, launchID string) (*models.MigrationRecord, error)
	// Transition moves launchID from `from` to `to`, applying updates
	// atomically. ErrMigrationConflict when the row is not in `from`.
	Transition(ctx context.Context, launchID string, from, to models.MigrationStatus, updates map[string]interface{}) error
}

type migrationRepository struct {
	db *gorm.DB
}

// NewMigrationRepository creates a new MigrationRepository instance.
func NewMigrationRepository(db *gorm.DB) MigrationRepository {
	return &migrationRepository{db: db}
}

func (r *migrationRepository) EnsureActive(ctx context.Context, launchID string, chainID int64) (*models.MigrationRecord, error) {
	record := &models.MigrationRecord{
		LaunchID: launchID,
		ChainID:  chainID,
		Status:   models.MigrationStatusActive,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return record, nil
	}
	return r.Get(ctx, launchID)
}

func (r *migrationRepository) Get(ctx context.Context, launchID string) (*models.MigrationRecord, error) {
	var record models.MigrationRecord
	err := r.db.WithContext(ctx).Where("launch_id = ?", launchID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *migrationRepository) Transition(ctx context.Context, launchID string, from, to models.MigrationStatus, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.MigrationRecord{}).
		Where("launch_id = ? AND status = ?", launchID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMigrationConflict
	}
	return nil
}
