package repository

import (
	"context"

	"launchpad-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LaunchRepository defines the interface for launch identity data access.
type LaunchRepository interface {
	// CreateIfAbsent inserts the launch unless the launchId already exists.
	// Returns the stored row and whether this call created it.
	CreateIfAbsent(ctx context.Context, launch *models.Launch) (*models.Launch, bool, error)
	GetByID(ctx context.Context, launchID string) (*models.Launch, error)
	List(ctx context.Context, page, limit int) ([]*models.Launch, int64, error)
}

type launchRepository struct {
	db *gorm.DB
}

// NewLaunchRepository creates a new LaunchRepository instance.
func NewLaunchRepository(db *gorm.DB) LaunchRepository {
	return &launchRepository{db: db}
}

func (r *launchRepository) CreateIfAbsent(ctx context.Context, launch *models.Launch) (*models.Launch, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(launch)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return launch, true, nil
	}
	existing, err := r.GetByID(ctx, launch.LaunchID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *launchRepository) GetByID(ctx context.Context, launchID string) (*models.Launch, error) {
	var launch models.Launch
	err := r.db.WithContext(ctx).Where("launch_id = ?", launchID).First(&launch).Error
	if err != nil {
		return nil, err
	}
	return &launch, nil
}

func (r *launchRepository) List(ctx context.Context, page, limit int) ([]*models.Launch, int64, error) {
	var launches []*models.Launch
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Launch{})
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&launches).Error
	if err != nil {
		return nil, 0, err
	}
	return launches, total, nil
}
