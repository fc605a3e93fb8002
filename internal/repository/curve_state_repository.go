package repository

import (
	"context"

	"launchpad-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CurveStateRepository defines the interface for per-(launch, chain) reserve
// records. Writers must hold the coordinator's per-key lock; the repository
// itself only guarantees storage-level consistency.
type CurveStateRepository interface {
	CreateIfAbsent(ctx context.Context, state *models.CurveState) (*models.CurveState, bool, error)
	Get(ctx context.Context, launchID string, chainID int64) (*models.CurveState, error)
	Save(ctx context.Context, state *models.CurveState) error
	ListByLaunch(ctx context.Context, launchID string) ([]*models.CurveState, error)
}

type curveStateRepository struct {
	db *gorm.DB
}

// NewCurveStateRepository creates a new CurveStateRepository instance.
func NewCurveStateRepository(db *gorm.DB) CurveStateRepository {
	return &curveStateRepository{db: db}
}

func (r *curveStateRepository) CreateIfAbsent(ctx context.Context, state *models.CurveState) (*models.CurveState, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "launch_id"}, {Name: "chain_id"}},
			DoNothing: true,
		}).
		Create(state)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return state, true, nil
	}
	existing, err := r.Get(ctx, state.LaunchID, state.ChainID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *curveStateRepository) Get(ctx context.Context, launchID string, chainID int64) (*models.CurveState, error) {
	var state models.CurveState
	err := r.db.WithContext(ctx).
		Where("launch_id = ? AND chain_id = ?", launchID, chainID).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *curveStateRepository) Save(ctx context.Context, state *models.CurveState) error {
	return r.db.WithContext(ctx).Save(state).Error
}

func (r *curveStateRepository) ListByLaunch(ctx context.Context, launchID string) ([]*models.CurveState, error) {
	var states []*models.CurveState
	err := r.db.WithContext(ctx).
		Where("launch_id = ?", launchID).
		Order("chain_id ASC").
		Find(&states).Error
	if err != nil {
		return nil, err
	}
	return states, nil
}
