package repository

import (
	"context"
	"errors"
	"time"

	"launchpad-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlreadyDeployed signals an idempotent collision on (launchId, chainId).
// Callers treat it as a successful no-op, not a fault.
var ErrAlreadyDeployed = errors.New("deployment already exists")

// DeployFunc performs the actual chain-side deployment and returns the token
// and curve addresses. It runs at most once per (launchId, chainId).
type DeployFunc func(ctx context.Context) (tokenAddress, curveAddress string, err error)

// DeploymentRepository is the idempotent deployment registry. TryDeploy has
// compare-and-set semantics: the first caller for a key wins, every later or
// concurrent duplicate gets the existing record back unchanged.
type DeploymentRepository interface {
	TryDeploy(ctx context.Context, launchID string, chainID int64, salt string, deploy DeployFunc) (*models.DeploymentRecord, bool, error)
	Get(ctx context.Context, launchID string, chainID int64) (*models.DeploymentRecord, error)
	ListByLaunch(ctx context.Context, launchID string) ([]*models.DeploymentRecord, error)
	// BatchPreregister bulk-loads pending records with the same per-key
	// idempotency as TryDeploy; existing keys are left untouched.
	BatchPreregister(ctx context.Context, records []*models.DeploymentRecord) (int64, error)
	MarkFailed(ctx context.Context, launchID string, chainID int64) error
}

type deploymentRepository struct {
	db *gorm.DB
}

// NewDeploymentRepository creates a new DeploymentRepository instance.
func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepository{db: db}
}

// TryDeploy claims the (launchID, chainID) key with a pending row, then runs
// deploy exactly once for the claimant. Duplicate and concurrent triggers
// observe the unique index and return the existing record with created=false.
// A previously failed row is re-claimed so retries can make progress.
func (r *deploymentRepository) TryDeploy(ctx context.Context, launchID string, chainID int64, salt string, deploy DeployFunc) (*models.DeploymentRecord, bool, error) {
	record := &models.DeploymentRecord{
		LaunchID: launchID,
		ChainID:  chainID,
		Salt:     salt,
		Status:   models.DeploymentStatusPending,
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "launch_id"}, {Name: "chain_id"}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return nil, false, res.Error
	}

	if res.RowsAffected == 0 {
		existing, err := r.Get(ctx, launchID, chainID)
		if err != nil {
			return nil, false, err
		}
		if existing.Status != models.DeploymentStatusFailed {
			return existing, false, nil
		}
		// Re-claim a failed row: only one retrier wins the CAS.
		claim := r.db.WithContext(ctx).
			Model(&models.DeploymentRecord{}).
			Where("launch_id = ? AND chain_id = ? AND status = ?",
				launchID, chainID, models.DeploymentStatusFailed).
			Update("status", models.DeploymentStatusPending)
		if claim.Error != nil {
			return nil, false, claim.Error
		}
		if claim.RowsAffected == 0 {
			return existing, false, nil
		}
		record = existing
		record.Status = models.DeploymentStatusPending
	}

	tokenAddr, curveAddr, err := deploy(ctx)
	if err != nil {
		_ = r.MarkFailed(ctx, launchID, chainID)
		return nil, false, err
	}

	now := time.Now()
	record.TokenAddress = tokenAddr
	record.CurveAddress = curveAddr
	record.Status = models.DeploymentStatusDeployed
	record.DeployedAt = &now
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (r *deploymentRepository) Get(ctx context.Context, launchID string, chainID int64) (*models.DeploymentRecord, error) {
	var record models.DeploymentRecord
	err := r.db.WithContext(ctx).
		Where("launch_id = ? AND chain_id = ?", launchID, chainID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *deploymentRepository) ListByLaunch(ctx context.Context, launchID string) ([]*models.DeploymentRecord, error) {
	var records []*models.DeploymentRecord
	err := r.db.WithContext(ctx).
		Where("launch_id = ?", launchID).
		Order("chain_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *deploymentRepository) BatchPreregister(ctx context.Context, records []*models.DeploymentRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "launch_id"}, {Name: "chain_id"}},
			DoNothing: true,
		}).
		Create(records)
	return res.RowsAffected, res.Error
}

func (r *deploymentRepository) MarkFailed(ctx context.Context, launchID string, chainID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.DeploymentRecord{}).
		Where("launch_id = ? AND chain_id = ?", launchID, chainID).
		Update("status", models.DeploymentStatusFailed).Error
}
