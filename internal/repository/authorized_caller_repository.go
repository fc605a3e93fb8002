package repository

import (
	"context"
	"errors"
	"strings"

	"launchpad-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuthorizedCallerRepository manages the relay/VM caller allow-list checked
// on every inbound callback.
type AuthorizedCallerRepository interface {
	IsAllowed(ctx context.Context, chainID int64, address string) (bool, error)
	// SetAllowed upserts an allow-list entry; allowed=false disables it
	// without deleting the audit trail.
	SetAllowed(ctx context.Context, chainID int64, address, label string, allowed bool) error
	List(ctx context.Context) ([]*models.AuthorizedCaller, error)
}

type authorizedCallerRepository struct {
	db *gorm.DB
}

// NewAuthorizedCallerRepository creates a new AuthorizedCallerRepository instance.
func NewAuthorizedCallerRepository(db *gorm.DB) AuthorizedCallerRepository {
	return &authorizedCallerRepository{db: db}
}

func (r *authorizedCallerRepository) IsAllowed(ctx context.Context, chainID int64, address string) (bool, error) {
	var caller models.AuthorizedCaller
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND address = ?", chainID, strings.ToLower(address)).
		First(&caller).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return caller.Enabled, nil
}

func (r *authorizedCallerRepository) SetAllowed(ctx context.Context, chainID int64, address, label string, allowed bool) error {
	caller := &models.AuthorizedCaller{
		ChainID: chainID,
		Address: strings.ToLower(address),
		Enabled: allowed,
		Label:   label,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain_id"}, {Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "label", "updated_at"}),
		}).
		Create(caller).Error
}

func (r *authorizedCallerRepository) List(ctx context.Context) ([]*models.AuthorizedCaller, error) {
	var callers []*models.AuthorizedCaller
	err := r.db.WithContext(ctx).Order("chain_id ASC, address ASC").Find(&callers).Error
	if err != nil {
		return nil, err
	}
	return callers, nil
}
