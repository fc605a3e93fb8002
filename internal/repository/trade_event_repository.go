package repository

import (
	"context"

	"launchpad-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TradeEventRepository is the applied-trade audit log. RecordOnce doubles as
// the at-least-once dedup gate: redelivered events collapse on the
// (chain_id, tx_hash, log_index) unique index.
type TradeEventRepository interface {
	// RecordOnce inserts the event unless it was already applied.
	// Returns whether this call inserted it.
	RecordOnce(ctx context.Context, event *models.TradeEvent) (bool, error)
	FindByLaunch(ctx context.Context, launchID string, page, limit int) ([]*models.TradeEvent, int64, error)
}

type tradeEventRepository struct {
	db *gorm.DB
}

// NewTradeEventRepository creates a new TradeEventRepository instance.
func NewTradeEventRepository(db *gorm.DB) TradeEventRepository {
	return &tradeEventRepository{db: db}
}

func (r *tradeEventRepository) RecordOnce(ctx context.Context, event *models.TradeEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain_id"}, {Name: "tx_hash"}, {Name: "log_index"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *tradeEventRepository) FindByLaunch(ctx context.Context, launchID string, page, limit int) ([]*models.TradeEvent, int64, error) {
	var events []*models.TradeEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&models.TradeEvent{}).Where("launch_id = ?", launchID)
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
