package repository

import (
	"context"
	"time"

	"launchpad-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncCursorRepository is the SyncLedger: a per-(launch, chain) high-water
// mark of applied sequence numbers. AdvanceIfNewer is the sequence gate —
// stale and duplicate sequence numbers are reported as not-advanced, never
// as errors.
type SyncCursorRepository interface {
	Get(ctx context.Context, launchID string, chainID int64) (*models.SyncCursor, error)
	// AdvanceIfNewer moves the cursor to seq iff seq > lastAppliedSeq.
	// Returns whether the cursor advanced.
	AdvanceIfNewer(ctx context.Context, launchID string, chainID int64, seq uint64) (bool, error)
	ListByLaunch(ctx context.Context, launchID string) ([]*models.SyncCursor, error)
}

type syncCursorRepository struct {
	db *gorm.DB
}

// NewSyncCursorRepository creates a new SyncCursorRepository instance.
func NewSyncCursorRepository(db *gorm.DB) SyncCursorRepository {
	return &syncCursorRepository{db: db}
}

func (r *syncCursorRepository) Get(ctx context.Context, launchID string, chainID int64) (*models.SyncCursor, error) {
	var cursor models.SyncCursor
	err := r.db.WithContext(ctx).
		Where("launch_id = ? AND chain_id = ?", launchID, chainID).
		First(&cursor).Error
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (r *syncCursorRepository) AdvanceIfNewer(ctx context.Context, launchID string, chainID int64, seq uint64) (bool, error) {
	now := time.Now()

	// First writer for the key inserts; later writers fall through to the
	// guarded update.
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "launch_id"}, {Name: "chain_id"}},
			DoNothing: true,
		}).
		Create(&models.SyncCursor{
			LaunchID:       launchID,
			ChainID:        chainID,
			LastAppliedSeq: seq,
			LastAppliedAt:  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	upd := r.db.WithContext(ctx).
		Model(&models.SyncCursor{}).
		Where("launch_id = ? AND chain_id = ? AND last_applied_seq < ?", launchID, chainID, seq).
		Updates(map[string]interface{}{
			"last_applied_seq": seq,
			"last_applied_at":  now,
		})
	if upd.Error != nil {
		return false, upd.Error
	}
	return upd.RowsAffected > 0, nil
}

func (r *syncCursorRepository) ListByLaunch(ctx context.Context, launchID string) ([]*models.SyncCursor, error) {
	var cursors []*models.SyncCursor
	err := r.db.WithContext(ctx).
		Where("launch_id = ?", launchID).
		Order("chain_id ASC").
		Find(&cursors).Error
	if err != nil {
		return nil, err
	}
	return cursors, nil
}
