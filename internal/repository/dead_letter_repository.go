package repository

import (
	"context"
	"time"

	"launchpad-backend/internal/models"

	"gorm.io/gorm"
)

// DeadLetterRepository stores parked fan-out legs awaiting retry or manual
// redispatch.
type DeadLetterRepository interface {
	Create(ctx context.Context, letter *models.FanoutDeadLetter) error
	GetByID(ctx context.Context, id string) (*models.FanoutDeadLetter, error)
	// DuePending returns pending letters whose next_retry_at has passed.
	DuePending(ctx context.Context, now time.Time, limit int) ([]*models.FanoutDeadLetter, error)
	List(ctx context.Context, status models.FanoutDeadLetterStatus, page, limit int) ([]*models.FanoutDeadLetter, int64, error)
	// MarkRetrying claims a pending letter; false when another worker won.
	MarkRetrying(ctx context.Context, id string) (bool, error)
	MarkRecovered(ctx context.Context, id string) error
	MarkAbandoned(ctx context.Context, id string, lastError string) error
	// Reschedule records a failed attempt and parks the letter again.
	Reschedule(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, lastError string) error
	// Reset re-arms an abandoned letter for manual redispatch.
	Reset(ctx context.Context, id string) error
}

type deadLetterRepository struct {
	db *gorm.DB
}

// NewDeadLetterRepository creates a new DeadLetterRepository instance.
func NewDeadLetterRepository(db *gorm.DB) DeadLetterRepository {
	return &deadLetterRepository{db: db}
}

func (r *deadLetterRepository) Create(ctx context.Context, letter *models.FanoutDeadLetter) error {
	return r.db.WithContext(ctx).Create(letter).Error
}

func (r *deadLetterRepository) GetByID(ctx context.Context, id string) (*models.FanoutDeadLetter, error) {
	var letter models.FanoutDeadLetter
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&letter).Error
	if err != nil {
		return nil, err
	}
	return &letter, nil
}

func (r *deadLetterRepository) DuePending(ctx context.Context, now time.Time, limit int) ([]*models.FanoutDeadLetter, error) {
	var letters []*models.FanoutDeadLetter
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", models.FanoutDeadLetterStatusPending, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&letters).Error
	if err != nil {
		return nil, err
	}
	return letters, nil
}

func (r *deadLetterRepository) List(ctx context.Context, status models.FanoutDeadLetterStatus, page, limit int) ([]*models.FanoutDeadLetter, int64, error) {
	var letters []*models.FanoutDeadLetter
	var total int64

	query := r.db.WithContext(ctx).Model(&models.FanoutDeadLetter{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&letters).Error
	if err != nil {
		return nil, 0, err
	}
	return letters, total, nil
}

func (r *deadLetterRepository) MarkRetrying(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FanoutDeadLetter{}).
		Where("id = ? AND status = ?", id, models.FanoutDeadLetterStatusPending).
		Update("status", models.FanoutDeadLetterStatusRetrying)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *deadLetterRepository) MarkRecovered(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.FanoutDeadLetter{}).
		Where("id = ?", id).
		Update("status", models.FanoutDeadLetterStatusRecovered).Error
}

func (r *deadLetterRepository) MarkAbandoned(ctx context.Context, id string, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.FanoutDeadLetter{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.FanoutDeadLetterStatusAbandoned,
			"last_error": lastError,
		}).Error
}

func (r *deadLetterRepository) Reschedule(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.FanoutDeadLetter{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.FanoutDeadLetterStatusPending,
			"retry_count":   retryCount,
			"next_retry_at": nextRetryAt,
			"last_error":    lastError,
		}).Error
}

func (r *deadLetterRepository) Reset(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.FanoutDeadLetter{}).
		Where("id = ? AND status = ?", id, models.FanoutDeadLetterStatusAbandoned).
		Updates(map[string]interface{}{
			"status":        models.FanoutDeadLetterStatusPending,
			"retry_count":   0,
			"next_retry_at": time.Now(),
		}).Error
}
