package models

import "time"

// FanoutDeadLetterStatus is the retry lifecycle of a parked fan-out leg.
type FanoutDeadLetterStatus string

const (
	FanoutDeadLetterStatusPending   FanoutDeadLetterStatus = "pending"
	FanoutDeadLetterStatusRetrying  FanoutDeadLetterStatus = "retrying"
	FanoutDeadLetterStatusRecovered FanoutDeadLetterStatus = "recovered"
	FanoutDeadLetterStatusAbandoned FanoutDeadLetterStatus = "abandoned"
)

// Fan-out leg kinds.
const (
	FanoutKindDeploy    = "deploy"
	FanoutKindSyncPrice = "sync_price"
	FanoutKindMigrate   = "migrate"
)

// FanoutDeadLetter records one failed fan-out leg (deploy / price sync /
// migrate against a single destination chain). Legs fail independently:
// parking one never blocks the others. Recovery is driven by the retry
// service or by manual admin redispatch.
type FanoutDeadLetter struct {
	ID          string                 `json:"id" gorm:"primaryKey;size:36"` // UUID
	Kind        string                 `json:"kind" gorm:"size:16;not null;index"`
	LaunchID    string                 `json:"launch_id" gorm:"size:66;not null;index"`
	ChainID     int64                  `json:"chain_id" gorm:"not null"`
	Payload     string                 `json:"payload" gorm:"type:jsonb;not null"`
	RetryCount  int                    `json:"retry_count" gorm:"not null;default:0"`
	MaxRetries  int                    `json:"max_retries" gorm:"not null;default:5"`
	NextRetryAt time.Time              `json:"next_retry_at" gorm:"index"`
	Status      FanoutDeadLetterStatus `json:"status" gorm:"size:16;not null;default:'pending';index"`
	LastError   string                 `json:"last_error" gorm:"type:text"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Exhausted reports whether the leg has used up its retry budget.
func (d *FanoutDeadLetter) Exhausted() bool {
	return d.RetryCount >= d.MaxRetries
}
