package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"launchpad-backend/internal/curve"
)

// MigrationStatus is the one-way lifecycle of a launch's bonding curve.
type MigrationStatus string

const (
	MigrationStatusActive    MigrationStatus = "active"              // curve trading normally
	MigrationStatusTriggered MigrationStatus = "migration_triggered" // supply ceiling hit, DEX call in flight
	MigrationStatusMigrated  MigrationStatus = "migrated"            // terminal
)

// DeploymentStatus tracks one (launch, chain) deployment attempt.
type DeploymentStatus string

const (
	DeploymentStatusPending  DeploymentStatus = "pending"
	DeploymentStatusDeployed DeploymentStatus = "deployed"
	DeploymentStatusFailed   DeploymentStatus = "failed"
)

// Launch is the cross-chain identity of one token creation. Immutable after
// creation; everything else is keyed under its LaunchID.
type Launch struct {
	LaunchID       string    `json:"launch_id" gorm:"primaryKey;size:66"`
	Creator        string    `json:"creator" gorm:"size:66;not null;index"`
	Name           string    `json:"name" gorm:"size:64;not null"`
	Symbol         string    `json:"symbol" gorm:"size:16;not null"`
	OriginChainID  int64     `json:"origin_chain_id" gorm:"not null"`
	TargetChainIDs string    `json:"target_chain_ids" gorm:"type:jsonb;not null"` // JSON-encoded []int64
	CreatedAt      time.Time `json:"created_at"`
}

// TargetChains decodes the JSON-encoded target chain list.
func (l *Launch) TargetChains() ([]int64, error) {
	var ids []int64
	if err := json.Unmarshal([]byte(l.TargetChainIDs), &ids); err != nil {
		return nil, fmt.Errorf("launch %s: bad target chain list: %w", l.LaunchID, err)
	}
	return ids, nil
}

// EncodeTargetChains produces the stored form of a target chain list.
func EncodeTargetChains(ids []int64) string {
	b, _ := json.Marshal(ids)
	return string(b)
}

// CurveState is the persisted per-(launch, chain) reserve record. Amounts are
// decimal strings in 18-decimal base units; conversion to engine snapshots
// goes through Snapshot/SetSnapshot.
type CurveState struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LaunchID      string    `json:"launch_id" gorm:"size:66;not null;uniqueIndex:idx_curve_launch_chain"`
	ChainID       int64     `json:"chain_id" gorm:"not null;uniqueIndex:idx_curve_launch_chain"`
	VirtualEth    string    `json:"virtual_eth" gorm:"size:48;not null"`
	VirtualTokens string    `json:"virtual_tokens" gorm:"size:48;not null"`
	TotalSupply   string    `json:"total_supply" gorm:"size:48;not null"`
	CreatorFeeBps uint32    `json:"creator_fee_bps" gorm:"not null;default:0"`
	LastUpdateSeq uint64    `json:"last_update_seq" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Snapshot converts the stored record into an engine snapshot.
func (c *CurveState) Snapshot() (curve.State, error) {
	ve, ok1 := new(big.Int).SetString(c.VirtualEth, 10)
	vt, ok2 := new(big.Int).SetString(c.VirtualTokens, 10)
	ts, ok3 := new(big.Int).SetString(c.TotalSupply, 10)
	if !ok1 || !ok2 || !ok3 {
		return curve.State{}, fmt.Errorf("curve state %s/%d: malformed reserve columns", c.LaunchID, c.ChainID)
	}
	return curve.State{
		VirtualEth:    ve,
		VirtualTokens: vt,
		TotalSupply:   ts,
		CreatorFeeBps: c.CreatorFeeBps,
	}, nil
}

// SetSnapshot writes an engine snapshot back into the stored columns.
func (c *CurveState) SetSnapshot(s curve.State) {
	c.VirtualEth = s.VirtualEth.String()
	c.VirtualTokens = s.VirtualTokens.String()
	c.TotalSupply = s.TotalSupply.String()
	c.CreatorFeeBps = s.CreatorFeeBps
}

// MigrationRecord tracks the launch-level migration lifecycle. One row per
// launch; transitions are CAS-guarded on the status column.
type MigrationRecord struct {
	LaunchID        string          `json:"launch_id" gorm:"primaryKey;size:66"`
	ChainID         int64           `json:"chain_id" gorm:"not null"` // chain where the threshold was hit
	Status          MigrationStatus `json:"status" gorm:"size:24;not null;default:'active'"`
	FinalPrice      string          `json:"final_price" gorm:"size:48"`
	LiquidityEth    string          `json:"liquidity_eth" gorm:"size:48"`
	LiquidityTokens string          `json:"liquidity_tokens" gorm:"size:48"`
	MigratedAt      *time.Time      `json:"migrated_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DeploymentRecord is the idempotency anchor for (launch, chain) deployments.
// The unique index makes duplicate TokenCreated deliveries collapse onto one row.
type DeploymentRecord struct {
	ID           uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	LaunchID     string           `json:"launch_id" gorm:"size:66;not null;uniqueIndex:idx_deploy_launch_chain"`
	ChainID      int64            `json:"chain_id" gorm:"not null;uniqueIndex:idx_deploy_launch_chain"`
	Salt         string           `json:"salt" gorm:"size:66;not null"`
	TokenAddress string           `json:"token_address" gorm:"size:66"`
	CurveAddress string           `json:"curve_address" gorm:"size:66"`
	Status       DeploymentStatus `json:"status" gorm:"size:16;not null;default:'pending'"`
	DeployedAt   *time.Time       `json:"deployed_at"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// SyncCursor is the per-(launch, chain) high-water mark for outbound price
// syncs. Updates carrying seq <= LastAppliedSeq are discarded as stale.
type SyncCursor struct {
	ID             uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LaunchID       string    `json:"launch_id" gorm:"size:66;not null;uniqueIndex:idx_cursor_launch_chain"`
	ChainID        int64     `json:"chain_id" gorm:"not null;uniqueIndex:idx_cursor_launch_chain"`
	LastAppliedSeq uint64    `json:"last_applied_seq" gorm:"not null;default:0"`
	LastAppliedAt  time.Time `json:"last_applied_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TradeEvent is the audit record of one applied purchase or sale. The unique
// (chain, tx, log index) key absorbs at-least-once redelivery.
type TradeEvent struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	LaunchID  string    `json:"launch_id" gorm:"size:66;not null;index"`
	ChainID   int64     `json:"chain_id" gorm:"not null;uniqueIndex:idx_trade_dedup"`
	TxHash    string    `json:"tx_hash" gorm:"size:66;not null;uniqueIndex:idx_trade_dedup"`
	LogIndex  uint64    `json:"log_index" gorm:"not null;uniqueIndex:idx_trade_dedup"`
	Kind      string    `json:"kind" gorm:"size:8;not null"` // buy | sell
	Trader    string    `json:"trader" gorm:"size:66;not null"`
	EthAmount string    `json:"eth_amount" gorm:"size:48;not null"`
	Tokens    string    `json:"tokens" gorm:"size:48;not null"`
	Price     string    `json:"price" gorm:"size:48;not null"`
	Seq       uint64    `json:"seq" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthorizedCaller is one allow-list entry. Callbacks from identities not on
// the list (or disabled) are rejected without any state change.
type AuthorizedCaller struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ChainID   int64     `json:"chain_id" gorm:"not null;uniqueIndex:idx_caller_chain_addr"`
	Address   string    `json:"address" gorm:"size:66;not null;uniqueIndex:idx_caller_chain_addr"` // normalized lowercase
	Enabled   bool      `json:"enabled" gorm:"not null;default:true"`
	Label     string    `json:"label" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
