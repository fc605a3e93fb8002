package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/config"
	"launchpad-backend/internal/curve"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"

	"gorm.io/gorm"
)

// MigrationService owns the one-way launch lifecycle:
// active -> migration_triggered -> migrated. The active->triggered CAS is the
// exactly-once gate for the DEX call: whoever wins it executes the migration,
// every loser gets ErrAlreadyMigrated. The liquidity snapshot (final price,
// ETH reserve, token reserve) is frozen at trigger time and never recomputed,
// even when the DEX call itself has to be retried later.
type MigrationService struct {
	migrations  repository.MigrationRepository
	deadLetters repository.DeadLetterRepository
	chainCls    map[int64]clients.ChainClient
	retryCfg    config.RetryConfig
}

// NewMigrationService creates a new MigrationService instance.
func NewMigrationService(
	migrations repository.MigrationRepository,
	deadLetters repository.DeadLetterRepository,
	chainCls map[int64]clients.ChainClient,
	retryCfg config.RetryConfig,
) *MigrationService {
	return &MigrationService{
		migrations:  migrations,
		deadLetters: deadLetters,
		chainCls:    chainCls,
		retryCfg:    retryCfg,
	}
}

// Status returns the launch lifecycle status. Launches without a record yet
// count as active.
func (s *MigrationService) Status(ctx context.Context, launchID string) (models.MigrationStatus, error) {
	record, err := s.migrations.Get(ctx, launchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.MigrationStatusActive, nil
	}
	if err != nil {
		return "", err
	}
	return record.Status, nil
}

// Trigger moves the launch to migration_triggered with a liquidity snapshot
// taken from the post-trade curve state, then executes the DEX migration.
// A duplicate trigger returns ErrAlreadyMigrated without touching the chain.
func (s *MigrationService) Trigger(ctx context.Context, launchID string, chainID int64, st curve.State) error {
	finalPrice, err := curve.CurrentPrice(st)
	if err != nil {
		return fmt.Errorf("migration %s: final price: %w", launchID, err)
	}
	return s.trigger(ctx, launchID, chainID,
		finalPrice.String(), st.VirtualEth.String(), curve.LiquidityReserve.String())
}

// TriggerFromEvent handles an on-chain migration confirmation for a threshold
// crossing this coordinator did not originate. The event's own liquidity
// snapshot is authoritative.
func (s *MigrationService) TriggerFromEvent(ctx context.Context, evt *clients.CurveMigrationTriggeredEvent) error {
	return s.trigger(ctx, evt.LaunchID, evt.ChainID,
		evt.FinalPrice, evt.LiquidityEth, evt.LiquidityTokens)
}

func (s *MigrationService) trigger(ctx context.Context, launchID string, chainID int64, finalPrice, liquidityEth, liquidityTokens string) error {
	if _, err := s.migrations.EnsureActive(ctx, launchID, chainID); err != nil {
		return err
	}

	err := s.migrations.Transition(ctx, launchID,
		models.MigrationStatusActive, models.MigrationStatusTriggered,
		map[string]interface{}{
			"chain_id":         chainID,
			"final_price":      finalPrice,
			"liquidity_eth":    liquidityEth,
			"liquidity_tokens": liquidityTokens,
		})
	if errors.Is(err, repository.ErrMigrationConflict) {
		log.Printf("🔄 [Migration] duplicate trigger for %s ignored", launchID)
		return ErrAlreadyMigrated
	}
	if err != nil {
		return err
	}

	log.Printf("🔄 [Migration] %s triggered on chain %d (final price %s)", launchID, chainID, finalPrice)

	return s.execute(ctx, launchID, chainID, &clients.MigrateRequest{
		LaunchID:        launchID,
		FinalPrice:      finalPrice,
		LiquidityEth:    liquidityEth,
		LiquidityTokens: liquidityTokens,
	})
}

// execute performs the DEX call for a freshly triggered migration. Transient
// failures park the leg for the retry service; the launch stays in
// migration_triggered until Complete succeeds.
func (s *MigrationService) execute(ctx context.Context, launchID string, chainID int64, req *clients.MigrateRequest) error {
	client, ok := s.chainCls[chainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrUnknownChain, chainID)
	}

	start := time.Now()
	result, err := client.MigrateToDEX(ctx, req)
	switch {
	case err == nil:
		metrics.FanoutDuration.WithLabelValues(models.FanoutKindMigrate, strconv.FormatInt(chainID, 10)).
			Observe(time.Since(start).Seconds())
		log.Printf("✅ [Migration] %s migrated to DEX pool %s (tx %s)", launchID, result.PoolAddress, result.TxHash)
	case errors.Is(err, clients.ErrAlreadyMigrated):
		log.Printf("🔄 [Migration] chain %d reports %s already migrated", chainID, launchID)
	case clients.IsRetryable(err):
		log.Printf("⚠️ [Migration] DEX call for %s on chain %d failed, parking for retry: %v", launchID, chainID, err)
		s.parkMigrate(ctx, launchID, chainID, req, err)
		return nil
	default:
		return fmt.Errorf("migration %s on chain %d: %w", launchID, chainID, err)
	}

	return s.finalize(ctx, launchID)
}

// Complete re-runs the DEX call for a launch stuck in migration_triggered.
// Used by the retry service and admin redispatch; returns the raw error so
// the caller controls rescheduling.
func (s *MigrationService) Complete(ctx context.Context, launchID string) error {
	record, err := s.migrations.Get(ctx, launchID)
	if err != nil {
		return err
	}
	switch record.Status {
	case models.MigrationStatusMigrated:
		return nil
	case models.MigrationStatusTriggered:
	default:
		return fmt.Errorf("launch %s is not awaiting migration (status %s)", launchID, record.Status)
	}

	client, ok := s.chainCls[record.ChainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrUnknownChain, record.ChainID)
	}

	_, err = client.MigrateToDEX(ctx, &clients.MigrateRequest{
		LaunchID:        launchID,
		FinalPrice:      record.FinalPrice,
		LiquidityEth:    record.LiquidityEth,
		LiquidityTokens: record.LiquidityTokens,
	})
	if err != nil && !errors.Is(err, clients.ErrAlreadyMigrated) {
		return err
	}
	return s.finalize(ctx, launchID)
}

func (s *MigrationService) finalize(ctx context.Context, launchID string) error {
	now := time.Now()
	err := s.migrations.Transition(ctx, launchID,
		models.MigrationStatusTriggered, models.MigrationStatusMigrated,
		map[string]interface{}{"migrated_at": &now})
	if errors.Is(err, repository.ErrMigrationConflict) {
		// Lost the finalize race, someone else already recorded it.
		return nil
	}
	if err != nil {
		return err
	}
	metrics.MigrationsTotal.Inc()
	log.Printf("✅ [Migration] %s is now migrated", launchID)
	return nil
}

func (s *MigrationService) parkMigrate(ctx context.Context, launchID string, chainID int64, req *clients.MigrateRequest, cause error) {
	parkDeadLetter(ctx, s.deadLetters, s.retryCfg, models.FanoutKindMigrate, launchID, chainID, req, cause)
}
