package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"time"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/config"
	"launchpad-backend/internal/curve"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"
	"launchpad-backend/internal/utils"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Coordinator is the cross-chain event processor. Every inbound contract
// event passes the same pipeline: validate, check the caller allow-list,
// dedup, apply under the per-(launch, chain) lock, then fan out.
//
// Delivery is at-least-once and unordered across chains. Idempotency comes
// from the storage layer, never from assuming the stream behaves: duplicate
// TokenCreated collapses on the launch and deployment keys, duplicate trades
// collapse on (chain, tx, logIndex), duplicate migration triggers lose the
// status CAS.
type Coordinator struct {
	launches    repository.LaunchRepository
	curves      repository.CurveStateRepository
	deployments repository.DeploymentRepository
	trades      repository.TradeEventRepository
	callers     repository.AuthorizedCallerRepository
	deadLetters repository.DeadLetterRepository
	chainCls    map[int64]clients.ChainClient
	priceSync   *PriceSyncService
	migration   *MigrationService
	retryCfg    config.RetryConfig
	locks       *KeyedMutex
}

// NewCoordinator creates a new Coordinator instance.
func NewCoordinator(
	launches repository.LaunchRepository,
	curves repository.CurveStateRepository,
	deployments repository.DeploymentRepository,
	trades repository.TradeEventRepository,
	callers repository.AuthorizedCallerRepository,
	deadLetters repository.DeadLetterRepository,
	chainCls map[int64]clients.ChainClient,
	priceSync *PriceSyncService,
	migration *MigrationService,
	retryCfg config.RetryConfig,
) *Coordinator {
	return &Coordinator{
		launches:    launches,
		curves:      curves,
		deployments: deployments,
		trades:      trades,
		callers:     callers,
		deadLetters: deadLetters,
		chainCls:    chainCls,
		priceSync:   priceSync,
		migration:   migration,
		retryCfg:    retryCfg,
		locks:       NewKeyedMutex(),
	}
}

// HandleTokenCreated registers the launch and fans the deployment out to
// every target chain. Redelivery is safe end to end: the launch insert, the
// migration record, the curve seed, and each deployment leg are all
// insert-if-absent.
func (c *Coordinator) HandleTokenCreated(ctx context.Context, evt *clients.TokenCreatedEvent) error {
	if err := c.validateCreated(evt); err != nil {
		metrics.EventsFailed.WithLabelValues("TokenCreated", "validation").Inc()
		return err
	}
	if err := c.authorize(ctx, evt.ChainID, evt.CallerIdentity, "TokenCreated"); err != nil {
		metrics.EventsFailed.WithLabelValues("TokenCreated", "unauthorized").Inc()
		return err
	}

	launch := &models.Launch{
		LaunchID:       evt.LaunchID,
		Creator:        utils.NormalizeAddress(evt.Creator),
		Name:           evt.Name,
		Symbol:         evt.Symbol,
		OriginChainID:  evt.ChainID,
		TargetChainIDs: models.EncodeTargetChains(evt.TargetChainIDs),
	}
	_, created, err := c.launches.CreateIfAbsent(ctx, launch)
	if err != nil {
		return fmt.Errorf("store launch %s: %w", evt.LaunchID, err)
	}
	if !created {
		log.Printf("🔄 [TokenCreated] duplicate delivery for %s, re-checking fan-out", evt.LaunchID)
	}

	if _, err := c.migration.migrations.EnsureActive(ctx, evt.LaunchID, evt.ChainID); err != nil {
		return fmt.Errorf("init migration record %s: %w", evt.LaunchID, err)
	}
	if err := seedCurveState(ctx, c.curves, evt.LaunchID, evt.ChainID, evt.CreatorFeeBps); err != nil {
		return fmt.Errorf("seed origin curve %s: %w", evt.LaunchID, err)
	}

	g, legCtx := errgroup.WithContext(ctx)
	for _, chainID := range evt.TargetChainIDs {
		if chainID == evt.ChainID {
			continue
		}
		chainID := chainID
		g.Go(func() error {
			if err := c.deployLeg(legCtx, evt, chainID); err != nil {
				log.Printf("❌ [TokenCreated] deploy leg %s -> chain %d: %v", evt.LaunchID, chainID, err)
			}
			// Legs fail independently.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	metrics.EventsProcessed.WithLabelValues("TokenCreated").Inc()
	log.Printf("✅ [TokenCreated] %s (%s) registered from chain %d, %d target chains",
		evt.LaunchID, evt.Symbol, evt.ChainID, len(evt.TargetChainIDs))
	return nil
}

// deployLeg deploys the launch on one destination chain through the
// idempotent registry. Transient relayer failures park the leg; the retry
// service replays it with the same deterministic salt.
func (c *Coordinator) deployLeg(ctx context.Context, evt *clients.TokenCreatedEvent, chainID int64) error {
	client, ok := c.chainCls[chainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrUnknownChain, chainID)
	}

	req := &clients.DeployTokenRequest{
		LaunchID:      evt.LaunchID,
		Name:          evt.Name,
		Symbol:        evt.Symbol,
		Creator:       utils.NormalizeAddress(evt.Creator),
		Salt:          utils.DeploySalt(evt.LaunchID, chainID),
		OriginToken:   evt.OriginToken,
		OriginChainID: evt.ChainID,
	}

	start := time.Now()
	record, created, err := c.deployments.TryDeploy(ctx, evt.LaunchID, chainID, req.Salt,
		func(ctx context.Context) (string, string, error) {
			result, err := client.DeployToken(ctx, req)
			if errors.Is(err, clients.ErrAlreadyDeployed) {
				// The chain has the contracts even though our record did not.
				// Keep the claim, addresses stay empty until backfilled.
				log.Printf("🔄 [Deploy] chain %d reports %s already deployed", chainID, evt.LaunchID)
				return "", "", nil
			}
			if err != nil {
				return "", "", err
			}
			return result.TokenAddress, result.CurveAddress, nil
		})
	if err != nil {
		if clients.IsRetryable(err) {
			parkDeadLetter(ctx, c.deadLetters, c.retryCfg, models.FanoutKindDeploy, evt.LaunchID, chainID,
				&deployLetter{DeployTokenRequest: *req, CreatorFeeBps: evt.CreatorFeeBps}, err)
			return nil
		}
		return err
	}
	if !created {
		log.Printf("🔄 [Deploy] %s already handled on chain %d (status %s)", evt.LaunchID, chainID, record.Status)
		return nil
	}

	metrics.FanoutDuration.WithLabelValues(models.FanoutKindDeploy, strconv.FormatInt(chainID, 10)).
		Observe(time.Since(start).Seconds())
	log.Printf("✅ [Deploy] %s deployed on chain %d (token %s)", evt.LaunchID, chainID, record.TokenAddress)

	return seedCurveState(ctx, c.curves, evt.LaunchID, chainID, evt.CreatorFeeBps)
}

// HandleTokenPurchase applies one buy to the chain-local curve. The whole
// check-apply-store sequence runs under the per-(launch, chain) lock; the
// price fan-out and migration trigger run after the lock is released.
func (c *Coordinator) HandleTokenPurchase(ctx context.Context, evt *clients.TokenPurchaseEvent) error {
	if evt.LaunchID == "" || evt.TxHash == "" {
		metrics.EventsFailed.WithLabelValues("TokenPurchase", "validation").Inc()
		return fmt.Errorf("%w: missing launch id or tx hash", ErrValidation)
	}
	if err := c.authorize(ctx, evt.ChainID, evt.CallerIdentity, "TokenPurchase"); err != nil {
		metrics.EventsFailed.WithLabelValues("TokenPurchase", "unauthorized").Inc()
		return err
	}
	ethIn, err := parseAmount(evt.EthIn)
	if err != nil {
		metrics.EventsFailed.WithLabelValues("TokenPurchase", "validation").Inc()
		return fmt.Errorf("%w: eth_in %q", ErrValidation, evt.EthIn)
	}
	minTokensOut, err := parseOptionalAmount(evt.MinTokensOut)
	if err != nil {
		metrics.EventsFailed.WithLabelValues("TokenPurchase", "validation").Inc()
		return fmt.Errorf("%w: min_tokens_out %q", ErrValidation, evt.MinTokensOut)
	}

	var result *curve.BuyResult
	applied, err := c.withCurve(ctx, evt.LaunchID, evt.ChainID, func(snap curve.State) (curve.State, *models.TradeEvent, error) {
		res, err := curve.ApplyBuy(snap, ethIn, minTokensOut, evt.SlippageBps)
		if err != nil {
			return curve.State{}, nil, err
		}
		price, err := curve.CurrentPrice(res.State)
		if err != nil {
			return curve.State{}, nil, err
		}
		result = res
		return res.State, &models.TradeEvent{
			LaunchID:  evt.LaunchID,
			ChainID:   evt.ChainID,
			TxHash:    evt.TxHash,
			LogIndex:  evt.LogIndex,
			Kind:      "buy",
			Trader:    utils.NormalizeAddress(evt.Buyer),
			EthAmount: evt.EthIn,
			Tokens:    res.TokensOut.String(),
			Price:     price.String(),
			Seq:       evt.Seq,
		}, nil
	}, evt.Seq)
	if err != nil {
		metrics.EventsFailed.WithLabelValues("TokenPurchase", errorClass(err)).Inc()
		return err
	}
	if !applied {
		metrics.EventsDiscardedStale.WithLabelValues("TokenPurchase").Inc()
		log.Printf("🔄 [TokenPurchase] duplicate %s/%d discarded (tx %s)", evt.LaunchID, evt.ChainID, evt.TxHash)
		return nil
	}

	metrics.EventsProcessed.WithLabelValues("TokenPurchase").Inc()
	if result.Refund.Sign() > 0 {
		log.Printf("🔄 [TokenPurchase] %s clamped at supply ceiling, refund %s wei", evt.LaunchID, result.Refund)
	}

	if result.MigrationTriggered {
		if err := c.migration.Trigger(ctx, evt.LaunchID, evt.ChainID, result.State); err != nil && !errors.Is(err, ErrAlreadyMigrated) {
			return err
		}
		return nil
	}
	return c.priceSync.Propagate(ctx, evt.LaunchID, evt.ChainID, evt.Seq)
}

// HandleTokenSale applies one sell. Sells never trigger migration; they only
// move the price back down and fan it out.
func (c *Coordinator) HandleTokenSale(ctx context.Context, evt *clients.TokenSaleEvent) error {
	if evt.LaunchID == "" || evt.TxHash == "" {
		metrics.EventsFailed.WithLabelValues("TokenSale", "validation").Inc()
		return fmt.Errorf("%w: missing launch id or tx hash", ErrValidation)
	}
	if err := c.authorize(ctx, evt.ChainID, evt.CallerIdentity, "TokenSale"); err != nil {
		metrics.EventsFailed.WithLabelValues("TokenSale", "unauthorized").Inc()
		return err
	}
	tokensIn, err := parseAmount(evt.TokensIn)
	if err != nil {
		metrics.EventsFailed.WithLabelValues("TokenSale", "validation").Inc()
		return fmt.Errorf("%w: tokens_in %q", ErrValidation, evt.TokensIn)
	}
	minEthOut, err := parseOptionalAmount(evt.MinEthOut)
	if err != nil {
		metrics.EventsFailed.WithLabelValues("TokenSale", "validation").Inc()
		return fmt.Errorf("%w: min_eth_out %q", ErrValidation, evt.MinEthOut)
	}

	applied, err := c.withCurve(ctx, evt.LaunchID, evt.ChainID, func(snap curve.State) (curve.State, *models.TradeEvent, error) {
		res, err := curve.ApplySell(snap, tokensIn, minEthOut, evt.SlippageBps)
		if err != nil {
			return curve.State{}, nil, err
		}
		price, err := curve.CurrentPrice(res.State)
		if err != nil {
			return curve.State{}, nil, err
		}
		return res.State, &models.TradeEvent{
			LaunchID:  evt.LaunchID,
			ChainID:   evt.ChainID,
			TxHash:    evt.TxHash,
			LogIndex:  evt.LogIndex,
			Kind:      "sell",
			Trader:    utils.NormalizeAddress(evt.Seller),
			EthAmount: res.EthOut.String(),
			Tokens:    evt.TokensIn,
			Price:     price.String(),
			Seq:       evt.Seq,
		}, nil
	}, evt.Seq)
	if err != nil {
		metrics.EventsFailed.WithLabelValues("TokenSale", errorClass(err)).Inc()
		return err
	}
	if !applied {
		metrics.EventsDiscardedStale.WithLabelValues("TokenSale").Inc()
		log.Printf("🔄 [TokenSale] duplicate %s/%d discarded (tx %s)", evt.LaunchID, evt.ChainID, evt.TxHash)
		return nil
	}

	metrics.EventsProcessed.WithLabelValues("TokenSale").Inc()
	return c.priceSync.Propagate(ctx, evt.LaunchID, evt.ChainID, evt.Seq)
}

// HandleCurveMigrationTriggered processes an on-chain migration confirmation.
func (c *Coordinator) HandleCurveMigrationTriggered(ctx context.Context, evt *clients.CurveMigrationTriggeredEvent) error {
	if evt.LaunchID == "" {
		metrics.EventsFailed.WithLabelValues("CurveMigrationTriggered", "validation").Inc()
		return fmt.Errorf("%w: missing launch id", ErrValidation)
	}
	if err := c.authorize(ctx, evt.ChainID, evt.CallerIdentity, "CurveMigrationTriggered"); err != nil {
		metrics.EventsFailed.WithLabelValues("CurveMigrationTriggered", "unauthorized").Inc()
		return err
	}

	err := c.migration.TriggerFromEvent(ctx, evt)
	if errors.Is(err, ErrAlreadyMigrated) {
		metrics.EventsDiscardedStale.WithLabelValues("CurveMigrationTriggered").Inc()
		return nil
	}
	if err != nil {
		metrics.EventsFailed.WithLabelValues("CurveMigrationTriggered", "internal").Inc()
		return err
	}
	metrics.EventsProcessed.WithLabelValues("CurveMigrationTriggered").Inc()
	return nil
}

// withCurve runs one trade's check-apply-store sequence under the per-key
// lock. The dedup insert is the commit gate: it happens before the state
// save, so a redelivered event observes the conflict and leaves the reserves
// untouched. Returns applied=false for duplicates.
func (c *Coordinator) withCurve(
	ctx context.Context,
	launchID string,
	chainID int64,
	apply func(snap curve.State) (curve.State, *models.TradeEvent, error),
	seq uint64,
) (bool, error) {
	unlock := c.locks.Lock(CurveKey(launchID, chainID))
	defer unlock()

	status, err := c.migration.Status(ctx, launchID)
	if err != nil {
		return false, err
	}
	if status != models.MigrationStatusActive {
		return false, fmt.Errorf("%w: %s", ErrCurveMigrated, launchID)
	}

	stored, err := c.curves.Get(ctx, launchID, chainID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("%w: %s on chain %d", ErrUnknownLaunch, launchID, chainID)
	}
	if err != nil {
		return false, err
	}
	snap, err := stored.Snapshot()
	if err != nil {
		return false, err
	}

	next, trade, err := apply(snap)
	if err != nil {
		return false, err
	}

	inserted, err := c.trades.RecordOnce(ctx, trade)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	stored.SetSnapshot(next)
	if seq > stored.LastUpdateSeq {
		stored.LastUpdateSeq = seq
	}
	if err := c.curves.Save(ctx, stored); err != nil {
		return false, err
	}

	metrics.CurveProgress.WithLabelValues(launchID, strconv.FormatInt(chainID, 10)).
		Set(curve.Progress(next))
	return true, nil
}

func (c *Coordinator) authorize(ctx context.Context, chainID int64, identity, eventType string) error {
	allowed, err := c.callers.IsAllowed(ctx, chainID, identity)
	if err != nil {
		return err
	}
	if !allowed {
		metrics.UnauthorizedCallers.WithLabelValues(strconv.FormatInt(chainID, 10)).Inc()
		log.Printf("⚠️ [%s] rejected unauthorized caller %q on chain %d", eventType, identity, chainID)
		return fmt.Errorf("%w: %s on chain %d", ErrUnauthorizedCaller, identity, chainID)
	}
	return nil
}

func (c *Coordinator) validateCreated(evt *clients.TokenCreatedEvent) error {
	switch {
	case evt.LaunchID == "":
		return fmt.Errorf("%w: missing launch id", ErrValidation)
	case evt.Name == "" || evt.Symbol == "":
		return fmt.Errorf("%w: missing token name or symbol", ErrValidation)
	case !utils.IsEvmAddress(evt.Creator) || utils.IsZeroAddress(evt.Creator):
		return fmt.Errorf("%w: bad creator address %q", ErrValidation, evt.Creator)
	case evt.CreatorFeeBps > curve.MaxCreatorFeeBps:
		return fmt.Errorf("%w: creator fee %d bps exceeds cap", ErrValidation, evt.CreatorFeeBps)
	case len(evt.TargetChainIDs) == 0:
		return fmt.Errorf("%w: no target chains", ErrValidation)
	}
	return nil
}

// seedCurveState creates the launch-time curve record for one chain if it
// does not exist yet.
func seedCurveState(ctx context.Context, curves repository.CurveStateRepository, launchID string, chainID int64, creatorFeeBps uint32) error {
	seed, err := curve.NewState(creatorFeeBps)
	if err != nil {
		return err
	}
	state := &models.CurveState{LaunchID: launchID, ChainID: chainID}
	state.SetSnapshot(seed)
	_, _, err = curves.CreateIfAbsent(ctx, state)
	return err
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() <= 0 {
		return nil, ErrValidation
	}
	return v, nil
}

func parseOptionalAmount(s string) (*big.Int, error) {
	if s == "" || s == "0" {
		return nil, nil
	}
	return parseAmount(s)
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrCurveMigrated):
		return "curve_migrated"
	case errors.Is(err, ErrUnknownLaunch):
		return "unknown_launch"
	case errors.Is(err, curve.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, curve.ErrSupplyExhausted):
		return "supply_exhausted"
	case errors.Is(err, curve.ErrInvalidAmount), errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
