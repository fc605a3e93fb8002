package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"sync"
	"time"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/config"
	"launchpad-backend/internal/curve"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// PriceUpdate is one unified price observation pushed to listeners and
// destination chains.
type PriceUpdate struct {
	LaunchID      string `json:"launch_id"`
	Price         string `json:"price"`
	TotalSupply   string `json:"total_supply"`
	Seq           uint64 `json:"seq"`
	OriginChainID int64  `json:"origin_chain_id"`
}

// PriceChangeListener receives unified price updates after each applied trade.
// Implementations must not block; slow consumers drop updates.
type PriceChangeListener interface {
	OnPriceChange(update PriceUpdate)
}

// PriceSyncService computes the unified cross-chain price and fans it out to
// destination chains. The unified price is reserve-weighted: both virtual
// reserves are summed across every chain the launch trades on, and the price
// is sum(virtualEth) * 1e18 / sum(virtualTokens). A chain holding more of the
// launch's liquidity therefore pulls the price harder than a quiet one.
//
// Outbound syncs are gated by the per-(launch, chain) cursor: a leg whose seq
// is not strictly greater than the destination's last applied seq is dropped
// silently. Out-of-order fan-out legs are expected, not errors.
type PriceSyncService struct {
	curves      repository.CurveStateRepository
	cursors     repository.SyncCursorRepository
	deadLetters repository.DeadLetterRepository
	chainCls    map[int64]clients.ChainClient
	retryCfg    config.RetryConfig

	mu        sync.RWMutex
	listeners []PriceChangeListener
}

// NewPriceSyncService creates a new PriceSyncService instance.
func NewPriceSyncService(
	curves repository.CurveStateRepository,
	cursors repository.SyncCursorRepository,
	deadLetters repository.DeadLetterRepository,
	chainCls map[int64]clients.ChainClient,
	retryCfg config.RetryConfig,
) *PriceSyncService {
	return &PriceSyncService{
		curves:      curves,
		cursors:     cursors,
		deadLetters: deadLetters,
		chainCls:    chainCls,
		retryCfg:    retryCfg,
	}
}

// AddListener registers a price update consumer.
func (s *PriceSyncService) AddListener(l PriceChangeListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// UnifiedPrice aggregates all chain-local curve states of a launch into the
// cross-chain price and total issued supply.
func (s *PriceSyncService) UnifiedPrice(ctx context.Context, launchID string) (price, totalSupply *big.Int, err error) {
	states, err := s.curves.ListByLaunch(ctx, launchID)
	if err != nil {
		return nil, nil, err
	}
	if len(states) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownLaunch, launchID)
	}

	sumEth := new(big.Int)
	sumTokens := new(big.Int)
	totalSupply = new(big.Int)
	for _, st := range states {
		snap, err := st.Snapshot()
		if err != nil {
			return nil, nil, err
		}
		sumEth.Add(sumEth, snap.VirtualEth)
		sumTokens.Add(sumTokens, snap.VirtualTokens)
		totalSupply.Add(totalSupply, snap.TotalSupply)
	}
	if sumTokens.Sign() == 0 {
		return nil, nil, curve.ErrArithmetic
	}

	price = new(big.Int).Mul(sumEth, curve.PriceScale)
	price.Div(price, sumTokens)
	return price, totalSupply, nil
}

// Propagate recomputes the unified price after a trade on originChainID and
// pushes it to every other configured chain. Legs run concurrently and fail
// independently; a transient failure parks the leg, nothing here blocks the
// event handler's success.
func (s *PriceSyncService) Propagate(ctx context.Context, launchID string, originChainID int64, seq uint64) error {
	price, totalSupply, err := s.UnifiedPrice(ctx, launchID)
	if err != nil {
		return err
	}

	update := PriceUpdate{
		LaunchID:      launchID,
		Price:         price.String(),
		TotalSupply:   totalSupply.String(),
		Seq:           seq,
		OriginChainID: originChainID,
	}
	s.notify(update)

	g, legCtx := errgroup.WithContext(ctx)
	for chainID := range s.chainCls {
		if chainID == originChainID {
			continue
		}
		chainID := chainID
		g.Go(func() error {
			err := s.SyncLeg(legCtx, launchID, chainID, update.Price, update.TotalSupply, seq)
			if err != nil {
				if clients.IsRetryable(err) {
					log.Printf("⚠️ [PriceSync] leg %s -> chain %d failed, parking: %v", launchID, chainID, err)
					parkDeadLetter(legCtx, s.deadLetters, s.retryCfg, models.FanoutKindSyncPrice,
						launchID, chainID, &clients.SyncPriceRequest{
							LaunchID:    launchID,
							Price:       update.Price,
							TotalSupply: update.TotalSupply,
							Seq:         seq,
						}, err)
				} else {
					log.Printf("❌ [PriceSync] leg %s -> chain %d rejected: %v", launchID, chainID, err)
				}
			}
			// Legs never abort their siblings.
			return nil
		})
	}
	return g.Wait()
}

// SyncLeg pushes one price update to one destination chain, advancing the
// cursor on success. Stale sequence numbers are dropped before any network
// call. Returns the raw client error; parking is the caller's decision.
func (s *PriceSyncService) SyncLeg(ctx context.Context, launchID string, chainID int64, price, totalSupply string, seq uint64) error {
	cursor, err := s.cursors.Get(ctx, launchID, chainID)
	if err == nil && cursor.LastAppliedSeq >= seq {
		metrics.EventsDiscardedStale.WithLabelValues("PriceSync").Inc()
		return nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	client, ok := s.chainCls[chainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrUnknownChain, chainID)
	}

	start := time.Now()
	err = client.SyncPrice(ctx, &clients.SyncPriceRequest{
		LaunchID:    launchID,
		Price:       price,
		TotalSupply: totalSupply,
		Seq:         seq,
	})
	if err != nil {
		return err
	}
	metrics.FanoutDuration.WithLabelValues(models.FanoutKindSyncPrice, strconv.FormatInt(chainID, 10)).
		Observe(time.Since(start).Seconds())

	advanced, err := s.cursors.AdvanceIfNewer(ctx, launchID, chainID, seq)
	if err != nil {
		return err
	}
	if !advanced {
		// A higher seq landed while this leg was in flight. Harmless, the
		// destination applies its own monotonic gate.
		metrics.EventsDiscardedStale.WithLabelValues("PriceSync").Inc()
	}
	return nil
}

func (s *PriceSyncService) notify(update PriceUpdate) {
	s.mu.RLock()
	listeners := make([]PriceChangeListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("❌ [PriceSync] listener panic: %v", r)
				}
			}()
			l.OnPriceChange(update)
		}()
	}
}
