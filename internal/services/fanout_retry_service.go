package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/config"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"

	"github.com/google/uuid"
)

// deployLetter is the parked payload of a deploy leg. The creator fee rides
// along so the destination curve can be seeded when the retry succeeds.
type deployLetter struct {
	clients.DeployTokenRequest
	CreatorFeeBps uint32 `json:"creator_fee_bps"`
}

// parkDeadLetter persists one failed fan-out leg for the retry service. The
// first retry is due after the base backoff; parking must never fail the
// caller, a letter that cannot be written is logged and lost.
func parkDeadLetter(ctx context.Context, repo repository.DeadLetterRepository, retryCfg config.RetryConfig, kind, launchID string, chainID int64, payload interface{}, cause error) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("❌ [DeadLetter] cannot marshal %s payload for %s/%d: %v", kind, launchID, chainID, err)
		return
	}

	letter := &models.FanoutDeadLetter{
		ID:          uuid.New().String(),
		Kind:        kind,
		LaunchID:    launchID,
		ChainID:     chainID,
		Payload:     string(data),
		MaxRetries:  retryCfg.MaxAttempts,
		NextRetryAt: time.Now().Add(time.Duration(retryCfg.BaseBackoffSeconds) * time.Second),
		Status:      models.FanoutDeadLetterStatusPending,
		LastError:   cause.Error(),
	}
	if err := repo.Create(ctx, letter); err != nil {
		log.Printf("❌ [DeadLetter] cannot park %s leg for %s/%d: %v", kind, launchID, chainID, err)
		return
	}
	metrics.FanoutFailures.WithLabelValues(kind, strconv.FormatInt(chainID, 10)).Inc()
	log.Printf("⚠️ [DeadLetter] parked %s leg %s for %s/%d", kind, letter.ID, launchID, chainID)
}

// FanoutRetryService sweeps parked fan-out legs on a fixed interval and
// replays them with exponential backoff. A leg that exhausts its retry
// budget is abandoned and only comes back through admin redispatch.
type FanoutRetryService struct {
	deadLetters repository.DeadLetterRepository
	deployments repository.DeploymentRepository
	curves      repository.CurveStateRepository
	chainCls    map[int64]clients.ChainClient
	priceSync   *PriceSyncService
	migration   *MigrationService
	retryCfg    config.RetryConfig
	stopCh      chan struct{}
}

// NewFanoutRetryService creates a new FanoutRetryService instance.
func NewFanoutRetryService(
	deadLetters repository.DeadLetterRepository,
	deployments repository.DeploymentRepository,
	curves repository.CurveStateRepository,
	chainCls map[int64]clients.ChainClient,
	priceSync *PriceSyncService,
	migration *MigrationService,
	retryCfg config.RetryConfig,
) *FanoutRetryService {
	return &FanoutRetryService{
		deadLetters: deadLetters,
		deployments: deployments,
		curves:      curves,
		chainCls:    chainCls,
		priceSync:   priceSync,
		migration:   migration,
		retryCfg:    retryCfg,
		stopCh:      make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *FanoutRetryService) Start() {
	interval := time.Duration(s.retryCfg.CheckInterval) * time.Second
	log.Printf("✅ Fan-out retry service started (sweep every %s)", interval)
	go s.loop(interval)
}

// Stop terminates the sweep loop.
func (s *FanoutRetryService) Stop() {
	close(s.stopCh)
}

func (s *FanoutRetryService) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(context.Background())
		}
	}
}

func (s *FanoutRetryService) sweep(ctx context.Context) {
	letters, err := s.deadLetters.DuePending(ctx, time.Now(), 50)
	if err != nil {
		log.Printf("❌ [Retry] cannot load due dead letters: %v", err)
		return
	}
	metrics.DeadLettersPending.Set(float64(len(letters)))

	for _, letter := range letters {
		claimed, err := s.deadLetters.MarkRetrying(ctx, letter.ID)
		if err != nil {
			log.Printf("❌ [Retry] cannot claim letter %s: %v", letter.ID, err)
			continue
		}
		if !claimed {
			continue
		}
		s.redispatch(ctx, letter)
	}
}

// RedispatchByID re-arms and replays one letter immediately. Used by the
// admin API for abandoned legs.
func (s *FanoutRetryService) RedispatchByID(ctx context.Context, id string) error {
	letter, err := s.deadLetters.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if letter.Status == models.FanoutDeadLetterStatusAbandoned {
		if err := s.deadLetters.Reset(ctx, id); err != nil {
			return err
		}
		letter.RetryCount = 0
	}
	claimed, err := s.deadLetters.MarkRetrying(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("dead letter %s is not pending", id)
	}
	s.redispatch(ctx, letter)
	return nil
}

func (s *FanoutRetryService) redispatch(ctx context.Context, letter *models.FanoutDeadLetter) {
	err := s.attempt(ctx, letter)
	if err == nil {
		if err := s.deadLetters.MarkRecovered(ctx, letter.ID); err != nil {
			log.Printf("❌ [Retry] letter %s recovered but not marked: %v", letter.ID, err)
			return
		}
		log.Printf("✅ [Retry] recovered %s leg %s for %s/%d", letter.Kind, letter.ID, letter.LaunchID, letter.ChainID)
		return
	}

	letter.RetryCount++
	if letter.Exhausted() {
		if markErr := s.deadLetters.MarkAbandoned(ctx, letter.ID, err.Error()); markErr != nil {
			log.Printf("❌ [Retry] cannot abandon letter %s: %v", letter.ID, markErr)
			return
		}
		log.Printf("❌ [Retry] abandoned %s leg %s for %s/%d after %d attempts: %v",
			letter.Kind, letter.ID, letter.LaunchID, letter.ChainID, letter.RetryCount, err)
		return
	}

	backoff := time.Duration(s.retryCfg.BaseBackoffSeconds) * time.Second << uint(letter.RetryCount)
	next := time.Now().Add(backoff)
	if rescErr := s.deadLetters.Reschedule(ctx, letter.ID, letter.RetryCount, next, err.Error()); rescErr != nil {
		log.Printf("❌ [Retry] cannot reschedule letter %s: %v", letter.ID, rescErr)
		return
	}
	log.Printf("⚠️ [Retry] %s leg %s failed (attempt %d/%d), next try in %s: %v",
		letter.Kind, letter.ID, letter.RetryCount, letter.MaxRetries, backoff, err)
}

func (s *FanoutRetryService) attempt(ctx context.Context, letter *models.FanoutDeadLetter) error {
	switch letter.Kind {
	case models.FanoutKindDeploy:
		return s.attemptDeploy(ctx, letter)
	case models.FanoutKindSyncPrice:
		var req clients.SyncPriceRequest
		if err := json.Unmarshal([]byte(letter.Payload), &req); err != nil {
			return fmt.Errorf("bad sync_price payload: %w", err)
		}
		return s.priceSync.SyncLeg(ctx, letter.LaunchID, letter.ChainID, req.Price, req.TotalSupply, req.Seq)
	case models.FanoutKindMigrate:
		return s.migration.Complete(ctx, letter.LaunchID)
	default:
		return fmt.Errorf("unknown dead letter kind %q", letter.Kind)
	}
}

func (s *FanoutRetryService) attemptDeploy(ctx context.Context, letter *models.FanoutDeadLetter) error {
	var parked deployLetter
	if err := json.Unmarshal([]byte(letter.Payload), &parked); err != nil {
		return fmt.Errorf("bad deploy payload: %w", err)
	}
	client, ok := s.chainCls[letter.ChainID]
	if !ok {
		return fmt.Errorf("%w: chain %d", ErrUnknownChain, letter.ChainID)
	}

	_, _, err := s.deployments.TryDeploy(ctx, letter.LaunchID, letter.ChainID, parked.Salt,
		func(ctx context.Context) (string, string, error) {
			result, err := client.DeployToken(ctx, &parked.DeployTokenRequest)
			if errors.Is(err, clients.ErrAlreadyDeployed) {
				return "", "", nil
			}
			if err != nil {
				return "", "", err
			}
			return result.TokenAddress, result.CurveAddress, nil
		})
	if err != nil {
		return err
	}
	return seedCurveState(ctx, s.curves, letter.LaunchID, letter.ChainID, parked.CreatorFeeBps)
}
