package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"

	"gorm.io/gorm"
)

// In-memory repository fakes. They reproduce the storage-level guarantees the
// services rely on (insert-if-absent, CAS transitions, guarded cursor
// updates) without a database.

type fakeLaunchRepo struct {
	mu       sync.Mutex
	launches map[string]*models.Launch
}

func newFakeLaunchRepo() *fakeLaunchRepo {
	return &fakeLaunchRepo{launches: make(map[string]*models.Launch)}
}

func (f *fakeLaunchRepo) CreateIfAbsent(_ context.Context, launch *models.Launch) (*models.Launch, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.launches[launch.LaunchID]; ok {
		return existing, false, nil
	}
	f.launches[launch.LaunchID] = launch
	return launch, true, nil
}

func (f *fakeLaunchRepo) GetByID(_ context.Context, launchID string) (*models.Launch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if launch, ok := f.launches[launchID]; ok {
		return launch, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLaunchRepo) List(_ context.Context, page, limit int) ([]*models.Launch, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Launch, 0, len(f.launches))
	for _, l := range f.launches {
		out = append(out, l)
	}
	return out, int64(len(out)), nil
}

type fakeCurveRepo struct {
	mu     sync.Mutex
	states map[string]*models.CurveState
}

func newFakeCurveRepo() *fakeCurveRepo {
	return &fakeCurveRepo{states: make(map[string]*models.CurveState)}
}

func (f *fakeCurveRepo) CreateIfAbsent(_ context.Context, state *models.CurveState) (*models.CurveState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := CurveKey(state.LaunchID, state.ChainID)
	if existing, ok := f.states[key]; ok {
		return existing, false, nil
	}
	f.states[key] = state
	return state, true, nil
}

func (f *fakeCurveRepo) Get(_ context.Context, launchID string, chainID int64) (*models.CurveState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if state, ok := f.states[CurveKey(launchID, chainID)]; ok {
		copied := *state
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCurveRepo) Save(_ context.Context, state *models.CurveState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *state
	f.states[CurveKey(state.LaunchID, state.ChainID)] = &copied
	return nil
}

func (f *fakeCurveRepo) ListByLaunch(_ context.Context, launchID string) ([]*models.CurveState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CurveState
	for _, state := range f.states {
		if state.LaunchID == launchID {
			copied := *state
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out, nil
}

type fakeDeploymentRepo struct {
	mu      sync.Mutex
	records map[string]*models.DeploymentRecord
}

func newFakeDeploymentRepo() *fakeDeploymentRepo {
	return &fakeDeploymentRepo{records: make(map[string]*models.DeploymentRecord)}
}

func (f *fakeDeploymentRepo) TryDeploy(ctx context.Context, launchID string, chainID int64, salt string, deploy repository.DeployFunc) (*models.DeploymentRecord, bool, error) {
	f.mu.Lock()
	key := CurveKey(launchID, chainID)
	if existing, ok := f.records[key]; ok && existing.Status != models.DeploymentStatusFailed {
		f.mu.Unlock()
		return existing, false, nil
	}
	record := &models.DeploymentRecord{
		LaunchID: launchID,
		ChainID:  chainID,
		Salt:     salt,
		Status:   models.DeploymentStatusPending,
	}
	f.records[key] = record
	f.mu.Unlock()

	tokenAddr, curveAddr, err := deploy(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		record.Status = models.DeploymentStatusFailed
		return nil, false, err
	}
	now := time.Now()
	record.TokenAddress = tokenAddr
	record.CurveAddress = curveAddr
	record.Status = models.DeploymentStatusDeployed
	record.DeployedAt = &now
	return record, true, nil
}

func (f *fakeDeploymentRepo) Get(_ context.Context, launchID string, chainID int64) (*models.DeploymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[CurveKey(launchID, chainID)]; ok {
		return record, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDeploymentRepo) ListByLaunch(_ context.Context, launchID string) ([]*models.DeploymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DeploymentRecord
	for _, record := range f.records {
		if record.LaunchID == launchID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out, nil
}

func (f *fakeDeploymentRepo) BatchPreregister(_ context.Context, records []*models.DeploymentRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var created int64
	for _, record := range records {
		key := CurveKey(record.LaunchID, record.ChainID)
		if _, ok := f.records[key]; !ok {
			f.records[key] = record
			created++
		}
	}
	return created, nil
}

func (f *fakeDeploymentRepo) MarkFailed(_ context.Context, launchID string, chainID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[CurveKey(launchID, chainID)]; ok {
		record.Status = models.DeploymentStatusFailed
	}
	return nil
}

type fakeCursorRepo struct {
	mu      sync.Mutex
	cursors map[string]*models.SyncCursor
}

func newFakeCursorRepo() *fakeCursorRepo {
	return &fakeCursorRepo{cursors: make(map[string]*models.SyncCursor)}
}

func (f *fakeCursorRepo) Get(_ context.Context, launchID string, chainID int64) (*models.SyncCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cursor, ok := f.cursors[CurveKey(launchID, chainID)]; ok {
		copied := *cursor
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCursorRepo) AdvanceIfNewer(_ context.Context, launchID string, chainID int64, seq uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := CurveKey(launchID, chainID)
	cursor, ok := f.cursors[key]
	if !ok {
		f.cursors[key] = &models.SyncCursor{
			LaunchID:       launchID,
			ChainID:        chainID,
			LastAppliedSeq: seq,
			LastAppliedAt:  time.Now(),
		}
		return true, nil
	}
	if cursor.LastAppliedSeq >= seq {
		return false, nil
	}
	cursor.LastAppliedSeq = seq
	cursor.LastAppliedAt = time.Now()
	return true, nil
}

func (f *fakeCursorRepo) ListByLaunch(_ context.Context, launchID string) ([]*models.SyncCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SyncCursor
	for _, cursor := range f.cursors {
		if cursor.LaunchID == launchID {
			copied := *cursor
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeMigrationRepo struct {
	mu      sync.Mutex
	records map[string]*models.MigrationRecord
}

func newFakeMigrationRepo() *fakeMigrationRepo {
	return &fakeMigrationRepo{records: make(map[string]*models.MigrationRecord)}
}

func (f *fakeMigrationRepo) EnsureActive(_ context.Context, launchID string, chainID int64) (*models.MigrationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[launchID]; ok {
		return record, nil
	}
	record := &models.MigrationRecord{
		LaunchID: launchID,
		ChainID:  chainID,
		Status:   models.MigrationStatusActive,
	}
	f.records[launchID] = record
	return record, nil
}

func (f *fakeMigrationRepo) Get(_ context.Context, launchID string) (*models.MigrationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[launchID]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMigrationRepo) Transition(_ context.Context, launchID string, from, to models.MigrationStatus, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[launchID]
	if !ok || record.Status != from {
		return repository.ErrMigrationConflict
	}
	record.Status = to
	if v, ok := updates["chain_id"].(int64); ok {
		record.ChainID = v
	}
	if v, ok := updates["final_price"].(string); ok {
		record.FinalPrice = v
	}
	if v, ok := updates["liquidity_eth"].(string); ok {
		record.LiquidityEth = v
	}
	if v, ok := updates["liquidity_tokens"].(string); ok {
		record.LiquidityTokens = v
	}
	if v, ok := updates["migrated_at"].(*time.Time); ok {
		record.MigratedAt = v
	}
	return nil
}

type fakeTradeRepo struct {
	mu     sync.Mutex
	trades map[string]*models.TradeEvent
}

func newFakeTradeRepo() *fakeTradeRepo {
	return &fakeTradeRepo{trades: make(map[string]*models.TradeEvent)}
}

func tradeKey(event *models.TradeEvent) string {
	return fmt.Sprintf("%d/%s/%d", event.ChainID, event.TxHash, event.LogIndex)
}

func (f *fakeTradeRepo) RecordOnce(_ context.Context, event *models.TradeEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tradeKey(event)
	if _, ok := f.trades[key]; ok {
		return false, nil
	}
	f.trades[key] = event
	return true, nil
}

func (f *fakeTradeRepo) FindByLaunch(_ context.Context, launchID string, page, limit int) ([]*models.TradeEvent, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TradeEvent
	for _, trade := range f.trades {
		if trade.LaunchID == launchID {
			out = append(out, trade)
		}
	}
	return out, int64(len(out)), nil
}

type fakeCallerRepo struct {
	mu      sync.Mutex
	allowed map[string]bool
}

func newFakeCallerRepo() *fakeCallerRepo {
	return &fakeCallerRepo{allowed: make(map[string]bool)}
}

func callerKey(chainID int64, address string) string {
	return CurveKey(strings.ToLower(address), chainID)
}

func (f *fakeCallerRepo) IsAllowed(_ context.Context, chainID int64, address string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowed[callerKey(chainID, address)], nil
}

func (f *fakeCallerRepo) SetAllowed(_ context.Context, chainID int64, address, label string, allowed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowed[callerKey(chainID, address)] = allowed
	return nil
}

func (f *fakeCallerRepo) List(_ context.Context) ([]*models.AuthorizedCaller, error) {
	return nil, nil
}

type fakeDeadLetterRepo struct {
	mu      sync.Mutex
	letters map[string]*models.FanoutDeadLetter
}

func newFakeDeadLetterRepo() *fakeDeadLetterRepo {
	return &fakeDeadLetterRepo{letters: make(map[string]*models.FanoutDeadLetter)}
}

func (f *fakeDeadLetterRepo) Create(_ context.Context, letter *models.FanoutDeadLetter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letters[letter.ID] = letter
	return nil
}

func (f *fakeDeadLetterRepo) GetByID(_ context.Context, id string) (*models.FanoutDeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if letter, ok := f.letters[id]; ok {
		copied := *letter
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDeadLetterRepo) DuePending(_ context.Context, now time.Time, limit int) ([]*models.FanoutDeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FanoutDeadLetter
	for _, letter := range f.letters {
		if letter.Status == models.FanoutDeadLetterStatusPending && !letter.NextRetryAt.After(now) {
			copied := *letter
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeDeadLetterRepo) List(_ context.Context, status models.FanoutDeadLetterStatus, page, limit int) ([]*models.FanoutDeadLetter, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FanoutDeadLetter
	for _, letter := range f.letters {
		if status == "" || letter.Status == status {
			copied := *letter
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeDeadLetterRepo) MarkRetrying(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	letter, ok := f.letters[id]
	if !ok || letter.Status != models.FanoutDeadLetterStatusPending {
		return false, nil
	}
	letter.Status = models.FanoutDeadLetterStatusRetrying
	return true, nil
}

func (f *fakeDeadLetterRepo) MarkRecovered(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if letter, ok := f.letters[id]; ok {
		letter.Status = models.FanoutDeadLetterStatusRecovered
	}
	return nil
}

func (f *fakeDeadLetterRepo) MarkAbandoned(_ context.Context, id string, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if letter, ok := f.letters[id]; ok {
		letter.Status = models.FanoutDeadLetterStatusAbandoned
		letter.LastError = lastError
	}
	return nil
}

func (f *fakeDeadLetterRepo) Reschedule(_ context.Context, id string, retryCount int, nextRetryAt time.Time, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if letter, ok := f.letters[id]; ok {
		letter.Status = models.FanoutDeadLetterStatusPending
		letter.RetryCount = retryCount
		letter.NextRetryAt = nextRetryAt
		letter.LastError = lastError
	}
	return nil
}

func (f *fakeDeadLetterRepo) Reset(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if letter, ok := f.letters[id]; ok && letter.Status == models.FanoutDeadLetterStatusAbandoned {
		letter.Status = models.FanoutDeadLetterStatusPending
		letter.RetryCount = 0
		letter.NextRetryAt = time.Now()
	}
	return nil
}

func (f *fakeDeadLetterRepo) single() *models.FanoutDeadLetter {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, letter := range f.letters {
		copied := *letter
		return &copied
	}
	return nil
}

// fakeChainClient records calls and fails on demand.
type fakeChainClient struct {
	mu           sync.Mutex
	chainID      int64
	deployCalls  int
	syncCalls    []clients.SyncPriceRequest
	migrateCalls int
	failDeploy   error
	failSync     error
	failMigrate  error
}

func newFakeChainClient(chainID int64) *fakeChainClient {
	return &fakeChainClient{chainID: chainID}
}

func (f *fakeChainClient) ChainID() int64 { return f.chainID }

func (f *fakeChainClient) DeployToken(_ context.Context, req *clients.DeployTokenRequest) (*clients.DeployResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployCalls++
	if f.failDeploy != nil {
		return nil, f.failDeploy
	}
	return &clients.DeployResult{
		TokenAddress: "0xtoken",
		CurveAddress: "0xcurve",
	}, nil
}

func (f *fakeChainClient) SyncPrice(_ context.Context, req *clients.SyncPriceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSync != nil {
		return f.failSync
	}
	f.syncCalls = append(f.syncCalls, *req)
	return nil
}

func (f *fakeChainClient) MigrateToDEX(_ context.Context, req *clients.MigrateRequest) (*clients.MigrateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.migrateCalls++
	if f.failMigrate != nil {
		return nil, f.failMigrate
	}
	return &clients.MigrateResult{PoolAddress: "0xpool", TxHash: "0xmigratetx"}, nil
}

func (f *fakeChainClient) setFailSync(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSync = err
}

func (f *fakeChainClient) setFailMigrate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMigrate = err
}

func (f *fakeChainClient) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.syncCalls)
}

func (f *fakeChainClient) lastSync() clients.SyncPriceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncCalls[len(f.syncCalls)-1]
}
