package services

import (
	"context"
	"math/big"
	"testing"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/config"
	"launchpad-backend/internal/curve"
	"launchpad-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLaunchID = "0x4fc174681d7d196c28df307b8349a2bcde1b387ec1d4698b4f3c96ba06e7b0a1"
	testCreator  = "0x742d35Cc6634C0532925a3b0F26750C66d78EB66"
	testCaller   = "0xRelayerIdentity01"
)

func bi(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad big int %q", s)
	return v
}

// testEnv wires the coordinator stack against in-memory fakes. Every chain
// id passed in gets a fake relayer client and an allow-listed caller.
type testEnv struct {
	launches    *fakeLaunchRepo
	curves      *fakeCurveRepo
	deployments *fakeDeploymentRepo
	cursors     *fakeCursorRepo
	migrations  *fakeMigrationRepo
	trades      *fakeTradeRepo
	callers     *fakeCallerRepo
	deadLetters *fakeDeadLetterRepo
	chains      map[int64]*fakeChainClient
	priceSync   *PriceSyncService
	migration   *MigrationService
	coord       *Coordinator
	retry       *FanoutRetryService
}

func newTestEnv(t *testing.T, chainIDs ...int64) *testEnv {
	t.Helper()
	env := &testEnv{
		launches:    newFakeLaunchRepo(),
		curves:      newFakeCurveRepo(),
		deployments: newFakeDeploymentRepo(),
		cursors:     newFakeCursorRepo(),
		migrations:  newFakeMigrationRepo(),
		trades:      newFakeTradeRepo(),
		callers:     newFakeCallerRepo(),
		deadLetters: newFakeDeadLetterRepo(),
		chains:      make(map[int64]*fakeChainClient),
	}

	chainCls := make(map[int64]clients.ChainClient)
	for _, id := range chainIDs {
		fc := newFakeChainClient(id)
		env.chains[id] = fc
		chainCls[id] = fc
		require.NoError(t, env.callers.SetAllowed(context.Background(), id, testCaller, "relayer", true))
	}

	retryCfg := config.RetryConfig{MaxAttempts: 2, BaseBackoffSeconds: 1, CheckInterval: 1}
	env.priceSync = NewPriceSyncService(env.curves, env.cursors, env.deadLetters, chainCls, retryCfg)
	env.migration = NewMigrationService(env.migrations, env.deadLetters, chainCls, retryCfg)
	env.coord = NewCoordinator(
		env.launches, env.curves, env.deployments, env.trades, env.callers, env.deadLetters,
		chainCls, env.priceSync, env.migration, retryCfg,
	)
	env.retry = NewFanoutRetryService(
		env.deadLetters, env.deployments, env.curves, chainCls, env.priceSync, env.migration, retryCfg,
	)
	return env
}

func createdEvent(origin int64, targets []int64) *clients.TokenCreatedEvent {
	return &clients.TokenCreatedEvent{
		EventEnvelope: clients.EventEnvelope{
			CallerIdentity: testCaller,
			TxHash:         "0xcreatetx",
			LogIndex:       0,
		},
		LaunchID:       testLaunchID,
		Name:           "Moon Token",
		Symbol:         "MOON",
		Creator:        testCreator,
		CreatorFeeBps:  200,
		OriginToken:    "0x1111111111111111111111111111111111111111",
		TargetChainIDs: targets,
		ChainID:        origin,
	}
}

func purchaseEvent(chainID int64, txHash, ethIn string, seq uint64) *clients.TokenPurchaseEvent {
	return &clients.TokenPurchaseEvent{
		EventEnvelope: clients.EventEnvelope{
			CallerIdentity: testCaller,
			TxHash:         txHash,
			LogIndex:       1,
		},
		LaunchID: testLaunchID,
		Buyer:    testCreator,
		EthIn:    ethIn,
		Seq:      seq,
		ChainID:  chainID,
	}
}

func saleEvent(chainID int64, txHash, tokensIn string, seq uint64) *clients.TokenSaleEvent {
	return &clients.TokenSaleEvent{
		EventEnvelope: clients.EventEnvelope{
			CallerIdentity: testCaller,
			TxHash:         txHash,
			LogIndex:       1,
		},
		LaunchID: testLaunchID,
		Seller:   testCreator,
		TokensIn: tokensIn,
		Seq:      seq,
		ChainID:  chainID,
	}
}

func TestHandleTokenCreatedFansOutToTargets(t *testing.T) {
	env := newTestEnv(t, 1, 137, 500)
	ctx := context.Background()

	require.NoError(t, env.coord.HandleTokenCreated(ctx, createdEvent(1, []int64{1, 137, 500})))

	// The launch exists and stays active.
	_, err := env.launches.GetByID(ctx, testLaunchID)
	require.NoError(t, err)
	record, err := env.migrations.Get(ctx, testLaunchID)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusActive, record.Status)

	// One relayer deploy per destination, none on the origin chain.
	assert.Equal(t, 0, env.chains[1].deployCalls)
	assert.Equal(t, 1, env.chains[137].deployCalls)
	assert.Equal(t, 1, env.chains[500].deployCalls)

	// Every chain got a seeded curve at the launch constants.
	for _, chainID := range []int64{1, 137, 500} {
		state, err := env.curves.Get(ctx, testLaunchID, chainID)
		require.NoError(t, err)
		assert.Equal(t, curve.DefaultVirtualEth.String(), state.VirtualEth)
		assert.Equal(t, curve.DefaultVirtualTokens.String(), state.VirtualTokens)
		assert.Equal(t, uint32(200), state.CreatorFeeBps)
	}

	deployments, err := env.deployments.ListByLaunch(ctx, testLaunchID)
	require.NoError(t, err)
	require.Len(t, deployments, 2)
	for _, d := range deployments {
		assert.Equal(t, models.DeploymentStatusDeployed, d.Status)
		assert.NotEmpty(t, d.Salt)
	}
}

func TestHandleTokenCreatedRedeliveryDeploysOnce(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	ctx := context.Background()
	evt := createdEvent(1, []int64{1, 137})

	require.NoError(t, env.coord.HandleTokenCreated(ctx, evt))
	require.NoError(t, env.coord.HandleTokenCreated(ctx, evt))
	require.NoError(t, env.coord.HandleTokenCreated(ctx, evt))

	assert.Equal(t, 1, env.chains[137].deployCalls)
}

func TestHandleTokenCreatedRejectsUnknownCaller(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	evt := createdEvent(1, []int64{1, 137})
	evt.CallerIdentity = "0xEvilRelayer"

	err := env.coord.HandleTokenCreated(context.Background(), evt)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)

	_, err = env.launches.GetByID(context.Background(), testLaunchID)
	assert.Error(t, err)
	assert.Equal(t, 0, env.chains[137].deployCalls)
}

func TestHandleTokenCreatedValidation(t *testing.T) {
	env := newTestEnv(t, 1)

	evt := createdEvent(1, []int64{1})
	evt.Creator = "0x0000000000000000000000000000000000000000"
	require.ErrorIs(t, env.coord.HandleTokenCreated(context.Background(), evt), ErrValidation)

	evt = createdEvent(1, nil)
	require.ErrorIs(t, env.coord.HandleTokenCreated(context.Background(), evt), ErrValidation)

	evt = createdEvent(1, []int64{1})
	evt.CreatorFeeBps = curve.MaxCreatorFeeBps + 1
	require.ErrorIs(t, env.coord.HandleTokenCreated(context.Background(), evt), ErrValidation)
}

func TestHandleTokenPurchaseAppliesTradeAndSyncs(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	ctx := context.Background()
	require.NoError(t, env.coord.HandleTokenCreated(ctx, createdEvent(1, []int64{1, 137})))

	// 0.01 ETH buy with 1% platform + 2% creator fee leaves 0.0097 ETH
	// for the curve.
	require.NoError(t, env.coord.HandleTokenPurchase(ctx, purchaseEvent(1, "0xbuy1", "10000000000000000", 1)))

	state, err := env.curves.Get(ctx, testLaunchID, 1)
	require.NoError(t, err)
	assert.Equal(t, "1009700000000000000", state.VirtualEth)
	assert.Equal(t, "9606813905120332772110528", state.TotalSupply)
	assert.Equal(t, uint64(1), state.LastUpdateSeq)

	trades, total, err := env.trades.FindByLaunch(ctx, testLaunchID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "buy", trades[0].Kind)
	assert.Equal(t, "9606813905120332772110528", trades[0].Tokens)

	// The unified price was pushed to the destination chain only.
	require.Equal(t, 1, env.chains[137].syncCount())
	assert.Equal(t, 0, env.chains[1].syncCount())
	leg := env.chains[137].lastSync()
	assert.Equal(t, testLaunchID, leg.LaunchID)
	assert.Equal(t, uint64(1), leg.Seq)

	cursor, err := env.cursors.Get(ctx, testLaunchID, 137)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cursor.LastAppliedSeq)
}

func TestHandleTokenPurchaseDuplicateLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	ctx := context.Background()
	require.NoError(t, env.coord.HandleTokenCreated(ctx, createdEvent(1, []int64{1, 137})))

	evt := purchaseEvent(1, "0xbuy1", "10000000000000000", 1)
	require.NoError(t, env.coord.HandleTokenPurchase(ctx, evt))
	before, err := env.curves.Get(ctx, testLaunchID, 1)
	require.NoError(t, err)

	// Same (chain, tx, logIndex) delivered again.
	require.NoError(t, env.coord.HandleTokenPurchase(ctx, evt))

	after, err := env.curves.Get(ctx, testLaunchID, 1)
	require.NoError(t, err)
	assert.Equal(t, before.VirtualEth, after.VirtualEth)
	assert.Equal(t, before.VirtualTokens, after.VirtualTokens)
	assert.Equal(t, before.TotalSupply, after.TotalSupply)

	_, total, err := env.trades.FindByLaunch(ctx, testLaunchID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	// No second fan-out either.
	assert.Equal(t, 1, env.chains[137].syncCount())
}

func TestHandleTokenSaleMovesPriceBackDown(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	ctx := context.Background()
	require.NoError(t, env.coord.HandleTokenCreated(ctx, createdEvent(1, []int64{1, 137})))
	require.NoError(t, env.coord.HandleTokenPurchase(ctx, purchaseEvent(1, "0xbuy1", "10000000000000000", 1)))

	bought, err := env.curves.Get(ctx, testLaunchID, 1)
	require.NoError(t, err)

	require.NoError(t, env.coord.HandleTokenSale(ctx, saleEvent(1, "0xsell1", "1000000000000000000000000", 2)))

	state, err := env.curves.Get(ctx, testLaunchID, 1)
	require.NoError(t, err)
	assert.Negative(t, bi(t, state.VirtualEth).Cmp(bi(t, bought.VirtualEth)))
	assert.Positive(t, bi(t, state.VirtualTokens).Cmp(bi(t, bought.VirtualTokens)))
	assert.Equal(t, uint64(2), state.LastUpdateSeq)

	trades, _, err := env.trades.FindByLaunch(ctx, testLaunchID, 1, 10)
	require.NoError(t, err)
	kinds := map[string]bool{}
	for _, tr := range trades {
		kinds[tr.Kind] = true
	}
	assert.True(t, kinds["sell"])
	assert.Equal(t, 2, env.chains[137].syncCount())
}

func TestHandleTokenPurchaseUnknownLaunch(t *testing.T) {
	env := newTestEnv(t, 1)
	err := env.coord.HandleTokenPurchase(context.Background(), purchaseEvent(1, "0xbuy1", "10000000000000000", 1))
	require.ErrorIs(t, err, ErrUnknownLaunch)
}

func TestBuyThroughSupplyCeilingMigratesOnce(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	ctx := context.Background()
	require.NoError(t, env.coord.HandleTokenCreated(ctx, createdEvent(1, []int64{1, 137})))

	// 5 ETH gross sends ~4.85 ETH to the curve, well past the ~4 ETH the
	// full curve supply costs. The buy clamps and triggers migration.
	require.NoError(t, env.coord.HandleTokenPurchase(ctx, purchaseEvent(1, "0xbigbuy", "5000000000000000000", 1)))

	record, err := env.migrations.Get(ctx, testLaunchID)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusMigrated, record.Status)
	assert.Equal(t, int64(1), record.ChainID)
	assert.NotEmpty(t, record.FinalPrice)
	assert.Equal(t, curve.LiquidityReserve.String(), record.LiquidityTokens)
	assert.NotNil(t, record.MigratedAt)
	assert.Equal(t, 1, env.chains[1].migrateCalls)

	// The curve sold out exactly: the token reserve is down to the
	// liquidity hold-back.
	state, err := env.curves.Get(ctx, testLaunchID, 1)
	require.NoError(t, err)
	assert.Equal(t, curve.LiquidityReserve.String(), state.VirtualTokens)
	assert.Equal(t, curve.CurveSupply.String(), state.TotalSupply)
}

func TestTradesRejectedAfterMigration(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	ctx := context.Background()
	require.NoError(t, env.coord.HandleTokenCreated(ctx, createdEvent(1, []int64{1, 137})))
	require.NoError(t, env.coord.HandleTokenPurchase(ctx, purchaseEvent(1, "0xbigbuy", "5000000000000000000", 1)))

	err := env.coord.HandleTokenPurchase(ctx, purchaseEvent(1, "0xlate", "10000000000000000", 2))
	require.ErrorIs(t, err, ErrCurveMigrated)

	err = env.coord.HandleTokenSale(ctx, saleEvent(137, "0xlatesell", "1000000000000000000", 2))
	require.ErrorIs(t, err, ErrCurveMigrated)
}

func TestDuplicateMigrationTriggerIsIgnored(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	ctx := context.Background()
	require.NoError(t, env.coord.HandleTokenCreated(ctx, createdEvent(1, []int64{1, 137})))
	require.NoError(t, env.coord.HandleTokenPurchase(ctx, purchaseEvent(1, "0xbigbuy", "5000000000000000000", 1)))
	require.Equal(t, 1, env.chains[1].migrateCalls)

	// An on-chain confirmation arriving after the fact loses the CAS and
	// must not touch the chain again.
	evt := &clients.CurveMigrationTriggeredEvent{
		EventEnvelope:   clients.EventEnvelope{CallerIdentity: testCaller, TxHash: "0xconfirm"},
		LaunchID:        testLaunchID,
		FinalPrice:      "999",
		LiquidityEth:    "1",
		LiquidityTokens: "1",
		ChainID:         1,
	}
	require.NoError(t, env.coord.HandleCurveMigrationTriggered(ctx, evt))
	assert.Equal(t, 1, env.chains[1].migrateCalls)

	// The frozen snapshot from the first trigger survives.
	record, err := env.migrations.Get(ctx, testLaunchID)
	require.NoError(t, err)
	assert.NotEqual(t, "999", record.FinalPrice)
}

func TestMigrationParksOnRelayerOutageAndCompletesLater(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	ctx := context.Background()
	require.NoError(t, env.coord.HandleTokenCreated(ctx, createdEvent(1, []int64{1, 137})))

	env.chains[1].setFailMigrate(&clients.NetworkError{Op: "migrate", ChainID: 1, Err: assert.AnError})

	// The trigger itself succeeds; only the DEX call is parked.
	require.NoError(t, env.coord.HandleTokenPurchase(ctx, purchaseEvent(1, "0xbigbuy", "5000000000000000000", 1)))

	record, err := env.migrations.Get(ctx, testLaunchID)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusTriggered, record.Status)

	letter := env.deadLetters.single()
	require.NotNil(t, letter)
	assert.Equal(t, models.FanoutKindMigrate, letter.Kind)
	assert.Equal(t, models.FanoutDeadLetterStatusPending, letter.Status)

	// Relayer comes back; the redispatch completes the migration.
	env.chains[1].setFailMigrate(nil)
	require.NoError(t, env.retry.RedispatchByID(ctx, letter.ID))

	record, err = env.migrations.Get(ctx, testLaunchID)
	require.NoError(t, err)
	assert.Equal(t, models.MigrationStatusMigrated, record.Status)
	recovered, err := env.deadLetters.GetByID(ctx, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FanoutDeadLetterStatusRecovered, recovered.Status)
}

func TestDeployLegParkedOnRelayerOutage(t *testing.T) {
	env := newTestEnv(t, 1, 137)
	ctx := context.Background()
	env.chains[137].mu.Lock()
	env.chains[137].failDeploy = &clients.NetworkError{Op: "deploy-token", ChainID: 137, Err: assert.AnError}
	env.chains[137].mu.Unlock()

	require.NoError(t, env.coord.HandleTokenCreated(ctx, createdEvent(1, []int64{1, 137})))

	letter := env.deadLetters.single()
	require.NotNil(t, letter)
	assert.Equal(t, models.FanoutKindDeploy, letter.Kind)
	assert.Equal(t, int64(137), letter.ChainID)

	// The relayer recovers; the retried leg deploys and seeds the curve.
	env.chains[137].mu.Lock()
	env.chains[137].failDeploy = nil
	env.chains[137].mu.Unlock()
	require.NoError(t, env.retry.RedispatchByID(ctx, letter.ID))

	state, err := env.curves.Get(ctx, testLaunchID, 137)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), state.CreatorFeeBps)
	deployment, err := env.deployments.Get(ctx, testLaunchID, 137)
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusDeployed, deployment.Status)
}
