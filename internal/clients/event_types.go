package clients

// Event payloads as emitted by the per-chain launchpad contracts and relayed
// over NATS. Every event carries the relay's caller identity, validated
// against the allow-list before any state is touched.

// EventEnvelope is the common part of every relayed contract event.
type EventEnvelope struct {
	EventName      string `json:"event_name"`
	ContractAddr   string `json:"contract_address"`
	CallerIdentity string `json:"caller_identity"`
	TxHash         string `json:"tx_hash"`
	LogIndex       uint64 `json:"log_index"`
	BlockNumber    uint64 `json:"block_number"`
	BlockTimestamp int64  `json:"block_timestamp"`
}

// TokenCreatedEvent announces a new launch on its origin chain.
type TokenCreatedEvent struct {
	EventEnvelope
	LaunchID       string  `json:"launch_id"`
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	Creator        string  `json:"creator"`
	CreatorFeeBps  uint32  `json:"creator_fee_bps"`
	OriginToken    string  `json:"origin_token"`
	TargetChainIDs []int64 `json:"target_chain_ids"`

	// ChainID is filled from the NATS subject, not trusted from the payload.
	ChainID int64 `json:"-"`
}

// TokenPurchaseEvent is one buy applied on a chain-local curve.
type TokenPurchaseEvent struct {
	EventEnvelope
	LaunchID     string `json:"launch_id"`
	Buyer        string `json:"buyer"`
	EthIn        string `json:"eth_in"`
	MinTokensOut string `json:"min_tokens_out"`
	SlippageBps  uint32 `json:"slippage_bps"`
	Seq          uint64 `json:"seq"`

	ChainID int64 `json:"-"`
}

// TokenSaleEvent is one sell applied on a chain-local curve.
type TokenSaleEvent struct {
	EventEnvelope
	LaunchID    string `json:"launch_id"`
	Seller      string `json:"seller"`
	TokensIn    string `json:"tokens_in"`
	MinEthOut   string `json:"min_eth_out"`
	SlippageBps uint32 `json:"slippage_bps"`
	Seq         uint64 `json:"seq"`

	ChainID int64 `json:"-"`
}

// CurveMigrationTriggeredEvent is the on-chain confirmation of a migration.
// The coordinator normally triggers migration itself from the supply
// threshold; this event covers curves whose threshold was crossed by a
// transaction the coordinator did not originate.
type CurveMigrationTriggeredEvent struct {
	EventEnvelope
	LaunchID        string `json:"launch_id"`
	FinalPrice      string `json:"final_price"`
	LiquidityEth    string `json:"liquidity_eth"`
	LiquidityTokens string `json:"liquidity_tokens"`

	ChainID int64 `json:"-"`
}
