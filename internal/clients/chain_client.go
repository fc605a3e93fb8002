package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"launchpad-backend/internal/config"
)

var (
	// ErrAlreadyDeployed is the destination's idempotent collision on a
	// deploy callback. Treated as a successful no-op by callers.
	ErrAlreadyDeployed = errors.New("chain client: already deployed")

	// ErrAlreadyMigrated is the destination's terminal-state rejection of a
	// duplicate migrate callback. Also a successful no-op.
	ErrAlreadyMigrated = errors.New("chain client: already migrated")

	// ErrUnauthorizedCaller is returned when the relayer rejects our caller
	// identity. Never retried; logged as a potential attack signal.
	ErrUnauthorizedCaller = errors.New("chain client: unauthorized caller")
)

// NetworkError wraps a retryable transport failure (timeout, connection
// refused, 5xx). Every other error class is terminal for the operation.
type NetworkError struct {
	Op      string
	ChainID int64
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("chain client: %s on chain %d: %v", e.Op, e.ChainID, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is a transient network failure.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// DeployTokenRequest asks a destination chain to deploy the launch's token
// and curve contracts at the deterministic salt.
type DeployTokenRequest struct {
	LaunchID      string `json:"launch_id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Creator       string `json:"creator"`
	Salt          string `json:"salt"`
	OriginToken   string `json:"origin_token"`
	OriginChainID int64  `json:"origin_chain_id"`
}

// DeployResult carries the destination-side contract addresses.
type DeployResult struct {
	TokenAddress string `json:"token_address"`
	CurveAddress string `json:"curve_address"`
}

// SyncPriceRequest pushes the unified price to one destination chain.
type SyncPriceRequest struct {
	LaunchID    string `json:"launch_id"`
	Price       string `json:"price"`
	TotalSupply string `json:"total_supply"`
	Seq         uint64 `json:"seq"`
}

// MigrateRequest triggers the curve-to-DEX migration on the chain where the
// supply threshold was hit.
type MigrateRequest struct {
	LaunchID        string `json:"launch_id"`
	FinalPrice      string `json:"final_price"`
	LiquidityEth    string `json:"liquidity_eth"`
	LiquidityTokens string `json:"liquidity_tokens"`
}

// MigrateResult reports the created DEX pool.
type MigrateResult struct {
	PoolAddress string `json:"pool_address"`
	TxHash      string `json:"tx_hash"`
}

// ChainClient abstracts the per-chain relayer: deploy token, sync price,
// migrate to DEX. Implementations must be safe for concurrent use; every
// call is bounded by the context deadline.
type ChainClient interface {
	ChainID() int64
	DeployToken(ctx context.Context, req *DeployTokenRequest) (*DeployResult, error)
	SyncPrice(ctx context.Context, req *SyncPriceRequest) error
	MigrateToDEX(ctx context.Context, req *MigrateRequest) (*MigrateResult, error)
}

// RelayerClient is the HTTP ChainClient adapter speaking to a per-chain
// relayer service.
type RelayerClient struct {
	chainID        int64
	baseURL        string
	callerIdentity string
	httpClient     *http.Client
}

// NewRelayerClient creates a ChainClient for one configured network.
func NewRelayerClient(network config.NetworkConfig) *RelayerClient {
	timeout := time.Duration(network.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RelayerClient{
		chainID:        network.ChainID,
		baseURL:        network.RelayerEndpoint,
		callerIdentity: network.CallerIdentity,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

func (c *RelayerClient) ChainID() int64 { return c.chainID }

func (c *RelayerClient) DeployToken(ctx context.Context, req *DeployTokenRequest) (*DeployResult, error) {
	var result DeployResult
	if err := c.post(ctx, "deploy-token", "/v1/launchpad/deploy", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RelayerClient) SyncPrice(ctx context.Context, req *SyncPriceRequest) error {
	return c.post(ctx, "sync-price", "/v1/launchpad/sync-price", req, nil)
}

func (c *RelayerClient) MigrateToDEX(ctx context.Context, req *MigrateRequest) (*MigrateResult, error) {
	var result MigrateResult
	if err := c.post(ctx, "migrate", "/v1/launchpad/migrate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RelayerClient) post(ctx context.Context, op, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Caller-Identity", c.callerIdentity)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &NetworkError{Op: op, ChainID: c.chainID, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if out == nil {
			return nil
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Op: op, ChainID: c.chainID, Err: err}
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
		return nil
	case resp.StatusCode == http.StatusConflict:
		if op == "migrate" {
			return ErrAlreadyMigrated
		}
		return ErrAlreadyDeployed
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorizedCaller
	case resp.StatusCode >= 500:
		return &NetworkError{Op: op, ChainID: c.chainID, Err: fmt.Errorf("relayer returned %d", resp.StatusCode)}
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s rejected by relayer (%d): %s", op, resp.StatusCode, string(data))
	}
}
