package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"launchpad-backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubCurveRepo serves a fixed set of curve states; only Get is exercised by
// the quote endpoints.
type stubCurveRepo struct {
	states map[string]*models.CurveState
}

func (s *stubCurveRepo) CreateIfAbsent(_ context.Context, state *models.CurveState) (*models.CurveState, bool, error) {
	return state, true, nil
}

func (s *stubCurveRepo) Get(_ context.Context, launchID string, chainID int64) (*models.CurveState, error) {
	if state, ok := s.states[launchID]; ok && state.ChainID == chainID {
		return state, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCurveRepo) Save(_ context.Context, _ *models.CurveState) error { return nil }

func (s *stubCurveRepo) ListByLaunch(_ context.Context, _ string) ([]*models.CurveState, error) {
	return nil, nil
}

const quoteLaunchID = "0x4fc174681d7d196c28df307b8349a2bcde1b387ec1d4698b4f3c96ba06e7b0a1"

func newQuoteRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	repo := &stubCurveRepo{states: map[string]*models.CurveState{
		quoteLaunchID: {
			LaunchID:      quoteLaunchID,
			ChainID:       1,
			VirtualEth:    "1000000000000000000",
			VirtualTokens: "1000000000000000000000000000",
			TotalSupply:   "0",
			CreatorFeeBps: 200,
		},
	}}
	h := NewQuoteHandler(repo)
	r := gin.New()
	r.POST("/quote/buy", h.QuoteBuyHandler)
	r.POST("/quote/sell", h.QuoteSellHandler)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQuoteBuyReturnsEngineNumbers(t *testing.T) {
	r := newQuoteRouter()

	w := postJSON(t, r, "/quote/buy", QuoteBuyRequest{
		LaunchID: quoteLaunchID,
		ChainID:  1,
		EthIn:    "10000000000000000",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	// 1% platform + 2% creator fee leaves 0.0097 ETH for the curve.
	assert.Equal(t, "100000000000000", resp.Data["platform_fee"])
	assert.Equal(t, "200000000000000", resp.Data["creator_fee"])
	assert.Equal(t, "9700000000000000", resp.Data["eth_for_curve"])
	assert.Equal(t, "9606813905120332772110528", resp.Data["tokens_out"])
	assert.Equal(t, "1000000000", resp.Data["price_before"])
	assert.Equal(t, false, resp.Data["would_trigger_migration"])
}

func TestQuoteBuyUnknownCurve(t *testing.T) {
	r := newQuoteRouter()

	w := postJSON(t, r, "/quote/buy", QuoteBuyRequest{
		LaunchID: "0x0000000000000000000000000000000000000000000000000000000000000000",
		ChainID:  1,
		EthIn:    "10000000000000000",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuoteBuyRejectsBadAmount(t *testing.T) {
	r := newQuoteRouter()

	for _, ethIn := range []string{"0", "-5", "1.5", "abc"} {
		w := postJSON(t, r, "/quote/buy", QuoteBuyRequest{
			LaunchID: quoteLaunchID,
			ChainID:  1,
			EthIn:    ethIn,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, "eth_in=%s", ethIn)
	}
}

func TestQuoteSellRejectsOversell(t *testing.T) {
	r := newQuoteRouter()

	// Nothing has been bought on this curve, so any sell oversells.
	w := postJSON(t, r, "/quote/sell", QuoteSellRequest{
		LaunchID: quoteLaunchID,
		ChainID:  1,
		TokensIn: "1000000000000000000",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteSellAfterBuyPaysOut(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// Curve state after one 0.01 ETH buy on a fresh curve.
	repo := &stubCurveRepo{states: map[string]*models.CurveState{
		quoteLaunchID: {
			LaunchID:      quoteLaunchID,
			ChainID:       1,
			VirtualEth:    "1009700000000000000",
			VirtualTokens: "990393186094879667227889472",
			TotalSupply:   "9606813905120332772110528",
			CreatorFeeBps: 200,
		},
	}}
	h := NewQuoteHandler(repo)
	r := gin.New()
	r.POST("/quote/sell", h.QuoteSellHandler)

	w := postJSON(t, r, "/quote/sell", QuoteSellRequest{
		LaunchID: quoteLaunchID,
		ChainID:  1,
		TokensIn: "1000000000000000000000000",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	ethOut, ok := new(big.Int).SetString(resp.Data["eth_out"], 10)
	require.True(t, ok)
	assert.Positive(t, ethOut.Sign())
	fee, ok := new(big.Int).SetString(resp.Data["platform_fee"], 10)
	require.True(t, ok)
	assert.Positive(t, fee.Sign())
}

func TestQuoteMissingFields(t *testing.T) {
	r := newQuoteRouter()

	w := postJSON(t, r, "/quote/buy", map[string]interface{}{"launch_id": quoteLaunchID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
