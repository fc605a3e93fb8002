package handlers

import (
	"errors"
	"math/big"
	"net/http"

	"launchpad-backend/internal/curve"
	"launchpad-backend/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// QuoteHandler serves read-only trade quotes. Quotes run the same engine as
// the event pipeline against a snapshot copy; nothing is persisted.
type QuoteHandler struct {
	curves repository.CurveStateRepository
}

// NewQuoteHandler creates a new QuoteHandler instance.
func NewQuoteHandler(curves repository.CurveStateRepository) *QuoteHandler {
	return &QuoteHandler{curves: curves}
}

// QuoteBuyRequest asks how many tokens a gross ETH amount buys.
type QuoteBuyRequest struct {
	LaunchID string `json:"launch_id" binding:"required"`
	ChainID  int64  `json:"chain_id" binding:"required"`
	EthIn    string `json:"eth_in" binding:"required"`
}

// QuoteSellRequest asks how much ETH a token amount sells for.
type QuoteSellRequest struct {
	LaunchID string `json:"launch_id" binding:"required"`
	ChainID  int64  `json:"chain_id" binding:"required"`
	TokensIn string `json:"tokens_in" binding:"required"`
}

// QuoteBuyHandler handles POST /api/v1/quote/buy.
func (h *QuoteHandler) QuoteBuyHandler(c *gin.Context) {
	var req QuoteBuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	ethIn, ok := new(big.Int).SetString(req.EthIn, 10)
	if !ok || ethIn.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "eth_in must be a positive integer in wei"})
		return
	}

	snap, ok := h.loadSnapshot(c, req.LaunchID, req.ChainID)
	if !ok {
		return
	}

	priceBefore, _ := curve.CurrentPrice(snap)
	result, err := curve.ApplyBuy(snap, ethIn, nil, 0)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, curve.ErrInvalidAmount) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	priceAfter, _ := curve.CurrentPrice(result.State)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"tokens_out":              result.TokensOut.String(),
			"tokens_out_formatted":    formatUnits(result.TokensOut),
			"eth_for_curve":           result.EthForCurve.String(),
			"platform_fee":            result.PlatformFee.String(),
			"creator_fee":             result.CreatorFee.String(),
			"refund":                  result.Refund.String(),
			"price_before":            priceBefore.String(),
			"price_after":             priceAfter.String(),
			"would_trigger_migration": result.MigrationTriggered,
		},
	})
}

// QuoteSellHandler handles POST /api/v1/quote/sell.
func (h *QuoteHandler) QuoteSellHandler(c *gin.Context) {
	var req QuoteSellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	tokensIn, ok := new(big.Int).SetString(req.TokensIn, 10)
	if !ok || tokensIn.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "tokens_in must be a positive integer"})
		return
	}

	snap, ok := h.loadSnapshot(c, req.LaunchID, req.ChainID)
	if !ok {
		return
	}

	priceBefore, _ := curve.CurrentPrice(snap)
	result, err := curve.ApplySell(snap, tokensIn, nil, 0)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, curve.ErrInvalidAmount) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	priceAfter, _ := curve.CurrentPrice(result.State)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"eth_out":           result.EthOut.String(),
			"eth_out_formatted": formatUnits(result.EthOut),
			"platform_fee":      result.PlatformFee.String(),
			"price_before":      priceBefore.String(),
			"price_after":       priceAfter.String(),
		},
	})
}

func (h *QuoteHandler) loadSnapshot(c *gin.Context, launchID string, chainID int64) (curve.State, bool) {
	stored, err := h.curves.Get(c.Request.Context(), launchID, chainID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "curve not found"})
		return curve.State{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return curve.State{}, false
	}
	snap, err := stored.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return curve.State{}, false
	}
	return snap, true
}

// formatUnits renders an 18-decimal base-unit amount as a decimal string.
func formatUnits(v *big.Int) string {
	f := new(big.Float).SetInt(v)
	f.Quo(f, new(big.Float).SetInt(curve.PriceScale))
	return f.Text('f', 6)
}
