package handlers

import (
	"net/http"

	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"
	"launchpad-backend/internal/services"
	"launchpad-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves the JWT-protected operational API: caller allow-list
// management and dead-letter inspection/redispatch.
type AdminHandler struct {
	callers     repository.AuthorizedCallerRepository
	deadLetters repository.DeadLetterRepository
	retry       *services.FanoutRetryService
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(
	callers repository.AuthorizedCallerRepository,
	deadLetters repository.DeadLetterRepository,
	retry *services.FanoutRetryService,
) *AdminHandler {
	return &AdminHandler{
		callers:     callers,
		deadLetters: deadLetters,
		retry:       retry,
	}
}

// SetCallerRequest authorizes or revokes one caller identity.
type SetCallerRequest struct {
	ChainID int64  `json:"chain_id" binding:"required"`
	Address string `json:"address" binding:"required"`
	Label   string `json:"label"`
	Enabled *bool  `json:"enabled" binding:"required"`
}

// ListCallersHandler handles GET /api/v1/admin/callers.
func (h *AdminHandler) ListCallersHandler(c *gin.Context) {
	callers, err := h.callers.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": callers})
}

// SetCallerHandler handles POST /api/v1/admin/callers.
func (h *AdminHandler) SetCallerHandler(c *gin.Context) {
	var req SetCallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if !utils.IsEvmAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "address is not a valid EVM address"})
		return
	}

	if err := h.callers.SetAllowed(c.Request.Context(), req.ChainID, req.Address, req.Label, *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"chain_id": req.ChainID,
		"address":  req.Address,
		"enabled":  *req.Enabled,
		"admin":    c.GetString("admin_username"),
	}).Info("Caller allow-list updated")

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListDeadLettersHandler handles GET /api/v1/admin/dead-letters?status=&page=&limit=.
func (h *AdminHandler) ListDeadLettersHandler(c *gin.Context) {
	page, limit := paginationParams(c)
	status := models.FanoutDeadLetterStatus(c.Query("status"))

	letters, total, err := h.deadLetters.List(c.Request.Context(), status, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    letters,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// RedispatchDeadLetterHandler handles POST /api/v1/admin/dead-letters/:id/redispatch.
func (h *AdminHandler) RedispatchDeadLetterHandler(c *gin.Context) {
	id := c.Param("id")

	if err := h.retry.RedispatchByID(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"dead_letter_id": id,
		"admin":          c.GetString("admin_username"),
	}).Info("Dead letter redispatched")

	c.JSON(http.StatusOK, gin.H{"success": true})
}
