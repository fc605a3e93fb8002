package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"launchpad-backend/internal/curve"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/repository"
	"launchpad-backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LaunchHandler serves the read-only launch API.
type LaunchHandler struct {
	launches    repository.LaunchRepository
	curves      repository.CurveStateRepository
	deployments repository.DeploymentRepository
	migrations  repository.MigrationRepository
	trades      repository.TradeEventRepository
	priceSync   *services.PriceSyncService
}

// NewLaunchHandler creates a new LaunchHandler instance.
func NewLaunchHandler(
	launches repository.LaunchRepository,
	curves repository.CurveStateRepository,
	deployments repository.DeploymentRepository,
	migrations repository.MigrationRepository,
	trades repository.TradeEventRepository,
	priceSync *services.PriceSyncService,
) *LaunchHandler {
	return &LaunchHandler{
		launches:    launches,
		curves:      curves,
		deployments: deployments,
		migrations:  migrations,
		trades:      trades,
		priceSync:   priceSync,
	}
}

// ListLaunchesHandler handles GET /api/v1/launches?page=&limit=.
func (h *LaunchHandler) ListLaunchesHandler(c *gin.Context) {
	page, limit := paginationParams(c)

	launches, total, err := h.launches.List(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    launches,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// GetLaunchHandler handles GET /api/v1/launches/:launchId. Returns the launch
// with its unified price and migration status.
func (h *LaunchHandler) GetLaunchHandler(c *gin.Context) {
	launchID := c.Param("launchId")

	launch, err := h.launches.GetByID(c.Request.Context(), launchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "launch not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	resp := gin.H{
		"success": true,
		"data":    launch,
	}

	if price, totalSupply, err := h.priceSync.UnifiedPrice(c.Request.Context(), launchID); err == nil {
		resp["unified_price"] = price.String()
		resp["unified_price_eth"] = formatUnits(price)
		resp["total_supply"] = totalSupply.String()
	}
	if record, err := h.migrations.Get(c.Request.Context(), launchID); err == nil {
		resp["migration_status"] = record.Status
	} else {
		resp["migration_status"] = models.MigrationStatusActive
	}

	c.JSON(http.StatusOK, resp)
}

// GetCurveStatesHandler handles GET /api/v1/launches/:launchId/curve.
func (h *LaunchHandler) GetCurveStatesHandler(c *gin.Context) {
	launchID := c.Param("launchId")

	states, err := h.curves.ListByLaunch(c.Request.Context(), launchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if len(states) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "launch not found"})
		return
	}

	type curveView struct {
		*models.CurveState
		Price    string  `json:"price"`
		Progress float64 `json:"progress"`
	}

	views := make([]curveView, 0, len(states))
	for _, st := range states {
		view := curveView{CurveState: st}
		if snap, err := st.Snapshot(); err == nil {
			if price, err := curve.CurrentPrice(snap); err == nil {
				view.Price = price.String()
			}
			view.Progress = curve.Progress(snap)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": views})
}

// GetDeploymentsHandler handles GET /api/v1/launches/:launchId/deployments.
func (h *LaunchHandler) GetDeploymentsHandler(c *gin.Context) {
	launchID := c.Param("launchId")

	records, err := h.deployments.ListByLaunch(c.Request.Context(), launchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": records})
}

// GetMigrationHandler handles GET /api/v1/launches/:launchId/migration.
func (h *LaunchHandler) GetMigrationHandler(c *gin.Context) {
	launchID := c.Param("launchId")

	record, err := h.migrations.Get(c.Request.Context(), launchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "launch not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": record})
}

// GetTradesHandler handles GET /api/v1/launches/:launchId/trades?page=&limit=.
func (h *LaunchHandler) GetTradesHandler(c *gin.Context) {
	launchID := c.Param("launchId")
	page, limit := paginationParams(c)

	trades, total, err := h.trades.FindByLaunch(c.Request.Context(), launchID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    trades,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

func paginationParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
