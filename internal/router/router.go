package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"launchpad-backend/internal/config"
	"launchpad-backend/internal/handlers"
	"launchpad-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// corsMiddleware applies browser origin policy.
// Priority: Environment Variable > YAML Config > Default (*)
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		var allowedOrigins []string
		allowCredentials := true
		maxAge := 3600

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		} else {
			allowedOrigins = []string{"*"}
		}

		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if strings.TrimSpace(allowedOrigin) == origin {
					allowed = true
					break
				}
			}
			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
			} else {
				logrus.WithFields(logrus.Fields{
					"request_origin":  origin,
					"allowed_origins": allowedOrigins,
					"path":            c.Request.URL.Path,
					"method":          c.Request.Method,
				}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Handlers bundles everything the router wires up.
type Handlers struct {
	Launch    *handlers.LaunchHandler
	Quote     *handlers.QuoteHandler
	AdminAuth *handlers.AdminAuthHandler
	Admin     *handlers.AdminHandler
	WebSocket *handlers.WebSocketHandler
}

// SetupRouter builds the gin engine with all routes.
func SetupRouter(db *gorm.DB, h Handlers) *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware())

	logger := logrus.New()
	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	// ============ Health ============
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", handlers.HealthCheckHandler)
	r.GET("/ready", handlers.ReadyCheckHandler(db))

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ WebSocket price feed ============
	r.GET("/ws/prices", func(c *gin.Context) {
		h.WebSocket.HandleWebSocket(c.Writer, c.Request)
	})

	// ============ API Routes ============
	api := r.Group("/api/v1")
	{
		api.GET("/launches", h.Launch.ListLaunchesHandler)
		api.GET("/launches/:launchId", h.Launch.GetLaunchHandler)
		api.GET("/launches/:launchId/curve", h.Launch.GetCurveStatesHandler)
		api.GET("/launches/:launchId/deployments", h.Launch.GetDeploymentsHandler)
		api.GET("/launches/:launchId/migration", h.Launch.GetMigrationHandler)
		api.GET("/launches/:launchId/trades", h.Launch.GetTradesHandler)

		api.POST("/quote/buy", h.Quote.QuoteBuyHandler)
		api.POST("/quote/sell", h.Quote.QuoteSellHandler)

		admin := api.Group("/admin")
		{
			admin.POST("/login", h.AdminAuth.AdminLoginHandler)
			admin.POST("/totp/generate", h.AdminAuth.GenerateTOTPSecretHandler)

			protected := admin.Group("")
			protected.Use(adminAuth.RequireAdminAuth())
			{
				protected.GET("/callers", h.Admin.ListCallersHandler)
				protected.POST("/callers", h.Admin.SetCallerHandler)
				protected.GET("/dead-letters", h.Admin.ListDeadLettersHandler)
				protected.POST("/dead-letters/:id/redispatch", h.Admin.RedispatchDeadLetterHandler)
			}
		}
	}

	// ============ NoRoute handler for 404 ============
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message":    "Endpoint not found",
			"path":       c.Request.URL.Path,
			"suggestion": "Check /api/v1 endpoints for available APIs",
		})
	})

	return r
}
