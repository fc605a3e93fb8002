package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/config"
	"launchpad-backend/internal/db"
	"launchpad-backend/internal/events"
	"launchpad-backend/internal/handlers"
	"launchpad-backend/internal/repository"
	"launchpad-backend/internal/router"
	"launchpad-backend/internal/services"
	"launchpad-backend/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: CONFIG_PATH or ./config.yaml)")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.AppConfig

	db.InitDB()

	// Register configured networks and build one relayer client per chain.
	chainClients := make(map[int64]clients.ChainClient, len(cfg.Networks))
	for name, network := range cfg.Networks {
		utils.GlobalChainRegistry.Register(strings.ToLower(name), network.ChainID)
		chainClients[network.ChainID] = clients.NewRelayerClient(network)
		log.Printf("✅ Network %s registered (chain %d, relayer %s)", name, network.ChainID, network.RelayerEndpoint)
	}

	launchRepo := repository.NewLaunchRepository(db.DB)
	curveRepo := repository.NewCurveStateRepository(db.DB)
	deploymentRepo := repository.NewDeploymentRepository(db.DB)
	cursorRepo := repository.NewSyncCursorRepository(db.DB)
	migrationRepo := repository.NewMigrationRepository(db.DB)
	tradeRepo := repository.NewTradeEventRepository(db.DB)
	callerRepo := repository.NewAuthorizedCallerRepository(db.DB)
	deadLetterRepo := repository.NewDeadLetterRepository(db.DB)

	priceSync := services.NewPriceSyncService(curveRepo, cursorRepo, deadLetterRepo, chainClients, cfg.Retry)
	migration := services.NewMigrationService(migrationRepo, deadLetterRepo, chainClients, cfg.Retry)
	coordinator := services.NewCoordinator(
		launchRepo, curveRepo, deploymentRepo, tradeRepo, callerRepo, deadLetterRepo,
		chainClients, priceSync, migration, cfg.Retry,
	)

	priceFeed := services.NewPriceFeedService()
	priceSync.AddListener(priceFeed)

	retryService := services.NewFanoutRetryService(
		deadLetterRepo, deploymentRepo, curveRepo, chainClients, priceSync, migration, cfg.Retry,
	)
	retryService.Start()

	if err := events.InitNATSServices(coordinator); err != nil {
		log.Fatalf("Failed to initialize NATS services: %v", err)
	}

	engine := router.SetupRouter(db.DB, router.Handlers{
		Launch:    handlers.NewLaunchHandler(launchRepo, curveRepo, deploymentRepo, migrationRepo, tradeRepo, priceSync),
		Quote:     handlers.NewQuoteHandler(curveRepo),
		AdminAuth: handlers.NewAdminAuthHandler(cfg.Admin),
		Admin:     handlers.NewAdminHandler(callerRepo, deadLetterRepo, retryService),
		WebSocket: handlers.NewWebSocketHandler(priceFeed),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		log.Printf("🚀 Launchpad coordinator listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🔄 Shutting down...")

	retryService.Stop()
	events.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ HTTP server shutdown: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
