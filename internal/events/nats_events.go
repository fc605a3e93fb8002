package events

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/config"
	"launchpad-backend/internal/services"
)

var (
	natsClient  *clients.NATSClient
	coordinator *services.Coordinator
	natsOnce    sync.Once
)

// handlerTimeout bounds one event's full pipeline including fan-out legs.
const handlerTimeout = 60 * time.Second

// InitNATSServices connects to NATS and subscribes the coordinator to all
// launchpad contract events. Safe to call more than once.
func InitNATSServices(coord *services.Coordinator) error {
	var initErr error
	natsOnce.Do(func() {
		if config.AppConfig == nil || config.AppConfig.NATS.URL == "" {
			log.Println("NATS not configured, skipping initialization")
			return
		}

		client, err := clients.NewNATSClient(config.AppConfig.NATS)
		if err != nil {
			initErr = fmt.Errorf("failed to create NATS client: %w", err)
			return
		}

		natsClient = client
		coordinator = coord
		log.Printf("✅ NATS client initialized successfully")

		if err := subscribeToEvents(); err != nil {
			initErr = fmt.Errorf("failed to subscribe to events: %w", err)
			return
		}

		log.Printf("✅ NATS event subscriptions initialized")
	})

	return initErr
}

func subscribeToEvents() error {
	if err := natsClient.SubscribeToTokenCreated(handleTokenCreatedEvent); err != nil {
		return fmt.Errorf("failed to subscribe to TokenCreated: %w", err)
	}
	if err := natsClient.SubscribeToTokenPurchase(handleTokenPurchaseEvent); err != nil {
		return fmt.Errorf("failed to subscribe to TokenPurchase: %w", err)
	}
	if err := natsClient.SubscribeToTokenSale(handleTokenSaleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to TokenSale: %w", err)
	}
	if err := natsClient.SubscribeToCurveMigrationTriggered(handleCurveMigrationTriggeredEvent); err != nil {
		return fmt.Errorf("failed to subscribe to CurveMigrationTriggered: %w", err)
	}
	return nil
}

func handleTokenCreatedEvent(event *clients.TokenCreatedEvent) {
	log.Printf("🎉 [NATS] TokenCreated: launch=%s, symbol=%s, chain=%d, targets=%v",
		event.LaunchID, event.Symbol, event.ChainID, event.TargetChainIDs)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := coordinator.HandleTokenCreated(ctx, event); err != nil {
		log.Printf("❌ [NATS] TokenCreated processing failed for %s: %v", event.LaunchID, err)
		return
	}
	log.Printf("📈 TokenCreated %s processed", event.LaunchID)
}

func handleTokenPurchaseEvent(event *clients.TokenPurchaseEvent) {
	log.Printf("🎉💰 [NATS] TokenPurchase: launch=%s, chain=%d, ethIn=%s, seq=%d",
		event.LaunchID, event.ChainID, event.EthIn, event.Seq)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := coordinator.HandleTokenPurchase(ctx, event); err != nil {
		log.Printf("❌ [NATS] TokenPurchase processing failed for %s (tx %s): %v",
			event.LaunchID, event.TxHash, err)
	}
}

func handleTokenSaleEvent(event *clients.TokenSaleEvent) {
	log.Printf("🎉💸 [NATS] TokenSale: launch=%s, chain=%d, tokensIn=%s, seq=%d",
		event.LaunchID, event.ChainID, event.TokensIn, event.Seq)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := coordinator.HandleTokenSale(ctx, event); err != nil {
		log.Printf("❌ [NATS] TokenSale processing failed for %s (tx %s): %v",
			event.LaunchID, event.TxHash, err)
	}
}

func handleCurveMigrationTriggeredEvent(event *clients.CurveMigrationTriggeredEvent) {
	log.Printf("🔄 [NATS] CurveMigrationTriggered: launch=%s, chain=%d, finalPrice=%s",
		event.LaunchID, event.ChainID, event.FinalPrice)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := coordinator.HandleCurveMigrationTriggered(ctx, event); err != nil {
		log.Printf("❌ [NATS] CurveMigrationTriggered processing failed for %s: %v",
			event.LaunchID, err)
	}
}

// GetNATSClient returns the shared NATS client, nil before initialization.
func GetNATSClient() *clients.NATSClient {
	return natsClient
}

// Shutdown drains subscriptions and closes the NATS connection.
func Shutdown() {
	if natsClient != nil {
		natsClient.Close()
	}
}
