package clients

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"launchpad-backend/internal/config"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/utils"

	"github.com/nats-io/nats.go"
)

// NATSClient is the EventSource: one JetStream subscription per event type,
// subjects of the form launchpad.<chain>.<contract>.<Event>. Delivery is
// at-least-once and cross-chain order is not guaranteed; downstream
// processing relies on the trade dedup table and the sequence gate.
type NATSClient struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
	subs       []*nats.Subscription
}

// NewNATSClient connects to the configured NATS server and ensures the
// launchpad stream exists.
func NewNATSClient(cfg config.NATSConfig) (*NATSClient, error) {
	connectTimeout := time.Duration(cfg.Timeout) * time.Second

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWait)*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ NATS disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{
		conn:       conn,
		js:         js,
		streamName: cfg.StreamName,
	}
	if err := client.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	metrics.NATSConnectionStatus.Set(1)
	return client, nil
}

func (c *NATSClient) ensureStream() error {
	_, err := c.js.StreamInfo(c.streamName)
	if err == nil {
		log.Printf("Stream %s already exists", c.streamName)
		return nil
	}

	_, err = c.js.AddStream(&nats.StreamConfig{
		Name: c.streamName,
		Subjects: []string{
			"launchpad.*.LaunchFactory.TokenCreated",
			"launchpad.*.BondingCurve.TokenPurchase",
			"launchpad.*.BondingCurve.TokenSale",
			"launchpad.*.BondingCurve.CurveMigrationTriggered",
		},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.streamName, err)
	}

	log.Printf("✅ Stream %s created", c.streamName)
	return nil
}

// SubscribeToTokenCreated subscribes to launch creation events on all chains.
func (c *NATSClient) SubscribeToTokenCreated(handler func(*TokenCreatedEvent)) error {
	return c.subscribe("launchpad.*.LaunchFactory.TokenCreated", "TokenCreated", func(msg *nats.Msg, chainID int64) error {
		var event TokenCreatedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return err
		}
		event.ChainID = chainID
		handler(&event)
		return nil
	})
}

// SubscribeToTokenPurchase subscribes to buy events on all chains.
func (c *NATSClient) SubscribeToTokenPurchase(handler func(*TokenPurchaseEvent)) error {
	return c.subscribe("launchpad.*.BondingCurve.TokenPurchase", "TokenPurchase", func(msg *nats.Msg, chainID int64) error {
		var event TokenPurchaseEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return err
		}
		event.ChainID = chainID
		handler(&event)
		return nil
	})
}

// SubscribeToTokenSale subscribes to sell events on all chains.
func (c *NATSClient) SubscribeToTokenSale(handler func(*TokenSaleEvent)) error {
	return c.subscribe("launchpad.*.BondingCurve.TokenSale", "TokenSale", func(msg *nats.Msg, chainID int64) error {
		var event TokenSaleEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return err
		}
		event.ChainID = chainID
		handler(&event)
		return nil
	})
}

// SubscribeToCurveMigrationTriggered subscribes to on-chain migration
// confirmations.
func (c *NATSClient) SubscribeToCurveMigrationTriggered(handler func(*CurveMigrationTriggeredEvent)) error {
	return c.subscribe("launchpad.*.BondingCurve.CurveMigrationTriggered", "CurveMigrationTriggered", func(msg *nats.Msg, chainID int64) error {
		var event CurveMigrationTriggeredEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return err
		}
		event.ChainID = chainID
		handler(&event)
		return nil
	})
}

func (c *NATSClient) subscribe(subject, eventType string, handle func(*nats.Msg, int64) error) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		metrics.EventsReceived.WithLabelValues(eventType).Inc()

		chainID, err := utils.ChainIDFromSubject(msg.Subject)
		if err != nil {
			log.Printf("❌ [NATS] cannot resolve chain from subject %s: %v", msg.Subject, err)
			metrics.EventsFailed.WithLabelValues(eventType, "bad_subject").Inc()
			return
		}

		if err := handle(msg, chainID); err != nil {
			log.Printf("❌ [NATS] failed to decode %s on %s: %v", eventType, msg.Subject, err)
			metrics.EventsFailed.WithLabelValues(eventType, "decode").Inc()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.subs = append(c.subs, sub)
	log.Printf("✅ Subscribed to %s", subject)
	return nil
}

// Close drains all subscriptions and closes the connection.
func (c *NATSClient) Close() {
	for _, sub := range c.subs {
		_ = sub.Drain()
	}
	c.conn.Close()
	metrics.NATSConnectionStatus.Set(0)
}
