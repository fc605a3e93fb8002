package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"launchpad-backend/internal/metrics"

	"github.com/gorilla/websocket"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
	feedSendBuffer = 64
)

// PriceFeedService is the WebSocket price feed hub. It implements
// PriceChangeListener: every unified price update is broadcast to all
// connected clients as a JSON frame. A client whose send buffer is full
// misses that update; the feed favors freshness over completeness.
type PriceFeedService struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewPriceFeedService creates a new PriceFeedService instance.
func NewPriceFeedService() *PriceFeedService {
	return &PriceFeedService{clients: make(map[*feedClient]struct{})}
}

// OnPriceChange broadcasts one price update to every connected client.
func (s *PriceFeedService) OnPriceChange(update PriceUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("❌ [PriceFeed] cannot marshal update for %s: %v", update.LaunchID, err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer, drop this frame.
		}
	}
}

// ClientCount returns the number of connected feed clients.
func (s *PriceFeedService) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleConnection serves one upgraded WebSocket connection until the peer
// disconnects. Blocks; call from the HTTP handler goroutine.
func (s *PriceFeedService) HandleConnection(conn *websocket.Conn) {
	client := &feedClient{
		conn: conn,
		send: make(chan []byte, feedSendBuffer),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()
	metrics.WSConnections.Inc()

	go s.writePump(client)
	s.readPump(client)
}

// readPump discards inbound frames; the feed is one-way. Returning means the
// peer went away.
func (s *PriceFeedService) readPump(client *feedClient) {
	defer s.drop(client)
	client.conn.SetReadLimit(512)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *PriceFeedService) writePump(client *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		s.drop(client)
	}()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *PriceFeedService) drop(client *feedClient) {
	client.once.Do(func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		close(client.send)
		_ = client.conn.Close()
		metrics.WSConnections.Dec()
	})
}
