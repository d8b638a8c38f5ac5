package httpapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 512
	sendBuffer     = 16
)

type alertMessage struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	ProductID   uint      `json:"product_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Kind        string    `json:"kind"`
	OldPrice    *string   `json:"old_price"`
	NewPrice    *string   `json:"new_price"`
	TargetPrice *string   `json:"target_price"`
	Currency    string    `json:"currency"`
	At          time.Time `json:"at"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts alert events to websocket subscribers. Subscribers that
// cannot keep up are disconnected.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		logger:      logger,
		subscribers: make(map[*subscriber]struct{}),
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(sub)
	h.logger.Info("ws subscriber connected", zap.String("remote", c.ClientIP()))

	go h.writeLoop(sub)
	h.readLoop(sub)
}

// Dispatch queues the event on every subscriber. It never blocks on a slow
// connection.
func (h *Hub) Dispatch(_ context.Context, event domain.AlertEvent) domain.DeliveryOutcome {
	outcome := domain.DeliveryOutcome{Channel: "websocket", Kind: event.Kind}
	data, err := json.Marshal(alertMessage{
		Type:        "alert",
		ID:          event.ID,
		ProductID:   event.ProductID,
		Title:       event.Title,
		URL:         event.URL,
		Kind:        string(event.Kind),
		OldPrice:    priceString(event.OldPrice, event.Currency),
		NewPrice:    priceString(event.NewPrice, event.Currency),
		TargetPrice: priceString(event.TargetPrice, event.Currency),
		Currency:    event.Currency,
		At:          event.At,
	})
	if err != nil {
		outcome.Reason = err.Error()
		return outcome
	}

	h.mu.Lock()
	sent := 0
	for sub := range h.subscribers {
		select {
		case sub.send <- data:
			sent++
		default:
			h.logger.Warn("ws subscriber too slow, dropping")
			h.removeLocked(sub)
		}
	}
	h.mu.Unlock()

	if sent == 0 {
		outcome.Reason = "no websocket subscribers"
		return outcome
	}
	outcome.Delivered = true
	return outcome
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	h.removeLocked(sub)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.send)
}

// readLoop only watches for the peer going away; inbound messages are
// discarded.
func (h *Hub) readLoop(sub *subscriber) {
	defer func() {
		h.unregister(sub)
		_ = sub.conn.Close()
		h.logger.Info("ws subscriber disconnected")
	}()

	sub.conn.SetReadLimit(maxInboundSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("ws write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
