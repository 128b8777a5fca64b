package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"parkwise/backend/services/parking-service/internal/service"
)

// Hub fans gate events out to websocket subscribers.
type Hub struct {
	mu           sync.RWMutex
	subscribers  map[string]*subscriber
	writeTimeout time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader
	logger       *zap.Logger
}

// NewHub builds the gate feed hub.
func NewHub(writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		subscribers:  make(map[string]*subscriber),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /ws/gate endpoint.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("gate feed upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	sub := newSubscriber(id, conn, h.writeTimeout, h.pingInterval, h.logger, h.remove)
	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()

	go sub.start()
	h.logger.Info("gate feed subscriber connected", zap.String("subscriber_id", id))
}

// Publish implements service.Publisher.
func (h *Hub) Publish(e service.Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Warn("failed to encode gate event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		sub.enqueue(msg)
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.subscribers, id)
	h.mu.Unlock()
	h.logger.Info("gate feed subscriber disconnected", zap.String("subscriber_id", id))
}
