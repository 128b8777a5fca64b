package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// subscriber is one gate feed client. Clients only listen; inbound frames are discarded.
type subscriber struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	once         sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.Logger
	onClose      func(id string)
}

func newSubscriber(id string, conn *websocket.Conn, writeTimeout, pingInterval time.Duration, logger *zap.Logger, onClose func(string)) *subscriber {
	return &subscriber{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, 32),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		logger:       logger,
		onClose:      onClose,
	}
}

func (s *subscriber) start() {
	go s.writePump()
	s.readPump()
}

func (s *subscriber) readPump() {
	defer s.close()
	pongWait := 2 * s.pingInterval
	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info("gate feed read closed", zap.String("subscriber_id", s.id), zap.Error(err))
			}
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}

// enqueue never blocks; a slow client loses messages rather than stalling the hub.
func (s *subscriber) enqueue(msg []byte) {
	select {
	case <-s.done:
	case s.send <- msg:
	default:
		s.logger.Warn("dropping gate event, buffer full", zap.String("subscriber_id", s.id))
	}
}

func (s *subscriber) write(messageType int, data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
		if s.onClose != nil {
			s.onClose(s.id)
		}
	})
}
