package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream serves the live event tail (spec §9 "Dependency graph /
// websocket tail"): every committed domain event is broadcast to
// connected websocket clients as it is published. Grounded on the
// teacher's cmd/server/handlers/silence_ws.go WebSocketHub, generalized
// from a single silence-event type to the full domain event envelope.
type Stream struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte

	logger  *slog.Logger
	metrics *streamMetrics
}

func NewStream(logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  logger.With("component", "event_stream"),
		metrics: newStreamMetrics(),
	}
}

// ServeHTTP upgrades the request and keeps the connection open until the
// client disconnects or the request context is cancelled.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	out := make(chan []byte, 256)
	s.mu.Lock()
	s.clients[conn] = out
	s.mu.Unlock()
	s.metrics.connectionsActive.Set(float64(s.clientCount()))

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		s.metrics.connectionsActive.Set(float64(s.clientCount()))
		conn.Close()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-out:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (s *Stream) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast fans the envelope out to every connected subscriber. Slow
// subscribers whose buffered channel is full are dropped rather than
// allowed to block the publish path.
func (s *Stream) Broadcast(envelope any) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error("failed to marshal stream envelope", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn, ch := range s.clients {
		select {
		case ch <- payload:
		default:
			s.metrics.droppedSlow.Inc()
			s.logger.Warn("dropping slow event-stream subscriber", "remote_addr", conn.RemoteAddr().String())
		}
	}
}

// Run subscribes to the subjects matching pattern on bus and rebroadcasts messages to
// websocket clients until ctx is cancelled.
func (s *Stream) Run(ctx context.Context, bus Bus, pattern string) error {
	msgs, err := bus.Subscribe(ctx, pattern)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			s.mu.RLock()
			for conn, ch := range s.clients {
				select {
				case ch <- msg.Payload:
				default:
					s.metrics.droppedSlow.Inc()
					s.logger.Warn("dropping slow event-stream subscriber", "remote_addr", conn.RemoteAddr().String())
				}
			}
			s.mu.RUnlock()
		}
	}
}
