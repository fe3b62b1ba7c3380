package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/cario/internal/models"
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WSSession represents one connected client
type WSSession struct {
	conn Conn
	mu   sync.Mutex
}

// Send writes one JSON message. Writes from the hub and the owner are serialized.
func (s *WSSession) Send(v interface{}, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return s.conn.WriteJSON(v)
}

// Hub pushes session events to every websocket registered for that session.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]map[*WSSession]struct{}
	writeTimeout time.Duration
	logger       *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{sessions: make(map[string]map[*WSSession]struct{}), writeTimeout: 5 * time.Second, logger: logger}
}

// Add registers conn for sessionID. It returns the session to write through
// and a func that unregisters and closes it.
func (h *Hub) Add(sessionID string, conn Conn) (*WSSession, func()) {
	s := &WSSession{conn: conn}
	h.mu.Lock()
	set, ok := h.sessions[sessionID]
	if !ok {
		set = make(map[*WSSession]struct{})
		h.sessions[sessionID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s, func() {
		once.Do(func() {
			h.remove(sessionID, s)
			_ = conn.Close()
		})
	}
}

func (h *Hub) remove(sessionID string, s *WSSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[sessionID]
	delete(set, s)
	if len(set) == 0 {
		delete(h.sessions, sessionID)
	}
}

func (h *Hub) Connections(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Publish implements events.Sink. A session without listeners is not an error.
func (h *Hub) Publish(_ context.Context, ev models.Event) error {
	h.mu.RLock()
	targets := make([]*WSSession, 0, len(h.sessions[ev.SessionID]))
	for s := range h.sessions[ev.SessionID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.Send(ev, h.writeTimeout); err != nil {
			h.logger.Warn("ws send error", "session_id", ev.SessionID, "error", err)
			h.remove(ev.SessionID, s)
			_ = s.conn.Close()
		}
	}
	return nil
}

