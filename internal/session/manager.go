package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/cario/internal/auth"
	"github.com/example/cario/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	c       *Controller
	expires time.Time
}

// Manager owns the live controllers, one per logged-in user. A session lives
// as long as its token; expired sessions are logged out by a background reaper.
type Manager struct {
	opts   Options
	tokens *auth.Tokens

	mu       sync.RWMutex
	sessions map[string]entry

	done      chan struct{}
	closeOnce sync.Once
}

func NewManager(tokens *auth.Tokens, opts Options) *Manager {
	m := &Manager{
		opts:     opts.withDefaults(),
		tokens:   tokens,
		sessions: make(map[string]entry),
		done:     make(chan struct{}),
	}
	go m.reapLoop(reapInterval(tokens.TTL()))
	return m
}

func reapInterval(ttl time.Duration) time.Duration {
	d := ttl / 4
	if d < time.Second {
		d = time.Second
	}
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

// Login runs the simulated login on a fresh controller and registers it
// under a new session id. The returned token addresses that session.
func (m *Manager) Login(ctx context.Context, form LoginForm) (models.Snapshot, string, error) {
	id := uuid.NewString()
	c := NewController(id, m.opts)
	if err := c.Login(ctx, form); err != nil {
		return models.Snapshot{}, "", err
	}
	token, err := m.tokens.Issue(id, form.Role)
	if err != nil {
		c.Logout(context.Background())
		return models.Snapshot{}, "", err
	}
	m.mu.Lock()
	m.sessions[id] = entry{c: c, expires: m.opts.Now().Add(m.tokens.TTL())}
	m.mu.Unlock()
	return c.Snapshot(), token, nil
}

// Resolve maps a session token to its live controller. A session found past
// its expiry is logged out on the spot.
func (m *Manager) Resolve(token string) (*Controller, error) {
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	e, ok := m.sessions[claims.SessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !m.opts.Now().Before(e.expires) {
		_ = m.Logout(context.Background(), claims.SessionID)
		return nil, auth.ErrExpiredToken
	}
	return e.c, nil
}

func (m *Manager) Get(id string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	return e.c, ok
}

// Logout resets the session and destroys it.
func (m *Manager) Logout(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.c.Logout(ctx)
	return nil
}

// Reap logs out every session past its expiry and reports how many went.
func (m *Manager) Reap(ctx context.Context) int {
	now := m.opts.Now()
	var expired []*Controller
	m.mu.Lock()
	for id, e := range m.sessions {
		if !now.Before(e.expires) {
			expired = append(expired, e.c)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, c := range expired {
		c.Logout(ctx)
	}
	if len(expired) > 0 {
		m.opts.Logger.Info("expired sessions reaped", "count", len(expired))
	}
	return len(expired)
}

func (m *Manager) reapLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-t.C:
			m.Reap(context.Background())
		}
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops the reaper and every outstanding timer. Sessions are dropped
// without logout events.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		e.c.Stop()
		delete(m.sessions, id)
	}
}
