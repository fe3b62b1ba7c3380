package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/cario/internal/models"
)

var ErrBookingNotFound = errors.New("booking not found")

// BookingStore keeps the booking history. It is a record, not the source of
// truth for live sessions.
type BookingStore interface {
	SaveBooking(ctx context.Context, b *models.Booking) error
	UpdateBooking(ctx context.Context, b *models.Booking) error
	ListBySession(ctx context.Context, sessionID string) ([]models.Booking, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[string]models.Booking)}
}

func (m *MemoryStore) SaveBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (m *MemoryStore) UpdateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return ErrBookingNotFound
	}
	m.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (m *MemoryStore) ListBySession(_ context.Context, sessionID string) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0)
	for _, b := range m.bookings {
		if b.SessionID == sessionID {
			out = append(out, cloneBooking(&b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Get(id string) (models.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	return b, ok
}

func cloneBooking(b *models.Booking) models.Booking {
	out := *b
	if b.Driver != nil {
		d := *b.Driver
		out.Driver = &d
	}
	return out
}
