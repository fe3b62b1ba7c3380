package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/cario/internal/models"
)

// Recorder is an event sink that mirrors booking lifecycle events into a BookingStore.
// Later lifecycle events insert the booking when the store has never seen it.
type Recorder struct {
	Store BookingStore
}

func (r *Recorder) Publish(ctx context.Context, ev models.Event) error {
	if ev.Booking == nil {
		return nil
	}
	var err error
	switch ev.Type {
	case models.EventRideSearching:
		err = r.Store.SaveBooking(ctx, ev.Booking)
	case models.EventRideBooked, models.EventRideCanceled, models.EventLogout:
		err = r.Store.UpdateBooking(ctx, ev.Booking)
		if errors.Is(err, ErrBookingNotFound) {
			err = r.Store.SaveBooking(ctx, ev.Booking)
		}
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("record booking %s (%s): %w", ev.Booking.ID, ev.Type, err)
	}
	return nil
}
