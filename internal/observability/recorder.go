package observability

import (
	"context"

	"github.com/example/cario/internal/models"
)

// Recorder is an event sink that turns session events into metrics.
type Recorder struct{}

func (Recorder) Publish(_ context.Context, ev models.Event) error {
	EventsTotal.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case models.EventLogin:
		SessionsActive.Inc()
	case models.EventLogout:
		SessionsActive.Dec()
	case models.EventRideSearching:
		if ev.Booking != nil {
			BookingsTotal.WithLabelValues(ev.Booking.Provider, "requested").Inc()
			BookingFare.WithLabelValues(ev.Booking.Provider).Observe(float64(ev.Booking.Fare))
		}
	case models.EventRideBooked:
		if ev.Booking != nil {
			BookingsTotal.WithLabelValues(ev.Booking.Provider, "booked").Inc()
		}
	case models.EventRideCanceled:
		if ev.Booking != nil {
			BookingsTotal.WithLabelValues(ev.Booking.Provider, "canceled").Inc()
		}
	case models.EventDriverOnline:
		DriversOnline.Inc()
	case models.EventDriverOffline:
		DriversOnline.Dec()
	case models.EventDriverAccepted:
		DriverResponses.WithLabelValues(string(models.DecisionAccept)).Inc()
	case models.EventDriverIgnored:
		DriverResponses.WithLabelValues(string(models.DecisionIgnore)).Inc()
	}
	return nil
}
