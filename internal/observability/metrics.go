package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "cario", Name: "sessions_active", Help: "Number of logged-in sessions"})
	DriversOnline   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "cario", Name: "drivers_online", Help: "Number of online drivers"})
	BookingsTotal   = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "cario", Name: "bookings_total", Help: "Bookings by provider and outcome"}, []string{"provider", "outcome"})
	BookingFare     = promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: "cario", Name: "booking_fare_rupees", Help: "Quoted fare of confirmed bookings", Buckets: []float64{50, 75, 100, 125, 150, 175, 200}}, []string{"provider"})
	EventsTotal     = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "cario", Name: "events_total", Help: "Session events emitted"}, []string{"type"})
	DriverResponses = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "cario", Name: "driver_responses_total", Help: "Driver responses to incoming requests"}, []string{"decision"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "cario", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cario",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
