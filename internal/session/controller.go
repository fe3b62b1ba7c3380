package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/cario/internal/events"
	"github.com/example/cario/internal/models"
	"github.com/example/cario/internal/pricing"
)

var (
	ErrInvalidForm     = errors.New("email, password and a rider or driver role are required")
	ErrInvalidDecision = errors.New("decision must be accept or ignore")
)

// Delays are the simulated backend latencies.
type Delays struct {
	Login    time.Duration
	Search   time.Duration
	Incoming time.Duration
}

func DefaultDelays() Delays {
	return Delays{Login: time.Second, Search: 3 * time.Second, Incoming: 2 * time.Second}
}

type Options struct {
	Catalog   *pricing.Catalog
	Scheduler Scheduler
	Sink      events.Sink
	Delays    Delays
	Logger    *slog.Logger
	Now       func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Catalog == nil {
		o.Catalog = pricing.DefaultCatalog()
	}
	if o.Scheduler == nil {
		o.Scheduler = RealScheduler
	}
	if o.Sink == nil {
		o.Sink = events.Discard
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type LoginForm struct {
	Role     models.Role `json:"role" validate:"required,oneof=rider driver"`
	Email    string      `json:"email" validate:"required"`
	Password string      `json:"password" validate:"required"`
}

func (f LoginForm) valid() bool {
	return f.Role.Valid() && strings.TrimSpace(f.Email) != "" && strings.TrimSpace(f.Password) != ""
}

// Mock data handed out by the simulated backend.
var (
	mockDriver = models.AssignedDriver{Name: "Ramesh K.", Car: "White Swift Dzire", Plate: "HR 26 DQ 9981", Rating: 4.9}
	mockRider  = "Rahul Sharma"
)

const (
	mockUserName     = "Demo User"
	mockIncomingFare = 240
	mockIncomingKm   = 1.2
)

// Controller holds the state of one user session: role, ride status, ride
// parameters and driver availability. Disallowed transitions are no-ops and
// report false.
//
// Each delayed flow carries a generation number. Logout and going offline
// bump it, so a timer that fires late finds a stale generation and does nothing.
type Controller struct {
	id   string
	opts Options

	mu        sync.Mutex
	session   *models.Session
	status    models.RideStatus
	request   models.RideRequest
	booking   *models.Booking
	online    bool
	incoming  *models.IncomingRequest
	searchT   Timer
	incomingT Timer
	searchGen uint64
	availGen  uint64
	seq       uint64

	// pubMu is taken before mu is released so events leave in the order
	// the transitions were made.
	pubMu sync.Mutex
}

func NewController(id string, opts Options) *Controller {
	return &Controller{id: id, opts: opts.withDefaults(), status: models.StatusIdle, request: defaultRequest()}
}

func defaultRequest() models.RideRequest {
	return models.RideRequest{Service: pricing.DefaultProvider, Vehicle: pricing.DefaultVehicle}
}

func (c *Controller) ID() string { return c.id }

// Login accepts any non-empty form after the simulated login delay.
func (c *Controller) Login(ctx context.Context, form LoginForm) error {
	if !form.valid() {
		return ErrInvalidForm
	}
	if d := c.opts.Delays.Login; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	c.mu.Lock()
	c.resetLocked()
	c.session = &models.Session{
		ID:            c.id,
		Role:          form.Role,
		Authenticated: true,
		Name:          mockUserName,
		Email:         strings.TrimSpace(form.Email),
		CreatedAt:     c.opts.Now(),
	}
	ev := c.eventLocked(models.EventLogin)
	c.unlockAndPublish(ctx, ev)
	return nil
}

// Logout clears the session and returns the ride to IDLE whatever it was doing.
func (c *Controller) Logout(ctx context.Context) bool {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return false
	}
	var evs []models.Event
	if c.online {
		c.online = false
		c.incoming = nil
		evs = append(evs, c.eventLocked(models.EventDriverOffline))
	}
	ev := c.eventLocked(models.EventLogout)
	if ev.Booking != nil {
		// an unfinished booking is abandoned with the session
		ev.Booking.Status = models.BookingCanceled
		ev.Booking.UpdatedAt = ev.At
	}
	c.resetLocked()
	c.session = nil
	ev.Status = c.status
	evs = append(evs, ev)
	c.unlockAndPublish(ctx, evs...)
	return true
}

// Stop cancels outstanding timers without emitting events.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopTimersLocked()
	c.mu.Unlock()
}

// UpdateRideRequest merges the non-nil fields of p into the ride request.
// Unknown provider or vehicle ids are rejected and nothing is merged.
func (c *Controller) UpdateRideRequest(ctx context.Context, p models.RideRequestPatch) (bool, error) {
	if p.Service != nil {
		if _, err := c.opts.Catalog.Provider(*p.Service); err != nil {
			return false, err
		}
	}
	if p.Vehicle != nil {
		if _, err := c.opts.Catalog.Vehicle(*p.Vehicle); err != nil {
			return false, err
		}
	}

	c.mu.Lock()
	if !c.hasRoleLocked(models.RoleRider) {
		c.mu.Unlock()
		return false, nil
	}
	if p.Pickup != nil {
		c.request.Pickup = *p.Pickup
	}
	if p.Dropoff != nil {
		c.request.Dropoff = *p.Dropoff
	}
	if p.Service != nil {
		c.request.Service = *p.Service
	}
	if p.Vehicle != nil {
		c.request.Vehicle = *p.Vehicle
	}
	ev := c.eventLocked(models.EventRideUpdated)
	c.unlockAndPublish(ctx, ev)
	return true, nil
}

// ConfirmBooking moves IDLE to SEARCHING and schedules the move to BOOKED.
func (c *Controller) ConfirmBooking(ctx context.Context) bool {
	c.mu.Lock()
	if !c.hasRoleLocked(models.RoleRider) || c.status != models.StatusIdle {
		c.mu.Unlock()
		return false
	}
	quote, err := c.opts.Catalog.Quote(c.request.Service, c.request.Vehicle)
	if err != nil {
		// request fields are validated on update, so this only trips on a catalog swap
		c.mu.Unlock()
		c.opts.Logger.Error("quote failed", "session_id", c.id, "error", err)
		return false
	}
	provider, _ := c.opts.Catalog.Provider(c.request.Service)
	now := c.opts.Now()
	c.booking = &models.Booking{
		ID:          uuid.NewString(),
		SessionID:   c.id,
		Request:     c.request,
		Provider:    provider.Name,
		VehicleName: quote.Name,
		Fare:        quote.Fare,
		ETAMinutes:  quote.ETAMinutes,
		Status:      models.BookingSearching,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.status = models.StatusSearching
	c.searchGen++
	gen := c.searchGen
	c.searchT = c.opts.Scheduler.AfterFunc(c.opts.Delays.Search, func() { c.completeSearch(gen) })
	ev := c.eventLocked(models.EventRideSearching)
	c.unlockAndPublish(ctx, ev)
	return true
}

func (c *Controller) completeSearch(gen uint64) {
	c.mu.Lock()
	if gen != c.searchGen || c.status != models.StatusSearching || c.booking == nil {
		c.mu.Unlock()
		return
	}
	c.searchT = nil
	c.status = models.StatusBooked
	d := mockDriver
	c.booking.Driver = &d
	c.booking.Status = models.BookingBooked
	c.booking.UpdatedAt = c.opts.Now()
	ev := c.eventLocked(models.EventRideBooked)
	c.unlockAndPublish(context.Background(), ev)
}

// CancelRide is only effective from BOOKED.
func (c *Controller) CancelRide(ctx context.Context) bool {
	c.mu.Lock()
	if c.session == nil || c.status != models.StatusBooked {
		c.mu.Unlock()
		return false
	}
	c.status = models.StatusIdle
	if c.booking != nil {
		c.booking.Status = models.BookingCanceled
		c.booking.UpdatedAt = c.opts.Now()
	}
	ev := c.eventLocked(models.EventRideCanceled)
	c.booking = nil
	c.unlockAndPublish(ctx, ev)
	return true
}

// SetDriverOnline toggles availability. Going online schedules one mock
// incoming request; going offline cancels it and clears any shown request.
func (c *Controller) SetDriverOnline(ctx context.Context, online bool) bool {
	c.mu.Lock()
	if !c.hasRoleLocked(models.RoleDriver) || c.online == online {
		c.mu.Unlock()
		return false
	}
	c.online = online
	c.availGen++
	var ev models.Event
	if online {
		gen := c.availGen
		c.incomingT = c.opts.Scheduler.AfterFunc(c.opts.Delays.Incoming, func() { c.deliverIncoming(gen) })
		ev = c.eventLocked(models.EventDriverOnline)
	} else {
		if c.incomingT != nil {
			c.incomingT.Stop()
			c.incomingT = nil
		}
		c.incoming = nil
		ev = c.eventLocked(models.EventDriverOffline)
	}
	c.unlockAndPublish(ctx, ev)
	return true
}

func (c *Controller) deliverIncoming(gen uint64) {
	c.mu.Lock()
	if gen != c.availGen || !c.online || c.incoming != nil {
		c.mu.Unlock()
		return
	}
	c.incomingT = nil
	c.incoming = &models.IncomingRequest{
		ID:         uuid.NewString(),
		RiderName:  mockRider,
		Fare:       mockIncomingFare,
		DistanceKm: mockIncomingKm,
		ReceivedAt: c.opts.Now(),
	}
	ev := c.eventLocked(models.EventDriverRequest)
	c.unlockAndPublish(context.Background(), ev)
}

// RespondToRequest clears the pending incoming request.
func (c *Controller) RespondToRequest(ctx context.Context, d models.Decision) (bool, error) {
	var typ models.EventType
	switch d {
	case models.DecisionAccept:
		typ = models.EventDriverAccepted
	case models.DecisionIgnore:
		typ = models.EventDriverIgnored
	default:
		return false, ErrInvalidDecision
	}

	c.mu.Lock()
	if c.session == nil || c.incoming == nil {
		c.mu.Unlock()
		return false, nil
	}
	ev := c.eventLocked(typ)
	c.incoming = nil
	c.unlockAndPublish(ctx, ev)
	return true, nil
}

// Snapshot returns a copy of the current state with quotes for the selected provider.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := models.Snapshot{Status: c.status, Request: c.request, Online: c.online}
	if c.session != nil {
		sess := *c.session
		s.Session = &sess
	}
	s.Booking = copyBooking(c.booking)
	if c.incoming != nil {
		in := *c.incoming
		s.Incoming = &in
	}
	if qs, err := c.opts.Catalog.Quotes(c.request.Service); err == nil {
		s.Quotes = qs
	}
	return s
}

func (c *Controller) Status() models.RideStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) hasRoleLocked(role models.Role) bool {
	return c.session != nil && c.session.Role == role
}

func (c *Controller) resetLocked() {
	c.stopTimersLocked()
	c.searchGen++
	c.availGen++
	c.status = models.StatusIdle
	c.request = defaultRequest()
	c.booking = nil
	c.online = false
	c.incoming = nil
}

func (c *Controller) stopTimersLocked() {
	if c.searchT != nil {
		c.searchT.Stop()
		c.searchT = nil
	}
	if c.incomingT != nil {
		c.incomingT.Stop()
		c.incomingT = nil
	}
}

func (c *Controller) eventLocked(t models.EventType) models.Event {
	req := c.request
	c.seq++
	ev := models.Event{
		Seq:       c.seq,
		Type:      t,
		SessionID: c.id,
		Status:    c.status,
		Request:   &req,
		Booking:   copyBooking(c.booking),
		Online:    c.online,
		At:        c.opts.Now(),
	}
	if c.session != nil {
		ev.Role = c.session.Role
	}
	if c.incoming != nil {
		in := *c.incoming
		ev.Incoming = &in
	}
	return ev
}

// unlockAndPublish releases mu and publishes evs, holding pubMu across the
// handover.
func (c *Controller) unlockAndPublish(ctx context.Context, evs ...models.Event) {
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()
	for _, ev := range evs {
		c.publish(ctx, ev)
	}
}

func (c *Controller) publish(ctx context.Context, ev models.Event) {
	if err := c.opts.Sink.Publish(ctx, ev); err != nil {
		c.opts.Logger.Warn("publish event", "type", ev.Type, "session_id", c.id, "error", err)
	}
}

func copyBooking(b *models.Booking) *models.Booking {
	if b == nil {
		return nil
	}
	out := *b
	if b.Driver != nil {
		d := *b.Driver
		out.Driver = &d
	}
	return &out
}
