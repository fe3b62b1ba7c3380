package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/cario/internal/dispatch"
	"github.com/example/cario/internal/mapview"
	"github.com/example/cario/internal/models"
	"github.com/example/cario/internal/presence"
	"github.com/example/cario/internal/pricing"
	"github.com/example/cario/internal/session"
	"github.com/example/cario/internal/storage"
)

// Deps are the collaborators the API is built from.
type Deps struct {
	Sessions *session.Manager
	Catalog  *pricing.Catalog
	Bookings storage.BookingStore
	Presence presence.Presence
	Hub      *dispatch.Hub
	Map      mapview.Config
	Logger   *slog.Logger
	// Ready reports backend health for /ready; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	Deps
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(d Deps) *Server {
	if d.Catalog == nil {
		d.Catalog = pricing.DefaultCatalog()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{Deps: d, logger: d.Logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sessions", s.handleLogin).Methods("POST")
	api.HandleFunc("/catalog", s.handleCatalog).Methods("GET")
	api.HandleFunc("/map", s.handleMap).Methods("GET")

	authed := api.NewRoute().Subrouter()
	authed.Use(s.sessionMiddleware)
	authed.HandleFunc("/sessions/current", s.handleSnapshot).Methods("GET")
	authed.HandleFunc("/sessions/current", s.handleLogout).Methods("DELETE")
	authed.HandleFunc("/ride", s.handleUpdateRide).Methods("PATCH")
	authed.HandleFunc("/ride/confirm", s.handleConfirm).Methods("POST")
	authed.HandleFunc("/ride/cancel", s.handleCancel).Methods("POST")
	authed.HandleFunc("/driver/availability", s.handleAvailability).Methods("PUT")
	authed.HandleFunc("/driver/request/{decision}", s.handleRespond).Methods("POST")
	authed.HandleFunc("/bookings", s.handleBookings).Methods("GET")

	s.mux.Handle("/ws", s.sessionMiddleware(http.HandlerFunc(s.handleWS))).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type loginRequest struct {
	Role     string `json:"role" validate:"required,oneof=rider driver"`
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type loginResponse struct {
	Token   string          `json:"token"`
	Session models.Snapshot `json:"state"`
}

// actionResponse reports whether a transition applied along with the resulting state.
type actionResponse struct {
	Applied bool `json:"applied"`
	models.Snapshot
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, token, err := s.Sessions.Login(r.Context(), session.LoginForm{Role: models.Role(req.Role), Email: req.Email, Password: req.Password})
	switch {
	case errors.Is(err, session.ErrInvalidForm):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// client went away during the simulated delay
		return
	case err != nil:
		s.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusCreated, loginResponse{Token: token, Session: snap})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, controllerFrom(r).Snapshot())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r)
	if err := s.Sessions.Logout(r.Context(), c.ID()); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateRideRequest struct {
	Pickup  *string `json:"pickup" validate:"omitempty,max=200"`
	Dropoff *string `json:"dropoff" validate:"omitempty,max=200"`
	Service *string `json:"service" validate:"omitempty,max=32"`
	Vehicle *string `json:"vehicle" validate:"omitempty,max=32"`
}

func (s *Server) handleUpdateRide(w http.ResponseWriter, r *http.Request) {
	var req updateRideRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := controllerFrom(r)
	applied, err := c.UpdateRideRequest(r.Context(), models.RideRequestPatch{Pickup: req.Pickup, Dropoff: req.Dropoff, Service: req.Service, Vehicle: req.Vehicle})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Applied: applied, Snapshot: c.Snapshot()})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r)
	applied := c.ConfirmBooking(r.Context())
	writeJSON(w, http.StatusOK, actionResponse{Applied: applied, Snapshot: c.Snapshot()})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r)
	applied := c.CancelRide(r.Context())
	writeJSON(w, http.StatusOK, actionResponse{Applied: applied, Snapshot: c.Snapshot()})
}

type availabilityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := controllerFrom(r)
	applied := c.SetDriverOnline(r.Context(), *req.Online)
	writeJSON(w, http.StatusOK, actionResponse{Applied: applied, Snapshot: c.Snapshot()})
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r)
	applied, err := c.RespondToRequest(r.Context(), models.Decision(mux.Vars(r)["decision"]))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Applied: applied, Snapshot: c.Snapshot()})
}

func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	if s.Bookings == nil {
		writeJSON(w, http.StatusOK, []models.Booking{})
		return
	}
	list, err := s.Bookings.ListBySession(r.Context(), controllerFrom(r).ID())
	if err != nil {
		s.logger.Error("list bookings", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load bookings")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type catalogResponse struct {
	Providers []pricing.Provider        `json:"providers"`
	Vehicles  []pricing.VehicleType     `json:"vehicles"`
	Quotes    map[string][]models.Quote `json:"quotes"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	resp := catalogResponse{Providers: s.Catalog.Providers, Vehicles: s.Catalog.Vehicles, Quotes: make(map[string][]models.Quote, len(s.Catalog.Providers))}
	for _, p := range s.Catalog.Providers {
		qs, err := s.Catalog.Quotes(p.ID)
		if err != nil {
			continue
		}
		resp.Quotes[p.ID] = qs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var loc mapview.DriverLocator
	if s.Presence != nil {
		loc = s.Presence
	}
	writeJSON(w, http.StatusOK, mapview.Build(r.Context(), s.Map, loc))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(200)
	w.Write([]byte("ready"))
}

var upgrader = websocket.Upgrader{}

// handleWS streams the session's events. The connection joins the hub before
// the current snapshot is sent, so the snapshot is never older than the stream.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	// deadlines set by http.Server survive the hijack
	_ = conn.SetReadDeadline(time.Time{})
	ws, remove := s.Hub.Add(c.ID(), conn)
	defer remove()
	if err := ws.Send(c.Snapshot(), 5*time.Second); err != nil {
		return
	}
	for {
		// clients do not send anything meaningful; reading detects the close
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
