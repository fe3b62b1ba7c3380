package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/cario/internal/auth"
	"github.com/example/cario/internal/dispatch"
	"github.com/example/cario/internal/events"
	"github.com/example/cario/internal/mapview"
	"github.com/example/cario/internal/models"
	"github.com/example/cario/internal/presence"
	"github.com/example/cario/internal/session"
	"github.com/example/cario/internal/storage"
)

// stepScheduler holds timers until the test fires them.
type stepScheduler struct {
	mu  sync.Mutex
	fns []func()
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func (s *stepScheduler) AfterFunc(_ time.Duration, f func()) session.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, f)
	return noopTimer{}
}

func (s *stepScheduler) fire() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

type harness struct {
	srv   *Server
	sched *stepScheduler
	store *storage.MemoryStore
	pres  *presence.Index
}

func newHarness(t *testing.T, mapKey string) *harness {
	t.Helper()
	sched := &stepScheduler{}
	store := storage.NewMemoryStore()
	pres := presence.NewIndex()
	hub := dispatch.NewHub(nil)
	sink := events.NewFanout(nil, &storage.Recorder{Store: store}, &presence.Recorder{Presence: pres, Origin: mapview.DefaultCenter}, hub)
	mgr := session.NewManager(auth.NewTokens("test", time.Hour), session.Options{Scheduler: sched, Sink: sink})
	t.Cleanup(mgr.Close)
	srv := NewServer(Deps{Sessions: mgr, Bookings: store, Presence: pres, Hub: hub, Map: mapview.Config{APIKey: mapKey}})
	return &harness{srv: srv, sched: sched, store: store, pres: pres}
}

func (h *harness) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func (h *harness) login(t *testing.T, role string) string {
	t.Helper()
	rec := h.do(t, "POST", "/api/v1/sessions", "", `{"role":"`+role+`","email":"demo@cario.app","password":"pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token
}

func decodeAction(t *testing.T, rec *httptest.ResponseRecorder) actionResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var a actionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestRiderBookingFlow(t *testing.T) {
	h := newHarness(t, "")
	tok := h.login(t, "rider")

	a := decodeAction(t, h.do(t, "PATCH", "/api/v1/ride", tok, `{"service":"ola","pickup":"Home"}`))
	if !a.Applied || a.Request.Service != "ola" || a.Request.Vehicle != "sedan" {
		t.Fatalf("update: %+v", a)
	}

	a = decodeAction(t, h.do(t, "POST", "/api/v1/ride/confirm", tok, ""))
	if !a.Applied || a.Status != models.StatusSearching || a.Booking == nil || a.Booking.Fare != 172 {
		t.Fatalf("confirm: %+v", a)
	}

	a = decodeAction(t, h.do(t, "POST", "/api/v1/ride/cancel", tok, ""))
	if a.Applied || a.Status != models.StatusSearching {
		t.Fatalf("cancel while searching should be a no-op: %+v", a)
	}

	h.sched.fire()
	rec := h.do(t, "GET", "/api/v1/sessions/current", tok, "")
	var snap models.Snapshot
	_ = json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.Status != models.StatusBooked || snap.Booking.Driver == nil {
		t.Fatalf("expected BOOKED with driver, got %+v", snap)
	}

	rec = h.do(t, "GET", "/api/v1/bookings", tok, "")
	var list []models.Booking
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Status != models.BookingBooked {
		t.Fatalf("booking history %+v", list)
	}

	a = decodeAction(t, h.do(t, "POST", "/api/v1/ride/cancel", tok, ""))
	if !a.Applied || a.Status != models.StatusIdle {
		t.Fatalf("cancel from booked: %+v", a)
	}
	if b, _ := h.store.Get(list[0].ID); b.Status != models.BookingCanceled {
		t.Fatalf("stored booking not canceled: %+v", b)
	}

	if rec := h.do(t, "DELETE", "/api/v1/sessions/current", tok, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rec.Code)
	}
	if rec := h.do(t, "GET", "/api/v1/sessions/current", tok, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("session should be gone, got %d", rec.Code)
	}
}

func TestDriverAvailabilityFlow(t *testing.T) {
	h := newHarness(t, "")
	tok := h.login(t, "driver")

	a := decodeAction(t, h.do(t, "PUT", "/api/v1/driver/availability", tok, `{"online":true}`))
	if !a.Applied || !a.Online || a.Incoming != nil {
		t.Fatalf("online: %+v", a)
	}
	if n, _ := h.pres.Count(context.Background()); n != 1 {
		t.Fatalf("presence count %d", n)
	}
	h.sched.fire()

	if rec := h.do(t, "POST", "/api/v1/driver/request/maybe", tok, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad decision: %d", rec.Code)
	}
	a = decodeAction(t, h.do(t, "POST", "/api/v1/driver/request/accept", tok, ""))
	if !a.Applied || a.Incoming != nil {
		t.Fatalf("accept: %+v", a)
	}

	a = decodeAction(t, h.do(t, "PUT", "/api/v1/driver/availability", tok, `{"online":false}`))
	if !a.Applied || a.Online {
		t.Fatalf("offline: %+v", a)
	}
	if n, _ := h.pres.Count(context.Background()); n != 0 {
		t.Fatalf("presence count after offline %d", n)
	}
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t, "")
	cases := []struct{ body, path, method string }{
		{`{"role":"admin","email":"a","password":"b"}`, "/api/v1/sessions", "POST"},
		{`{"role":"rider","email":"","password":"b"}`, "/api/v1/sessions", "POST"},
		{`{"role":"rider"`, "/api/v1/sessions", "POST"},
		{`{"role":"rider","email":"a","password":"b","extra":1}`, "/api/v1/sessions", "POST"},
	}
	for _, c := range cases {
		if rec := h.do(t, c.method, c.path, "", c.body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", c.body, rec.Code)
		}
	}

	tok := h.login(t, "driver")
	if rec := h.do(t, "PUT", "/api/v1/driver/availability", tok, `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing online flag: %d", rec.Code)
	}
	if rec := h.do(t, "PATCH", "/api/v1/ride", tok, `{"vehicle":"boat"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown vehicle: %d", rec.Code)
	}
}

func TestSessionRoutesRequireToken(t *testing.T) {
	h := newHarness(t, "")
	for _, p := range []string{"/api/v1/sessions/current", "/api/v1/bookings"} {
		if rec := h.do(t, "GET", p, "", ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: %d", p, rec.Code)
		}
		if rec := h.do(t, "GET", p, "garbage", ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s with bad token: %d", p, rec.Code)
		}
	}
}

func TestRiderCannotGoOnline(t *testing.T) {
	h := newHarness(t, "")
	tok := h.login(t, "rider")
	a := decodeAction(t, h.do(t, "PUT", "/api/v1/driver/availability", tok, `{"online":true}`))
	if a.Applied || a.Online {
		t.Fatalf("rider toggled availability: %+v", a)
	}
}

func TestCatalogAndMap(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(t, "GET", "/api/v1/catalog", "", "")
	var cat catalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatal(err)
	}
	if len(cat.Providers) != 4 || len(cat.Quotes["ola"]) != 3 || cat.Quotes["ola"][2].Fare != 172 {
		t.Fatalf("unexpected catalog %+v", cat)
	}

	var v mapview.View
	_ = json.Unmarshal(h.do(t, "GET", "/api/v1/map", "", "").Body.Bytes(), &v)
	if v.State != mapview.StateLoading {
		t.Fatalf("expected loading map without key, got %+v", v)
	}

	h2 := newHarness(t, "real-key")
	tok := h2.login(t, "driver")
	h2.do(t, "PUT", "/api/v1/driver/availability", tok, `{"online":true}`)
	_ = json.Unmarshal(h2.do(t, "GET", "/api/v1/map", "", "").Body.Bytes(), &v)
	if v.State != mapview.StateReady || len(v.Drivers) != 1 {
		t.Fatalf("expected ready map with one driver, got %+v", v)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(t, "GET", "/healthz", "", "")
	if rec.Code != 200 || rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("healthz: %d id=%q", rec.Code, rec.Header().Get("X-Request-ID"))
	}
	if rec := h.do(t, "GET", "/ready", "", ""); rec.Code != 200 {
		t.Fatalf("ready: %d", rec.Code)
	}
}

func TestWebsocketStreamsEvents(t *testing.T) {
	h := newHarness(t, "")
	ts := httptest.NewServer(h.srv)
	defer ts.Close()

	body := bytes.NewBufferString(`{"role":"rider","email":"a@b","password":"x"}`)
	resp, err := http.Post(ts.URL+"/api/v1/sessions", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	var lr loginResponse
	_ = json.NewDecoder(resp.Body).Decode(&lr)
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + lr.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first models.Snapshot
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Status != models.StatusIdle {
		t.Fatalf("unexpected first message %+v", first)
	}

	req, _ := http.NewRequest("POST", ts.URL+"/api/v1/ride/confirm", nil)
	req.Header.Set("Authorization", "Bearer "+lr.Token)
	if resp, err := http.DefaultClient.Do(req); err != nil {
		t.Fatal(err)
	} else {
		resp.Body.Close()
	}

	var ev models.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != models.EventRideSearching || ev.Booking == nil {
		t.Fatalf("unexpected event %+v", ev)
	}
}
