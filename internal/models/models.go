package models

import "time"

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

func (r Role) Valid() bool { return r == RoleRider || r == RoleDriver }

// RideStatus is the rider-side booking lifecycle stage.
type RideStatus string

const (
	StatusIdle      RideStatus = "IDLE"
	StatusSearching RideStatus = "SEARCHING"
	StatusBooked    RideStatus = "BOOKED"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Session struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Authenticated bool      `json:"authenticated"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"created_at"`
}

type RideRequest struct {
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`
	Service string `json:"service"`
	Vehicle string `json:"vehicle"`
}

// RideRequestPatch carries a partial update; nil fields are left as they are.
type RideRequestPatch struct {
	Pickup  *string `json:"pickup,omitempty"`
	Dropoff *string `json:"dropoff,omitempty"`
	Service *string `json:"service,omitempty"`
	Vehicle *string `json:"vehicle,omitempty"`
}

type AssignedDriver struct {
	Name   string  `json:"name"`
	Car    string  `json:"car"`
	Plate  string  `json:"plate"`
	Rating float64 `json:"rating"`
}

type Booking struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Request     RideRequest     `json:"request"`
	Provider    string          `json:"provider"`
	VehicleName string          `json:"vehicle_name"`
	Fare        int64           `json:"fare"`
	ETAMinutes  int             `json:"eta_minutes"`
	Driver      *AssignedDriver `json:"driver,omitempty"`
	Status      string          `json:"status"` // searching, booked, canceled
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

const (
	BookingSearching = "searching"
	BookingBooked    = "booked"
	BookingCanceled  = "canceled"
)

type IncomingRequest struct {
	ID         string    `json:"id"`
	RiderName  string    `json:"rider_name"`
	Fare       int64     `json:"fare"`
	DistanceKm float64   `json:"distance_km"`
	ReceivedAt time.Time `json:"received_at"`
}

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionIgnore Decision = "ignore"
)

type Quote struct {
	Vehicle    string `json:"vehicle"`
	Name       string `json:"name"`
	Fare       int64  `json:"fare"`
	ETAMinutes int    `json:"eta_minutes"`
}

// Snapshot is the full view of one session as a front end would render it.
type Snapshot struct {
	Session  *Session         `json:"session"`
	Status   RideStatus       `json:"status"`
	Request  RideRequest      `json:"request"`
	Booking  *Booking         `json:"booking,omitempty"`
	Quotes   []Quote          `json:"quotes,omitempty"`
	Online   bool             `json:"online"`
	Incoming *IncomingRequest `json:"incoming,omitempty"`
}

type EventType string

const (
	EventLogin          EventType = "session.login"
	EventLogout         EventType = "session.logout"
	EventRideUpdated    EventType = "ride.updated"
	EventRideSearching  EventType = "ride.searching"
	EventRideBooked     EventType = "ride.booked"
	EventRideCanceled   EventType = "ride.canceled"
	EventDriverOnline   EventType = "driver.online"
	EventDriverOffline  EventType = "driver.offline"
	EventDriverRequest  EventType = "driver.request"
	EventDriverAccepted EventType = "driver.accepted"
	EventDriverIgnored  EventType = "driver.ignored"
)

type Event struct {
	Type      EventType        `json:"type"`
	SessionID string           `json:"session_id"`
	Role      Role             `json:"role"`
	Status    RideStatus       `json:"status"`
	Request   *RideRequest     `json:"request,omitempty"`
	Booking   *Booking         `json:"booking,omitempty"`
	Incoming  *IncomingRequest `json:"incoming,omitempty"`
	Online    bool             `json:"online"`
	At        time.Time        `json:"at"`
	Seq       uint64           `json:"seq"` // per-controller, gap-free
}
