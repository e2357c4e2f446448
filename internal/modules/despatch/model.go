// README: Despatch offer aggregate, candidates, notifications, and error taxonomy.
package despatch

import (
	"errors"
	"time"

	"rebeca/internal/types"
)

// Mode selects the despatch strategy for a ride offer.
type Mode string

const (
	// ModeBroadcast notifies every candidate at once; first accept wins.
	ModeBroadcast Mode = "broadcast"
	// ModeNearest notifies one candidate at a time, nearest first,
	// advancing on decline.
	ModeNearest Mode = "nearest"
)

// ParseMode maps a configuration string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBroadcast, ModeNearest:
		return Mode(s), nil
	default:
		return "", ErrInvalidMode
	}
}

type Status string

const (
	StatusOffered   Status = "offered"
	StatusAccepted  Status = "accepted"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
)

// Candidate is a driver eligible for a ride's despatch, with its computed
// distance from the pickup point.
type Candidate struct {
	DriverID   types.ID
	Name       string
	DistanceKm float64
}

// Offer is the pending-despatch record for one ride. Candidates is ordered
// nearest first and is consumed from the front; it is never edited in place.
type Offer struct {
	RideID         types.ID
	Mode           Mode
	Candidates     []Candidate
	ActiveDriverID types.ID // nearest mode only; empty while broadcasting
	Attempt        int
	Status         Status
	OfferedAt      time.Time
	ExpiresAt      time.Time
	AcceptedBy     types.ID
}

// Notification is one entry in a driver's pending-offer inbox.
type Notification struct {
	RideID     types.ID  `json:"ride_id"`
	Kind       Mode      `json:"kind"`
	DistanceKm float64   `json:"distance_km"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Settings are the runtime-tunable engine parameters. They are changed
// through the admin API, not at compile time.
type Settings struct {
	Mode         Mode
	AcceptWindow time.Duration
	MaxAttempts  int
}

// Stats is the read-only snapshot exposed for monitoring.
type Stats struct {
	Mode                     Mode   `json:"mode"`
	AcceptWindowSeconds      int    `json:"accept_window_seconds"`
	MaxAttempts              int    `json:"max_attempts"`
	PendingCount             int    `json:"pending_count"`
	OfferedCount             uint64 `json:"offered_count"`
	AcceptedCount            uint64 `json:"accepted_count"`
	DriversWithNotifications int    `json:"drivers_with_notifications"`
}

var (
	ErrOfferNotFound      = errors.New("no pending offer for ride")
	ErrOfferPending       = errors.New("ride already has a pending offer")
	ErrOfferExpired       = errors.New("offer expired")
	ErrWrongDriver        = errors.New("ride not offered to this driver")
	ErrNoDriversAvailable = errors.New("no drivers available")
	ErrInvalidMode        = errors.New("invalid despatch mode")
)

// AcceptOutcome reports a successful acceptance. Latency is the time between
// the offer going out and the driver's response.
type AcceptOutcome struct {
	RideID   types.ID
	DriverID types.ID
	Latency  time.Duration
}

type DeclineResult string

const (
	// DeclineRemoved: broadcast decline; the driver's inbox entry was
	// dropped, the offer stays open for everyone else.
	DeclineRemoved DeclineResult = "removed"
	// DeclineRedirected: nearest decline; the offer moved to the next
	// candidate.
	DeclineRedirected DeclineResult = "redirected"
	// DeclineExhausted: nearest decline; no candidates (or attempts)
	// remain and the offer was closed.
	DeclineExhausted DeclineResult = "exhausted"
)

type DeclineOutcome struct {
	Result DeclineResult
	// Next is the newly offered candidate when Result is DeclineRedirected.
	Next *Candidate
	// Attempt is the attempt counter after the decline was processed.
	Attempt int
}
