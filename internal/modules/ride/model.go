// README: Ride aggregate and status definitions.
package ride

import (
	"errors"
	"time"

	"rebeca/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusOffered    Status = "offered"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	// StatusUnserved: despatch found nobody, or every candidate declined.
	StatusUnserved Status = "unserved"
)

type Ride struct {
	ID            types.ID
	RiderID       types.ID
	DriverID      *types.ID
	Status        Status
	StatusVersion int
	Pickup        types.Point
	Dropoff       types.Point
	PickupName    string
	Category      string
	EstimatedFare types.Money
	CreatedAt     time.Time
	OfferedAt     *time.Time
	AssignedAt    *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	CancelReason  *string
}

type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions encodes the ride state flow.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {StatusOffered, StatusUnserved, StatusCancelled},
	StatusOffered: {StatusAssigned, StatusUnserved, StatusCancelled},
	// assigned → offered covers a driver backing out before pickup.
	StatusAssigned:   {StatusInProgress, StatusOffered, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

var (
	ErrNotFound     = errors.New("ride not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("ride state conflict")
	ErrActiveRide   = errors.New("rider has an active ride")
	ErrBadRequest   = errors.New("bad request")
)
