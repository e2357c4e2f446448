// README: Outbound notification boundary — delivery of despatch events to drivers and riders.
package notify

import (
	"context"
	"errors"
	"time"

	"rebeca/internal/types"
)

// OfferMessage tells a driver a ride is on offer to them.
type OfferMessage struct {
	RideID     types.ID  `json:"ride_id"`
	Kind       string    `json:"kind"` // broadcast | nearest
	PickupName string    `json:"pickup_name,omitempty"`
	DistanceKm float64   `json:"distance_km"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// RiderMessage tells a rider how their request is going.
type RiderMessage struct {
	RideID     types.ID `json:"ride_id"`
	Event      string   `json:"event"` // driver_assigned | no_driver | cancelled
	DriverID   types.ID `json:"driver_id,omitempty"`
	DriverName string   `json:"driver_name,omitempty"`
}

// Notifier delivers despatch events. Implementations must not block the
// despatch path; a failed delivery is the implementation's problem to log,
// the engine state has already moved on.
type Notifier interface {
	OfferToDriver(ctx context.Context, driverID types.ID, msg OfferMessage) error
	RideUpdateToRider(ctx context.Context, riderID types.ID, msg RiderMessage) error
}

// ErrNoSession reports that the target has no live delivery channel.
var ErrNoSession = errors.New("no active session for recipient")

// Fanout delivers through every channel and succeeds if at least one did.
type Fanout []Notifier

func (f Fanout) OfferToDriver(ctx context.Context, driverID types.ID, msg OfferMessage) error {
	var errs []error
	for _, n := range f {
		if err := n.OfferToDriver(ctx, driverID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(f) && len(f) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (f Fanout) RideUpdateToRider(ctx context.Context, riderID types.ID, msg RiderMessage) error {
	var errs []error
	for _, n := range f {
		if err := n.RideUpdateToRider(ctx, riderID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(f) && len(f) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
