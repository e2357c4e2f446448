// README: Ride coordinator — persists the ride lifecycle and drives the despatch engine.
package ride

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rebeca/internal/modules/despatch"
	"rebeca/internal/modules/driver"
	"rebeca/internal/notify"
	"rebeca/internal/types"
)

// Storage is the persistence surface the coordinator needs.
type Storage interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, driverID *types.ID) (bool, error)
	SetCancelReason(ctx context.Context, id types.ID, reason string) error
	AppendEvent(ctx context.Context, e *Event) error
	HasActiveByRider(ctx context.Context, riderID types.ID) (bool, error)
	ListStaleOffered(ctx context.Context, cutoff time.Time) ([]Ride, error)
}

// Directory answers who can drive and where they are.
type Directory interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	ListAvailable(ctx context.Context, near types.Point, radiusKm float64) ([]driver.Driver, error)
	SetStatus(ctx context.Context, id types.ID, status driver.Status) error
}

// Engine is the despatch surface the coordinator drives.
type Engine interface {
	Settings() despatch.Settings
	Despatch(rideID types.ID, candidates []despatch.Candidate, mode despatch.Mode) (despatch.Offer, error)
	Accept(rideID, driverID types.ID) (despatch.AcceptOutcome, error)
	Decline(rideID, driverID types.ID, reason string) (despatch.DeclineOutcome, error)
	Cancel(rideID types.ID) bool
	PendingOffer(rideID types.ID) (despatch.Offer, bool)
	OffersForDriver(driverID types.ID) []despatch.Notification
}

// Pricing quotes a fare for a requested trip.
type Pricing interface {
	Estimate(ctx context.Context, pickup, dropoff types.Point, category string) (types.Money, error)
}

type Service struct {
	store    Storage
	drivers  Directory
	engine   Engine
	pricing  Pricing
	notifier notify.Notifier

	searchRadiusKm float64
	log            *zap.Logger
	now            func() time.Time
}

func NewService(store Storage, drivers Directory, engine Engine, pricing Pricing, notifier notify.Notifier, searchRadiusKm float64, log *zap.Logger) *Service {
	if searchRadiusKm <= 0 {
		searchRadiusKm = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:          store,
		drivers:        drivers,
		engine:         engine,
		pricing:        pricing,
		notifier:       notifier,
		searchRadiusKm: searchRadiusKm,
		log:            log,
		now:            time.Now,
	}
}

type RequestCommand struct {
	RiderID    types.ID
	Pickup     types.Point
	Dropoff    types.Point
	PickupName string
	Category   string
}

// Request creates a ride and immediately tries to despatch it. The returned
// ride is either offered (drivers are being asked) or unserved (nobody in
// range right now).
func (s *Service) Request(ctx context.Context, cmd RequestCommand) (*Ride, error) {
	if cmd.RiderID == "" {
		return nil, ErrBadRequest
	}
	if cmd.Category == "" {
		cmd.Category = "standard"
	}

	active, err := s.store.HasActiveByRider(ctx, cmd.RiderID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveRide
	}

	fare, err := s.pricing.Estimate(ctx, cmd.Pickup, cmd.Dropoff, cmd.Category)
	if err != nil {
		return nil, err
	}

	r := &Ride{
		ID:            types.ID(uuid.NewString()),
		RiderID:       cmd.RiderID,
		Status:        StatusPending,
		Pickup:        cmd.Pickup,
		Dropoff:       cmd.Dropoff,
		PickupName:    cmd.PickupName,
		Category:      cmd.Category,
		EstimatedFare: fare,
		CreatedAt:     s.now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, r.ID, StatusNone, StatusPending, "rider", &cmd.RiderID)

	if err := s.despatch(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// despatch ranks nearby available drivers and opens the offer. An empty
// candidate list closes the ride as unserved straight away.
func (s *Service) despatch(ctx context.Context, r *Ride) error {
	available, err := s.drivers.ListAvailable(ctx, r.Pickup, s.searchRadiusKm)
	if err != nil {
		return err
	}
	infos := make([]despatch.DriverInfo, len(available))
	for i, d := range available {
		infos[i] = despatch.DriverInfo{
			ID:       d.ID,
			Name:     d.Name,
			Status:   string(d.Status),
			Location: d.Location,
		}
	}
	candidates := despatch.Rank(r.Pickup, infos)
	if len(candidates) == 0 {
		return s.markUnserved(ctx, r)
	}

	mode := s.engine.Settings().Mode
	offer, err := s.engine.Despatch(r.ID, candidates, mode)
	if errors.Is(err, despatch.ErrNoDriversAvailable) {
		return s.markUnserved(ctx, r)
	}
	if err != nil {
		return err
	}

	if err := s.transition(ctx, r, StatusOffered, "system", nil, nil); err != nil {
		return err
	}

	targets := offer.Candidates
	if offer.Mode == despatch.ModeNearest {
		targets = targets[:1]
	}
	for _, c := range targets {
		msg := notify.OfferMessage{
			RideID:     r.ID,
			Kind:       string(offer.Mode),
			PickupName: r.PickupName,
			DistanceKm: c.DistanceKm,
			ExpiresAt:  offer.ExpiresAt,
		}
		if err := s.notifier.OfferToDriver(ctx, c.DriverID, msg); err != nil {
			s.log.Warn("offer notification failed",
				zap.String("ride_id", string(r.ID)),
				zap.String("driver_id", string(c.DriverID)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// DriverAccept settles the offer in the driver's favour and assigns the ride.
func (s *Service) DriverAccept(ctx context.Context, rideID, driverID types.ID) (*Ride, error) {
	if _, err := s.engine.Accept(rideID, driverID); err != nil {
		return nil, err
	}

	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, r, StatusAssigned, "driver", &driverID, &driverID); err != nil {
		return nil, err
	}

	if err := s.drivers.SetStatus(ctx, driverID, driver.StatusBusy); err != nil {
		s.log.Warn("mark driver busy failed", zap.String("driver_id", string(driverID)), zap.Error(err))
	}

	msg := notify.RiderMessage{RideID: rideID, Event: "driver_assigned", DriverID: driverID}
	if d, err := s.drivers.Get(ctx, driverID); err == nil {
		msg.DriverName = d.Name
	}
	if err := s.notifier.RideUpdateToRider(ctx, r.RiderID, msg); err != nil {
		s.log.Warn("rider notification failed", zap.String("ride_id", string(rideID)), zap.Error(err))
	}
	return r, nil
}

// DriverDecline records a refusal. A redirected offer notifies the next
// candidate; an exhausted one closes the ride as unserved.
func (s *Service) DriverDecline(ctx context.Context, rideID, driverID types.ID, reason string) (despatch.DeclineOutcome, error) {
	out, err := s.engine.Decline(rideID, driverID, reason)
	if err != nil {
		return despatch.DeclineOutcome{}, err
	}

	switch out.Result {
	case despatch.DeclineRedirected:
		r, err := s.store.Get(ctx, rideID)
		if err != nil {
			return out, err
		}
		offer, ok := s.engine.PendingOffer(rideID)
		if !ok {
			return out, nil
		}
		msg := notify.OfferMessage{
			RideID:     rideID,
			Kind:       string(despatch.ModeNearest),
			PickupName: r.PickupName,
			DistanceKm: out.Next.DistanceKm,
			ExpiresAt:  offer.ExpiresAt,
		}
		if err := s.notifier.OfferToDriver(ctx, out.Next.DriverID, msg); err != nil {
			s.log.Warn("offer notification failed",
				zap.String("ride_id", string(rideID)),
				zap.String("driver_id", string(out.Next.DriverID)),
				zap.Error(err),
			)
		}
	case despatch.DeclineExhausted:
		r, err := s.store.Get(ctx, rideID)
		if err != nil {
			return out, err
		}
		if err := s.markUnserved(ctx, r); err != nil {
			return out, err
		}
	}
	return out, nil
}

// CancelByRider withdraws the ride whatever its despatch state. Cancelling a
// ride that is already cancelled is a no-op.
func (s *Service) CancelByRider(ctx context.Context, rideID, riderID types.ID, reason string) error {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return err
	}
	if r.RiderID != riderID {
		return ErrNotFound
	}
	if r.Status == StatusCancelled {
		return nil
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return ErrInvalidState
	}

	s.engine.Cancel(rideID)
	if err := s.transition(ctx, r, StatusCancelled, "rider", &riderID, nil); err != nil {
		return err
	}
	if reason != "" {
		if err := s.store.SetCancelReason(ctx, rideID, reason); err != nil {
			s.log.Warn("store cancel reason failed", zap.String("ride_id", string(rideID)), zap.Error(err))
		}
	}
	if r.DriverID != nil {
		if err := s.drivers.SetStatus(ctx, *r.DriverID, driver.StatusAvailable); err != nil {
			s.log.Warn("release driver failed", zap.String("driver_id", string(*r.DriverID)), zap.Error(err))
		}
	}
	return nil
}

// DriverStart marks pickup done and the trip underway.
func (s *Service) DriverStart(ctx context.Context, rideID, driverID types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.DriverID == nil || *r.DriverID != driverID {
		return nil, ErrNotFound
	}
	if err := s.transition(ctx, r, StatusInProgress, "driver", &driverID, nil); err != nil {
		return nil, err
	}
	return r, nil
}

// DriverComplete finishes the trip and releases the driver.
func (s *Service) DriverComplete(ctx context.Context, rideID, driverID types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.DriverID == nil || *r.DriverID != driverID {
		return nil, ErrNotFound
	}
	if err := s.transition(ctx, r, StatusCompleted, "driver", &driverID, nil); err != nil {
		return nil, err
	}
	if err := s.drivers.SetStatus(ctx, driverID, driver.StatusAvailable); err != nil {
		s.log.Warn("release driver failed", zap.String("driver_id", string(driverID)), zap.Error(err))
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

// OffersFor returns the driver's live offer inbox.
func (s *Service) OffersFor(driverID types.ID) []despatch.Notification {
	return s.engine.OffersForDriver(driverID)
}

// RunExpiryMonitor closes rides whose offer ran out without any driver
// answering. The engine's sweeper reclaims the offer memory; this loop
// settles the persisted ride so the rider is not left waiting forever.
func (s *Service) RunExpiryMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CloseExpired(ctx)
		}
	}
}

// CloseExpired finds offered rides whose despatch offer is gone and marks
// them unserved. Rides with a still-pending offer are left alone.
func (s *Service) CloseExpired(ctx context.Context) int {
	set := s.engine.Settings()
	grace := set.AcceptWindow * time.Duration(set.MaxAttempts)
	cutoff := s.now().Add(-grace)

	stale, err := s.store.ListStaleOffered(ctx, cutoff)
	if err != nil {
		s.log.Warn("stale ride scan failed", zap.Error(err))
		return 0
	}

	closed := 0
	for i := range stale {
		r := &stale[i]
		if _, pending := s.engine.PendingOffer(r.ID); pending {
			continue
		}
		if err := s.markUnserved(ctx, r); err != nil {
			s.log.Warn("close expired ride failed", zap.String("ride_id", string(r.ID)), zap.Error(err))
			continue
		}
		closed++
	}
	if closed > 0 {
		s.log.Info("expired rides closed", zap.Int("count", closed))
	}
	return closed
}

func (s *Service) markUnserved(ctx context.Context, r *Ride) error {
	if err := s.transition(ctx, r, StatusUnserved, "system", nil, nil); err != nil {
		return err
	}
	msg := notify.RiderMessage{RideID: r.ID, Event: "no_driver"}
	if err := s.notifier.RideUpdateToRider(ctx, r.RiderID, msg); err != nil {
		s.log.Warn("rider notification failed", zap.String("ride_id", string(r.ID)), zap.Error(err))
	}
	return nil
}

// transition applies a CAS status change and mirrors it onto r.
func (s *Service) transition(ctx context.Context, r *Ride, to Status, actorType string, actorID, driverID *types.ID) error {
	if !CanTransition(r.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion, driverID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, r.ID, r.Status, to, actorType, actorID)

	r.Status = to
	r.StatusVersion++
	if driverID != nil {
		r.DriverID = driverID
	}
	return nil
}

func (s *Service) appendEvent(ctx context.Context, rideID types.ID, from, to Status, actorType string, actorID *types.ID) {
	e := &Event{
		RideID:     rideID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  s.now(),
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		s.log.Warn("append ride event failed", zap.String("ride_id", string(rideID)), zap.Error(err))
	}
}
