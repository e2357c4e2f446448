// README: Despatch engine — the ride-offer state machine (broadcast / nearest-first).
package despatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"rebeca/internal/observability"
	"rebeca/internal/types"
)

const (
	DefaultAcceptWindow = 30 * time.Second
	DefaultMaxAttempts  = 3
)

// Engine owns the pending-offer table and the per-driver notification
// inboxes. All operations are synchronous; the waiting period of an offer is
// represented purely by its ExpiresAt timestamp, observed lazily by
// accept/decline and reclaimed by the sweeper.
type Engine struct {
	st *store

	mu       sync.RWMutex
	settings Settings

	offered  atomic.Uint64
	accepted atomic.Uint64

	log *zap.Logger
	now func() time.Time
}

func NewEngine(settings Settings, log *zap.Logger) *Engine {
	if settings.Mode == "" {
		settings.Mode = ModeNearest
	}
	if settings.AcceptWindow <= 0 {
		settings.AcceptWindow = DefaultAcceptWindow
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		st:       newStore(),
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// Settings returns the current runtime configuration.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// Configure applies a runtime configuration change. An empty mode or a
// non-positive window/attempt value leaves that field unchanged. Unknown
// mode strings yield ErrInvalidMode and change nothing.
func (e *Engine) Configure(mode string, acceptWindowSeconds, maxAttempts int) (Settings, error) {
	var parsed Mode
	if mode != "" {
		m, err := ParseMode(mode)
		if err != nil {
			return Settings{}, err
		}
		parsed = m
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if parsed != "" {
		e.settings.Mode = parsed
	}
	if acceptWindowSeconds > 0 {
		e.settings.AcceptWindow = time.Duration(acceptWindowSeconds) * time.Second
	}
	if maxAttempts > 0 {
		e.settings.MaxAttempts = maxAttempts
	}
	e.log.Info("despatch settings changed",
		zap.String("mode", string(e.settings.Mode)),
		zap.Duration("accept_window", e.settings.AcceptWindow),
		zap.Int("max_attempts", e.settings.MaxAttempts),
	)
	return e.settings, nil
}

// Despatch opens an offer for the ride. Candidates must be ranked nearest
// first and non-empty; the caller checks the ranker's output before calling.
// In nearest mode only the head candidate is notified; in broadcast mode all
// candidates share one expiry and the first acceptance wins.
func (e *Engine) Despatch(rideID types.ID, candidates []Candidate, mode Mode) (Offer, error) {
	if len(candidates) == 0 {
		return Offer{}, ErrNoDriversAvailable
	}
	if mode != ModeBroadcast && mode != ModeNearest {
		return Offer{}, ErrInvalidMode
	}

	window := e.Settings().AcceptWindow
	now := e.now()
	o := &Offer{
		RideID:     rideID,
		Mode:       mode,
		Candidates: append([]Candidate(nil), candidates...),
		Attempt:    1,
		Status:     StatusOffered,
		OfferedAt:  now,
		ExpiresAt:  now.Add(window),
	}
	if mode == ModeNearest {
		o.ActiveDriverID = o.Candidates[0].DriverID
	}

	err := e.st.insert(o, func() {
		if mode == ModeNearest {
			head := o.Candidates[0]
			e.st.inbox.push(head.DriverID, Notification{
				RideID: rideID, Kind: ModeNearest, DistanceKm: head.DistanceKm, ExpiresAt: o.ExpiresAt,
			})
			return
		}
		for _, c := range o.Candidates {
			e.st.inbox.push(c.DriverID, Notification{
				RideID: rideID, Kind: ModeBroadcast, DistanceKm: c.DistanceKm, ExpiresAt: o.ExpiresAt,
			})
		}
	})
	if err != nil {
		return Offer{}, err
	}

	e.offered.Add(1)
	observability.OffersTotal.WithLabelValues(string(mode)).Inc()
	e.log.Info("ride despatched",
		zap.String("ride_id", string(rideID)),
		zap.String("mode", string(mode)),
		zap.Int("candidates", len(candidates)),
	)
	return cloneOffer(o), nil
}

// Accept records a driver's acceptance. Exactly one concurrent Accept for
// the same ride can succeed; later calls see ErrOfferNotFound because the
// settled offer has left the pending table. Past-deadline calls are rejected
// and the stale offer is reclaimed on the spot.
func (e *Engine) Accept(rideID, driverID types.ID) (AcceptOutcome, error) {
	now := e.now()
	var out AcceptOutcome
	err := e.st.update(rideID, func(o *Offer) (bool, error) {
		if !now.Before(o.ExpiresAt) {
			o.Status = StatusExpired
			e.st.inbox.purgeRide(rideID)
			return true, ErrOfferExpired
		}
		if o.Mode == ModeNearest && o.ActiveDriverID != driverID {
			return false, ErrWrongDriver
		}
		o.Status = StatusAccepted
		o.AcceptedBy = driverID
		e.st.inbox.purgeRide(rideID)
		out = AcceptOutcome{RideID: rideID, DriverID: driverID, Latency: now.Sub(o.OfferedAt)}
		return true, nil
	})
	if err != nil {
		return AcceptOutcome{}, err
	}

	e.accepted.Add(1)
	observability.AcceptsTotal.Inc()
	observability.AcceptLatency.Observe(out.Latency.Seconds())
	e.log.Info("ride accepted",
		zap.String("ride_id", string(rideID)),
		zap.String("driver_id", string(driverID)),
		zap.Duration("latency", out.Latency),
	)
	return out, nil
}

// Decline records a driver's refusal. In broadcast mode only that driver's
// inbox entry is dropped. In nearest mode the offer advances to the next
// candidate with a fresh window, or closes as exhausted when candidates or
// attempts run out — exhaustion is a normal outcome, not an error.
func (e *Engine) Decline(rideID, driverID types.ID, reason string) (DeclineOutcome, error) {
	now := e.now()
	set := e.Settings()
	var out DeclineOutcome
	err := e.st.update(rideID, func(o *Offer) (bool, error) {
		if !now.Before(o.ExpiresAt) {
			o.Status = StatusExpired
			e.st.inbox.purgeRide(rideID)
			return true, ErrOfferExpired
		}
		if o.Mode == ModeBroadcast {
			e.st.inbox.removeRide(driverID, rideID)
			out = DeclineOutcome{Result: DeclineRemoved, Attempt: o.Attempt}
			return false, nil
		}
		if o.ActiveDriverID != driverID {
			return false, ErrWrongDriver
		}
		e.st.inbox.removeRide(driverID, rideID)

		rest := o.Candidates[1:]
		if len(rest) == 0 || o.Attempt >= set.MaxAttempts {
			o.Status = StatusExhausted
			out = DeclineOutcome{Result: DeclineExhausted, Attempt: o.Attempt}
			return true, nil
		}

		// Advance consumes the head; the remaining list is re-sliced, never
		// edited in place.
		o.Candidates = append([]Candidate(nil), rest...)
		next := o.Candidates[0]
		o.ActiveDriverID = next.DriverID
		o.Attempt++
		o.OfferedAt = now
		o.ExpiresAt = now.Add(set.AcceptWindow)
		e.st.inbox.push(next.DriverID, Notification{
			RideID: rideID, Kind: ModeNearest, DistanceKm: next.DistanceKm, ExpiresAt: o.ExpiresAt,
		})
		out = DeclineOutcome{Result: DeclineRedirected, Next: &next, Attempt: o.Attempt}
		return false, nil
	})
	if err != nil {
		return DeclineOutcome{}, err
	}

	switch out.Result {
	case DeclineRedirected:
		observability.RedirectsTotal.Inc()
		e.log.Info("offer redirected",
			zap.String("ride_id", string(rideID)),
			zap.String("declined_by", string(driverID)),
			zap.String("next_driver", string(out.Next.DriverID)),
			zap.Int("attempt", out.Attempt),
			zap.String("reason", reason),
		)
	case DeclineExhausted:
		observability.ExhaustedTotal.Inc()
		e.log.Info("offer exhausted",
			zap.String("ride_id", string(rideID)),
			zap.Int("attempt", out.Attempt),
			zap.String("reason", reason),
		)
	}
	return out, nil
}

// Cancel removes the ride's pending offer and every related inbox entry,
// regardless of expiry. It is idempotent; the return value reports whether
// anything was pending.
func (e *Engine) Cancel(rideID types.ID) bool {
	removed := e.st.remove(rideID, func(Offer) {
		e.st.inbox.purgeRide(rideID)
	})
	if removed {
		e.log.Info("offer cancelled", zap.String("ride_id", string(rideID)))
	}
	return removed
}

// SweepExpired reclaims every past-deadline offer and stale inbox entry.
// Correctness never depends on it — accept and decline reject expired offers
// on their own — it only frees memory and stops stale offers from showing up
// in driver inboxes.
func (e *Engine) SweepExpired() int {
	now := e.now()
	removed := e.st.sweepOffers(
		func(o *Offer) bool {
			return o.Status != StatusAccepted && !now.Before(o.ExpiresAt)
		},
		func(o Offer) {
			e.st.inbox.purgeRide(o.RideID)
		},
	)
	dropped := e.st.inbox.sweep(now)
	if removed > 0 || dropped > 0 {
		observability.SweptOffers.Add(float64(removed))
		e.log.Debug("sweep completed", zap.Int("offers", removed), zap.Int("inbox_entries", dropped))
	}
	return removed
}

// RunSweeper invokes SweepExpired on the given interval until the context is
// cancelled. The interval belongs to the host application, not the engine.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SweepExpired()
		}
	}
}

// PendingOffer returns a snapshot of the ride's pending offer, if any.
func (e *Engine) PendingOffer(rideID types.ID) (Offer, bool) {
	return e.st.get(rideID)
}

// OffersForDriver returns a snapshot of the driver's non-expired inbox.
func (e *Engine) OffersForDriver(driverID types.ID) []Notification {
	return e.st.inbox.forDriver(driverID, e.now())
}

// Stats returns a monitoring snapshot.
func (e *Engine) Stats() Stats {
	set := e.Settings()
	return Stats{
		Mode:                     set.Mode,
		AcceptWindowSeconds:      int(set.AcceptWindow / time.Second),
		MaxAttempts:              set.MaxAttempts,
		PendingCount:             e.st.pendingCount(),
		OfferedCount:             e.offered.Load(),
		AcceptedCount:            e.accepted.Load(),
		DriversWithNotifications: e.st.inbox.driverCount(),
	}
}
