// README: In-memory despatch state — sharded pending-offer table and per-driver inboxes.
package despatch

import (
	"hash/fnv"
	"sync"
	"time"

	"rebeca/internal/types"
)

const shardCount = 16

// store owns all mutable despatch state. It is created per engine instance;
// nothing here is process-global, so tests get full isolation.
//
// Lock order is always offer shard → inbox index. Operations on different
// rides map to independent shards and do not block each other.
type store struct {
	shards [shardCount]offerShard
	inbox  inboxIndex
}

type offerShard struct {
	mu     sync.Mutex
	offers map[types.ID]*Offer
}

func newStore() *store {
	s := &store{}
	for i := range s.shards {
		s.shards[i].offers = make(map[types.ID]*Offer)
	}
	s.inbox.entries = make(map[types.ID][]Notification)
	return s
}

func (s *store) shardFor(rideID types.ID) *offerShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(rideID))
	return &s.shards[h.Sum32()%shardCount]
}

// insert registers a new pending offer. onInserted runs while the ride's
// shard is still locked, so notification fan-out cannot interleave with a
// concurrent accept for the same ride.
func (s *store) insert(o *Offer, onInserted func()) error {
	sh := s.shardFor(o.RideID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.offers[o.RideID]; exists {
		return ErrOfferPending
	}
	sh.offers[o.RideID] = o
	if onInserted != nil {
		onInserted()
	}
	return nil
}

// update runs fn on the ride's pending offer under the shard lock. fn
// reports whether the offer should leave the pending table (settled or
// expired). A missing offer yields ErrOfferNotFound.
func (s *store) update(rideID types.ID, fn func(o *Offer) (remove bool, err error)) error {
	sh := s.shardFor(rideID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	o, ok := sh.offers[rideID]
	if !ok {
		return ErrOfferNotFound
	}
	remove, err := fn(o)
	if remove {
		delete(sh.offers, rideID)
	}
	return err
}

// get returns a deep copy so callers can never mutate shared state.
func (s *store) get(rideID types.ID) (Offer, bool) {
	sh := s.shardFor(rideID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	o, ok := sh.offers[rideID]
	if !ok {
		return Offer{}, false
	}
	return cloneOffer(o), true
}

// remove drops the pending offer if present. onRemoved runs under the shard
// lock with a copy of the removed offer.
func (s *store) remove(rideID types.ID, onRemoved func(Offer)) bool {
	sh := s.shardFor(rideID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	o, ok := sh.offers[rideID]
	if !ok {
		return false
	}
	delete(sh.offers, rideID)
	if onRemoved != nil {
		onRemoved(cloneOffer(o))
	}
	return true
}

func (s *store) pendingCount() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.offers)
		sh.mu.Unlock()
	}
	return n
}

// sweepOffers removes every pending offer for which expired returns true
// and hands each removed offer to onRemoved (still under that shard's lock).
func (s *store) sweepOffers(expired func(*Offer) bool, onRemoved func(Offer)) int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, o := range sh.offers {
			if !expired(o) {
				continue
			}
			delete(sh.offers, id)
			removed++
			if onRemoved != nil {
				onRemoved(cloneOffer(o))
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func cloneOffer(o *Offer) Offer {
	c := *o
	c.Candidates = append([]Candidate(nil), o.Candidates...)
	return c
}

// inboxIndex maps driver id → pending notifications. Reads hand out copies;
// mutations replace the slice rather than splicing it, so a snapshot held by
// a reader is never edited underneath it.
type inboxIndex struct {
	mu      sync.Mutex
	entries map[types.ID][]Notification
}

func (x *inboxIndex) push(driverID types.ID, n Notification) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[driverID] = append(append([]Notification(nil), x.entries[driverID]...), n)
}

// removeRide drops the driver's entry for one ride. Reports whether an entry
// was actually present, so double declines can be recognised as no-ops.
func (x *inboxIndex) removeRide(driverID, rideID types.ID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	old, ok := x.entries[driverID]
	if !ok {
		return false
	}
	kept := make([]Notification, 0, len(old))
	found := false
	for _, n := range old {
		if n.RideID == rideID {
			found = true
			continue
		}
		kept = append(kept, n)
	}
	if !found {
		return false
	}
	if len(kept) == 0 {
		delete(x.entries, driverID)
	} else {
		x.entries[driverID] = kept
	}
	return true
}

// purgeRide removes the ride from every driver's inbox (broadcast settle,
// cancel, expiry).
func (x *inboxIndex) purgeRide(rideID types.ID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for driverID, old := range x.entries {
		kept := make([]Notification, 0, len(old))
		for _, n := range old {
			if n.RideID != rideID {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			delete(x.entries, driverID)
		} else if len(kept) != len(old) {
			x.entries[driverID] = kept
		}
	}
}

// forDriver returns a copy of the driver's inbox with expired entries
// filtered out. Entries expiring exactly at now are already gone.
func (x *inboxIndex) forDriver(driverID types.ID, now time.Time) []Notification {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]Notification, 0, len(x.entries[driverID]))
	for _, n := range x.entries[driverID] {
		if !now.Before(n.ExpiresAt) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// sweep drops every expired entry across all inboxes.
func (x *inboxIndex) sweep(now time.Time) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	dropped := 0
	for driverID, old := range x.entries {
		kept := make([]Notification, 0, len(old))
		for _, n := range old {
			if !now.Before(n.ExpiresAt) {
				dropped++
				continue
			}
			kept = append(kept, n)
		}
		if len(kept) == 0 {
			delete(x.entries, driverID)
		} else if len(kept) != len(old) {
			x.entries[driverID] = kept
		}
	}
	return dropped
}

func (x *inboxIndex) driverCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}
