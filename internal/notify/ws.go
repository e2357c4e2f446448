// README: Websocket delivery — live driver/rider sessions keyed by user id.
package notify

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rebeca/internal/types"
)

type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSHub holds the live websocket sessions. Drivers (and riders using the
// app rather than the chat channel) attach one session each; a new attach
// replaces the old session.
type WSHub struct {
	mu       sync.RWMutex
	sessions map[types.ID]*wsSession
	log      *zap.Logger
}

func NewWSHub(log *zap.Logger) *WSHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHub{sessions: make(map[types.ID]*wsSession), log: log}
}

func (h *WSHub) Attach(userID types.ID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.sessions[userID]; ok {
		_ = old.conn.Close()
	}
	h.sessions[userID] = &wsSession{conn: conn}
}

func (h *WSHub) Detach(userID types.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[userID]; ok {
		_ = s.conn.Close()
		delete(h.sessions, userID)
	}
}

func (h *WSHub) sessionFor(userID types.ID) (*wsSession, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[userID]
	return s, ok
}

func (h *WSHub) OfferToDriver(_ context.Context, driverID types.ID, msg OfferMessage) error {
	s, ok := h.sessionFor(driverID)
	if !ok {
		return ErrNoSession
	}
	if err := s.send(map[string]any{"type": "ride_offer", "offer": msg}); err != nil {
		h.log.Warn("ws offer delivery failed",
			zap.String("driver_id", string(driverID)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (h *WSHub) RideUpdateToRider(_ context.Context, riderID types.ID, msg RiderMessage) error {
	s, ok := h.sessionFor(riderID)
	if !ok {
		return ErrNoSession
	}
	if err := s.send(map[string]any{"type": "ride_update", "update": msg}); err != nil {
		h.log.Warn("ws rider update failed",
			zap.String("rider_id", string(riderID)),
			zap.Error(err),
		)
		return err
	}
	return nil
}
