// README: Driver service — registration, availability, and live positions.
package driver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rebeca/internal/types"
)

type Service struct {
	store *Store
	log   *zap.Logger
}

func NewService(store *Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

type RegisterCommand struct {
	Name  string
	Phone string
	Plate string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (types.ID, error) {
	if cmd.Name == "" || cmd.Phone == "" {
		return "", ErrBadRequest
	}
	d := &Driver{
		ID:        types.ID(uuid.NewString()),
		Name:      cmd.Name,
		Phone:     cmd.Phone,
		Plate:     cmd.Plate,
		Status:    StatusOffline,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, d); err != nil {
		return "", err
	}
	s.log.Info("driver registered", zap.String("driver_id", string(d.ID)))
	return d.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

// SetStatus changes availability. Going offline also drops the driver from
// the geo presence set so the ranker never sees a stale position.
func (s *Service) SetStatus(ctx context.Context, id types.ID, status Status) error {
	if !ValidStatus(status) {
		return ErrBadRequest
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if status == StatusOffline {
		if err := s.store.ClearPosition(ctx, id); err != nil {
			s.log.Warn("clear position failed", zap.String("driver_id", string(id)), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) UpdatePosition(ctx context.Context, id types.ID, p types.Point) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.SetPosition(ctx, id, p)
}

// ListAvailable returns available drivers near the given point with their
// live positions attached. Drivers with no position are still returned
// (position nil); the candidate ranker filters them out.
func (s *Service) ListAvailable(ctx context.Context, near types.Point, radiusKm float64) ([]Driver, error) {
	nearby, err := s.store.NearbyIDs(ctx, near, radiusKm)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		return nil, nil
	}
	positions, err := s.store.Positions(ctx, nearby)
	if err != nil {
		return nil, err
	}

	available, err := s.store.ListByStatus(ctx, StatusAvailable)
	if err != nil {
		return nil, err
	}
	byID := make(map[types.ID]Driver, len(available))
	for _, d := range available {
		byID[d.ID] = d
	}

	// Keep the geo ordering; the directory filters by availability.
	out := make([]Driver, 0, len(nearby))
	for _, id := range nearby {
		d, ok := byID[id]
		if !ok {
			continue
		}
		d.Location = positions[id]
		out = append(out, d)
	}
	return out, nil
}
