// README: Driver store — directory rows in PostgreSQL, live positions in Redis GEO.
package driver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"rebeca/internal/types"
)

const driverGeoKey = "despatch:drivers"

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) Create(ctx context.Context, d *Driver) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (id, name, phone, plate, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(d.ID), d.Name, d.Phone, d.Plate, string(d.Status), d.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, plate, status, created_at
		FROM drivers WHERE id = $1`, string(id),
	)
	var d Driver
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Plate, &d.Status, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, status Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET status = $1 WHERE id = $2`,
		string(status), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListByStatus(ctx context.Context, status Status) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, plate, status, created_at
		FROM drivers WHERE status = $1
		ORDER BY created_at`, string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		var d Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.Plate, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetPosition records the driver's live position in the geo set.
func (s *Store) SetPosition(ctx context.Context, id types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

// ClearPosition removes the driver from the geo set (going offline).
func (s *Store) ClearPosition(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, driverGeoKey, string(id)).Err()
}

// NearbyIDs returns driver ids within radiusKm of p, nearest first.
func (s *Store) NearbyIDs(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

// Positions fetches live positions for the given ids; drivers with no
// recorded position come back with a nil entry.
func (s *Store) Positions(ctx context.Context, ids []types.ID) (map[types.ID]*types.Point, error) {
	if len(ids) == 0 {
		return map[types.ID]*types.Point{}, nil
	}
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = string(id)
	}
	pos, err := s.redis.GeoPos(ctx, driverGeoKey, members...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]*types.Point, len(ids))
	for i, p := range pos {
		if p == nil {
			out[ids[i]] = nil
			continue
		}
		out[ids[i]] = &types.Point{Lat: p.Latitude, Lng: p.Longitude}
	}
	return out, nil
}
