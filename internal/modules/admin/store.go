// README: Back-office store backed by PostgreSQL.
package admin

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rebeca/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CreateClient(ctx context.Context, c *Client) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO clients (id, name, phone, created_at)
		VALUES ($1, $2, $3, $4)`,
		string(c.ID), c.Name, c.Phone, c.CreatedAt,
	)
	return err
}

func (s *Store) GetClient(ctx context.Context, id types.ID) (*Client, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, created_at FROM clients WHERE id = $1`, string(id),
	)
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, created_at FROM clients ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CancellationStats aggregates per-rider cancel counts for rides created
// since the cutoff. Riders below minRides are left out of the scan.
func (s *Store) CancellationStats(ctx context.Context, since time.Time, minRides int) ([]CancellationStat, error) {
	rows, err := s.db.Query(ctx, `
		SELECT rider_id,
		       COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled,
		       COUNT(*) AS total
		FROM rides
		WHERE created_at >= $1
		GROUP BY rider_id
		HAVING COUNT(*) >= $2`, since, minRides,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CancellationStat
	for rows.Next() {
		var st CancellationStat
		if err := rows.Scan(&st.RiderID, &st.Cancelled, &st.Total); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) InsertFlag(ctx context.Context, f *FraudFlag) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO fraud_flags (rider_id, cancelled, total, rate, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(f.RiderID), f.Cancelled, f.Total, f.Rate, f.CreatedAt,
	)
	return err
}

func (s *Store) ListFlags(ctx context.Context, limit int) ([]FraudFlag, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, rider_id, cancelled, total, rate, created_at
		FROM fraud_flags ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FraudFlag
	for rows.Next() {
		var f FraudFlag
		if err := rows.Scan(&f.ID, &f.RiderID, &f.Cancelled, &f.Total, &f.Rate, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
