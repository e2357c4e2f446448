// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) RuleFor(ctx context.Context, category string) (Rule, error) {
	row := s.db.QueryRow(ctx, `
		SELECT category, base_fare, per_km, per_min, min_fare, night_multiplier, currency, updated_at
		FROM pricing_rules WHERE category = $1`, category,
	)
	var r Rule
	err := row.Scan(&r.Category, &r.BaseFare, &r.PerKm, &r.PerMin, &r.MinFare, &r.NightMultiplier, &r.Currency, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrUnknownCategory
	}
	if err != nil {
		return Rule{}, err
	}
	return r, nil
}

func (s *Store) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT category, base_fare, per_km, per_min, min_fare, night_multiplier, currency, updated_at
		FROM pricing_rules ORDER BY category`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.Category, &r.BaseFare, &r.PerKm, &r.PerMin, &r.MinFare, &r.NightMultiplier, &r.Currency, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertRule writes the tariff for a category, replacing any previous one.
func (s *Store) UpsertRule(ctx context.Context, r Rule) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO pricing_rules (category, base_fare, per_km, per_min, min_fare, night_multiplier, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (category) DO UPDATE SET
			base_fare = EXCLUDED.base_fare,
			per_km = EXCLUDED.per_km,
			per_min = EXCLUDED.per_min,
			min_fare = EXCLUDED.min_fare,
			night_multiplier = EXCLUDED.night_multiplier,
			currency = EXCLUDED.currency,
			updated_at = NOW()`,
		r.Category, r.BaseFare, r.PerKm, r.PerMin, r.MinFare, r.NightMultiplier, r.Currency,
	)
	return err
}
