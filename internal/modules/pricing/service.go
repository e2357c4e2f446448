// README: Pricing service computes fare estimates from stored tariffs.
package pricing

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"rebeca/internal/modules/despatch"
	"rebeca/internal/types"
)

// Fallback city speed used when no live route estimate is available.
const fallbackSpeedKmh = 25.0

// Night tariff applies from 22:00 up to 06:00 local time.
const (
	nightStartHour = 22
	nightEndHour   = 6
)

// RuleSource supplies tariffs; the PostgreSQL store implements it.
type RuleSource interface {
	RuleFor(ctx context.Context, category string) (Rule, error)
}

// Router supplies live driving estimates. Optional; distance falls back to
// the direct line and duration to an average city speed.
type Router interface {
	TravelEstimate(ctx context.Context, origin, destination types.Point) (time.Duration, float64, error)
}

type Service struct {
	rules  RuleSource
	router Router
	loc    *time.Location
	log    *zap.Logger
	now    func() time.Time
}

func NewService(rules RuleSource, router Router, log *zap.Logger) *Service {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{rules: rules, router: router, loc: loc, log: log, now: time.Now}
}

// Estimate prices a trip for the ride coordinator.
func (s *Service) Estimate(ctx context.Context, pickup, dropoff types.Point, category string) (types.Money, error) {
	q, err := s.Quote(ctx, pickup, dropoff, category)
	if err != nil {
		return types.Money{}, err
	}
	return types.Money{Amount: q.Total, Currency: q.Currency}, nil
}

// Quote prices a trip and returns the full breakdown.
func (s *Service) Quote(ctx context.Context, pickup, dropoff types.Point, category string) (Quote, error) {
	rule, err := s.rules.RuleFor(ctx, category)
	if err != nil {
		return Quote{}, err
	}

	distanceKm, duration := s.travel(ctx, pickup, dropoff)
	night := s.isNight(s.now().In(s.loc))

	breakdown := map[string]int64{
		"base":     rule.BaseFare,
		"distance": round64(distanceKm * float64(rule.PerKm)),
		"time":     round64(duration.Minutes() * float64(rule.PerMin)),
	}
	total := breakdown["base"] + breakdown["distance"] + breakdown["time"]

	if night && rule.NightMultiplier > 1 {
		surcharge := round64(float64(total)*rule.NightMultiplier) - total
		breakdown["night"] = surcharge
		total += surcharge
	}
	if total < rule.MinFare {
		breakdown["minimum_topup"] = rule.MinFare - total
		total = rule.MinFare
	}

	return Quote{
		Total:      total,
		Currency:   rule.Currency,
		DistanceKm: distanceKm,
		Duration:   duration,
		Night:      night,
		Breakdown:  breakdown,
	}, nil
}

// travel returns distance and duration, preferring the live router.
func (s *Service) travel(ctx context.Context, pickup, dropoff types.Point) (float64, time.Duration) {
	if s.router != nil {
		if d, km, err := s.router.TravelEstimate(ctx, pickup, dropoff); err == nil {
			return km, d
		} else {
			s.log.Warn("route estimate failed, using direct line", zap.Error(err))
		}
	}
	km := despatch.DistanceKm(pickup.Lat, pickup.Lng, dropoff.Lat, dropoff.Lng)
	duration := time.Duration(km / fallbackSpeedKmh * float64(time.Hour))
	return km, duration
}

func (s *Service) isNight(t time.Time) bool {
	h := t.Hour()
	return h >= nightStartHour || h < nightEndHour
}

func round64(v float64) int64 {
	return int64(math.Round(v))
}
