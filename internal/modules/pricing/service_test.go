package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"rebeca/internal/types"
)

type fixedRules map[string]Rule

func (f fixedRules) RuleFor(_ context.Context, category string) (Rule, error) {
	r, ok := f[category]
	if !ok {
		return Rule{}, ErrUnknownCategory
	}
	return r, nil
}

type fixedRouter struct {
	duration time.Duration
	km       float64
	err      error
}

func (f fixedRouter) TravelEstimate(context.Context, types.Point, types.Point) (time.Duration, float64, error) {
	return f.duration, f.km, f.err
}

var standardRule = Rule{
	Category:        "standard",
	BaseFare:        500,
	PerKm:           180,
	PerMin:          40,
	MinFare:         800,
	NightMultiplier: 1.2,
	Currency:        "BRL",
}

func newTestService(router Router) *Service {
	s := NewService(fixedRules{"standard": standardRule}, router, nil)
	// Noon local time: day tariff.
	s.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, s.loc) }
	return s
}

var (
	osasco   = types.Point{Lat: -23.5327, Lng: -46.7917}
	paulista = types.Point{Lat: -23.5614, Lng: -46.6559}
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name      string
		router    Router
		hour      int
		wantTotal int64
	}{
		{
			// 500 + 1*180 + 2*40 = 760, topped up to the minimum.
			name:      "short trip hits minimum fare",
			router:    fixedRouter{duration: 2 * time.Minute, km: 1},
			hour:      12,
			wantTotal: 800,
		},
		{
			// 500 + 10*180 + 20*40 = 3100.
			name:      "typical trip day tariff",
			router:    fixedRouter{duration: 20 * time.Minute, km: 10},
			hour:      12,
			wantTotal: 3100,
		},
		{
			// 3100 * 1.2 = 3720.
			name:      "night multiplier after 22h",
			router:    fixedRouter{duration: 20 * time.Minute, km: 10},
			hour:      23,
			wantTotal: 3720,
		},
		{
			// 05:59 still counts as night.
			name:      "night multiplier before 6h",
			router:    fixedRouter{duration: 20 * time.Minute, km: 10},
			hour:      5,
			wantTotal: 3720,
		},
		{
			// 06:00 is day again.
			name:      "day tariff from 6h",
			router:    fixedRouter{duration: 20 * time.Minute, km: 10},
			hour:      6,
			wantTotal: 3100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(tt.router)
			s.now = func() time.Time { return time.Date(2026, 3, 10, tt.hour, 0, 0, 0, s.loc) }

			q, err := s.Quote(context.Background(), osasco, paulista, "standard")
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}
			if q.Total != tt.wantTotal {
				t.Fatalf("total = %d, want %d (breakdown %v)", q.Total, tt.wantTotal, q.Breakdown)
			}
			if q.Currency != "BRL" {
				t.Fatalf("currency = %s, want BRL", q.Currency)
			}
		})
	}
}

func TestQuote_UnknownCategory(t *testing.T) {
	s := newTestService(fixedRouter{duration: time.Minute, km: 1})
	if _, err := s.Quote(context.Background(), osasco, paulista, "helicopter"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("err = %v, want ErrUnknownCategory", err)
	}
}

func TestQuote_FallsBackToDirectLine(t *testing.T) {
	// No router at all: the direct line Osasco -> Paulista is roughly 14 km.
	s := newTestService(nil)
	q, err := s.Quote(context.Background(), osasco, paulista, "standard")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.DistanceKm < 13 || q.DistanceKm > 16 {
		t.Fatalf("distance = %.2f km, want roughly 14", q.DistanceKm)
	}
	if q.Duration <= 0 {
		t.Fatalf("duration = %v, want > 0", q.Duration)
	}
	if q.Total <= standardRule.BaseFare {
		t.Fatalf("total = %d, want above base fare", q.Total)
	}
}

func TestQuote_RouterErrorFallsBack(t *testing.T) {
	s := newTestService(fixedRouter{err: errors.New("quota exceeded")})
	q, err := s.Quote(context.Background(), osasco, paulista, "standard")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.DistanceKm < 13 || q.DistanceKm > 16 {
		t.Fatalf("distance = %.2f km, want roughly 14", q.DistanceKm)
	}
}

func TestEstimate(t *testing.T) {
	s := newTestService(fixedRouter{duration: 20 * time.Minute, km: 10})
	got, err := s.Estimate(context.Background(), osasco, paulista, "standard")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	want := types.Money{Amount: 3100, Currency: "BRL"}
	if got != want {
		t.Fatalf("estimate = %+v, want %+v", got, want)
	}
}
