// README: Fare rules and quote breakdown for each ride category.
package pricing

import (
	"errors"
	"time"
)

// Rule is the tariff for one ride category. All amounts are centavos.
type Rule struct {
	Category        string
	BaseFare        int64
	PerKm           int64
	PerMin          int64
	MinFare         int64
	NightMultiplier float64
	Currency        string
	UpdatedAt       time.Time
}

// Quote is a priced trip with its component amounts.
type Quote struct {
	Total      int64
	Currency   string
	DistanceKm float64
	Duration   time.Duration
	Night      bool
	Breakdown  map[string]int64
}

var (
	ErrUnknownCategory = errors.New("unknown ride category")
	ErrBadRule         = errors.New("invalid pricing rule")
)
