// README: Back-office entities — client accounts and fraud flags.
package admin

import (
	"errors"
	"time"

	"rebeca/internal/types"
)

type Client struct {
	ID        types.ID
	Name      string
	Phone     string
	CreatedAt time.Time
}

// CancellationStat is one rider's recent ride/cancel counts.
type CancellationStat struct {
	RiderID   types.ID
	Cancelled int
	Total     int
}

// FraudFlag marks a rider whose cancellation rate crossed the threshold.
type FraudFlag struct {
	ID        int64
	RiderID   types.ID
	Cancelled int
	Total     int
	Rate      float64
	CreatedAt time.Time
}

var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
)
