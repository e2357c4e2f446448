// README: Driver directory entities.
package driver

import (
	"errors"
	"time"

	"rebeca/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Driver is a directory row plus, when known, the live position from the
// geo presence set.
type Driver struct {
	ID        types.ID
	Name      string
	Phone     string
	Plate     string
	Status    Status
	Location  *types.Point
	CreatedAt time.Time
}

var (
	ErrNotFound   = errors.New("driver not found")
	ErrBadRequest = errors.New("bad request")
)
