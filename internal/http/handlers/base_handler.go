// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rebeca/internal/modules/admin"
	"rebeca/internal/modules/despatch"
	"rebeca/internal/modules/driver"
	"rebeca/internal/modules/pricing"
	"rebeca/internal/modules/ride"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinel errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest),
		errors.Is(err, driver.ErrBadRequest),
		errors.Is(err, admin.ErrBadRequest),
		errors.Is(err, despatch.ErrInvalidMode),
		errors.Is(err, pricing.ErrBadRule):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound),
		errors.Is(err, driver.ErrNotFound),
		errors.Is(err, admin.ErrNotFound),
		errors.Is(err, despatch.ErrOfferNotFound),
		errors.Is(err, pricing.ErrUnknownCategory):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, despatch.ErrOfferExpired):
		writeError(c, http.StatusGone, err.Error())
	case errors.Is(err, ride.ErrInvalidState),
		errors.Is(err, ride.ErrConflict),
		errors.Is(err, ride.ErrActiveRide),
		errors.Is(err, despatch.ErrOfferPending),
		errors.Is(err, despatch.ErrWrongDriver):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
