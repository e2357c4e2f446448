// README: Rider-facing ride handlers — request, quote, status, cancel.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rebeca/internal/http/middleware"
	"rebeca/internal/modules/pricing"
	"rebeca/internal/modules/ride"
	"rebeca/internal/types"
)

// Geocoder resolves coordinates to a pickup label. Optional.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

type RideHandler struct {
	rides    *ride.Service
	pricing  *pricing.Service
	geocoder Geocoder
	log      *zap.Logger
}

func NewRideHandler(rides *ride.Service, pricingSvc *pricing.Service, geocoder Geocoder, log *zap.Logger) *RideHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RideHandler{rides: rides, pricing: pricingSvc, geocoder: geocoder, log: log}
}

type requestRideReq struct {
	PickupLat  float64 `json:"pickup_lat" binding:"required"`
	PickupLng  float64 `json:"pickup_lng" binding:"required"`
	DropoffLat float64 `json:"dropoff_lat" binding:"required"`
	DropoffLng float64 `json:"dropoff_lng" binding:"required"`
	PickupName string  `json:"pickup_name"`
	Category   string  `json:"category"`
}

type rideResponse struct {
	RideID        types.ID    `json:"ride_id"`
	Status        ride.Status `json:"status"`
	DriverID      *types.ID   `json:"driver_id,omitempty"`
	EstimatedFare int64       `json:"estimated_fare"`
	Currency      string      `json:"currency"`
	PickupName    string      `json:"pickup_name,omitempty"`
}

func toRideResponse(r *ride.Ride) rideResponse {
	return rideResponse{
		RideID:        r.ID,
		Status:        r.Status,
		DriverID:      r.DriverID,
		EstimatedFare: r.EstimatedFare.Amount,
		Currency:      r.EstimatedFare.Currency,
		PickupName:    r.PickupName,
	}
}

func (h *RideHandler) Request(c *gin.Context) {
	var req requestRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pickup := types.Point{Lat: req.PickupLat, Lng: req.PickupLng}

	pickupName := req.PickupName
	if pickupName == "" && h.geocoder != nil {
		geoCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		name, err := h.geocoder.ReverseGeocode(geoCtx, pickup)
		cancel()
		if err != nil {
			h.log.Warn("reverse geocode failed", zap.Error(err))
		} else {
			pickupName = name
		}
	}

	r, err := h.rides.Request(c.Request.Context(), ride.RequestCommand{
		RiderID:    types.ID(middleware.CallerUID(c)),
		Pickup:     pickup,
		Dropoff:    types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		PickupName: pickupName,
		Category:   req.Category,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRideResponse(r))
}

type quoteReq struct {
	PickupLat  float64 `json:"pickup_lat" binding:"required"`
	PickupLng  float64 `json:"pickup_lng" binding:"required"`
	DropoffLat float64 `json:"dropoff_lat" binding:"required"`
	DropoffLng float64 `json:"dropoff_lng" binding:"required"`
	Category   string  `json:"category"`
}

func (h *RideHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Category == "" {
		req.Category = "standard"
	}
	q, err := h.pricing.Quote(c.Request.Context(),
		types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		req.Category,
	)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":        q.Total,
		"currency":     q.Currency,
		"distance_km":  q.DistanceKm,
		"duration_min": int(q.Duration.Minutes()),
		"night":        q.Night,
		"breakdown":    q.Breakdown,
	})
}

func (h *RideHandler) Get(c *gin.Context) {
	id := types.ID(c.Param("id"))
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	caller := types.ID(middleware.CallerUID(c))
	if r.RiderID != caller && (r.DriverID == nil || *r.DriverID != caller) && middleware.CallerRole(c) != "admin" {
		writeError(c, http.StatusNotFound, ride.ErrNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

type cancelRideReq struct {
	Reason string `json:"reason"`
}

func (h *RideHandler) Cancel(c *gin.Context) {
	var req cancelRideReq
	_ = c.ShouldBindJSON(&req)

	err := h.rides.CancelByRider(c.Request.Context(),
		types.ID(c.Param("id")),
		types.ID(middleware.CallerUID(c)),
		req.Reason,
	)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": ride.StatusCancelled})
}
