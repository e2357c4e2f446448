// README: Driver-facing handlers — availability, position, offer inbox, ride actions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rebeca/internal/http/middleware"
	"rebeca/internal/modules/driver"
	"rebeca/internal/modules/ride"
	"rebeca/internal/types"
)

type DriverHandler struct {
	drivers *driver.Service
	rides   *ride.Service
}

func NewDriverHandler(drivers *driver.Service, rides *ride.Service) *DriverHandler {
	return &DriverHandler{drivers: drivers, rides: rides}
}

type registerDriverReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Plate string `json:"plate"`
}

func (h *DriverHandler) Register(c *gin.Context) {
	var req registerDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.drivers.Register(c.Request.Context(), driver.RegisterCommand{
		Name:  req.Name,
		Phone: req.Phone,
		Plate: req.Plate,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"driver_id": id})
}

type setStatusReq struct {
	Status string `json:"status"`
}

func (h *DriverHandler) SetStatus(c *gin.Context) {
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := types.ID(middleware.CallerUID(c))
	if err := h.drivers.SetStatus(c.Request.Context(), id, driver.Status(req.Status)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

type updatePositionReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *DriverHandler) UpdatePosition(c *gin.Context) {
	var req updatePositionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := types.ID(middleware.CallerUID(c))
	if err := h.drivers.UpdatePosition(c.Request.Context(), id, types.Point{Lat: req.Lat, Lng: req.Lng}); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Offers returns the driver's live offer inbox.
func (h *DriverHandler) Offers(c *gin.Context) {
	id := types.ID(middleware.CallerUID(c))
	offers := h.rides.OffersFor(id)
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

func (h *DriverHandler) Accept(c *gin.Context) {
	rideID := types.ID(c.Param("id"))
	driverID := types.ID(middleware.CallerUID(c))

	r, err := h.rides.DriverAccept(c.Request.Context(), rideID, driverID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

type declineReq struct {
	Reason string `json:"reason"`
}

func (h *DriverHandler) Decline(c *gin.Context) {
	var req declineReq
	_ = c.ShouldBindJSON(&req)

	rideID := types.ID(c.Param("id"))
	driverID := types.ID(middleware.CallerUID(c))

	out, err := h.rides.DriverDecline(c.Request.Context(), rideID, driverID, req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": out.Result, "attempt": out.Attempt})
}

func (h *DriverHandler) Start(c *gin.Context) {
	r, err := h.rides.DriverStart(c.Request.Context(),
		types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}

func (h *DriverHandler) Complete(c *gin.Context) {
	r, err := h.rides.DriverComplete(c.Request.Context(),
		types.ID(c.Param("id")), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRideResponse(r))
}
