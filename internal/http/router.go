// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rebeca/internal/http/handlers"
	"rebeca/internal/http/middleware"
	"rebeca/internal/infra"
	"rebeca/internal/modules/admin"
	"rebeca/internal/modules/driver"
	"rebeca/internal/modules/pricing"
	"rebeca/internal/modules/ride"
	"rebeca/internal/notify"
)

type RouterDeps struct {
	Rides    *ride.Service
	Drivers  *driver.Service
	Admin    *admin.Service
	Pricing  *pricing.Service
	Hub      *notify.WSHub
	Geocoder handlers.Geocoder
	Verifier infra.TokenVerifier
	Log      *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit(20, 40))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rideHandler := handlers.NewRideHandler(deps.Rides, deps.Pricing, deps.Geocoder, log)
	driverHandler := handlers.NewDriverHandler(deps.Drivers, deps.Rides)
	adminHandler := handlers.NewAdminHandler(deps.Admin)
	wsHandler := handlers.NewWSHandler(deps.Hub, log)

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	api.POST("/rides", rideHandler.Request)
	api.POST("/quotes", rideHandler.Quote)
	api.GET("/rides/:id", rideHandler.Get)
	api.POST("/rides/:id/cancel", rideHandler.Cancel)

	api.PUT("/drivers/status", driverHandler.SetStatus)
	api.PUT("/drivers/location", driverHandler.UpdatePosition)
	api.GET("/drivers/offers", driverHandler.Offers)
	api.POST("/rides/:id/accept", driverHandler.Accept)
	api.POST("/rides/:id/decline", driverHandler.Decline)
	api.POST("/rides/:id/start", driverHandler.Start)
	api.POST("/rides/:id/complete", driverHandler.Complete)

	adm := api.Group("/admin", middleware.RequireRole("admin"))
	adm.POST("/drivers", driverHandler.Register)
	adm.POST("/clients", adminHandler.RegisterClient)
	adm.GET("/clients", adminHandler.ListClients)
	adm.PUT("/despatch/settings", adminHandler.ConfigureDespatch)
	adm.GET("/despatch/stats", adminHandler.DespatchStats)
	adm.PUT("/pricing/rules", adminHandler.SetPricingRule)
	adm.GET("/pricing/rules", adminHandler.ListPricingRules)
	adm.GET("/fraud/flags", adminHandler.FraudFlags)
	adm.POST("/fraud/scan", adminHandler.ScanFraud)

	r.GET("/ws", middleware.Auth(deps.Verifier), wsHandler.Attach)

	return r
}
