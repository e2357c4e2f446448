// README: Entry point; loads config, wires services, starts HTTP server and background loops.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rebeca/internal/config"
	httptransport "rebeca/internal/http"
	"rebeca/internal/infra"
	"rebeca/internal/logging"
	"rebeca/internal/maps"
	"rebeca/internal/modules/admin"
	"rebeca/internal/modules/despatch"
	"rebeca/internal/modules/driver"
	"rebeca/internal/modules/pricing"
	"rebeca/internal/modules/ride"
	"rebeca/internal/notify"
)

const fraudScanInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := infra.NewJWTVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("auth init", zap.Error(err))
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("database init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var router pricing.Router
	var geocoder *maps.GeocodeService
	if cfg.Pricing.MapsKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Pricing.MapsKey)
		if err != nil {
			logger.Fatal("maps init", zap.Error(err))
		}
		router = routeSvc
		geocoder, err = maps.NewGeocodeService(cfg.Pricing.MapsKey)
		if err != nil {
			logger.Fatal("maps init", zap.Error(err))
		}
	} else {
		logger.Warn("REBECA_MAPS_API_KEY unset; estimates use direct-line distance")
	}

	pricingStore := pricing.NewStore(dbPool)
	pricingSvc := pricing.NewService(pricingStore, router, logger)

	driverStore := driver.NewStore(dbPool, redisClient)
	driverSvc := driver.NewService(driverStore, logger)

	hub := notify.NewWSHub(logger)
	notifier := notify.Fanout{hub}
	if cfg.Notify.WebhookURL != "" {
		notifier = append(notifier, notify.NewChatBridge(cfg.Notify.WebhookURL, logger))
	}

	mode, err := despatch.ParseMode(cfg.Despatch.Mode)
	if err != nil {
		logger.Fatal("despatch config", zap.Error(err))
	}
	engine := despatch.NewEngine(despatch.Settings{
		Mode:         mode,
		AcceptWindow: cfg.Despatch.AcceptWindow(),
		MaxAttempts:  cfg.Despatch.MaxAttempts,
	}, logger)

	rideStore := ride.NewStore(dbPool)
	rideSvc := ride.NewService(rideStore, driverSvc, engine, pricingSvc, notifier, cfg.Despatch.SearchRadiusKm, logger)

	adminStore := admin.NewStore(dbPool)
	adminSvc := admin.NewService(adminStore, pricingStore, engine, logger)

	deps := httptransport.RouterDeps{
		Rides:    rideSvc,
		Drivers:  driverSvc,
		Admin:    adminSvc,
		Pricing:  pricingSvc,
		Hub:      hub,
		Verifier: verifier,
		Log:      logger,
	}
	if geocoder != nil {
		deps.Geocoder = geocoder
	}
	handler := httptransport.NewRouter(deps)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go engine.RunSweeper(ctx, cfg.Despatch.SweepInterval())
	go rideSvc.RunExpiryMonitor(ctx, cfg.Despatch.SweepInterval())
	go adminSvc.RunFraudMonitor(ctx, fraudScanInterval)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
