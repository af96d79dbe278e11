package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"

	httpapi "weather-widget/internal/api/http"
	"weather-widget/internal/config"
	"weather-widget/internal/forecast"
	"weather-widget/internal/geo"
	"weather-widget/internal/registry"
	"weather-widget/internal/scheduler"
	"weather-widget/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	st := newStore(cfg)

	geocoder := geo.NewGoogleGeocoder(cfg.GeocoderAPIKey, cfg.GeocoderCountry)
	forecaster := forecast.NewDarkSkyClient(httpClient, cfg.ForecastAPIKey, cfg.ForecastBaseURL)

	reg := registry.New(cfg.Cities, st, geocoder, forecaster)

	// Startup fetches run in the background; the widget serves 404 for a
	// city until its data arrives.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := reg.Init(ctx); err != nil {
			log.Printf("registry initialization failed: %v", err)
		}
	}()

	// Scheduler that periodically refreshes forecasts.
	sched := scheduler.New(reg, cfg.RefreshInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(reg)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// newStore connects to the Valkey server; when it is unreachable the service
// falls back to an in-memory store so the widget still works, just without
// durability across restarts.
func newStore(cfg *config.AppConfig) store.Store {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.ValkeyAddr}})
	if err != nil {
		log.Printf("could not create valkey client, falling back to memory store: %v", err)
		return store.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		log.Printf("valkey ping failed, falling back to memory store: %v", err)
		return store.NewMemoryStore()
	}

	return store.NewValkeyStore(client)
}
