package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// Cities is the fixed set of tracked cities, in display order.
	Cities []string

	GeocoderAPIKey  string
	GeocoderCountry string

	ForecastAPIKey  string
	ForecastBaseURL string

	// RefreshInterval controls how often forecasts are re-fetched.
	RefreshInterval time.Duration

	// ValkeyAddr is the address of the Redis-compatible cache server.
	ValkeyAddr string

	HTTPTimeout time.Duration
	Port        string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.GeocoderCountry = getenvDefault("GEOCODER_COUNTRY", "Russia")
	cfg.ForecastAPIKey = os.Getenv("FORECAST_API_KEY")
	cfg.ForecastBaseURL = os.Getenv("FORECAST_BASE_URL")

	intervalStr := getenvDefault("REFRESH_INTERVAL", "1h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = interval

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.ValkeyAddr = getenvDefault("VALKEY_ADDR", "127.0.0.1:6379")
	cfg.Port = getenvDefault("PORT", "8080")

	cities, err := loadCities()
	if err != nil {
		return nil, err
	}
	cfg.Cities = cities

	return cfg, nil
}

func loadCities() ([]string, error) {
	raw := getenvDefault("CITIES", "Nizhny Novgorod,Moscow,Saint Petersburg")

	var cities []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cities = append(cities, name)
	}
	if len(cities) == 0 {
		return nil, fmt.Errorf("CITIES must list at least one city")
	}

	return cities, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
