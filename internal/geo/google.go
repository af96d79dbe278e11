package geo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"
)

// GoogleGeocoder resolves city names through the Google Maps geocoding API.
// Lookups for a batch run concurrently, one request per name, guarded by a
// shared circuit breaker.
type GoogleGeocoder struct {
	country string
	circuit *gobreaker.CircuitBreaker

	// geocode is the per-address lookup; overridable in tests.
	geocode func(address geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder configures the Google Maps API key and a country bias
// appended to every lookup.
func NewGoogleGeocoder(apiKey, country string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &GoogleGeocoder{
		country: country,
		circuit: cb,
		geocode: geocoder.Geocoding,
	}
}

func (g *GoogleGeocoder) Resolve(ctx context.Context, names []string) (map[string]Coordinates, error) {
	if len(names) == 0 {
		return map[string]Coordinates{}, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		result   = make(map[string]Coordinates, len(names))
		firstErr error
	)

	for _, name := range names {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()

			if ctx.Err() != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}

			location, err := g.circuit.Execute(func() (interface{}, error) {
				return g.geocode(geocoder.Address{City: name, Country: g.country})
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("geocode %q: %w", name, err)
				}
				return
			}

			loc, ok := location.(geocoder.Location)
			if !ok {
				if firstErr == nil {
					firstErr = fmt.Errorf("geocode %q: unexpected result type", name)
				}
				return
			}

			result[name] = Coordinates{Lat: loc.Latitude, Lng: loc.Longitude}
		}()
	}

	wg.Wait()

	// All names must resolve; a single failure voids the batch.
	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

var _ Geocoder = (*GoogleGeocoder)(nil)
