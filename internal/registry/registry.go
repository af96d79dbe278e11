package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"weather-widget/internal/forecast"
	"weather-widget/internal/geo"
	"weather-widget/internal/store"
)

// Well-known cache locations. The cities key holds the full name→coordinates
// mapping; the forecast hash holds one field per city name.
const (
	citiesKey    = "cities"
	forecastHash = "forecast"
)

// ErrUnknownCity is returned for lookups outside the configured city set.
var ErrUnknownCity = errors.New("city is not configured")

// Registry owns the authoritative in-memory map from city name to
// coordinates and forecast. It is populated from the cache or from the
// geocoding/forecast providers; the store is the durability boundary and the
// registry is rebuilt from it on each process start.
//
// Readers are served from the last-known state and never wait on in-flight
// fetches.
type Registry struct {
	store      store.Store
	geocoder   geo.Geocoder
	forecaster forecast.Client

	// now is the clock used for week filtering; overridable in tests.
	now func() time.Time

	mu       sync.RWMutex
	order    []string
	entries  map[string]*Entry
	inflight map[string]bool
}

// New creates a Registry for the fixed city set. The set never grows or
// shrinks at runtime.
func New(cities []string, st store.Store, geocoder geo.Geocoder, forecaster forecast.Client) *Registry {
	entries := make(map[string]*Entry, len(cities))
	order := make([]string, 0, len(cities))
	for _, name := range cities {
		entries[name] = &Entry{Name: name}
		order = append(order, name)
	}

	return &Registry{
		store:      st,
		geocoder:   geocoder,
		forecaster: forecaster,
		now:        time.Now,
		order:      order,
		entries:    entries,
		inflight:   make(map[string]bool),
	}
}

// Cities returns the configured city names in configured order.
func (r *Registry) Cities() []string {
	cities := make([]string, len(r.order))
	copy(cities, r.order)
	return cities
}

// City returns a snapshot of one city's state. Coordinates and Forecast may
// be nil while a fetch is pending or has failed.
func (r *Registry) City(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownCity, name)
	}
	return r.snapshot(entry), nil
}

// Coordinates returns the city's coordinates, or nil if not yet resolved.
func (r *Registry) Coordinates(name string) (*geo.Coordinates, error) {
	entry, err := r.City(name)
	if err != nil {
		return nil, err
	}
	return entry.Coordinates, nil
}

// Forecast returns the city's last-known forecast, or nil if none was
// fetched yet.
func (r *Registry) Forecast(name string) (*Forecast, error) {
	entry, err := r.City(name)
	if err != nil {
		return nil, err
	}
	return entry.Forecast, nil
}

// Init runs the startup sequence: coordinates from cache or one batched
// geocoder request, cached forecasts as seed values, then a first refresh
// pass. A geocoding failure leaves every city without coordinates; forecasts
// are then not fetched until the next process start.
func (r *Registry) Init(ctx context.Context) error {
	if err := r.initCoordinates(ctx); err != nil {
		return err
	}
	r.seedForecasts(ctx)
	r.RefreshAll(ctx)
	return nil
}

func (r *Registry) initCoordinates(ctx context.Context) error {
	var cached map[string]geo.Coordinates
	if err := r.store.GetObject(ctx, citiesKey, &cached); err == nil {
		log.Printf("registry: loaded city coordinates from cache")
		r.setCoordinates(cached)
		return nil
	} else {
		log.Printf("INFO: registry: no cached coordinates: %v", err)
	}

	resolved, err := r.geocoder.Resolve(ctx, r.Cities())
	if err != nil {
		return fmt.Errorf("resolve city coordinates: %w", err)
	}
	r.setCoordinates(resolved)

	// Memory already holds the values; a failed cache write is not fatal.
	if err := r.store.SetObject(ctx, citiesKey, resolved); err != nil {
		log.Printf("registry: could not cache city coordinates: %v", err)
	}
	return nil
}

func (r *Registry) setCoordinates(coords map[string]geo.Coordinates) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, entry := range r.entries {
		if c, ok := coords[name]; ok {
			c := c
			entry.Coordinates = &c
		}
	}
}

// seedForecasts loads cached forecasts so the widget has data before the
// first live fetch completes. Only cities with coordinates are seeded.
func (r *Registry) seedForecasts(ctx context.Context) {
	for _, name := range r.Cities() {
		r.mu.RLock()
		hasCoords := r.entries[name].Coordinates != nil
		r.mu.RUnlock()
		if !hasCoords {
			continue
		}

		var fc Forecast
		if err := r.store.HashGetObject(ctx, forecastHash, name, &fc); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("registry: could not read cached forecast for %s: %v", name, err)
			}
			continue
		}

		r.mu.Lock()
		r.entries[name].Forecast = &fc
		r.mu.Unlock()
	}
}

// RefreshAll runs one forecast refresh cycle for every city with resolved
// coordinates and waits for the cycle to finish. Errors are logged per city
// and never propagated; a failed fetch keeps the previous value.
func (r *Registry) RefreshAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range r.Cities() {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.refreshCity(ctx, name)
		}()
	}
	wg.Wait()
}

func (r *Registry) refreshCity(ctx context.Context, name string) {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if !ok || entry.Coordinates == nil {
		r.mu.Unlock()
		return
	}
	if r.inflight[name] {
		// A refresh for this city is already running; the scheduled tick
		// will pick up fresh data next time around.
		r.mu.Unlock()
		log.Printf("registry: refresh already in flight for %s; skipping", name)
		return
	}
	r.inflight[name] = true
	coords := *entry.Coordinates
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inflight, name)
		r.mu.Unlock()
	}()

	raw, err := r.forecaster.Fetch(ctx, coords.Lat, coords.Lng)
	if err != nil {
		log.Printf("registry: forecast fetch failed for %s: %v", name, err)
		return
	}

	fc := buildForecast(raw, r.now())

	r.mu.Lock()
	entry.Forecast = &fc
	r.mu.Unlock()

	if err := r.store.HashSetObject(ctx, forecastHash, name, fc); err != nil {
		log.Printf("registry: could not cache forecast for %s: %v", name, err)
	}
}

// snapshot copies an entry so readers never observe later mutations.
// Callers must hold at least a read lock.
func (r *Registry) snapshot(entry *Entry) Entry {
	out := Entry{Name: entry.Name}
	if entry.Coordinates != nil {
		c := *entry.Coordinates
		out.Coordinates = &c
	}
	if entry.Forecast != nil {
		fc := Forecast{Current: entry.Forecast.Current}
		fc.Week = make([]DailyForecast, len(entry.Forecast.Week))
		copy(fc.Week, entry.Forecast.Week)
		out.Forecast = &fc
	}
	return out
}
