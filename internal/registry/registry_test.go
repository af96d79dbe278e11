package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"weather-widget/internal/forecast"
	"weather-widget/internal/geo"
	"weather-widget/internal/store"
)

type fakeGeocoder struct {
	mu     sync.Mutex
	calls  [][]string
	result map[string]geo.Coordinates
	err    error
}

func (f *fakeGeocoder) Resolve(_ context.Context, names []string) (map[string]geo.Coordinates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := make([]string, len(names))
	copy(call, names)
	f.calls = append(f.calls, call)

	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeGeocoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeForecaster struct {
	mu    sync.Mutex
	calls int
	resp  forecast.Response
	err   error
}

func (f *fakeForecaster) Fetch(_ context.Context, _, _ float64) (forecast.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return forecast.Response{}, f.err
	}
	return f.resp, nil
}

func (f *fakeForecaster) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeForecaster) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failWriteStore rejects every write while delegating reads to the wrapped store.
type failWriteStore struct {
	store.Store
}

func (s failWriteStore) Set(context.Context, string, string) error {
	return errors.New("store write rejected")
}

func (s failWriteStore) SetObject(context.Context, string, any) error {
	return errors.New("store write rejected")
}

func (s failWriteStore) HashSet(context.Context, string, string, string) error {
	return errors.New("store write rejected")
}

func (s failWriteStore) HashSetObject(context.Context, string, string, any) error {
	return errors.New("store write rejected")
}

var testCoords = map[string]geo.Coordinates{
	"A": {Lat: 1, Lng: 2},
	"B": {Lat: 3, Lng: 4},
}

func testResponse(now time.Time) forecast.Response {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var resp forecast.Response
	resp.Currently = forecast.DataPoint{Time: 100, Summary: "Clear", Temperature: 20, WindSpeed: 3, Humidity: 0.5}
	resp.Daily.Data = []forecast.DataPoint{
		// Out of order on purpose; yesterday must be dropped.
		{Time: midnight.AddDate(0, 0, 1).Unix(), Summary: "Cloudy", TemperatureMin: 3, TemperatureMax: 8},
		{Time: midnight.AddDate(0, 0, -1).Unix(), Summary: "Gone", TemperatureMin: -1, TemperatureMax: 1},
		{Time: midnight.Unix(), Summary: "Rain", TemperatureMin: 5, TemperatureMax: 10},
	}
	return resp
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
}

func TestCitiesReturnsConfiguredOrder(t *testing.T) {
	gc := &fakeGeocoder{err: errors.New("provider down")}
	reg := New([]string{"B", "A"}, store.NewMemoryStore(), gc, &fakeForecaster{})

	_ = reg.Init(context.Background())

	cities := reg.Cities()
	if len(cities) != 2 || cities[0] != "B" || cities[1] != "A" {
		t.Fatalf("unexpected city list: %v", cities)
	}
}

func TestUnknownCityLookups(t *testing.T) {
	reg := New([]string{"A"}, store.NewMemoryStore(), &fakeGeocoder{}, &fakeForecaster{})

	if _, err := reg.City("Z"); !errors.Is(err, ErrUnknownCity) {
		t.Fatalf("City: expected ErrUnknownCity, got %v", err)
	}
	if _, err := reg.Coordinates("Z"); !errors.Is(err, ErrUnknownCity) {
		t.Fatalf("Coordinates: expected ErrUnknownCity, got %v", err)
	}
	if _, err := reg.Forecast("Z"); !errors.Is(err, ErrUnknownCity) {
		t.Fatalf("Forecast: expected ErrUnknownCity, got %v", err)
	}
}

func TestInitFromCachedCoordinates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.SetObject(ctx, "cities", testCoords); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gc := &fakeGeocoder{}
	reg := New([]string{"A", "B"}, st, gc, &fakeForecaster{})

	if err := reg.Init(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gc.callCount() != 0 {
		t.Fatalf("geocoder should not be called on cache hit, got %d calls", gc.callCount())
	}
	for name, want := range testCoords {
		got, err := reg.Coordinates(name)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || *got != want {
			t.Fatalf("coordinates for %s: got %+v, want %+v", name, got, want)
		}
	}
}

func TestInitFromGeocoder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	gc := &fakeGeocoder{result: testCoords}
	reg := New([]string{"A", "B"}, st, gc, &fakeForecaster{})

	if err := reg.Init(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gc.callCount() != 1 {
		t.Fatalf("expected exactly one geocoder call, got %d", gc.callCount())
	}
	if len(gc.calls[0]) != 2 || gc.calls[0][0] != "A" || gc.calls[0][1] != "B" {
		t.Fatalf("expected batched call with all cities, got %v", gc.calls[0])
	}

	got, err := reg.Coordinates("A")
	if err != nil || got == nil || *got != (geo.Coordinates{Lat: 1, Lng: 2}) {
		t.Fatalf("coordinates for A: got %+v, err %v", got, err)
	}

	// The full mapping must now be persisted under the cities key.
	var cached map[string]geo.Coordinates
	if err := st.GetObject(ctx, "cities", &cached); err != nil {
		t.Fatalf("expected cached coordinates, got %v", err)
	}
	if cached["A"] != testCoords["A"] || cached["B"] != testCoords["B"] {
		t.Fatalf("unexpected cached mapping: %+v", cached)
	}
}

func TestInitGeocoderFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	gc := &fakeGeocoder{err: errors.New("provider down")}
	fc := &fakeForecaster{}
	reg := New([]string{"A", "B"}, st, gc, fc)

	if err := reg.Init(ctx); err == nil {
		t.Fatal("expected error from Init on geocoding failure")
	}

	for _, name := range []string{"A", "B"} {
		coords, err := reg.Coordinates(name)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if coords != nil {
			t.Fatalf("coordinates for %s should be unset, got %+v", name, coords)
		}
	}
	if fc.callCount() != 0 {
		t.Fatalf("no forecast fetch should happen without coordinates, got %d", fc.callCount())
	}
	if _, err := st.Get(ctx, "cities"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("no cache write should happen on geocoding failure, got %v", err)
	}
}

func TestInitPersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	gc := &fakeGeocoder{result: testCoords}
	reg := New([]string{"A", "B"}, failWriteStore{store.NewMemoryStore()}, gc, &fakeForecaster{})

	if err := reg.Init(ctx); err != nil {
		t.Fatalf("cache write failure must not fail Init: %v", err)
	}

	got, err := reg.Coordinates("A")
	if err != nil || got == nil || *got != (geo.Coordinates{Lat: 1, Lng: 2}) {
		t.Fatalf("in-memory coordinates must survive a failed cache write, got %+v, err %v", got, err)
	}
}

func TestRefreshBuildsFilteredWeek(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.SetObject(ctx, "cities", testCoords); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := fixedNow()
	fc := &fakeForecaster{resp: testResponse(now)}
	reg := New([]string{"A", "B"}, st, &fakeGeocoder{}, fc)
	reg.now = func() time.Time { return now }

	if err := reg.Init(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := reg.Forecast("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected forecast to be set")
	}

	if result.Current.Summary != "Clear" || result.Current.Temperature != 20 {
		t.Fatalf("unexpected current conditions: %+v", result.Current)
	}

	// Yesterday dropped, remaining days sorted ascending.
	if len(result.Week) != 2 {
		t.Fatalf("expected 2 week entries, got %d", len(result.Week))
	}
	if result.Week[0].Summary != "Rain" || result.Week[1].Summary != "Cloudy" {
		t.Fatalf("unexpected week order: %+v", result.Week)
	}
	if result.Week[0].TemperatureMin != 5 || result.Week[0].TemperatureMax != 10 {
		t.Fatalf("unexpected temperature split: %+v", result.Week[0])
	}

	// The fresh forecast must be persisted per city.
	var cached Forecast
	if err := st.HashGetObject(ctx, "forecast", "A", &cached); err != nil {
		t.Fatalf("expected cached forecast, got %v", err)
	}
	if len(cached.Week) != 2 {
		t.Fatalf("unexpected cached week length: %d", len(cached.Week))
	}
}

func TestRefreshFailureKeepsPreviousForecast(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.SetObject(ctx, "cities", testCoords); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := fixedNow()
	fc := &fakeForecaster{resp: testResponse(now)}
	reg := New([]string{"A"}, st, &fakeGeocoder{}, fc)
	reg.now = func() time.Time { return now }

	if err := reg.Init(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fc.setError(errors.New("provider down"))
	reg.RefreshAll(ctx)

	result, err := reg.Forecast("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Current.Summary != "Clear" {
		t.Fatalf("previous forecast must be kept on refresh failure, got %+v", result)
	}
}

func TestRefreshFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.SetObject(ctx, "cities", testCoords); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fc := &fakeForecaster{err: errors.New("provider down")}
	reg := New([]string{"A"}, st, &fakeGeocoder{}, fc)

	if err := reg.Init(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := reg.Forecast("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("forecast should stay unset, got %+v", result)
	}
	if _, err := st.HashGet(ctx, "forecast", "A"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("no forecast cache write should happen on failure, got %v", err)
	}
}

func TestSeedForecastFromCache(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.SetObject(ctx, "cities", testCoords); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seeded := Forecast{
		Current: CurrentConditions{Time: 50, Summary: "Snow", Temperature: -3},
		Week:    []DailyForecast{{Time: 60, Summary: "Snow", TemperatureMin: -5, TemperatureMax: -1}},
	}
	if err := st.HashSetObject(ctx, "forecast", "A", seeded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Live fetch fails; the cached forecast still serves the widget.
	fc := &fakeForecaster{err: errors.New("provider down")}
	reg := New([]string{"A"}, st, &fakeGeocoder{}, fc)

	if err := reg.Init(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := reg.Forecast("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Current.Summary != "Snow" {
		t.Fatalf("expected seeded forecast, got %+v", result)
	}
	if len(result.Week) != 1 || result.Week[0].TemperatureMin != -5 {
		t.Fatalf("unexpected seeded week: %+v", result.Week)
	}
}

// blockingForecaster parks every Fetch until release is closed, signalling
// the first call through started.
type blockingForecaster struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *blockingForecaster) Fetch(context.Context, float64, float64) (forecast.Response, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	if first {
		close(f.started)
	}
	<-f.release
	return forecast.Response{}, nil
}

func (f *blockingForecaster) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRefreshSkippedWhileInFlight(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.SetObject(ctx, "cities", testCoords); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fc := &blockingForecaster{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	reg := New([]string{"A"}, st, &fakeGeocoder{}, fc)

	if err := reg.initCoordinates(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		reg.RefreshAll(ctx)
		close(done)
	}()

	// Wait until the first fetch is parked inside the provider, then run a
	// second cycle for the same city.
	<-fc.started
	reg.RefreshAll(ctx)

	if got := fc.callCount(); got != 1 {
		t.Fatalf("overlapping refresh must be skipped; provider saw %d calls", got)
	}

	close(fc.release)
	<-done

	// With the first cycle finished the city can be refreshed again.
	reg.RefreshAll(ctx)
	if got := fc.callCount(); got != 2 {
		t.Fatalf("expected a fresh refresh after completion, got %d calls", got)
	}
}

func TestReaderSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.SetObject(ctx, "cities", testCoords); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := fixedNow()
	fc := &fakeForecaster{resp: testResponse(now)}
	reg := New([]string{"A"}, st, &fakeGeocoder{}, fc)
	reg.now = func() time.Time { return now }

	if err := reg.Init(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := reg.Forecast("A")
	if err != nil || first == nil {
		t.Fatalf("unexpected result: %+v, %v", first, err)
	}
	first.Week[0].Summary = "mutated"

	second, err := reg.Forecast("A")
	if err != nil || second == nil {
		t.Fatalf("unexpected result: %+v, %v", second, err)
	}
	if second.Week[0].Summary == "mutated" {
		t.Fatal("reader mutation leaked into registry state")
	}
}
