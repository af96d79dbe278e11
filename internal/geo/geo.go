package geo

import "context"

// Coordinates is a latitude/longitude pair. The JSON tags match the shape
// persisted under the cities cache key.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocoder resolves place names to coordinates. Resolution is all-or-nothing:
// if any requested name fails to resolve, the whole call fails and no partial
// result is returned.
type Geocoder interface {
	Resolve(ctx context.Context, names []string) (map[string]Coordinates, error)
}
