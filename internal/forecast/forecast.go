package forecast

import "context"

// DataPoint mirrors the fields consumed from a Dark-Sky-compatible response.
// The same shape serves both the currently block (Temperature) and daily
// entries (TemperatureMin/TemperatureMax).
type DataPoint struct {
	Time           int64   `json:"time"`
	Summary        string  `json:"summary"`
	Temperature    float64 `json:"temperature"`
	TemperatureMin float64 `json:"temperatureMin"`
	TemperatureMax float64 `json:"temperatureMax"`
	WindSpeed      float64 `json:"windSpeed"`
	Humidity       float64 `json:"humidity"`
}

// Response is the raw provider payload for one coordinate pair.
type Response struct {
	Currently DataPoint `json:"currently"`
	Daily     struct {
		Data []DataPoint `json:"data"`
	} `json:"daily"`
}

// Client fetches current conditions and the daily outlook for a coordinate
// pair. Implementations request metric (SI) units.
type Client interface {
	Fetch(ctx context.Context, lat, lng float64) (Response, error)
}
