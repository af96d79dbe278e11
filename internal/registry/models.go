package registry

import (
	"sort"
	"time"

	"weather-widget/internal/forecast"
	"weather-widget/internal/geo"
)

// CurrentConditions describes the weather at the moment of fetch.
type CurrentConditions struct {
	Time        int64   `json:"time"`
	Summary     string  `json:"summary"`
	Temperature float64 `json:"temperature"`
	WindSpeed   float64 `json:"windSpeed"`
	Humidity    float64 `json:"humidity"`
}

// DailyForecast describes one day of the week-ahead outlook. Time is the
// day's timestamp truncated to a midnight boundary by the provider.
type DailyForecast struct {
	Time           int64   `json:"time"`
	Summary        string  `json:"summary"`
	TemperatureMin float64 `json:"temperatureMin"`
	TemperatureMax float64 `json:"temperatureMax"`
	WindSpeed      float64 `json:"windSpeed"`
	Humidity       float64 `json:"humidity"`
}

// Forecast is the cached per-city value: current conditions plus the filtered
// week-ahead outlook, ordered by ascending timestamp.
type Forecast struct {
	Current CurrentConditions `json:"current"`
	Week    []DailyForecast   `json:"week"`
}

// Entry is one city's registry state. Coordinates is set at most once per
// process lifetime; Forecast is replaced wholesale on every refresh.
type Entry struct {
	Name        string
	Coordinates *geo.Coordinates
	Forecast    *Forecast
}

// buildForecast derives the domain Forecast from a raw provider response.
// Daily entries strictly before today's local midnight at `now` are dropped;
// the rest are ordered by ascending timestamp.
func buildForecast(raw forecast.Response, now time.Time) Forecast {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	week := make([]DailyForecast, 0, len(raw.Daily.Data))
	for _, day := range raw.Daily.Data {
		if time.Unix(day.Time, 0).Before(midnight) {
			continue
		}
		week = append(week, DailyForecast{
			Time:           day.Time,
			Summary:        day.Summary,
			TemperatureMin: day.TemperatureMin,
			TemperatureMax: day.TemperatureMax,
			WindSpeed:      day.WindSpeed,
			Humidity:       day.Humidity,
		})
	}

	sort.Slice(week, func(i, j int) bool { return week[i].Time < week[j].Time })

	return Forecast{
		Current: CurrentConditions{
			Time:        raw.Currently.Time,
			Summary:     raw.Currently.Summary,
			Temperature: raw.Currently.Temperature,
			WindSpeed:   raw.Currently.WindSpeed,
			Humidity:    raw.Currently.Humidity,
		},
		Week: week,
	}
}
