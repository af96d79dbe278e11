package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL points at Pirate Weather, a Dark-Sky-compatible API.
const DefaultBaseURL = "https://api.pirateweather.net/forecast"

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
)

// DarkSkyClient implements the Client interface against any Dark-Sky-style
// endpoint: GET {base}/{key}/{lat},{lng}?units=si.
//
// Transport failures, 429 and 5xx responses are retried with exponential
// backoff behind a circuit breaker; any other non-2xx status fails fast.
type DarkSkyClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker

	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

func NewDarkSkyClient(client *http.Client, apiKey, baseURL string) *DarkSkyClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "forecast",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &DarkSkyClient{
		apiKey:          apiKey,
		baseURL:         baseURL,
		client:          client,
		circuit:         cb,
		maxRetries:      3,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
}

func (c *DarkSkyClient) Fetch(ctx context.Context, lat, lng float64) (Response, error) {
	if c.apiKey == "" {
		return Response{}, fmt.Errorf("forecast api key is not configured")
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}

		resp, err := c.doRequest(ctx, lat, lng)
		if err == nil {
			defer resp.Body.Close()

			var payload Response
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				return Response{}, fmt.Errorf("decode forecast response: %w", err)
			}
			return payload, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Response{}, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if errors.Is(err, errUnexpected) {
			// 4xx other than rate limiting will not get better on retry.
			return Response{}, err
		}

		lastErr = err
		if attempt >= c.maxRetries {
			return Response{}, lastErr
		}

		// Backoff with exponential delay.
		delay := c.initialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.maxInterval > 0 && delay > c.maxInterval {
			delay = c.maxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Response{}, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}
	}
}

func (c *DarkSkyClient) doRequest(ctx context.Context, lat, lng float64) (*http.Response, error) {
	u := fmt.Sprintf("%s/%s/%f,%f?units=si", c.baseURL, c.apiKey, lat, lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, execErr := c.client.Do(req)
		if execErr != nil {
			return nil, execErr
		}

		// Handle rate limiting and server errors explicitly; the body must
		// be drained so the connection can be reused by the next attempt.
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			drainBody(resp)
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			drainBody(resp)
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			drainBody(resp)
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}

func drainBody(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

var _ Client = (*DarkSkyClient)(nil)
