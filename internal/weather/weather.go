// Package weather implements the Weather provider collaborator
// (spec.md §6): current conditions for a location, cached 30 minutes.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shanchoynoor/choynews-digest-bot/internal/cache"
	"github.com/shanchoynoor/choynews-digest-bot/internal/errkind"
	"github.com/shanchoynoor/choynews-digest-bot/internal/retry"
)

// Current is the current-conditions snapshot spec.md §6 defines.
type Current struct {
	TempCMin  float64
	TempCMax  float64
	Condition string
	AQI       int
	UV        float64
}

const (
	cacheTTL       = 30 * time.Minute
	requestTimeout = 10 * time.Second
)

// Client queries a weather provider's current-conditions endpoint.
// Grounded on the teacher's telegram.SendMessage: a plain *http.Client
// with a fixed timeout and JSON (de)serialization, no SDK.
type Client struct {
	apiKey string
	http   *http.Client
	cache  *cache.TTL[Current]
}

// New builds a weather Client. An empty apiKey is valid; Current then
// always returns errkind.UpstreamUnavailable so the digest degrades to
// the fixed placeholder line (spec.md §7) instead of failing startup,
// since WEATHER_API_KEY is optional (spec.md §6).
func New(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		http:   &http.Client{Timeout: requestTimeout},
		cache:  cache.New[Current](),
	}
}

type apiResponse struct {
	Main struct {
		TempMin float64 `json:"temp_min"`
		TempMax float64 `json:"temp_max"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	AQI struct {
		Value int `json:"aqi"`
	} `json:"air_quality"`
	UVIndex float64 `json:"uvi"`
}

// Current returns cached or freshly-fetched conditions for location.
func (c *Client) Current(ctx context.Context, location string) (Current, error) {
	if cached, ok := c.cache.Get(location); ok {
		return cached, nil
	}

	if c.apiKey == "" {
		return Current{}, errkind.New(errkind.UpstreamUnavailable, "weather.Current", fmt.Errorf("no weather API key configured"))
	}

	var result Current
	err := retry.WithRetry(ctx, retry.RetryConfig{MaxAttempts: 2, Delay: 2 * time.Second, Backoff: true}, func() error {
		fetched, ferr := c.fetch(ctx, location)
		if ferr != nil {
			return ferr
		}
		result = fetched
		return nil
	})
	if err != nil {
		return Current{}, errkind.New(errkind.UpstreamUnavailable, "weather.Current", err)
	}

	c.cache.Set(location, result, cacheTTL)
	return result, nil
}

func (c *Client) fetch(ctx context.Context, location string) (Current, error) {
	endpoint := fmt.Sprintf(
		"https://api.openweathermap.org/data/2.5/weather?q=%s&units=metric&appid=%s",
		url.QueryEscape(location), c.apiKey,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Current{}, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Current{}, fmt.Errorf("weather HTTP request: %w", err)
	}
	defer func(body io.ReadCloser) { _ = body.Close() }(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Current{}, fmt.Errorf("weather API error: status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Current{}, fmt.Errorf("decode weather response: %w", err)
	}

	condition := "unknown"
	if len(parsed.Weather) > 0 {
		condition = parsed.Weather[0].Description
	}

	return Current{
		TempCMin:  parsed.Main.TempMin,
		TempCMax:  parsed.Main.TempMax,
		Condition: condition,
		AQI:       parsed.AQI.Value,
		UV:        parsed.UVIndex,
	}, nil
}

// FormatLine renders the weather block line (spec.md §4.5 step 3).
func FormatLine(c Current) string {
	return fmt.Sprintf("%.0f–%.0f°C, %s | AQI %d | UV %.1f", c.TempCMin, c.TempCMax, c.Condition, c.AQI, c.UV)
}

// PlaceholderLine is emitted when the weather provider is unavailable
// (spec.md §7, UpstreamUnavailable).
const PlaceholderLine = "Weather … temporarily unavailable"
