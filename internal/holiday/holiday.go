// Package holiday implements the Holiday provider collaborator
// (spec.md §6): named holidays for a country and date, cached for the
// day.
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shanchoynoor/choynews-digest-bot/internal/cache"
	"github.com/shanchoynoor/choynews-digest-bot/internal/errkind"
	"github.com/shanchoynoor/choynews-digest-bot/internal/retry"
)

const requestTimeout = 10 * time.Second

// Client queries a holiday provider's day-lookup endpoint. Grounded on
// the same plain *http.Client + JSON decode shape as internal/weather
// and the teacher's telegram.SendMessage.
type Client struct {
	apiKey string
	http   *http.Client
	cache  *cache.TTL[[]string]
}

// New builds a holiday Client. An empty apiKey is valid; Holidays then
// always returns an empty list (no holiday line rendered) since
// HOLIDAY_API_KEY is optional (spec.md §6).
func New(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		http:   &http.Client{Timeout: requestTimeout},
		cache:  cache.New[[]string](),
	}
}

type apiResponse struct {
	Holidays []struct {
		Name string `json:"name"`
	} `json:"holidays"`
}

// Holidays returns the names of holidays observed in country on date.
// An empty result (not an error) means "no holiday today" — the
// composition step omits the holiday line entirely (spec.md §4.5).
func (c *Client) Holidays(ctx context.Context, country string, date time.Time) ([]string, error) {
	key := country + "|" + date.Format("2006-01-02")
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	if c.apiKey == "" {
		return nil, nil
	}

	var result []string
	err := retry.WithRetry(ctx, retry.RetryConfig{MaxAttempts: 2, Delay: 2 * time.Second, Backoff: true}, func() error {
		fetched, ferr := c.fetch(ctx, country, date)
		if ferr != nil {
			return ferr
		}
		result = fetched
		return nil
	})
	if err != nil {
		return nil, errkind.New(errkind.UpstreamUnavailable, "holiday.Holidays", err)
	}

	c.cache.Set(key, result, untilMidnightUTC(date))
	return result, nil
}

func (c *Client) fetch(ctx context.Context, country string, date time.Time) ([]string, error) {
	endpoint := fmt.Sprintf(
		"https://calendarific.com/api/v2/holidays?api_key=%s&country=%s&year=%d&month=%d&day=%d",
		c.apiKey, country, date.Year(), date.Month(), date.Day(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build holiday request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("holiday HTTP request: %w", err)
	}
	defer func(body io.ReadCloser) { _ = body.Close() }(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday API error: status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode holiday response: %w", err)
	}

	names := make([]string, 0, len(parsed.Holidays))
	for _, h := range parsed.Holidays {
		names = append(names, h.Name)
	}
	return names, nil
}

// untilMidnightUTC caches the day's lookup until the date rolls over,
// per spec.md §6 ("cached for the day").
func untilMidnightUTC(date time.Time) time.Duration {
	nextMidnight := time.Date(date.Year(), date.Month(), date.Day()+1, 0, 0, 0, 0, time.UTC)
	d := nextMidnight.Sub(date.UTC())
	if d <= 0 {
		return time.Hour
	}
	return d
}

// FormatLine renders the holiday line (spec.md §4.5 step 2), or "" if
// names is empty, in which case the caller omits the line entirely.
func FormatLine(names []string) string {
	if len(names) == 0 {
		return ""
	}
	line := names[0]
	for _, n := range names[1:] {
		line += ", " + n
	}
	return "🎉 " + line
}
