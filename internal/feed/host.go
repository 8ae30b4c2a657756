package feed

import "net/url"

// hostOf extracts the host used for per-host rate limiting; an
// unparseable URL falls back to the raw string so it still gets its own
// limiter bucket instead of colliding with every other source.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
