package feed

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shanchoynoor/choynews-digest-bot/internal/errkind"
	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
	"github.com/shanchoynoor/choynews-digest-bot/internal/logger"
	"github.com/shanchoynoor/choynews-digest-bot/internal/metrics"
)

const (
	// defaultCacheTTL applies when a feed advertises no TTL; an advertised
	// TTL is clamped into [minCacheTTL, maxCacheTTL] by ttlFor.
	defaultCacheTTL = 10 * time.Minute
	minCacheTTL     = 5 * time.Minute
	maxCacheTTL     = 15 * time.Minute
	fetchTimeout    = 10 * time.Second
)

// ttlFor clamps a feed-advertised TTL (in minutes, 0 if unadvertised)
// into the [5,15] minute band spec.md §3 allows, defaulting to 10.
func ttlFor(advertisedMinutes int) time.Duration {
	if advertisedMinutes <= 0 {
		return defaultCacheTTL
	}
	ttl := time.Duration(advertisedMinutes) * time.Minute
	if ttl < minCacheTTL {
		return minCacheTTL
	}
	if ttl > maxCacheTTL {
		return maxCacheTTL
	}
	return ttl
}

type cachedItem struct {
	item      item.Item
	expiresAt time.Time
}

// categoryCache holds the live set of items for one category plus the
// bookkeeping needed to raise an UpstreamOutage after two consecutive
// all-fail refresh cycles.
type categoryCache struct {
	mu              sync.RWMutex
	items           map[string]cachedItem // keyed by fingerprint
	consecutiveFail int
}

// Fetcher is the Feed Fetcher component: it owns the in-memory Item cache
// and the bounded-concurrency refresh path over the static catalogue.
type Fetcher struct {
	sources    map[item.Category][]item.Source
	parser     *gofeed.Parser
	caches     map[item.Category]*categoryCache
	cachesMu   sync.Mutex
	globalSem  chan struct{}
	hostLimits map[string]*rate.Limiter
	hostMu     sync.Mutex
	perHost    int
}

// New builds a Fetcher over the given catalogue, bounded by globalParallelism
// concurrent fetches. Each distinct feed host gets a rate limiter of
// perHostParallelism requests per second (burst perHostParallelism); the
// number of in-flight fetches per host is not capped separately.
func New(sources []item.Source, globalParallelism, perHostParallelism int) *Fetcher {
	return &Fetcher{
		sources:    EnabledByCategory(sources),
		parser:     gofeed.NewParser(),
		caches:     make(map[item.Category]*categoryCache),
		globalSem:  make(chan struct{}, globalParallelism),
		hostLimits: make(map[string]*rate.Limiter),
		perHost:    perHostParallelism,
	}
}

func (f *Fetcher) cacheFor(cat item.Category) *categoryCache {
	f.cachesMu.Lock()
	defer f.cachesMu.Unlock()
	c, ok := f.caches[cat]
	if !ok {
		c = &categoryCache{items: make(map[string]cachedItem)}
		f.caches[cat] = c
	}
	return c
}

func (f *Fetcher) hostLimiter(host string) *rate.Limiter {
	f.hostMu.Lock()
	defer f.hostMu.Unlock()
	l, ok := f.hostLimits[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.perHost), f.perHost)
		f.hostLimits[host] = l
	}
	return l
}

// Refresh fetches every enabled source in category concurrently and
// merges successful results into the category's cache. It returns the
// number of items ingested this cycle and an *errkind.Error with
// UpstreamUnavailable if every source failed for two cycles running.
func (f *Fetcher) Refresh(ctx context.Context, cat item.Category) (int, error) {
	sources := f.sources[cat]
	if len(sources) == 0 {
		return 0, nil
	}

	cache := f.cacheFor(cat)

	type result struct {
		items []item.Item
		ttl   time.Duration
		err   error
	}
	results := make([]result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			select {
			case f.globalSem <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
			defer func() { <-f.globalSem }()

			items, ttl, err := f.fetchSource(gctx, src)
			results[i] = result{items: items, ttl: ttl, err: err}
			return nil // per-source failure never fails the batch
		})
	}
	_ = g.Wait()

	successCount := 0
	ingested := 0
	now := time.Now().UTC()

	cache.mu.Lock()
	for i, r := range results {
		if r.err != nil {
			logger.Warn("feed source failed", "source", sources[i].ID, "error", r.err)
			metrics.Global.IncrementFetchFailures()
			continue
		}
		successCount++
		for _, it := range r.items {
			cache.items[it.Fingerprint] = cachedItem{item: it, expiresAt: now.Add(r.ttl)}
			ingested++
		}
	}

	for fp, ci := range cache.items {
		if now.After(ci.expiresAt) {
			delete(cache.items, fp)
		}
	}

	if successCount == 0 {
		cache.consecutiveFail++
	} else {
		cache.consecutiveFail = 0
	}
	outage := cache.consecutiveFail >= 2
	cache.mu.Unlock()

	metrics.Global.IncrementItemsFetched(cat, int64(ingested))

	if outage {
		metrics.Global.IncrementUpstreamOutages()
		return ingested, errkind.New(errkind.UpstreamUnavailable, "feed.Refresh",
			nil)
	}
	return ingested, nil
}

func (f *Fetcher) fetchSource(ctx context.Context, src item.Source) ([]item.Item, time.Duration, error) {
	if err := f.hostLimiter(hostOf(src.URL)).Wait(ctx); err != nil {
		return nil, 0, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(src.URL, fetchCtx)
	if err != nil {
		// one retry on transient failure, per spec.md §4.1
		feed, err = f.parser.ParseURLWithContext(src.URL, fetchCtx)
		if err != nil {
			return nil, 0, errkind.New(errkind.UpstreamTransient, "feed.fetchSource", err)
		}
	}

	ttl := defaultCacheTTL
	if feed.TTL != "" {
		if minutes, err := strconv.Atoi(feed.TTL); err == nil {
			ttl = ttlFor(minutes)
		}
	}

	now := time.Now().UTC()
	items := make([]item.Item, 0, len(feed.Items))
	for _, gi := range feed.Items {
		title := stripHTML(gi.Title)
		link := gi.Link
		if title == "" || link == "" {
			continue
		}

		publishedAt := now
		timeEstimated := true
		if gi.PublishedParsed != nil {
			publishedAt = gi.PublishedParsed.UTC()
			timeEstimated = false
		} else if gi.UpdatedParsed != nil {
			publishedAt = gi.UpdatedParsed.UTC()
			timeEstimated = false
		}

		it := item.New(src, title, link, publishedAt, now, timeEstimated)
		items = append(items, it)
	}

	return items, ttl, nil
}

// Recent returns cached items for category published since `since`,
// newest first.
func (f *Fetcher) Recent(cat item.Category, since time.Time) []item.Item {
	cache := f.cacheFor(cat)
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	now := time.Now().UTC()
	out := make([]item.Item, 0, len(cache.items))
	for _, ci := range cache.items {
		if now.After(ci.expiresAt) {
			continue
		}
		if ci.item.PublishedAt.Before(since) {
			continue
		}
		out = append(out, ci.item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}
