// Package crypto implements the Crypto Intelligence Composer: market
// snapshots, AI commentary, and on-demand coin detail (spec.md §4.4).
package crypto

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shanchoynoor/choynews-digest-bot/internal/cache"
	"github.com/shanchoynoor/choynews-digest-bot/internal/errkind"
	"github.com/shanchoynoor/choynews-digest-bot/internal/ratelimit"
)

// CoinQuote is one entry in a gainers/losers list. PctChange1h is only
// populated by Quote (the gainers/losers ranking uses PctChange24h, so
// TopCoins leaves it zero).
type CoinQuote struct {
	Symbol       string
	Price        float64
	PctChange1h  float64
	PctChange24h float64
	Volume24h    float64
}

// IndexQuote is a non-crypto market index reference point (e.g. SPX500).
type IndexQuote struct {
	Name      string
	Value     float64
	PctChange float64
}

// MarketSnapshot is the point-in-time market summary spec.md §3 defines.
type MarketSnapshot struct {
	TakenAt        time.Time
	TotalCapUSD    float64
	TotalVolumeUSD float64
	FearGreedIndex int
	Gainers        [5]CoinQuote
	Losers         [5]CoinQuote
	IndexQuotes    []IndexQuote
}

// Candle is one OHLCV period from the market provider's candle series,
// used by coin_detail's RSI/support-resistance computation.
type Candle struct {
	Open, High, Low, Close, Volume float64
	OpenedAt                       time.Time
}

// Provider is the external Market data provider collaborator
// (spec.md §6): global aggregates and a top-N coin list.
type Provider interface {
	GlobalAggregates(ctx context.Context) (totalCapUSD, totalVolumeUSD float64, fearGreed int, err error)
	TopCoins(ctx context.Context, n int) ([]CoinQuote, error)
	IndexQuotes(ctx context.Context) ([]IndexQuote, error)
	Candles(ctx context.Context, symbol string, periods int) ([]Candle, error)
	Quote(ctx context.Context, symbol string) (CoinQuote, error)
}

// minVolumeFloor filters dead-volume coins out of the gainers/losers
// lists, per spec.md §4.4.
const minVolumeFloor = 100_000.0

// Composer is the Crypto Intelligence Composer.
type Composer struct {
	provider Provider
	cache    *cache.TTL[MarketSnapshot]
	limiter  *ratelimit.Limiter
	cacheTTL time.Duration
}

const snapshotCacheKey = "market_snapshot"

// New builds a Composer. cacheTTL should be within spec.md §4.4's 2-5
// minute band.
func New(provider Provider, cacheTTL time.Duration) *Composer {
	limiter := ratelimit.New()
	limiter.Register("market_provider", 0.5, 1) // min 2s between calls, spec.md §6
	return &Composer{
		provider: provider,
		cache:    cache.New[MarketSnapshot](),
		limiter:  limiter,
		cacheTTL: cacheTTL,
	}
}

// Snapshot returns the cached market snapshot, refreshing it if stale.
func (c *Composer) Snapshot(ctx context.Context) (MarketSnapshot, error) {
	if snap, ok := c.cache.Get(snapshotCacheKey); ok {
		return snap, nil
	}

	if err := c.limiter.Wait(ctx, "market_provider"); err != nil {
		return MarketSnapshot{}, err
	}

	totalCap, totalVolume, fearGreed, err := c.provider.GlobalAggregates(ctx)
	if err != nil {
		return MarketSnapshot{}, errkind.New(errkind.UpstreamUnavailable, "crypto.Snapshot", err)
	}

	top, err := c.provider.TopCoins(ctx, 200)
	if err != nil {
		return MarketSnapshot{}, errkind.New(errkind.UpstreamUnavailable, "crypto.Snapshot", err)
	}

	indexes, err := c.provider.IndexQuotes(ctx)
	if err != nil {
		// index row is decorative; degrade rather than fail the snapshot
		indexes = nil
	}

	snap := MarketSnapshot{
		TakenAt:        time.Now().UTC(),
		TotalCapUSD:    totalCap,
		TotalVolumeUSD: totalVolume,
		FearGreedIndex: fearGreed,
		IndexQuotes:    indexes,
	}
	gainers, losers := topMovers(top)
	snap.Gainers = gainers
	snap.Losers = losers

	c.cache.Set(snapshotCacheKey, snap, c.cacheTTL)
	return snap, nil
}

func topMovers(coins []CoinQuote) (gainers, losers [5]CoinQuote) {
	filtered := make([]CoinQuote, 0, len(coins))
	for _, c := range coins {
		if c.Volume24h < minVolumeFloor {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].PctChange24h > filtered[j].PctChange24h
	})
	for i := 0; i < 5 && i < len(filtered); i++ {
		gainers[i] = filtered[i]
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].PctChange24h < filtered[j].PctChange24h
	})
	for i := 0; i < 5 && i < len(filtered); i++ {
		losers[i] = filtered[i]
	}

	return gainers, losers
}

// FormatSummary renders the one-line market overview used by the
// templated AI-commentary fallback.
func (s MarketSnapshot) FormatSummary() string {
	direction := "up"
	if len(s.Gainers) > 0 && s.Gainers[0].PctChange24h < 0 {
		direction = "down"
	}
	lead := "the market"
	if len(s.Gainers) > 0 && s.Gainers[0].Symbol != "" {
		lead = s.Gainers[0].Symbol
	}
	return fmt.Sprintf("markets %s, led by %s", direction, lead)
}
