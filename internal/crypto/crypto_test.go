package crypto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	totalCap, totalVolume float64
	fearGreed             int
	coins                 []CoinQuote
	indexes               []IndexQuote
	candles               []Candle
	quote                 CoinQuote
	err                   error
}

func (f *fakeProvider) GlobalAggregates(ctx context.Context) (float64, float64, int, error) {
	return f.totalCap, f.totalVolume, f.fearGreed, f.err
}

func (f *fakeProvider) TopCoins(ctx context.Context, n int) ([]CoinQuote, error) {
	return f.coins, f.err
}

func (f *fakeProvider) IndexQuotes(ctx context.Context) ([]IndexQuote, error) {
	return f.indexes, nil
}

func (f *fakeProvider) Candles(ctx context.Context, symbol string, periods int) ([]Candle, error) {
	return f.candles, f.err
}

func (f *fakeProvider) Quote(ctx context.Context, symbol string) (CoinQuote, error) {
	return f.quote, f.err
}

func TestSnapshotFiltersDeadVolumeAndRanks(t *testing.T) {
	provider := &fakeProvider{
		totalCap:    1_000_000,
		totalVolume: 500_000,
		fearGreed:   55,
		coins: []CoinQuote{
			{Symbol: "AAA", PctChange24h: 10, Volume24h: 200_000},
			{Symbol: "DEAD", PctChange24h: 999, Volume24h: 1}, // below floor
			{Symbol: "BBB", PctChange24h: -10, Volume24h: 300_000},
		},
	}
	c := New(provider, time.Minute)
	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "AAA", snap.Gainers[0].Symbol)
	assert.Equal(t, "BBB", snap.Losers[0].Symbol)
	for _, g := range snap.Gainers {
		assert.NotEqual(t, "DEAD", g.Symbol)
	}
}

func TestSnapshotCachesResult(t *testing.T) {
	provider := &fakeProvider{
		coins: []CoinQuote{{Symbol: "AAA", PctChange24h: 1, Volume24h: 200_000}},
	}
	c := New(provider, time.Hour)
	first, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	provider.coins = nil // if the cache weren't hit, this would clear gainers
	second, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Gainers, second.Gainers)
}

func TestRSIAllGainsReturnsOneHundred(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = float64(i)
	}
	assert.Equal(t, 100.0, RSI(closes, 14))
}

func TestRSINeutralOnShortHistory(t *testing.T) {
	closes := []float64{1, 2, 3}
	assert.Equal(t, 50.0, RSI(closes, 14))
}

func TestSupportResistanceUsesWindowExtrema(t *testing.T) {
	candles := []Candle{
		{High: 10, Low: 1},
		{High: 20, Low: 0.5},
		{High: 15, Low: 5},
	}
	support, resistance := supportResistance(candles, 20)
	assert.Equal(t, 0.5, support)
	assert.Equal(t, 20.0, resistance)
}

func TestSignalForBuyOnStrongUpwardConfluence(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 30}
	candles := []Candle{
		{Volume: 10}, {Volume: 10}, {Volume: 40}, // volume surge on latest period
	}
	d := CoinDetail{Pct24h: 5, RSI14: 20, Price: 30}
	assert.Equal(t, Buy, signalFor(d, closes, candles))
}

func TestSignalForSellOnStrongDownwardConfluence(t *testing.T) {
	closes := []float64{30, 29, 28, 27, 26, 25, 24, 23, 22, 21, 20, 19, 18, 17, 10}
	candles := []Candle{
		{Volume: 10}, {Volume: 10}, {Volume: 40},
	}
	d := CoinDetail{Pct24h: -5, RSI14: 80, Price: 10}
	assert.Equal(t, Sell, signalFor(d, closes, candles))
}

func TestSignalForHoldOnMixedSignals(t *testing.T) {
	d := CoinDetail{Pct24h: 0, RSI14: 50, Price: 10}
	assert.Equal(t, Hold, signalFor(d, []float64{}, nil))
}

func TestPctChangeFromCandlesComputesWindowReturn(t *testing.T) {
	closes := make([]float64, 31)
	for i := range closes {
		closes[i] = 100 + float64(i) // linear ramp, one close per day
	}
	// index 30 (latest) = 130, index 23 (7 back) = 123, index 0 (30 back) = 100
	assert.InDelta(t, 5.69, pctChangeFromCandles(closes, 7), 0.01)
	assert.InDelta(t, 30.0, pctChangeFromCandles(closes, 30), 0.01)
}

func TestPctChangeFromCandlesZeroOnShortHistory(t *testing.T) {
	assert.Equal(t, 0.0, pctChangeFromCandles([]float64{1, 2, 3}, 7))
}

func TestCoinDetailPopulatesAllFourWindows(t *testing.T) {
	candles := make([]Candle, 31)
	for i := range candles {
		candles[i] = Candle{Close: 100 + float64(i), High: 100 + float64(i), Low: 100 + float64(i)}
	}
	provider := &fakeProvider{
		quote:   CoinQuote{Symbol: "BTC", Price: 130, PctChange1h: 0.5, PctChange24h: 2},
		candles: candles,
	}
	c := New(provider, time.Minute)
	detail, err := c.CoinDetail(context.Background(), "BTC")
	require.NoError(t, err)

	assert.Equal(t, 0.5, detail.Pct1h)
	assert.Equal(t, 2.0, detail.Pct24h)
	assert.NotZero(t, detail.Pct7d)
	assert.NotZero(t, detail.Pct30d)
}

func TestCommentaryFallsBackDeterministically(t *testing.T) {
	c := &CommentaryClient{}
	snap := MarketSnapshot{
		FearGreedIndex: 40,
		Gainers:        [5]CoinQuote{{Symbol: "AAA", PctChange24h: 12}},
		Losers:         [5]CoinQuote{{Symbol: "BBB", PctChange24h: -8}},
	}
	text := c.fallback(snap)
	assert.Contains(t, text, "AAA")
	assert.Contains(t, text, "BBB")
	assert.Contains(t, text, "40")
}

func TestCapWordsTruncatesAndMarksElision(t *testing.T) {
	text := "one two three four five"
	assert.Equal(t, "one two three…", capWords(text, 3))
	assert.Equal(t, text, capWords(text, 10))
}
