package crypto

import (
	"context"
	"fmt"
)

// Signal is the on-demand coin_detail recommendation.
type Signal string

const (
	Buy   Signal = "BUY"
	Hold  Signal = "HOLD"
	Watch Signal = "WATCH"
	Sell  Signal = "SELL"
)

// CoinDetail is the rendered result of an on-demand coin_detail request
// (spec.md §4.4).
type CoinDetail struct {
	Symbol           string
	Price            float64
	Pct1h, Pct24h    float64
	Pct7d, Pct30d    float64
	RSI14            float64
	Support          float64
	Resistance       float64
	Signal           Signal
}

const (
	rsiPeriods          = 14
	supportResistanceWindow = 20
	movingAveragePeriods    = 30
	overboughtThreshold     = 70.0
	oversoldThreshold       = 30.0
)

// candleHistoryDays is one day past movingAveragePeriods so the 30d
// lookback in pctChangeFromCandles always has a prior close to compare
// against, instead of falling exactly on the edge of the series.
const candleHistoryDays = movingAveragePeriods + 1

// CoinDetail queries the market provider for a quote and a 30-day
// candle series and composes price, momentum across four windows, RSI,
// support/resistance, and a BUY/HOLD/WATCH/SELL signal.
func (c *Composer) CoinDetail(ctx context.Context, symbol string) (CoinDetail, error) {
	quote, err := c.provider.Quote(ctx, symbol)
	if err != nil {
		return CoinDetail{}, err
	}

	candles, err := c.provider.Candles(ctx, symbol, candleHistoryDays)
	if err != nil {
		return CoinDetail{}, err
	}

	detail := CoinDetail{
		Symbol: symbol,
		Price:  quote.Price,
		Pct1h:  quote.PctChange1h,
		Pct24h: quote.PctChange24h,
	}

	closes := make([]float64, len(candles))
	for i, candle := range candles {
		closes[i] = candle.Close
	}

	detail.Pct7d = pctChangeFromCandles(closes, 7)
	detail.Pct30d = pctChangeFromCandles(closes, 30)
	detail.RSI14 = RSI(closes, rsiPeriods)
	detail.Support, detail.Resistance = supportResistance(candles, supportResistanceWindow)
	detail.Signal = signalFor(detail, closes, candles)

	return detail, nil
}

// pctChangeFromCandles returns the percentage change between the
// latest close and the close `periods` candles back (one candle per
// day, per Candles' daily granularity). Returns 0 when the series
// doesn't reach back far enough to cover the window.
func pctChangeFromCandles(closes []float64, periods int) float64 {
	if len(closes) <= periods {
		return 0
	}
	prior := closes[len(closes)-1-periods]
	if prior == 0 {
		return 0
	}
	latest := closes[len(closes)-1]
	return (latest - prior) / prior * 100
}

// RSI computes the Relative Strength Index over the last `period`
// close-to-close changes, using the simple average of gains and of
// losses in that window (no Wilder smoothing across earlier periods).
func RSI(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50 // neutral when there isn't enough history
	}

	var gainSum, lossSum float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum -= change
		}
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// supportResistance estimates nearest support/resistance from the last
// `window` periods' high/low extrema.
func supportResistance(candles []Candle, window int) (support, resistance float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	start := 0
	if len(candles) > window {
		start = len(candles) - window
	}

	support = candles[start].Low
	resistance = candles[start].High
	for _, c := range candles[start:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return support, resistance
}

func movingAverage(closes []float64) float64 {
	if len(closes) == 0 {
		return 0
	}
	var sum float64
	for _, c := range closes {
		sum += c
	}
	return sum / float64(len(closes))
}

func volumeBand(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candles {
		sum += c.Volume
	}
	avg := sum / float64(len(candles))
	if len(candles) == 0 {
		return 0
	}
	latest := candles[len(candles)-1].Volume
	if avg == 0 {
		return 0
	}
	return latest / avg
}

// signalFor composes BUY/HOLD/WATCH/SELL from a weighted sum of: 24h
// momentum sign, RSI zone, price vs 30-day moving average, and volume
// level band (spec.md §4.4).
func signalFor(d CoinDetail, closes []float64, candles []Candle) Signal {
	score := 0

	if d.Pct24h > 0 {
		score++
	} else if d.Pct24h < 0 {
		score--
	}

	switch {
	case d.RSI14 > overboughtThreshold:
		score--
	case d.RSI14 < oversoldThreshold:
		score++
	}

	ma := movingAverage(closes)
	if ma > 0 {
		if d.Price > ma {
			score++
		} else {
			score--
		}
	}

	if volumeBand(candles) >= 1.5 {
		// a volume surge amplifies whichever direction momentum already
		// points, rather than adding an independent vote
		if d.Pct24h > 0 {
			score++
		} else if d.Pct24h < 0 {
			score--
		}
	}

	switch {
	case score >= 3:
		return Buy
	case score >= 1:
		return Watch
	case score <= -3:
		return Sell
	default:
		return Hold
	}
}

// FormatCoinDetail renders a CoinDetail into the on-demand reply text.
func FormatCoinDetail(d CoinDetail) string {
	return fmt.Sprintf(
		"%s: $%.4f (1h %+.2f%%, 24h %+.2f%%, 7d %+.2f%%, 30d %+.2f%%)\n"+
			"RSI(14): %.1f | Support: $%.4f | Resistance: $%.4f\nSignal: %s",
		d.Symbol, d.Price, d.Pct1h, d.Pct24h, d.Pct7d, d.Pct30d,
		d.RSI14, d.Support, d.Resistance, d.Signal,
	)
}
