package digest

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanchoynoor/choynews-digest-bot/internal/crypto"
	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
	"github.com/shanchoynoor/choynews-digest-bot/internal/weather"
)

func sampleItems(now time.Time) []item.Item {
	var out []item.Item
	for i := 0; i < 5; i++ {
		out = append(out, item.Item{
			Fingerprint: string(rune('a' + i)),
			Title:       "Headline " + string(rune('a'+i)),
			Link:        "https://example.com/" + string(rune('a'+i)),
			Category:    item.Tech,
			SourceID:    "src1",
			PublishedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

func baseInput(now time.Time) Input {
	enabled := map[item.Category]bool{}
	for _, c := range item.Categories {
		enabled[c] = true
	}
	return Input{
		Now:            now,
		Timezone:       "UTC",
		SlotLabel:      "Morning",
		Categories:     map[item.Category][]item.Item{item.Tech: sampleItems(now)},
		EnabledCategories: enabled,
		IncludeWeather: true,
		IncludeMarket:  true,
		Weather:        weather.Current{TempCMin: 20, TempCMax: 28, Condition: "clear", AQI: 30, UV: 4},
		Market: crypto.MarketSnapshot{
			TotalCapUSD:    1e12,
			TotalVolumeUSD: 5e10,
			FearGreedIndex: 50,
			Gainers:        [5]crypto.CoinQuote{{Symbol: "AAA", PctChange24h: 10}},
			Losers:         [5]crypto.CoinQuote{{Symbol: "BBB", PctChange24h: -5}},
		},
		Commentary: "Markets steady.",
	}
}

func TestComposeSingleMessageContainsAllSections(t *testing.T) {
	a := New([]item.Source{{ID: "src1", Name: "Example News"}})
	now := time.Now()
	parts := a.Compose(baseInput(now))
	require.Len(t, parts, 1)

	out := parts[0]
	assert.Contains(t, out, "DAILY DIGEST")
	assert.Contains(t, out, "Example News")
	assert.Contains(t, out, "MARKET")
	assert.Contains(t, out, "Markets steady")
	assert.Contains(t, out, "Automated digest")
}

func TestComposeOmitsHolidayLineWhenEmpty(t *testing.T) {
	a := New(nil)
	now := time.Now()
	in := baseInput(now)
	in.HolidayNames = nil
	parts := a.Compose(in)
	assert.NotContains(t, parts[0], "🎉")
}

func TestComposeIncludesHolidayLineWhenPresent(t *testing.T) {
	a := New(nil)
	now := time.Now()
	in := baseInput(now)
	in.HolidayNames = []string{"Independence Day"}
	parts := a.Compose(in)
	assert.Contains(t, parts[0], "Independence Day")
}

func TestComposeDegradesOnWeatherError(t *testing.T) {
	a := New(nil)
	now := time.Now()
	in := baseInput(now)
	in.WeatherErr = errors.New("weather provider down")
	parts := a.Compose(in)
	assert.Contains(t, parts[0], weather.PlaceholderLine)
}

func TestComposeFiltersDisabledCategories(t *testing.T) {
	a := New(nil)
	now := time.Now()
	in := baseInput(now)
	in.EnabledCategories = map[item.Category]bool{item.Tech: false}
	parts := a.Compose(in)
	assert.NotContains(t, parts[0], "TECH")
}

func TestComposeEscapesMarkdownMetacharactersInTitles(t *testing.T) {
	a := New(nil)
	now := time.Now()
	in := baseInput(now)
	items := sampleItems(now)
	items[0].Title = "Breaking_News [special] *bold*"
	in.Categories[item.Tech] = items
	parts := a.Compose(in)
	assert.Contains(t, parts[0], "Breaking\\_News \\[special\\] \\*bold\\*")
}

func TestPaginateNumbersMultipleParts(t *testing.T) {
	sections := []string{strings.Repeat("a", 3000), strings.Repeat("b", 3000), strings.Repeat("c", 3000)}
	parts := paginate(sections)
	require.Greater(t, len(parts), 1)
	assert.Contains(t, parts[0], fmt.Sprintf("(1/%d)", len(parts)))
	assert.Contains(t, parts[len(parts)-1], fmt.Sprintf("(%d/%d)", len(parts), len(parts)))
}
