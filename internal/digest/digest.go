// Package digest implements the Digest Assembler: the exact
// composition order and Markdown contract spec.md §4.5 defines, plus
// the 4KB message-size split.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/shanchoynoor/choynews-digest-bot/internal/crypto"
	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
	"github.com/shanchoynoor/choynews-digest-bot/internal/selection"
	"github.com/shanchoynoor/choynews-digest-bot/internal/weather"
)

// maxMessageBytes mirrors the transport's typical ~4KB size limit
// (spec.md §4.5).
const maxMessageBytes = 4000

const footerLine = "_Automated digest, times shown in your local zone_"

// Input carries everything the Assembler needs to compose one digest.
// Nil/zero-value collaborator results degrade to placeholder blocks
// rather than aborting composition (spec.md §7, UpstreamUnavailable).
type Input struct {
	Now          time.Time
	Timezone     string
	SlotLabel    string
	HolidayNames []string

	Weather    weather.Current
	WeatherErr error

	Categories map[item.Category][]item.Item

	Market    crypto.MarketSnapshot
	MarketErr error
	Commentary string

	// EnabledCategories filters which of the five category blocks
	// render, per the subscriber's opt-in flags (SPEC_FULL.md §3).
	EnabledCategories map[item.Category]bool
	IncludeMarket     bool
	IncludeWeather    bool
}

// Assembler composes digest text from pre-fetched collaborator
// results. It does not perform any I/O itself — the scheduler gathers
// Input from the Feed Fetcher, Dedup Store, Crypto Composer, and the
// weather/holiday collaborators beforehand.
type Assembler struct {
	sourceNames map[string]string
}

// New builds an Assembler. sources supplies the `(source)` label
// rendered next to each headline.
func New(sources []item.Source) *Assembler {
	names := make(map[string]string, len(sources))
	for _, s := range sources {
		names[s.ID] = s.Name
	}
	return &Assembler{sourceNames: names}
}

var categoryLabels = map[item.Category]string{
	item.Local:         "🏠 LOCAL",
	item.Global:        "🌍 WORLD",
	item.Tech:          "💻 TECH",
	item.Sports:        "🏆 SPORTS",
	item.FinanceCrypto: "💰 FINANCE",
}

// Compose renders the full digest text and splits it into transport-
// sized parts, numbering them "(1/N)".."(N/N)" when more than one part
// is needed (spec.md §4.5).
func (a *Assembler) Compose(in Input) []string {
	var sections []string

	sections = append(sections, a.header(in))

	if holidayLine := holidaySectionLine(in.HolidayNames); holidayLine != "" {
		sections = append(sections, holidayLine)
	}

	if in.IncludeWeather {
		sections = append(sections, a.weatherSection(in))
	}

	for _, cat := range item.Categories {
		if in.EnabledCategories != nil && !in.EnabledCategories[cat] {
			continue
		}
		sections = append(sections, a.categorySection(cat, in.Categories[cat]))
	}

	if in.IncludeMarket {
		sections = append(sections, a.marketSection(in))
	}

	sections = append(sections, footerLine)

	return paginate(sections)
}

func (a *Assembler) header(in Input) string {
	offset := in.Now.Format("-07:00")
	return fmt.Sprintf(
		"📰 *DAILY DIGEST*\n*%s* · %s · UTC%s",
		in.Now.Format("Monday, January 2, 2006"), in.SlotLabel, offset,
	)
}

func holidaySectionLine(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "🎉 " + strings.Join(names, ", ")
}

func (a *Assembler) weatherSection(in Input) string {
	if in.WeatherErr != nil {
		return weather.PlaceholderLine
	}
	return "☀️ " + weather.FormatLine(in.Weather)
}

func (a *Assembler) categorySection(cat item.Category, items []item.Item) string {
	var b strings.Builder
	b.WriteString(categoryLabels[cat])
	b.WriteString("\n")

	for i, it := range items {
		b.WriteString(fmt.Sprintf("%d. ", i+1))
		if selection.IsPlaceholder(it) {
			b.WriteString("(no further recent items)")
		} else {
			b.WriteString(a.renderItem(it))
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func (a *Assembler) renderItem(it item.Item) string {
	name := a.sourceNames[it.SourceID]
	if name == "" {
		name = it.SourceID
	}
	return fmt.Sprintf("[%s](%s) — %s (%s)", escapeMarkdown(it.Title), it.Link, name, relativeAge(it.PublishedAt))
}

func (a *Assembler) marketSection(in Input) string {
	if in.MarketErr != nil {
		return "💰 FINANCE\nMarket data … temporarily unavailable."
	}

	snap := in.Market
	var b strings.Builder
	b.WriteString("💰 MARKET\n")
	b.WriteString(fmt.Sprintf("Cap: $%.0fB · Vol: $%.0fB · F&G: %d\n", snap.TotalCapUSD/1e9, snap.TotalVolumeUSD/1e9, snap.FearGreedIndex))

	b.WriteString("Gainers: ")
	b.WriteString(formatMovers(snap.Gainers[:]))
	b.WriteString("\nLosers: ")
	b.WriteString(formatMovers(snap.Losers[:]))

	if in.Commentary != "" {
		b.WriteString("\n")
		b.WriteString(escapeMarkdown(in.Commentary))
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatMovers(coins []crypto.CoinQuote) string {
	var parts []string
	for _, c := range coins {
		if c.Symbol == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %+.1f%%", c.Symbol, c.PctChange24h))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// relativeAge renders a coarse human-readable age, matching the
// "(relative age)" contract in spec.md §4.5.
func relativeAge(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

var markdownEscapeChars = []string{"_", "*", "`", "[", "]"}

// escapeMarkdown escapes the conservative Markdown subset's
// metacharacters in free text so links render correctly (spec.md
// §4.5).
func escapeMarkdown(s string) string {
	for _, c := range markdownEscapeChars {
		s = strings.ReplaceAll(s, c, "\\"+c)
	}
	return s
}

// paginate packs sections into parts no larger than maxMessageBytes,
// never splitting inside a section, and numbers parts "(i/n)" when
// more than one is produced (spec.md §4.5).
func paginate(sections []string) []string {
	var parts []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
	}

	for _, section := range sections {
		if current.Len() > 0 && current.Len()+len(section)+2 > maxMessageBytes {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(section)
	}
	flush()

	if len(parts) <= 1 {
		return parts
	}
	for i := range parts {
		parts[i] = fmt.Sprintf("(%d/%d)\n%s", i+1, len(parts), parts[i])
	}
	return parts
}
