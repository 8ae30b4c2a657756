// Package selection implements the Selection Engine: given a category
// and a recipient, it picks exactly five items obeying freshness,
// per-source caps, ranking, and cross-slot dedup (spec.md §4.3).
package selection

import (
	"context"
	"sort"
	"time"

	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
	"github.com/shanchoynoor/choynews-digest-bot/internal/metrics"
)

const (
	horizon           = 3 * time.Hour
	fallbackHorizon    = 48 * time.Hour
	resultSize         = 5
	perSourceCap       = 3
	recencyWeight      = 0.6
	reliabilityWeight  = 0.3
	estimatedPenalty   = 0.1
)

// FeedSource is the subset of the Feed Fetcher the Selection Engine
// needs: recent(category, since) -> []Item.
type FeedSource interface {
	Recent(cat item.Category, since time.Time) []item.Item
}

// DedupChecker is the subset of the Dedup Store the Selection Engine
// needs: has_seen(chat_id, fingerprint) -> bool.
type DedupChecker interface {
	HasSeen(chatID, fingerprint string) (bool, error)
}

// Engine is the Selection Engine.
type Engine struct {
	feed        FeedSource
	dedup       DedupChecker
	reliability map[string]float64 // source_id -> reliability_weight, 0.5-1.5
}

// New builds a Selection Engine over the given Feed Fetcher and Dedup
// Store collaborators. sources supplies each source's reliability_weight
// for the ranking score's reliability term.
func New(feed FeedSource, dedup DedupChecker, sources []item.Source) *Engine {
	reliability := make(map[string]float64, len(sources))
	for _, s := range sources {
		w := s.ReliabilityWeight
		if w == 0 {
			w = 1.0
		}
		reliability[s.ID] = w
	}
	return &Engine{feed: feed, dedup: dedup, reliability: reliability}
}

func (e *Engine) reliabilityOf(sourceID string) float64 {
	if w, ok := e.reliability[sourceID]; ok {
		return w
	}
	return 1.0
}

// Placeholder marks a selection deficit slot: CategoryStarved even after
// widening to the fallback horizon. It carries no fingerprint and is
// never passed to mark_sent.
var Placeholder = item.Item{}

// IsPlaceholder reports whether it is a deficit placeholder rather than
// a real item.
func IsPlaceholder(it item.Item) bool {
	return it.Fingerprint == ""
}

// Select returns exactly five items for chatID in category, in display
// order, padding with placeholders if the catalogue can't fill five
// even at the fallback horizon.
func (e *Engine) Select(ctx context.Context, chatID string, cat item.Category, now time.Time) ([]item.Item, error) {
	selected, err := e.selectAt(chatID, cat, now, horizon)
	if err != nil {
		return nil, err
	}
	if len(selected) < resultSize {
		selected, err = e.selectAt(chatID, cat, now, fallbackHorizon)
		if err != nil {
			return nil, err
		}
	}

	if len(selected) < resultSize {
		metrics.Global.IncrementCategoriesStarved()
		deficit := resultSize - len(selected)
		for i := 0; i < deficit; i++ {
			selected = append(selected, Placeholder)
		}
	}

	return selected[:resultSize], nil
}

func (e *Engine) selectAt(chatID string, cat item.Category, now time.Time, h time.Duration) ([]item.Item, error) {
	candidates := e.feed.Recent(cat, now.Add(-h))

	eligible := make([]item.Item, 0, len(candidates))
	for _, it := range candidates {
		seen, err := e.dedup.HasSeen(chatID, it.Fingerprint)
		if err != nil {
			return nil, err
		}
		if seen {
			continue
		}
		eligible = append(eligible, it)
	}

	scored := make([]scoredItem, 0, len(eligible))
	for _, it := range eligible {
		scored = append(scored, scoredItem{item: it, score: e.rankingScore(it, now, h)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if !scored[i].item.PublishedAt.Equal(scored[j].item.PublishedAt) {
			return scored[i].item.PublishedAt.After(scored[j].item.PublishedAt)
		}
		return scored[i].item.SourceID < scored[j].item.SourceID
	})

	perSource := make(map[string]int)
	out := make([]item.Item, 0, resultSize)
	for _, s := range scored {
		if len(out) >= resultSize {
			break
		}
		if perSource[s.item.SourceID] >= perSourceCap {
			continue
		}
		perSource[s.item.SourceID]++
		out = append(out, s.item)
	}

	return out, nil
}

type scoredItem struct {
	item  item.Item
	score float64
}

func (e *Engine) rankingScore(it item.Item, now time.Time, horizonDuration time.Duration) float64 {
	ageHours := now.Sub(it.PublishedAt).Hours()
	horizonHours := horizonDuration.Hours()

	recency := 1 - ageHours/horizonHours
	if recency < 0 {
		recency = 0
	}

	penalty := 0.0
	if it.TimeEstimated {
		penalty = 1.0
	}

	return recency*recencyWeight + e.reliabilityOf(it.SourceID)*reliabilityWeight - penalty*estimatedPenalty
}
