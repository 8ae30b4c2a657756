package selection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
)

type fakeFeed struct {
	items []item.Item
}

func (f *fakeFeed) Recent(cat item.Category, since time.Time) []item.Item {
	var out []item.Item
	for _, it := range f.items {
		if it.Category == cat && !it.PublishedAt.Before(since) {
			out = append(out, it)
		}
	}
	return out
}

type fakeDedup struct {
	seen map[string]bool
}

func (f *fakeDedup) HasSeen(chatID, fingerprint string) (bool, error) {
	return f.seen[chatID+"|"+fingerprint], nil
}

func mkItem(id, sourceID string, age time.Duration, now time.Time) item.Item {
	return item.Item{
		Fingerprint: id,
		Title:       id,
		Link:        "https://example.com/" + id,
		Category:    item.Tech,
		SourceID:    sourceID,
		PublishedAt: now.Add(-age),
		FetchedAt:   now,
	}
}

func TestSelectReturnsExactlyFiveWithPadding(t *testing.T) {
	now := time.Now()
	feed := &fakeFeed{items: []item.Item{
		mkItem("a", "src1", time.Minute, now),
		mkItem("b", "src1", 2*time.Minute, now),
	}}
	dedup := &fakeDedup{seen: map[string]bool{}}

	eng := New(feed, dedup, nil)
	got, err := eng.Select(context.Background(), "chat1", item.Tech, now)
	require.NoError(t, err)
	require.Len(t, got, 5)

	placeholders := 0
	for _, it := range got {
		if IsPlaceholder(it) {
			placeholders++
		}
	}
	assert.Equal(t, 3, placeholders)
}

func TestSelectEnforcesPerSourceCap(t *testing.T) {
	now := time.Now()
	var items []item.Item
	for i := 0; i < 6; i++ {
		items = append(items, mkItem(string(rune('a'+i)), "only-source", time.Duration(i)*time.Minute, now))
	}
	feed := &fakeFeed{items: items}
	dedup := &fakeDedup{seen: map[string]bool{}}

	eng := New(feed, dedup, nil)
	got, err := eng.Select(context.Background(), "chat1", item.Tech, now)
	require.NoError(t, err)

	count := 0
	for _, it := range got {
		if it.SourceID == "only-source" {
			count++
		}
	}
	assert.LessOrEqual(t, count, perSourceCap)
}

func TestSelectExcludesAlreadySeen(t *testing.T) {
	now := time.Now()
	feed := &fakeFeed{items: []item.Item{
		mkItem("a", "src1", time.Minute, now),
	}}
	dedup := &fakeDedup{seen: map[string]bool{"chat1|a": true}}

	eng := New(feed, dedup, nil)
	got, err := eng.Select(context.Background(), "chat1", item.Tech, now)
	require.NoError(t, err)
	for _, it := range got {
		assert.NotEqual(t, "a", it.Fingerprint)
	}
}

func TestSelectWidensToFallbackHorizon(t *testing.T) {
	now := time.Now()
	var items []item.Item
	for i := 0; i < 5; i++ {
		items = append(items, mkItem(string(rune('a'+i)), "src"+string(rune('1'+i)), 10*time.Hour, now))
	}
	feed := &fakeFeed{items: items}
	dedup := &fakeDedup{seen: map[string]bool{}}

	eng := New(feed, dedup, nil)
	got, err := eng.Select(context.Background(), "chat1", item.Tech, now)
	require.NoError(t, err)

	placeholders := 0
	for _, it := range got {
		if IsPlaceholder(it) {
			placeholders++
		}
	}
	assert.Equal(t, 0, placeholders)
}
