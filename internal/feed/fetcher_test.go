package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
)

func TestTTLForClampsToBand(t *testing.T) {
	assert.Equal(t, defaultCacheTTL, ttlFor(0))
	assert.Equal(t, minCacheTTL, ttlFor(1))
	assert.Equal(t, maxCacheTTL, ttlFor(9999))
	assert.Equal(t, 8*time.Minute, ttlFor(8))
}

func TestHostOfExtractsHost(t *testing.T) {
	assert.Equal(t, "example.com", hostOf("https://example.com/feed.xml"))
	assert.Equal(t, "not a url", hostOf("not a url"))
}

func TestRecentFiltersExpiredAndStale(t *testing.T) {
	f := New(nil, 4, 2)
	cat := item.Local
	cache := f.cacheFor(cat)

	now := time.Now().UTC()
	cache.mu.Lock()
	cache.items["fresh"] = cachedItem{
		item:      item.Item{Fingerprint: "fresh", PublishedAt: now},
		expiresAt: now.Add(time.Hour),
	}
	cache.items["expired"] = cachedItem{
		item:      item.Item{Fingerprint: "expired", PublishedAt: now},
		expiresAt: now.Add(-time.Minute),
	}
	cache.items["tooOld"] = cachedItem{
		item:      item.Item{Fingerprint: "tooOld", PublishedAt: now.Add(-48 * time.Hour)},
		expiresAt: now.Add(time.Hour),
	}
	cache.mu.Unlock()

	got := f.Recent(cat, now.Add(-time.Hour))
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Fingerprint)
}

func TestEnabledByCategorySkipsDisabled(t *testing.T) {
	sources := []item.Source{
		{ID: "a", Category: item.Tech, Enabled: true},
		{ID: "b", Category: item.Tech, Enabled: false},
		{ID: "c", Category: item.Sports, Enabled: true},
	}
	grouped := EnabledByCategory(sources)
	assert.Len(t, grouped[item.Tech], 1)
	assert.Equal(t, "a", grouped[item.Tech][0].ID)
	assert.Len(t, grouped[item.Sports], 1)
}
