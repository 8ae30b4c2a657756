// Package metrics tracks process-wide counters exposed over the
// /health and /metrics HTTP endpoints.
package metrics

import (
	"sync"
	"time"

	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
)

type Metrics struct {
	mu sync.RWMutex

	// Feed fetcher counters
	ItemsFetched      int64
	ItemsByCategory    map[item.Category]int64
	FetchFailures      int64
	UpstreamOutages    int64

	// Dedup / selection counters
	DuplicatesFiltered int64
	CategoriesStarved  int64

	// Delivery counters
	DigestsSent        int64
	DigestsFailed      int64
	DeliveriesRateLimited int64

	// Timings
	LastTickDuration    time.Duration
	AverageTickDuration time.Duration
	totalTickDuration   time.Duration
	tickCount           int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

// Global is the process-wide metrics singleton, mirroring the teacher's
// package-level Global instance.
var Global = &Metrics{IsHealthy: true, ItemsByCategory: make(map[item.Category]int64)}

func (m *Metrics) IncrementItemsFetched(cat item.Category, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFetched += n
	m.ItemsByCategory[cat] += n
}

func (m *Metrics) IncrementFetchFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchFailures++
}

func (m *Metrics) IncrementUpstreamOutages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpstreamOutages++
}

func (m *Metrics) IncrementDuplicatesFiltered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered++
}

func (m *Metrics) IncrementCategoriesStarved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CategoriesStarved++
}

func (m *Metrics) IncrementDigestsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DigestsSent++
}

func (m *Metrics) IncrementDigestsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DigestsFailed++
}

func (m *Metrics) IncrementDeliveriesRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeliveriesRateLimited++
}

func (m *Metrics) RecordTickDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastTickDuration = d
	m.totalTickDuration += d
	m.tickCount++
	m.AverageTickDuration = m.totalTickDuration / time.Duration(m.tickCount)
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byCategory := make(map[string]int64, len(m.ItemsByCategory))
	for cat, n := range m.ItemsByCategory {
		byCategory[string(cat)] = n
	}

	return map[string]interface{}{
		"items_fetched":            m.ItemsFetched,
		"items_by_category":        byCategory,
		"fetch_failures":           m.FetchFailures,
		"upstream_outages":         m.UpstreamOutages,
		"duplicates_filtered":      m.DuplicatesFiltered,
		"categories_starved":       m.CategoriesStarved,
		"digests_sent":             m.DigestsSent,
		"digests_failed":           m.DigestsFailed,
		"deliveries_rate_limited":  m.DeliveriesRateLimited,
		"last_tick_duration_ms":    m.LastTickDuration.Milliseconds(),
		"average_tick_duration_ms": m.AverageTickDuration.Milliseconds(),
		"last_run_time":            m.LastRunTime.Format(time.RFC3339),
		"last_error_time":          m.LastErrorTime.Format(time.RFC3339),
		"last_error":               m.LastError,
		"is_healthy":               m.IsHealthy,
	}
}
