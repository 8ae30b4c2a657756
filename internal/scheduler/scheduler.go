// Package scheduler implements the per-user Scheduler: a one-minute
// tick loop that matches subscribers against their four local-time
// delivery slots and dispatches bounded-concurrency delivery jobs
// (spec.md §4.5, §5).
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shanchoynoor/choynews-digest-bot/internal/config"
	"github.com/shanchoynoor/choynews-digest-bot/internal/crypto"
	"github.com/shanchoynoor/choynews-digest-bot/internal/dedupstore"
	"github.com/shanchoynoor/choynews-digest-bot/internal/digest"
	"github.com/shanchoynoor/choynews-digest-bot/internal/feed"
	"github.com/shanchoynoor/choynews-digest-bot/internal/holiday"
	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
	"github.com/shanchoynoor/choynews-digest-bot/internal/logger"
	"github.com/shanchoynoor/choynews-digest-bot/internal/metrics"
	"github.com/shanchoynoor/choynews-digest-bot/internal/selection"
	"github.com/shanchoynoor/choynews-digest-bot/internal/transport"
	"github.com/shanchoynoor/choynews-digest-bot/internal/weather"
)

// Scheduler drives the tick loop and the bounded delivery worker pool.
// Grounded on the teacher's cmd/dknews/main.go single-shot Run, but
// spec.md §5 requires a standing 60s tick plus an N-worker pool, which
// the teacher's one-shot cron-style invocation never needed.
type Scheduler struct {
	cfg *config.Config

	subscribers *dedupstore.Store
	feeds       *feed.Fetcher
	selector    *selection.Engine
	market      *crypto.Composer
	commentary  *crypto.CommentaryClient
	weather     *weather.Client
	holiday     *holiday.Client
	assembler   *digest.Assembler
	tx          transport.Transport

	jobs      chan job
	chatLocks sync.Map // chat_id -> *sync.Mutex, per spec.md §5 serialization
	refreshes singleflight.Group
}

// Deps bundles every collaborator the Scheduler composes a digest
// from.
type Deps struct {
	Subscribers *dedupstore.Store
	Feeds       *feed.Fetcher
	Selector    *selection.Engine
	Market      *crypto.Composer
	Commentary  *crypto.CommentaryClient
	Weather     *weather.Client
	Holiday     *holiday.Client
	Assembler   *digest.Assembler
	Transport   transport.Transport
}

// New builds a Scheduler with a bounded delivery job queue sized to
// the configured worker pool.
func New(cfg *config.Config, deps Deps) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		subscribers: deps.Subscribers,
		feeds:       deps.Feeds,
		selector:    deps.Selector,
		market:      deps.Market,
		commentary:  deps.Commentary,
		weather:     deps.Weather,
		holiday:     deps.Holiday,
		assembler:   deps.Assembler,
		tx:          deps.Transport,
		jobs:        make(chan job, cfg.DeliveryParallelism*4),
	}
}

type job struct {
	chatID string
	sub    dedupstore.Subscriber
	slot   dedupstore.Slot
	date   time.Time
}

// Run drives the tick loop until ctx is cancelled, fanning delivery
// jobs out to DeliveryParallelism workers (spec.md §5).
func (s *Scheduler) Run(ctx context.Context) {
	for i := 0; i < s.cfg.DeliveryParallelism; i++ {
		go s.worker(ctx)
	}

	ticker := time.NewTicker(time.Duration(s.cfg.TickIntervalSeconds) * time.Second)
	defer ticker.Stop()

	purgeTicker := time.NewTicker(24 * time.Hour)
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(s.jobs)
			return
		case <-ticker.C:
			s.tick(ctx)
		case <-purgeTicker.C:
			s.purge()
		}
	}
}

// purge runs the daily delivery_log retention sweep (spec.md §3:
// "older rows are purged daily"; §4.2: purge_older_than invoked daily).
func (s *Scheduler) purge() {
	n, err := s.subscribers.PurgeOlderThan(s.cfg.DedupRetentionDays)
	if err != nil {
		logger.Error("purge: purge_older_than failed", "error", err)
		return
	}
	logger.Info("purge: purged delivery_log rows", "rows", n)
}

// tick enumerates active subscribers and enqueues a job for every
// (subscriber, slot) whose local clock matches and hasn't been sent
// today (spec.md §4.5).
func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.Global.RecordTickDuration(time.Since(start)) }()

	subs, err := s.subscribers.ActiveSubscribers()
	if err != nil {
		logger.Error("tick: list active subscribers failed", "error", err)
		metrics.Global.SetError(err.Error())
		return
	}

	now := time.Now().UTC()
	for _, sub := range subs {
		loc, err := time.LoadLocation(sub.Timezone)
		if err != nil {
			logger.Warn("tick: invalid subscriber timezone, skipping", "chat_id", sub.ChatID, "timezone", sub.Timezone)
			continue
		}
		local := now.In(loc)

		for _, slotSpec := range dedupstore.Slots {
			if !withinSlotWindow(local, slotSpec.Hour, s.cfg.TickIntervalSeconds) {
				continue
			}
			if alreadySentToday(sub.LastSlotSent[slotSpec.Slot], local) {
				continue
			}

			select {
			case s.jobs <- job{chatID: sub.ChatID, sub: sub, slot: slotSpec.Slot, date: truncateToDate(local)}:
			default:
				logger.Warn("tick: delivery queue full, dropping job", "chat_id", sub.ChatID, "slot", slotSpec.Slot)
			}
		}
	}

	metrics.Global.SetLastRun()
}

func withinSlotWindow(local time.Time, hour, tickSeconds int) bool {
	if local.Hour() != hour || local.Minute() != 0 {
		return false
	}
	return local.Second() < tickSeconds
}

func alreadySentToday(lastSent, local time.Time) bool {
	if lastSent.IsZero() {
		return false
	}
	return lastSent.Year() == local.Year() && lastSent.YearDay() == local.YearDay()
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (s *Scheduler) worker(ctx context.Context) {
	for j := range s.jobs {
		s.runJob(ctx, j)
	}
}

// chatMutex returns the per-chat lock used to serialize jobs for the
// same chat (spec.md §5 ordering guarantee).
func (s *Scheduler) chatMutex(chatID string) *sync.Mutex {
	m, _ := s.chatLocks.LoadOrStore(chatID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// enabledCategories maps a subscriber's opt-in flags onto the fixed
// category set (SPEC_FULL.md §3's supplemented per-category flags).
func enabledCategories(sub dedupstore.Subscriber) map[item.Category]bool {
	return map[item.Category]bool{
		item.Local:         sub.WorldNews, // local bundles with world-news opt-in; no separate flag in the schema
		item.Global:        sub.WorldNews,
		item.Tech:          sub.TechNews,
		item.Sports:        sub.WorldNews,
		item.FinanceCrypto: sub.CryptoAlerts,
	}
}
