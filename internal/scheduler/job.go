package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/shanchoynoor/choynews-digest-bot/internal/dedupstore"
	"github.com/shanchoynoor/choynews-digest-bot/internal/digest"
	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
	"github.com/shanchoynoor/choynews-digest-bot/internal/logger"
	"github.com/shanchoynoor/choynews-digest-bot/internal/metrics"
	"github.com/shanchoynoor/choynews-digest-bot/internal/transport"
)

// sendBackoff is the retry schedule for a failed scheduled delivery:
// up to two retries at 30s then 120s, three attempts total, per
// spec.md §4.5.
var sendBackoff = []time.Duration{30 * time.Second, 120 * time.Second}

// runJob executes one scheduled delivery: compose, send with the
// scheduled-delivery retry schedule, and on success mark every
// fingerprint sent and the slot's last-send date. Jobs for the same
// chat are serialized (spec.md §5); jobs across chats run freely.
func (s *Scheduler) runJob(ctx context.Context, j job) {
	mutex := s.chatMutex(j.chatID)
	mutex.Lock()
	defer mutex.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.JobDeadlineSeconds)*time.Second)
	defer cancel()

	text, fingerprints, err := s.composeDigest(jobCtx, j.chatID, j.sub, j.slot)
	if err != nil {
		logger.Error("job: compose failed", "chat_id", j.chatID, "slot", j.slot, "error", err)
		metrics.Global.IncrementDigestsFailed()
		return
	}

	var sendErr error
retryLoop:
	for attempt := 0; attempt <= len(sendBackoff); attempt++ {
		sendErr = s.sendParts(jobCtx, j.chatID, text)
		if sendErr == nil {
			break
		}
		if attempt == len(sendBackoff) {
			break
		}

		delay := sendBackoff[attempt]
		logger.Warn("job: send failed, retrying", "chat_id", j.chatID, "slot", j.slot, "attempt", attempt+1, "error", sendErr)
		select {
		case <-jobCtx.Done():
			sendErr = jobCtx.Err()
			break retryLoop
		case <-time.After(delay):
		}
	}

	if sendErr != nil {
		logger.Error("job: giving up on slot after retries", "chat_id", j.chatID, "slot", j.slot, "error", sendErr)
		metrics.Global.IncrementDigestsFailed()
		s.handleTransportFailure(j.chatID, sendErr)
		return
	}

	for cat, fps := range fingerprints {
		for _, fp := range fps {
			if err := s.subscribers.MarkSent(j.chatID, fp, cat, time.Now().UTC()); err != nil {
				logger.Error("job: mark_sent failed", "chat_id", j.chatID, "fingerprint", fp, "error", err)
			}
		}
	}
	if err := s.subscribers.MarkSlotSent(j.chatID, j.slot, j.date); err != nil {
		logger.Error("job: mark_slot_sent failed", "chat_id", j.chatID, "slot", j.slot, "error", err)
	}

	metrics.Global.IncrementDigestsSent()
}

// handleTransportFailure flips a subscriber inactive on a permanent
// transport error (spec.md §7, TransportPermanent).
func (s *Scheduler) handleTransportFailure(chatID string, err error) {
	var sendErr *transport.SendError
	if se, ok := err.(*transport.SendError); ok {
		sendErr = se
	} else {
		return
	}
	if sendErr.Kind == transport.Unauthorized || sendErr.Kind == transport.ChatNotFound {
		if unsubErr := s.subscribers.Unsubscribe(chatID); unsubErr != nil {
			logger.Error("job: failed to deactivate subscriber", "chat_id", chatID, "error", unsubErr)
		} else {
			logger.Info("job: deactivated subscriber after permanent transport failure", "chat_id", chatID, "kind", sendErr.Kind)
		}
	}
}

func (s *Scheduler) sendParts(ctx context.Context, chatID string, parts []string) error {
	for _, part := range parts {
		if _, err := s.tx.SendMessage(ctx, chatID, part, true); err != nil {
			return err
		}
	}
	return nil
}

// composeDigest runs the full composition pipeline shared by scheduled
// and on-demand delivery: refresh feeds (coalesced per category),
// Selection Engine per category, Crypto Composer, weather/holiday, and
// Assembler. Returns the rendered parts plus the fingerprints selected
// per category so the caller can mark them sent only after a
// successful transport ack (spec.md §5 ordering guarantee).
func (s *Scheduler) composeDigest(ctx context.Context, chatID string, sub dedupstore.Subscriber, slot dedupstore.Slot) ([]string, map[item.Category][]string, error) {
	categories := map[item.Category][]item.Item{}
	fingerprints := map[item.Category][]string{}

	for _, cat := range item.Categories {
		s.refreshCategory(ctx, cat)

		items, err := s.selector.Select(ctx, chatID, cat, time.Now().UTC())
		if err != nil {
			logger.Warn("composeDigest: selection failed, category degrades to starved", "category", cat, "error", err)
			metrics.Global.IncrementCategoriesStarved()
			items = make([]item.Item, 5) // zero-value items render as placeholders (selection.IsPlaceholder)
		}
		categories[cat] = items

		for _, it := range items {
			if it.Fingerprint != "" {
				fingerprints[cat] = append(fingerprints[cat], it.Fingerprint)
			}
		}
	}

	snap, marketErr := s.market.Snapshot(ctx)
	var commentary string
	if marketErr == nil && s.commentary != nil {
		commentary = s.commentary.Commentary(ctx, snap)
	}

	current, weatherErr := s.weather.Current(ctx, s.cfg.WeatherLocation)

	var holidayNames []string
	if names, err := s.holiday.Holidays(ctx, s.cfg.HolidayCountry, time.Now()); err == nil {
		holidayNames = names
	}

	loc, err := time.LoadLocation(sub.Timezone)
	if err != nil {
		loc = time.UTC
	}

	in := digest.Input{
		Now:               time.Now().In(loc),
		Timezone:          sub.Timezone,
		SlotLabel:         slotLabel(slot),
		HolidayNames:      holidayNames,
		Weather:           current,
		WeatherErr:        weatherErr,
		Categories:        categories,
		Market:            snap,
		MarketErr:         marketErr,
		Commentary:        commentary,
		EnabledCategories: enabledCategories(sub),
		IncludeMarket:     sub.CryptoAlerts || sub.MarketUpdates,
		IncludeWeather:    sub.WeatherInfo,
	}

	parts := s.assembler.Compose(in)
	return parts, fingerprints, nil
}

// refreshCategory coalesces concurrent refresh requests for the same
// category into a single in-flight Feed Fetcher call (spec.md §4.5).
func (s *Scheduler) refreshCategory(ctx context.Context, cat item.Category) {
	_, _, _ = s.refreshes.Do(string(cat), func() (interface{}, error) {
		_, err := s.feeds.Refresh(ctx, cat)
		if err != nil {
			logger.Warn("refreshCategory: feed refresh failed", "category", cat, "error", err)
		}
		return nil, nil
	})
}

func slotLabel(slot dedupstore.Slot) string {
	switch slot {
	case dedupstore.Morning:
		return "Morning"
	case dedupstore.Noon:
		return "Midday"
	case dedupstore.Evening:
		return "Evening"
	case dedupstore.Night:
		return "Night"
	case "":
		return "On-demand"
	default:
		return fmt.Sprintf("%v", slot)
	}
}
