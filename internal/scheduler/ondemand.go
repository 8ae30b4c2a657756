package scheduler

import (
	"context"
	"time"

	"github.com/shanchoynoor/choynews-digest-bot/internal/crypto"
	"github.com/shanchoynoor/choynews-digest-bot/internal/dedupstore"
	"github.com/shanchoynoor/choynews-digest-bot/internal/logger"
	"github.com/shanchoynoor/choynews-digest-bot/internal/metrics"
)

// OnDemand composes and sends a digest for chatID outside the slot
// schedule: identical composition path, no slot bookkeeping, and no
// retry beyond the one attempt transport.SendMessage already makes
// (spec.md §4.5). The caller (a command handler) is responsible for
// relaying a failure back to the user inline.
func (s *Scheduler) OnDemand(ctx context.Context, chatID string) error {
	sub, err := s.subscribers.Get(chatID)
	if err != nil {
		return err
	}
	if sub == nil {
		sub = &dedupstore.Subscriber{
			ChatID: chatID, Timezone: "UTC",
			CryptoAlerts: true, MarketUpdates: true, WeatherInfo: true, WorldNews: true, TechNews: true,
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.JobDeadlineSeconds)*time.Second)
	defer cancel()

	parts, fingerprints, err := s.composeDigest(jobCtx, chatID, *sub, "")
	if err != nil {
		metrics.Global.IncrementDigestsFailed()
		return err
	}

	if err := s.sendParts(jobCtx, chatID, parts); err != nil {
		logger.Warn("OnDemand: send failed", "chat_id", chatID, "error", err)
		metrics.Global.IncrementDigestsFailed()
		s.handleTransportFailure(chatID, err)
		return err
	}

	for cat, fps := range fingerprints {
		for _, fp := range fps {
			if err := s.subscribers.MarkSent(chatID, fp, cat, time.Now().UTC()); err != nil {
				logger.Error("OnDemand: mark_sent failed", "chat_id", chatID, "fingerprint", fp, "error", err)
			}
		}
	}

	metrics.Global.IncrementDigestsSent()
	return nil
}

// CoinStats runs the coin_detail operation (spec.md §4.4) for symbol
// and sends the formatted reply to chatID, mirroring OnDemand's single-
// attempt, no-bookkeeping delivery.
func (s *Scheduler) CoinStats(ctx context.Context, chatID, symbol string) error {
	jobCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.JobDeadlineSeconds)*time.Second)
	defer cancel()

	detail, err := s.market.CoinDetail(jobCtx, symbol)
	if err != nil {
		logger.Warn("CoinStats: coin_detail failed", "chat_id", chatID, "symbol", symbol, "error", err)
		return err
	}

	if _, err := s.tx.SendMessage(jobCtx, chatID, crypto.FormatCoinDetail(detail), false); err != nil {
		logger.Warn("CoinStats: send failed", "chat_id", chatID, "error", err)
		s.handleTransportFailure(chatID, err)
		return err
	}

	return nil
}
