package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shanchoynoor/choynews-digest-bot/internal/config"
	"github.com/shanchoynoor/choynews-digest-bot/internal/crypto"
	"github.com/shanchoynoor/choynews-digest-bot/internal/dedupstore"
	"github.com/shanchoynoor/choynews-digest-bot/internal/digest"
	"github.com/shanchoynoor/choynews-digest-bot/internal/feed"
	"github.com/shanchoynoor/choynews-digest-bot/internal/holiday"
	"github.com/shanchoynoor/choynews-digest-bot/internal/logger"
	"github.com/shanchoynoor/choynews-digest-bot/internal/metrics"
	"github.com/shanchoynoor/choynews-digest-bot/internal/scheduler"
	"github.com/shanchoynoor/choynews-digest-bot/internal/selection"
	"github.com/shanchoynoor/choynews-digest-bot/internal/transport"
	"github.com/shanchoynoor/choynews-digest-bot/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger.Init(cfg.LogLevel)

	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		go startMonitoringServer()
	}

	sources, err := feed.LoadCatalogue("configs/sources.yaml")
	if err != nil {
		log.Fatalf("load source catalogue: %v", err)
	}

	store, err := dedupstore.Open(cfg.DatabaseURL, cfg.DedupRetentionDays)
	if err != nil {
		log.Fatalf("open dedup store: %v", err)
	}
	defer store.Close()

	fetcher := feed.New(sources, cfg.FeedParallelism, cfg.PerHostParallelism)
	selector := selection.New(fetcher, store, sources)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	market := crypto.New(crypto.NewCoinGeckoProvider(), cfg.MarketCacheTTL)
	commentary, err := crypto.NewCommentaryClient(ctx, cfg.AIAPIKey, cfg.AICommentaryMinGap, cfg.AICommentaryTimeout)
	if err != nil {
		log.Fatalf("create AI commentary client: %v", err)
	}
	defer commentary.Close()

	weatherClient := weather.New(cfg.WeatherAPIKey)
	holidayClient := holiday.New(cfg.HolidayAPIKey)
	assembler := digest.New(sources)
	tx := transport.NewTelegramClient(cfg.TelegramToken)

	sched := scheduler.New(cfg, scheduler.Deps{
		Subscribers: store,
		Feeds:       fetcher,
		Selector:    selector,
		Market:      market,
		Commentary:  commentary,
		Weather:     weatherClient,
		Holiday:     holidayClient,
		Assembler:   assembler,
		Transport:   tx,
	})

	go sched.Run(ctx)
	go pollCommands(ctx, tx, store, sched)

	logger.Info("digest bot running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
}

// pollCommands long-polls the transport for inbound commands. Command
// parsing and help text are out of scope (spec.md §1); this is the
// thin router needed to exercise the on-demand path and the
// subscribe/unsubscribe/timezone contract, not a full command grammar.
func pollCommands(ctx context.Context, tx transport.Transport, store *dedupstore.Store, sched *scheduler.Scheduler) {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := tx.GetUpdates(ctx, offset)
		if err != nil {
			logger.Warn("pollCommands: get_updates failed", "error", err)
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			handleCommand(ctx, tx, store, sched, u)
		}
	}
}

func handleCommand(ctx context.Context, tx transport.Transport, store *dedupstore.Store, sched *scheduler.Scheduler, u transport.Update) {
	if err := store.LogInteraction(u.UserID, u.Username, "", "command", ""); err != nil {
		logger.Warn("handleCommand: log_interaction failed", "error", err)
	}

	switch {
	case u.Text == "/start":
		if err := store.Subscribe(u.ChatID, "UTC"); err != nil {
			logger.Error("handleCommand: subscribe failed", "chat_id", u.ChatID, "error", err)
		}
	case u.Text == "/stop":
		if err := store.Unsubscribe(u.ChatID); err != nil {
			logger.Error("handleCommand: unsubscribe failed", "chat_id", u.ChatID, "error", err)
		}
	case strings.HasPrefix(u.Text, "/settimezone"):
		arg := strings.TrimSpace(strings.TrimPrefix(u.Text, "/settimezone"))
		iana, err := dedupstore.ParseTimezoneInput(arg)
		if err != nil {
			_, _ = tx.SendMessage(ctx, u.ChatID, "Unrecognized timezone: "+arg, false)
			return
		}
		if err := store.SetTimezone(u.ChatID, iana); err != nil {
			logger.Error("handleCommand: set_timezone failed", "chat_id", u.ChatID, "error", err)
		}
	case u.Text == "/news" || u.Text == "/digest":
		if err := sched.OnDemand(ctx, u.ChatID); err != nil {
			_, _ = tx.SendMessage(ctx, u.ChatID, "Sorry, couldn't build your digest right now.", false)
		}
	case strings.HasPrefix(u.Text, "/btcstats") || strings.HasPrefix(u.Text, "/coin"):
		symbol := coinSymbolArg(u.Text)
		if err := sched.CoinStats(ctx, u.ChatID, symbol); err != nil {
			_, _ = tx.SendMessage(ctx, u.ChatID, "Sorry, couldn't fetch "+symbol+" stats right now.", false)
		}
	}
}

// coinSymbolArg extracts the ticker argument from a /btcstats or
// /coin command, defaulting to BTC when none is given.
func coinSymbolArg(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "BTC"
	}
	return strings.ToUpper(fields[1])
}

func startMonitoringServer() {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", metricsHandler)

	logger.Info("starting monitoring server", "port", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Error("monitoring server error", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	if healthy, ok := stats["is_healthy"].(bool); !ok || !healthy {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	response := map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
