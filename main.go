package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofrs/flock"

	"github.com/phanta1313/tgbot-sales/internal/config"
	"github.com/phanta1313/tgbot-sales/internal/metrics"
	"github.com/phanta1313/tgbot-sales/internal/settlement"
	"github.com/phanta1313/tgbot-sales/internal/subscription/postgres"
	"github.com/phanta1313/tgbot-sales/internal/telegram"
	"github.com/phanta1313/tgbot-sales/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	// Two pollers on one bot token split the update stream between them,
	// so a second instance must not start.
	lock := flock.New(cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		slog.Error("instance lock failed", "path", cfg.LockFile, "error", err)
		os.Exit(1)
	}
	if !locked {
		slog.Error("another instance is already running", "path", cfg.LockFile)
		os.Exit(1)
	}
	defer lock.Unlock()

	metrics.Init()
	go func() {
		slog.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler()); err != nil {
			slog.Error("metrics server stopped", "error", err)
		}
	}()

	store, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		slog.Error("store open failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("connected to postgres")

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, &http.Client{
		// long polling holds the connection for the update timeout, the
		// client timeout must sit above it
		Timeout: 90 * time.Second,
	})
	if err != nil {
		slog.Error("bot init failed", "error", err)
		os.Exit(1)
	}
	slog.Info("authorized", "bot", bot.Self.UserName)

	messenger := telegram.NewMessenger(bot)
	coordinator := settlement.New(
		store,
		telegram.NewInviteIssuer(bot, cfg.GroupID),
		messenger,
	)
	handler := telegram.NewHandler(bot, store, coordinator, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go settlement.NewReminder(store, messenger).Run(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		bot.StopReceivingUpdates()
	}()

	// One inbound event at a time per worker; ordering for a single user is
	// restored by the coordinator's per-user lock.
	jobs := make(chan tgbotapi.Update, 256)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for update := range jobs {
				handler.HandleUpdate(ctx, update)
			}
		}()
	}

	for update := range updates {
		jobs <- update
	}
	close(jobs)
	wg.Wait()
	slog.Info("stopped")
}
