package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mmynk/settleup/internal/bot"
	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/ledger"
	"github.com/mmynk/settleup/internal/storage/backend"
	"github.com/mmynk/settleup/pkg/logging"
)

func main() {
	cfg, err := config.LoadBot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// wait until an interrupt is received
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.Storage.Driver, "database", backend.Describe(cfg.Storage))

	api, err := tgapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	api.Debug = cfg.Debug
	logger.Info("Authorized on Telegram", "username", api.Self.UserName)

	l := ledger.New(store, ledger.WithPolicy(cfg.Policy))
	b := bot.New(api, bot.NewCommands(store, l), logger)
	if err := b.Run(ctx); err != nil {
		logger.Error("Bot failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Bot stopped")
}
