// Package bot runs the SettleUp Telegram front end. Each chat is one group
// and members are identified by their @username.
package bot

import (
	"context"
	"log/slog"

	tgapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mmynk/settleup/pkg/logging"
)

// API is the part of *tgapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgapi.UpdateConfig) tgapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgapi.Chattable) (tgapi.Message, error)
}

// Bot reads updates from Telegram and answers commands.
type Bot struct {
	api      API
	commands *Commands
	logger   *slog.Logger
}

// New creates a Bot. A nil logger falls back to slog.Default.
func New(api API, commands *Commands, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, commands: commands, logger: logger}
}

// Run long-polls for updates and handles them one at a time until ctx is
// cancelled or the update channel is closed.
func (b *Bot) Run(ctx context.Context) error {
	u := tgapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info("Bot started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}

	req := Request{
		ChatID:    msg.Chat.ID,
		ChatTitle: msg.Chat.Title,
		Command:   msg.Command(),
		Args:      msg.CommandArguments(),
	}
	if msg.From != nil {
		req.Username = msg.From.UserName
	}

	logger := b.logger.With(
		"chat_id", req.ChatID,
		"command", req.Command,
		"username", req.Username,
	)
	ctx = logging.WithLogger(ctx, logger)

	reply, err := b.commands.Handle(ctx, req)
	if err != nil {
		logger.Error("Command failed", "error", err)
		reply = errInternal
	}
	if reply == "" {
		return
	}
	logger.Debug("Command handled")

	if _, err := b.api.Send(tgapi.NewMessage(req.ChatID, reply)); err != nil {
		logger.Error("Failed to send reply", "error", err)
	}
}
