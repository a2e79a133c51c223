package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/internal/ledger"
	"github.com/mmynk/settleup/internal/storage/sqlite"
)

type fakeAPI struct {
	updates chan tgapi.Update

	mu      sync.Mutex
	sent    []tgapi.MessageConfig
	stopped bool
}

func newFakeAPI(buffer int) *fakeAPI {
	return &fakeAPI{updates: make(chan tgapi.Update, buffer)}
}

func (f *fakeAPI) GetUpdatesChan(tgapi.UpdateConfig) tgapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgapi.Chattable) (tgapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgapi.Message{}, nil
}

func (f *fakeAPI) replies() []tgapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgapi.MessageConfig(nil), f.sent...)
}

// commandUpdate builds the update Telegram delivers for a command message.
func commandUpdate(chatID int64, user, text string) tgapi.Update {
	length := strings.IndexByte(text, ' ')
	if length < 0 {
		length = len(text)
	}
	return tgapi.Update{
		Message: &tgapi.Message{
			Text: text,
			Chat: &tgapi.Chat{ID: chatID, Title: "Lisbon"},
			From: &tgapi.User{UserName: user},
			Entities: []tgapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: length},
			},
		},
	}
}

func TestBotRun(t *testing.T) {
	c, _ := setupCommands(t)
	api := newFakeAPI(8)
	b := New(api, c, nil)

	api.updates <- commandUpdate(testChat, "alice", "/join")
	api.updates <- commandUpdate(testChat, "bob", "/join@SettleUpBot")
	api.updates <- tgapi.Update{Message: &tgapi.Message{
		Text: "just chatting",
		Chat: &tgapi.Chat{ID: testChat},
		From: &tgapi.User{UserName: "bob"},
	}}
	api.updates <- commandUpdate(testChat, "alice", "/add 20 all")
	api.updates <- commandUpdate(testChat, "alice", "/nope")
	api.updates <- commandUpdate(testChat, "bob", "/settle")
	close(api.updates)

	require.NoError(t, b.Run(context.Background()))

	replies := api.replies()
	require.Len(t, replies, 4)
	for _, r := range replies {
		assert.Equal(t, testChat, r.ChatID)
	}
	assert.Equal(t, "@alice joined. Members: @alice", replies[0].Text)
	assert.Equal(t, "@bob joined. Members: @alice, @bob", replies[1].Text)
	assert.Equal(t, "Ok, @alice paid 20.00 for @alice, @bob.", replies[2].Text)
	assert.Equal(t, settleHeader+"\n 1. @bob must pay 10.00 to @alice", replies[3].Text)
	assert.True(t, api.stopped)
}

func TestBotRepliesOnInternalError(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	c := NewCommands(store, ledger.New(store))
	require.NoError(t, store.Close())

	api := newFakeAPI(1)
	api.updates <- commandUpdate(testChat, "alice", "/list")
	close(api.updates)

	require.NoError(t, New(api, c, nil).Run(context.Background()))

	replies := api.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, errInternal, replies[0].Text)
}

func TestBotStopsOnCancel(t *testing.T) {
	c, _ := setupCommands(t)
	api := newFakeAPI(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(api, c, nil).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
}
