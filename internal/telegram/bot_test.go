package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	appmodels "github.com/vendul0g/gmail-oauth-client/pkg/models"
)

type fakeSender struct {
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.sent = append(f.sent, params)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: len(f.sent)}, nil
}

type staticStatus appmodels.AgentStatus

func (s staticStatus) Status() appmodels.AgentStatus { return appmodels.AgentStatus(s) }

type fakeJournal struct {
	entries []*appmodels.ProcessedMessage
	err     error
	limit   int
}

func (f *fakeJournal) Recent(_ context.Context, limit int) ([]*appmodels.ProcessedMessage, error) {
	f.limit = limit
	return f.entries, f.err
}

func newTestBot(api messageSender) *Bot {
	return newBot(api, BotDeps{
		ChatID:  -100123,
		TopicID: 7,
		Account: "agent@gmail.com",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func command(chatID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Chat: models.Chat{ID: chatID},
		Text: text,
	}}
}

func TestNotifyConsent(t *testing.T) {
	api := &fakeSender{}
	b := newTestBot(api)

	require.NoError(t, b.NotifyConsent(context.Background(), "https://accounts.google.com/o/oauth2/auth?state=s1"))

	require.Len(t, api.sent, 1)
	params := api.sent[0]
	assert.Equal(t, int64(-100123), params.ChatID)
	assert.Equal(t, 7, params.MessageThreadID)
	assert.Equal(t, models.ParseModeHTML, params.ParseMode)
	assert.Contains(t, params.Text, "agent@gmail.com")

	kb, ok := params.ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=s1", kb.InlineKeyboard[0][0].URL)
}

func TestNotifyConsent_DeliveryFailure(t *testing.T) {
	b := newTestBot(&fakeSender{err: errors.New("bad gateway")})

	err := b.NotifyConsent(context.Background(), "https://accounts.google.com/")
	assert.ErrorContains(t, err, "bad gateway")
}

func TestNotifyAuthFailure(t *testing.T) {
	api := &fakeSender{}
	b := newTestBot(api)

	cause := fmt.Errorf("%w: consent not completed", apperr.ErrAuth)
	require.NoError(t, b.NotifyAuthFailure(context.Background(), cause))
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "consent not completed")
}

func TestNotifySendFailure(t *testing.T) {
	api := &fakeSender{}
	b := newTestBot(api)

	reply := appmodels.Reply{To: "alice@example.com", Subject: "Re: Hello"}
	require.NoError(t, b.NotifySendFailure(context.Background(), reply, fmt.Errorf("%w: 550", apperr.ErrSend)))
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "alice@example.com")
}

func TestHandleStatus(t *testing.T) {
	api := &fakeSender{}
	b := newTestBot(api)
	b.SetStatusSource(staticStatus{Account: "agent@gmail.com", State: "Sleeping", Cycles: 3})

	b.handleStatus(context.Background(), nil, command(-100123, "/status"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "<b>State:</b> Sleeping")
	assert.Contains(t, api.sent[0].Text, "<b>Cycles:</b> 3")
}

func TestHandleStatus_IncludesRecentJournal(t *testing.T) {
	api := &fakeSender{}
	b := newTestBot(api)
	journal := &fakeJournal{entries: []*appmodels.ProcessedMessage{
		{FromAddr: "alice@example.com", Subject: "Hello", Replied: true},
	}}
	b.journal = journal
	b.SetStatusSource(staticStatus{State: "Sleeping"})

	b.handleStatus(context.Background(), nil, command(-100123, "/status"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, recentLimit, journal.limit)
	assert.Contains(t, api.sent[0].Text, "alice@example.com: Hello (replied)")
}

func TestHandleStatus_JournalFailureStillAnswers(t *testing.T) {
	api := &fakeSender{}
	b := newTestBot(api)
	b.journal = &fakeJournal{err: errors.New("database is locked")}
	b.SetStatusSource(staticStatus{State: "Sleeping"})

	b.handleStatus(context.Background(), nil, command(-100123, "/status"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "<b>State:</b> Sleeping")
	assert.NotContains(t, api.sent[0].Text, "Recent messages")
}

func TestHandleStatus_NotStarted(t *testing.T) {
	api := &fakeSender{}
	b := newTestBot(api)

	b.handleStatus(context.Background(), nil, command(-100123, "/status"))

	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].Text, "not started")
}

func TestHandlers_IgnoreForeignChat(t *testing.T) {
	api := &fakeSender{}
	b := newTestBot(api)
	b.SetStatusSource(staticStatus{State: "Idle"})

	b.handleStatus(context.Background(), nil, command(555, "/status"))
	b.handleHelp(context.Background(), nil, command(555, "/help"))
	b.defaultHandler(context.Background(), nil, &models.Update{})

	assert.Empty(t, api.sent)
}
