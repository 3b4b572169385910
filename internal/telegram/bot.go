package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vendul0g/gmail-oauth-client/internal/formatter"
	appmodels "github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// StatusSource reports the current agent status
type StatusSource interface {
	Status() appmodels.AgentStatus
}

// JournalReader lists the latest processed messages
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]*appmodels.ProcessedMessage, error)
}

// recentLimit is how many journal entries /status shows
const recentLimit = 5

// messageSender is the part of *bot.Bot used for outgoing messages
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Bot pushes operator notices to one chat and answers /status there
type Bot struct {
	bot       *bot.Bot
	api       messageSender
	chatID    int64
	topicID   int
	account   string
	status    StatusSource
	journal   JournalReader
	formatter *formatter.TelegramFormatter
	logger    *slog.Logger
}

// BotDeps dependencies for creating a bot
type BotDeps struct {
	Token     string
	ChatID    int64
	TopicID   int
	Account   string
	Journal   JournalReader // optional, adds recent messages to /status
	Formatter *formatter.TelegramFormatter
	Logger    *slog.Logger
}

// NewBot creates a new Telegram bot
func NewBot(deps BotDeps) (*Bot, error) {
	b := newBot(nil, deps)

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
	}

	tgBot, err := bot.New(deps.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	b.bot = tgBot
	b.api = tgBot
	b.registerHandlers()

	return b, nil
}

func newBot(api messageSender, deps BotDeps) *Bot {
	f := deps.Formatter
	if f == nil {
		f = formatter.NewTelegramFormatter()
	}
	return &Bot{
		api:       api,
		chatID:    deps.ChatID,
		topicID:   deps.TopicID,
		account:   deps.Account,
		journal:   deps.Journal,
		formatter: f,
		logger:    deps.Logger.With("component", "telegram_bot"),
	}
}

// SetStatusSource connects /status to the agent loop
func (b *Bot) SetStatusSource(s StatusSource) {
	b.status = s
}

// registerHandlers registers command handlers
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypePrefix, b.handleStatus)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, b.handleHelp)
}

// Start receives updates until ctx is done
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("starting telegram bot")
	b.bot.Start(ctx)
}

// defaultHandler handles unknown messages
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	// Ignore non-message updates and messages without text
	if update.Message == nil {
		return
	}

	// Log unknown commands
	if update.Message.Text != "" && update.Message.Text[0] == '/' {
		b.logger.Debug("unknown command", "text", update.Message.Text)
	}
}

// handleStart handles /start command
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelp(ctx, tgBot, update)
}

// handleHelp handles /help command
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.isOperatorChat(msg) {
		return
	}

	text := `<b>Mailbox agent</b>

Notices about authorization and undelivered replies arrive in this chat.

<b>Commands:</b>
/status - show the agent state and counters`

	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, text)
}

// handleStatus handles /status command
func (b *Bot) handleStatus(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.isOperatorChat(msg) {
		return
	}

	if b.status == nil {
		b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, "The agent loop has not started yet")
		return
	}

	var recent []*appmodels.ProcessedMessage
	if b.journal != nil {
		entries, err := b.journal.Recent(ctx, recentLimit)
		if err != nil {
			b.logger.Warn("failed to read journal for status", "error", err)
		} else {
			recent = entries
		}
	}

	b.sendMessage(ctx, msg.Chat.ID, msg.MessageThreadID, b.formatter.FormatStatus(b.status.Status(), recent))
}
