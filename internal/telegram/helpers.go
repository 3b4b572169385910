package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// isOperatorChat only lets the configured chat talk to the agent
func (b *Bot) isOperatorChat(msg *models.Message) bool {
	if msg == nil {
		return false
	}
	if msg.Chat.ID != b.chatID {
		b.logger.Debug("ignoring command from foreign chat", "chat_id", msg.Chat.ID)
		return false
	}
	return true
}

// sendMessage sends a message to a topic
func (b *Bot) sendMessage(ctx context.Context, chatID int64, topicID int, text string) (*models.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}

	if topicID != 0 {
		params.MessageThreadID = topicID
	}

	msg, err := b.api.SendMessage(ctx, params)
	if err != nil {
		b.logger.Warn("failed to send telegram message", "chat_id", chatID, "error", err)
	}
	return msg, err
}

// sendMessageWithKeyboard sends a message with inline keyboard
func (b *Bot) sendMessageWithKeyboard(ctx context.Context, chatID int64, topicID int, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard,
	}

	if topicID != 0 {
		params.MessageThreadID = topicID
	}

	msg, err := b.api.SendMessage(ctx, params)
	if err != nil {
		b.logger.Warn("failed to send telegram message", "chat_id", chatID, "error", err)
	}
	return msg, err
}
