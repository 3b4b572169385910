package telegram

import (
	"context"
	"fmt"

	"github.com/vendul0g/gmail-oauth-client/internal/formatter"
	appmodels "github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// NotifyConsent sends the consent link as an inline URL button
func (b *Bot) NotifyConsent(ctx context.Context, authURL string) error {
	_, err := b.sendMessageWithKeyboard(ctx, b.chatID, b.topicID,
		b.formatter.FormatConsent(b.account), formatter.BuildConsentKeyboard(authURL))
	if err != nil {
		return fmt.Errorf("failed to send consent notice: %w", err)
	}
	return nil
}

// NotifyAuthFailure tells the operator the agent cannot authenticate
func (b *Bot) NotifyAuthFailure(ctx context.Context, cause error) error {
	if _, err := b.sendMessage(ctx, b.chatID, b.topicID, b.formatter.FormatAuthFailure(b.account, cause)); err != nil {
		return fmt.Errorf("failed to send auth failure notice: %w", err)
	}
	return nil
}

// NotifySendFailure tells the operator a reply was dropped
func (b *Bot) NotifySendFailure(ctx context.Context, reply appmodels.Reply, cause error) error {
	if _, err := b.sendMessage(ctx, b.chatID, b.topicID, b.formatter.FormatSendFailure(reply, cause)); err != nil {
		return fmt.Errorf("failed to send delivery failure notice: %w", err)
	}
	return nil
}
