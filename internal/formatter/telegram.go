package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// TelegramFormatter formats operator notices for Telegram (HTML parse mode)
type TelegramFormatter struct {
	maxLength int
}

// NewTelegramFormatter creates a new Telegram formatter
func NewTelegramFormatter() *TelegramFormatter {
	return &TelegramFormatter{
		maxLength: 4000, // Leave room for markup
	}
}

// FormatConsent asks the operator to complete consent. The URL itself goes into the button.
func (f *TelegramFormatter) FormatConsent(account string) string {
	var sb strings.Builder

	sb.WriteString("<b>Authorization required</b>\n\n")
	sb.WriteString(fmt.Sprintf("The mailbox agent for <code>%s</code> has no usable token.\n", f.escapeHTML(account)))
	sb.WriteString("Open the link below on the machine running the agent and grant access.")

	return sb.String()
}

// FormatAuthFailure reports a failed authentication without exposing token values
func (f *TelegramFormatter) FormatAuthFailure(account string, err error) string {
	var sb strings.Builder

	sb.WriteString("<b>Authentication failed</b>\n\n")
	sb.WriteString(fmt.Sprintf("<b>Account:</b> <code>%s</code>\n", f.escapeHTML(account)))
	sb.WriteString(fmt.Sprintf("<b>Category:</b> %s\n", apperr.Category(err)))
	sb.WriteString(fmt.Sprintf("<b>Error:</b> %s", f.escapeHTML(f.truncate(errText(err), 500))))

	return sb.String()
}

// FormatSendFailure reports a reply that was not delivered. The source message is still deleted afterwards.
func (f *TelegramFormatter) FormatSendFailure(reply models.Reply, err error) string {
	var sb strings.Builder

	sb.WriteString("<b>Reply not delivered</b>\n\n")
	sb.WriteString(fmt.Sprintf("<b>To:</b> %s\n", f.escapeHTML(reply.To)))
	sb.WriteString(fmt.Sprintf("<b>Subject:</b> %s\n", f.escapeHTML(reply.Subject)))
	sb.WriteString(fmt.Sprintf("<b>Error:</b> %s", f.escapeHTML(f.truncate(errText(err), 500))))

	return sb.String()
}

// FormatStatus renders an agent status snapshot followed by the latest journal entries
func (f *TelegramFormatter) FormatStatus(st models.AgentStatus, recent []*models.ProcessedMessage) string {
	var sb strings.Builder

	sb.WriteString("<b>Mailbox agent</b>\n\n")
	sb.WriteString(fmt.Sprintf("<b>Account:</b> <code>%s</code>\n", f.escapeHTML(st.Account)))
	sb.WriteString(fmt.Sprintf("<b>State:</b> %s\n", f.escapeHTML(st.State)))
	sb.WriteString(fmt.Sprintf("<b>Cycles:</b> %d\n", st.Cycles))
	sb.WriteString(fmt.Sprintf("<b>Processed:</b> %d (replied %d)\n", st.Processed, st.Replied))
	if !st.LastCycleAt.IsZero() {
		sb.WriteString(fmt.Sprintf("<b>Last cycle:</b> %s\n", st.LastCycleAt.Format(time.DateTime)))
	}
	if st.LastError != "" {
		sb.WriteString(fmt.Sprintf("<b>Last error:</b> [%s] %s\n", f.escapeHTML(st.LastErrorClass), f.escapeHTML(f.truncate(st.LastError, 500))))
	}

	if len(recent) > 0 {
		sb.WriteString("\n<b>Recent messages:</b>\n")
		for _, m := range recent {
			outcome := "skipped"
			switch {
			case m.Replied:
				outcome = "replied"
			case m.ReplyError != "":
				outcome = "reply failed"
			}
			sb.WriteString(fmt.Sprintf("%s %s: %s (%s)\n",
				m.ProcessedAt.Format(time.DateTime),
				f.escapeHTML(m.FromAddr),
				f.escapeHTML(f.truncate(m.Subject, 80)),
				outcome))
		}
	}

	return f.truncate(strings.TrimSuffix(sb.String(), "\n"), f.maxLength)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// escapeHTML escapes HTML special characters for Telegram
func (f *TelegramFormatter) escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// truncate truncates text to maxLen characters
func (f *TelegramFormatter) truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
