package formatter

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

func TestFormatConsent(t *testing.T) {
	text := NewTelegramFormatter().FormatConsent("a<b>@gmail.com")
	assert.Contains(t, text, "Authorization required")
	assert.Contains(t, text, "a&lt;b&gt;@gmail.com")
}

func TestFormatAuthFailure(t *testing.T) {
	err := fmt.Errorf("%w: IMAP rejected the token: %w", apperr.ErrAuth, errors.New("[AUTHENTICATIONFAILED] Invalid credentials"))

	text := NewTelegramFormatter().FormatAuthFailure("agent@gmail.com", err)
	assert.Contains(t, text, "<b>Category:</b> auth")
	assert.Contains(t, text, "[AUTHENTICATIONFAILED] Invalid credentials")
}

func TestFormatSendFailure(t *testing.T) {
	reply := models.Reply{To: "alice@example.com", Subject: "Re: <Hello>"}
	err := fmt.Errorf("%w: SMTP RCPT TO: 550 no such user", apperr.ErrSend)

	text := NewTelegramFormatter().FormatSendFailure(reply, err)
	assert.Contains(t, text, "alice@example.com")
	assert.Contains(t, text, "Re: &lt;Hello&gt;")
	assert.Contains(t, text, "550 no such user")
}

func TestFormatStatus(t *testing.T) {
	st := models.AgentStatus{
		Account:        "agent@gmail.com",
		State:          "Sleeping",
		Cycles:         4,
		Processed:      7,
		Replied:        2,
		LastCycleAt:    time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		LastError:      strings.Repeat("x", 600),
		LastErrorClass: "connection",
	}

	text := NewTelegramFormatter().FormatStatus(st, nil)
	assert.Contains(t, text, "<b>State:</b> Sleeping")
	assert.Contains(t, text, "<b>Processed:</b> 7 (replied 2)")
	assert.Contains(t, text, "2026-10-01 09:00:00")
	assert.Contains(t, text, "[connection] "+strings.Repeat("x", 500)+"...")
	assert.NotContains(t, text, strings.Repeat("x", 501))
}

func TestFormatStatus_RecentMessages(t *testing.T) {
	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	recent := []*models.ProcessedMessage{
		{FromAddr: "alice@example.com", Subject: "Hello", Replied: true, ProcessedAt: at},
		{FromAddr: "bob@example.com", Subject: "<Invoice>", ProcessedAt: at},
		{FromAddr: "carol@example.com", Subject: "Hello", ReplyError: "550 no such user", ProcessedAt: at},
	}

	text := NewTelegramFormatter().FormatStatus(models.AgentStatus{State: "Idle"}, recent)
	assert.Contains(t, text, "<b>Recent messages:</b>")
	assert.Contains(t, text, "2026-10-01 09:00:00 alice@example.com: Hello (replied)")
	assert.Contains(t, text, "bob@example.com: &lt;Invoice&gt; (skipped)")
	assert.Contains(t, text, "carol@example.com: Hello (reply failed)")
}

func TestBuildConsentKeyboard(t *testing.T) {
	kb := BuildConsentKeyboard("https://accounts.google.com/o/oauth2/auth?state=abc")
	if assert.Len(t, kb.InlineKeyboard, 1) && assert.Len(t, kb.InlineKeyboard[0], 1) {
		assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=abc", kb.InlineKeyboard[0][0].URL)
	}
}
