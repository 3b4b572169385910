package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// MessageHandler processes one fetched message. The message is already flagged \Deleted
// when it runs and is expunged after it returns.
type MessageHandler func(ctx context.Context, msg models.Message)

// Poller opens one scoped IMAP session per poll cycle
type Poller struct {
	config ClientConfig
	logger *slog.Logger

	// Dial is replaceable in tests
	Dial DialFunc
}

// NewPoller creates a poller for the configured mailbox
func NewPoller(cfg ClientConfig, logger *slog.Logger) *Poller {
	return &Poller{
		config: cfg,
		logger: logger.With("component", "imap", "email", cfg.Email),
		Dial:   TLSDialer(cfg),
	}
}

// Open connects and authenticates with the bearer token via XOAUTH2.
// A refused token is ErrAuth, anything on the transport is ErrConnection.
// The connection is dropped once the session outlives SessionTimeout.
func (p *Poller) Open(ctx context.Context, token string) (*Session, error) {
	p.logger.Debug("connecting to IMAP server", "server", p.config.Server)

	conn, err := p.Dial(ctx, p.config.Server)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperr.ErrConnection, p.config.Server, err)
	}

	session := &Session{
		conn:    conn,
		limit:   p.config.FetchLimit,
		logger:  p.logger,
		claimed: make(map[uint32]struct{}),
		deleted: make(map[uint32]struct{}),
	}
	if p.config.SessionTimeout > 0 {
		session.timer = time.AfterFunc(p.config.SessionTimeout, session.expire)
	}

	if err := conn.Authenticate(NewXOAuth2Client(p.config.Email, token)); err != nil {
		session.stopTimer()
		switch {
		case session.expired.Load():
			return nil, session.fail("authenticate", err)
		case isTransportError(err):
			_ = conn.Terminate()
			return nil, fmt.Errorf("%w: authenticate: %w", apperr.ErrConnection, err)
		}
		_ = conn.Logout()
		return nil, fmt.Errorf("%w: IMAP rejected the token: %w", apperr.ErrAuth, err)
	}

	return session, nil
}

// Poll runs one session: every fetched message is claimed, handed to handle and then
// deleted, whatever handle did with it. A message that cannot be claimed is not handled,
// and a claimed one is never fetched again, so handle sees each message at most once.
// The session is logged out on every path.
func (p *Poller) Poll(ctx context.Context, token string, handle MessageHandler) (processed int, err error) {
	session, err := p.Open(ctx, token)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			p.logger.Warn("failed to close IMAP session", "error", cerr)
		}
	}()

	messages, err := session.FetchNew(ctx)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("fetched messages", "count", len(messages))

	for _, msg := range messages {
		if err := session.Claim(ctx, msg.UID); err != nil {
			return processed, fmt.Errorf("failed to claim message uid=%d: %w", msg.UID, err)
		}

		handle(ctx, msg)

		if err := session.Delete(ctx, msg.UID); err != nil {
			return processed, fmt.Errorf("failed to delete message uid=%d: %w", msg.UID, err)
		}
		processed++
	}

	return processed, nil
}

// TestConnection authenticates and selects the INBOX without touching any message
func (p *Poller) TestConnection(ctx context.Context, token string) (uint32, error) {
	session, err := p.Open(ctx, token)
	if err != nil {
		return 0, err
	}
	defer session.Close()

	mbox, err := session.conn.Select("INBOX", true)
	if err != nil {
		return 0, session.fail("failed to select INBOX", err)
	}
	return mbox.Messages, nil
}
