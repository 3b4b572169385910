package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// SenderConfig configuration for the SMTP sender
type SenderConfig struct {
	Email          string
	Host           string
	Port           int // 465 uses implicit TLS, anything else STARTTLS
	DialTimeout    time.Duration
	SessionTimeout time.Duration
	AllowInsecure  bool // send without STARTTLS when the server does not offer it
	TLSConfig      *tls.Config
}

// Sender delivers one message per SMTP session
type Sender struct {
	config SenderConfig
	logger *slog.Logger

	// Clock is replaceable in tests
	Clock func() time.Time
}

// NewSender creates an SMTP sender
func NewSender(cfg SenderConfig, logger *slog.Logger) *Sender {
	return &Sender{
		config: cfg,
		logger: logger.With("component", "smtp", "email", cfg.Email),
		Clock:  time.Now,
	}
}

// Send opens a session, authenticates with the bearer token and transmits the reply.
// A refused token is ErrAuth, every other failure ErrSend. Nothing is retried here.
func (s *Sender) Send(ctx context.Context, token string, reply models.Reply) error {
	msg, err := ComposeReply(s.config.Email, reply, s.Clock())
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrSend, err)
	}

	client, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrSend, err)
	}
	defer client.Close()

	if err := client.Auth(NewXOAuth2Auth(s.config.Email, token)); err != nil {
		if isAuthRejection(err) {
			return fmt.Errorf("%w: SMTP rejected the token: %w", apperr.ErrAuth, err)
		}
		return fmt.Errorf("%w: SMTP auth: %w", apperr.ErrSend, err)
	}

	if err := sendMailViaSMTPClient(client, s.config.Email, reply.To, msg); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrSend, err)
	}

	s.logger.Info("reply sent", "to", reply.To, "subject", reply.Subject)
	return nil
}

// connect dials the server and negotiates transport encryption
func (s *Sender) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	timeout := s.config.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	netDialer := &net.Dialer{Timeout: timeout}

	tlsConfig := s.config.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: s.config.Host}
	}

	var (
		conn net.Conn
		err  error
	)
	if s.config.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: netDialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}

	if s.config.SessionTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.config.SessionTimeout)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting session deadline: %w", err)
		}
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	if s.config.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
			}
		} else if !s.config.AllowInsecure {
			client.Close()
			return nil, fmt.Errorf("server %s does not offer STARTTLS", addr)
		}
	}

	return client, nil
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(client *smtp.Client, from, to string, body []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

// isAuthRejection reports an SMTP authentication refusal (530, 534, 535)
func isAuthRejection(err error) bool {
	var tpErr *textproto.Error
	if !errors.As(err, &tpErr) {
		return false
	}
	switch tpErr.Code {
	case 530, 534, 535:
		return true
	}
	return false
}
