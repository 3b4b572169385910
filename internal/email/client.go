package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/internal/parser"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// Conn is the part of the go-imap client a session needs
type Conn interface {
	Authenticate(auth sasl.Client) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Expunge(ch chan uint32) error
	Logout() error
	Terminate() error
}

var _ Conn = (*client.Client)(nil)

// DialFunc opens an unauthenticated IMAP connection
type DialFunc func(ctx context.Context, address string) (Conn, error)

// ClientConfig configuration for IMAP client
type ClientConfig struct {
	Email          string
	Server         string // host:port
	DialTimeout    time.Duration
	SessionTimeout time.Duration // the connection is dropped once a session runs this long
	FetchLimit     int           // max messages per session, 0 means all
	TLSConfig      *tls.Config
}

// TLSDialer connects with implicit TLS. The deadline only covers the greeting:
// go-imap clears conn deadlines on every command, so the poller bounds the session itself.
func TLSDialer(cfg ClientConfig) DialFunc {
	return func(ctx context.Context, address string) (Conn, error) {
		timeout := cfg.DialTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}

		dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}, Config: cfg.TLSConfig}
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}

		if cfg.SessionTimeout > 0 {
			if err := conn.SetDeadline(time.Now().Add(cfg.SessionTimeout)); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to set greeting deadline: %w", err)
			}
		}

		imapClient, err := client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create IMAP client: %w", err)
		}
		return imapClient, nil
	}
}

// Session is one authenticated IMAP session on the INBOX
type Session struct {
	conn    Conn
	limit   int
	logger  *slog.Logger
	claimed map[uint32]struct{}
	deleted map[uint32]struct{}
	timer   *time.Timer
	expired atomic.Bool
	closed  bool
}

// expire drops the connection, unblocking whatever command is in flight
func (s *Session) expire() {
	s.expired.Store(true)
	s.logger.Warn("IMAP session timed out, dropping connection")
	_ = s.conn.Terminate()
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

// fail wraps a failed command as ErrConnection, naming the timeout when it caused the failure
func (s *Session) fail(op string, err error) error {
	if s.expired.Load() {
		return fmt.Errorf("%w: %s: session timed out: %w", apperr.ErrConnection, op, err)
	}
	return fmt.Errorf("%w: %s: %w", apperr.ErrConnection, op, err)
}

var errSessionExpired = errors.New("connection dropped")

func (s *Session) alive() error {
	if s.expired.Load() {
		return errSessionExpired
	}
	return nil
}

// FetchNew returns the messages currently in the INBOX that are not flagged \Deleted.
// With a fetch limit the oldest UIDs are taken first.
func (s *Session) FetchNew(_ context.Context) ([]models.Message, error) {
	if err := s.alive(); err != nil {
		return nil, s.fail("failed to select INBOX", err)
	}
	if _, err := s.conn.Select("INBOX", false); err != nil {
		return nil, s.fail("failed to select INBOX", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.DeletedFlag}
	uids, err := s.conn.UidSearch(criteria)
	if err != nil {
		return nil, s.fail("failed to search", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if s.limit > 0 && len(uids) > s.limit {
		s.logger.Info("fetch limit reached, remaining messages wait for the next cycle",
			"found", len(uids), "limit", s.limit)
		uids = uids[:s.limit]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek keeps \Seen untouched until the message is processed
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- s.conn.UidFetch(seqSet, items, messages)
	}()

	var out []models.Message
	for msg := range messages {
		out = append(out, s.parseMessage(msg, section))
	}

	if err := <-done; err != nil {
		return nil, s.fail("failed to fetch", err)
	}
	return out, nil
}

// parseMessage never fails: a message whose body cannot be decoded is still
// returned with its envelope so it can be processed and removed.
func (s *Session) parseMessage(msg *imap.Message, section *imap.BodySectionName) models.Message {
	m := models.Message{UID: msg.Uid}

	if env := msg.Envelope; env != nil {
		m.Subject = env.Subject
		m.Date = env.Date
		m.MessageID = env.MessageId
		if len(env.From) > 0 {
			m.From = env.From[0].Address()
			m.FromName = env.From[0].PersonalName
		}
	}

	body := msg.GetBody(section)
	if body == nil {
		return m
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		s.logger.Warn("failed to create mail reader", "uid", msg.Uid, "error", err)
		return m
	}
	defer mr.Close()

	if subject, err := mr.Header.Subject(); err == nil && subject != "" {
		m.Subject = subject
	}
	if m.From == "" {
		if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
			m.From = from[0].Address
			m.FromName = from[0].Name
		}
	}

	var plain, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("failed to read part", "uid", msg.Uid, "error", err)
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		data, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(ct, "text/plain") && plain == "":
			plain = string(data)
		case strings.HasPrefix(ct, "text/html") && html == "":
			html = string(data)
		}
	}

	m.Body = parser.BodyText(plain, html)
	return m
}

// Claim flags the message \Deleted so no later session fetches it again, even if
// the expunge never happens. Claiming a UID twice is a no-op.
func (s *Session) Claim(_ context.Context, uid uint32) error {
	if _, ok := s.claimed[uid]; ok {
		return nil
	}
	if err := s.alive(); err != nil {
		return s.fail("failed to mark as deleted", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}

	if err := s.conn.UidStore(seqSet, item, flags, nil); err != nil {
		return s.fail("failed to mark as deleted", err)
	}

	s.claimed[uid] = struct{}{}
	return nil
}

// Delete claims the message if needed and expunges it. Deleting a UID twice is a no-op.
func (s *Session) Delete(ctx context.Context, uid uint32) error {
	if _, ok := s.deleted[uid]; ok {
		return nil
	}
	if err := s.Claim(ctx, uid); err != nil {
		return err
	}
	if err := s.alive(); err != nil {
		return s.fail("failed to expunge", err)
	}

	if err := s.conn.Expunge(nil); err != nil {
		return s.fail("failed to expunge", err)
	}

	s.deleted[uid] = struct{}{}
	return nil
}

// Close logs out, dropping the connection if logout fails. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopTimer()

	if s.expired.Load() {
		return nil
	}
	if err := s.conn.Logout(); err != nil {
		_ = s.conn.Terminate()
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// isTransportError tells a dropped or timed-out connection apart from a server refusal
func isTransportError(err error) bool {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return true
	}
	return strings.Contains(err.Error(), "connection closed")
}
