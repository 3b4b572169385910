package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/internal/email"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// TokenSource hands out access tokens. Invalidate is called when a server refuses one.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// Mailbox runs one scoped poll session, deleting every message after handle returns
type Mailbox interface {
	Poll(ctx context.Context, token string, handle email.MessageHandler) (int, error)
}

// Sender delivers one reply
type Sender interface {
	Send(ctx context.Context, token string, reply models.Reply) error
}

// Journal records processed messages
type Journal interface {
	Record(ctx context.Context, msg *models.ProcessedMessage) error
}

// Notifier alerts the operator
type Notifier interface {
	NotifyAuthFailure(ctx context.Context, err error) error
	NotifySendFailure(ctx context.Context, reply models.Reply, err error) error
}

// Config configures the loop
type Config struct {
	Account      string
	PollInterval time.Duration
}

// Deps are the loop collaborators. Journal and Notifier are optional.
type Deps struct {
	Tokens   TokenSource
	Mailbox  Mailbox
	Sender   Sender
	Policy   ReplyPolicy
	Journal  Journal
	Notifier Notifier
	Logger   *slog.Logger
}

// Loop polls the mailbox once per cycle and replies according to the policy.
// One cycle runs to completion before the next begins.
type Loop struct {
	cfg      Config
	tokens   TokenSource
	mailbox  Mailbox
	sender   Sender
	policy   ReplyPolicy
	journal  Journal
	notifier Notifier
	logger   *slog.Logger

	// Clock is replaceable in tests
	Clock func() time.Time

	mu          sync.Mutex
	state       State
	status      models.AgentStatus
	authAlerted bool
}

// New creates an agent loop
func New(cfg Config, deps Deps) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}

	return &Loop{
		cfg:      cfg,
		tokens:   deps.Tokens,
		mailbox:  deps.Mailbox,
		sender:   deps.Sender,
		policy:   deps.Policy,
		journal:  deps.Journal,
		notifier: deps.Notifier,
		logger:   deps.Logger.With("component", "agent"),
		Clock:    time.Now,
		state:    Idle,
		status:   models.AgentStatus{Account: cfg.Account, StartedAt: time.Now()},
	}
}

// Run cycles forever, sleeping PollInterval between cycles, until ctx is done or a fatal error occurs
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, func() <-chan time.Time { return time.After(l.cfg.PollInterval) })
}

// RunTicks runs one cycle now and one per received tick. It returns when ticks is closed.
func (l *Loop) RunTicks(ctx context.Context, ticks <-chan time.Time) error {
	return l.run(ctx, func() <-chan time.Time { return ticks })
}

func (l *Loop) run(ctx context.Context, next func() <-chan time.Time) error {
	l.logger.Info("agent loop started", "account", l.cfg.Account, "interval", l.cfg.PollInterval)

	for ctx.Err() == nil {
		if err := l.RunCycle(ctx); err != nil {
			l.logger.Error("agent loop stopped", "error", err, "category", apperr.Category(err))
			return err
		}

		select {
		case <-ctx.Done():
		case _, ok := <-next():
			if !ok {
				l.logger.Info("agent loop stopped, no more ticks")
				return nil
			}
		}
	}

	l.logger.Info("agent loop stopped")
	return nil
}

// RunCycle runs one Idle → Polling → Processing → Sleeping cycle.
// Only a configuration failure is returned; every other failure is logged and retried next cycle.
func (l *Loop) RunCycle(ctx context.Context) error {
	l.setState(Idle)
	defer l.setState(Sleeping)

	token, err := l.tokens.GetValidToken(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrConfig) {
			return err
		}
		l.cycleFailed(ctx, "acquire token", err)
		return nil
	}
	l.setState(TokenAcquired)

	if ctx.Err() != nil {
		return nil
	}

	l.setState(Polling)
	c := &cycle{loop: l, token: token}
	processed, err := l.mailbox.Poll(ctx, token, c.process)

	if c.tokenRefused {
		l.invalidate(ctx)
	}

	if err != nil {
		if errors.Is(err, apperr.ErrAuth) {
			l.invalidate(ctx)
		}
		l.cycleFailed(ctx, "poll", err)
		return nil
	}

	l.cycleSucceeded(processed, c.replied)
	return nil
}

// cycle carries per-cycle state through the message handler
type cycle struct {
	loop         *Loop
	token        string
	replied      int
	tokenRefused bool
}

// process handles one message. The poller deletes it once this returns.
func (c *cycle) process(ctx context.Context, msg models.Message) {
	l := c.loop
	l.setState(Processing)
	defer l.setState(Polling)

	log := l.logger.With("uid", msg.UID, "from", msg.From, "subject", msg.Subject)
	log.Info("processing message")

	entry := &models.ProcessedMessage{
		Account:     l.cfg.Account,
		UID:         msg.UID,
		MessageID:   msg.MessageID,
		FromAddr:    msg.From,
		Subject:     msg.Subject,
		ProcessedAt: l.Clock(),
	}

	if reply, ok := l.policy.Decide(msg); ok {
		// same token as the poll session, acquired at cycle start
		if err := l.sender.Send(ctx, c.token, reply); err != nil {
			log.Error("failed to send reply, message is deleted anyway", "to", reply.To, "error", err, "category", apperr.Category(err))
			entry.ReplyError = err.Error()
			if errors.Is(err, apperr.ErrAuth) {
				c.tokenRefused = true
			}
			l.notifySendFailure(ctx, reply, err)
		} else {
			log.Info("answered", "to", reply.To)
			entry.Replied = true
			c.replied++
		}
	} else {
		log.Debug("no reply for message")
	}

	if l.journal != nil {
		if err := l.journal.Record(ctx, entry); err != nil {
			log.Warn("failed to journal processed message", "error", err)
		}
	}
}

func (l *Loop) invalidate(ctx context.Context) {
	if err := l.tokens.Invalidate(ctx); err != nil {
		l.logger.Warn("failed to invalidate access token", "error", err)
	}
}

func (l *Loop) cycleFailed(ctx context.Context, op string, err error) {
	category := apperr.Category(err)
	l.logger.Error("cycle aborted", "operation", op, "error", err, "category", category)

	l.mu.Lock()
	l.status.Cycles++
	l.status.LastCycleAt = l.Clock()
	l.status.LastError = err.Error()
	l.status.LastErrorClass = category
	alert := errors.Is(err, apperr.ErrAuth) && !l.authAlerted
	if alert {
		l.authAlerted = true
	}
	l.mu.Unlock()

	if alert && l.notifier != nil {
		if nerr := l.notifier.NotifyAuthFailure(ctx, err); nerr != nil {
			l.logger.Warn("failed to notify operator", "error", nerr)
		}
	}
}

func (l *Loop) cycleSucceeded(processed, replied int) {
	l.mu.Lock()
	l.status.Cycles++
	l.status.Processed += processed
	l.status.Replied += replied
	l.status.LastCycleAt = l.Clock()
	l.status.LastError = ""
	l.status.LastErrorClass = ""
	l.authAlerted = false
	l.mu.Unlock()

	if processed > 0 {
		l.logger.Info("cycle complete", "processed", processed, "replied", replied)
	} else {
		l.logger.Debug("cycle complete, inbox empty")
	}
}

func (l *Loop) notifySendFailure(ctx context.Context, reply models.Reply, err error) {
	if l.notifier == nil {
		return
	}
	if nerr := l.notifier.NotifySendFailure(ctx, reply, err); nerr != nil {
		l.logger.Warn("failed to notify operator", "error", nerr)
	}
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// State returns the current state
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Status returns a snapshot for operators
func (l *Loop) Status() models.AgentStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.status
	st.State = l.state.String()
	return st
}
