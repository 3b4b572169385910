package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/vendul0g/gmail-oauth-client/internal/agent"
	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/internal/config"
	"github.com/vendul0g/gmail-oauth-client/internal/credential"
	"github.com/vendul0g/gmail-oauth-client/internal/database"
	"github.com/vendul0g/gmail-oauth-client/internal/email"
	"github.com/vendul0g/gmail-oauth-client/internal/formatter"
	"github.com/vendul0g/gmail-oauth-client/internal/gmail"
	"github.com/vendul0g/gmail-oauth-client/internal/telegram"
)

func main() {
	once := flag.Bool("once", false, "run a single poll cycle and exit")
	check := flag.Bool("check", false, "acquire a token, select INBOX and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mailbox agent", "account", cfg.Email)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *once, *check); err != nil {
		logger.Error("agent failed", "error", err, "category", apperr.Category(err))
		stop()
		os.Exit(1)
	}

	logger.Info("agent stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, once, check bool) error {
	servers, err := resolveServers(cfg)
	if err != nil {
		return err
	}
	logger.Info("mail servers", "imap", servers.IMAPAddr, "smtp", fmt.Sprintf("%s:%d", servers.SMTPHost, servers.SMTPPort))

	var db *database.DB
	if cfg.NeedsDatabase() {
		db, err = database.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrStorage, err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrStorage, err)
		}
		logger.Info("database migrations completed")
	}

	var journal *database.Journal
	if cfg.JournalEnabled {
		journal = database.NewJournal(db, cfg.Email)
	}

	store, err := openStore(cfg, db)
	if err != nil {
		return err
	}

	// Operator notices
	notifiers := []credential.ConsentNotifier{credential.LogNotifier{Logger: logger}}
	var tgBot *telegram.Bot
	if cfg.TelegramEnabled() {
		botDeps := telegram.BotDeps{
			Token:     cfg.TelegramToken,
			ChatID:    cfg.TelegramChatID,
			TopicID:   cfg.TelegramTopicID,
			Account:   cfg.Email,
			Formatter: formatter.NewTelegramFormatter(),
			Logger:    logger,
		}
		if journal != nil {
			botDeps.Journal = journal
		}
		tgBot, err = telegram.NewBot(botDeps)
		if err != nil {
			logger.Warn("telegram notices disabled", "error", err)
		} else {
			notifiers = append(notifiers, tgBot)
		}
	}

	provider, err := credential.NewOAuthProvider(cfg.CredentialsFile, cfg.Scopes, credential.ProviderOptions{
		RedirectAddr:   cfg.RedirectAddr,
		ConsentTimeout: cfg.ConsentTimeout,
		Notifiers:      notifiers,
	}, logger)
	if err != nil {
		return err
	}

	managerCfg := credential.ManagerConfig{ExpiryMargin: cfg.TokenExpiryMargin}
	if cfg.VerifyAccount {
		managerCfg.Verifier = gmail.NewProfileVerifier(cfg.Email, logger)
	}
	tokens := credential.NewManager(store, provider, managerCfg, logger)

	clientCfg := email.ClientConfig{
		Email:          cfg.Email,
		Server:         servers.IMAPAddr,
		DialTimeout:    cfg.IMAPDialTimeout,
		SessionTimeout: cfg.SessionTimeout,
		FetchLimit:     cfg.FetchLimit,
	}
	poller := email.NewPoller(clientCfg, logger)

	if check {
		return checkConnection(ctx, tokens, poller, logger)
	}

	sender := email.NewSender(email.SenderConfig{
		Email:          cfg.Email,
		Host:           servers.SMTPHost,
		Port:           servers.SMTPPort,
		DialTimeout:    cfg.IMAPDialTimeout,
		SessionTimeout: cfg.SessionTimeout,
		AllowInsecure:  cfg.SMTPAllowInsecure,
	}, logger)

	deps := agent.Deps{
		Tokens:  tokens,
		Mailbox: poller,
		Sender:  sender,
		Policy: agent.SubjectPolicy{
			Trigger:  cfg.ReplySubject,
			Greeting: cfg.ReplyGreeting,
			Self:     cfg.Email,
		},
		Logger: logger,
	}
	if journal != nil {
		deps.Journal = journal
	}
	if tgBot != nil {
		deps.Notifier = tgBot
	}

	loop := agent.New(agent.Config{Account: cfg.Email, PollInterval: cfg.PollInterval}, deps)

	if once {
		return loop.RunCycle(ctx)
	}

	if tgBot != nil {
		tgBot.SetStatusSource(loop)
		go tgBot.Start(ctx)
	}

	logger.Info("agent is running, press Ctrl+C to stop")
	return loop.Run(ctx)
}

// resolveServers applies IMAP_SERVER, SMTP_SERVER and SMTP_PORT on top of the domain lookup
func resolveServers(cfg *config.Config) (email.Servers, error) {
	servers, err := email.ResolveServers(cfg.Email)
	if err != nil {
		return email.Servers{}, fmt.Errorf("%w: %w", apperr.ErrConfig, err)
	}

	return servers.Override(cfg.IMAPServer, cfg.SMTPServer, cfg.SMTPPort), nil
}

func openStore(cfg *config.Config, db *database.DB) (credential.Store, error) {
	switch cfg.TokenStore {
	case config.StoreSQLite:
		return database.NewTokenStore(db, cfg.Email), nil
	case config.StoreKeyring:
		ring, err := credential.OpenKeyring(cfg.KeyringService, cfg.KeyringDir)
		if err != nil {
			return nil, err
		}
		return credential.NewKeyringStore(ring, cfg.Email), nil
	default:
		return credential.NewFileStore(cfg.TokenFile), nil
	}
}

func checkConnection(ctx context.Context, tokens *credential.Manager, poller *email.Poller, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	token, err := tokens.GetValidToken(ctx)
	if err != nil {
		return err
	}

	count, err := poller.TestConnection(ctx, token)
	if err != nil {
		if errors.Is(err, apperr.ErrAuth) {
			_ = tokens.Invalidate(ctx)
		}
		return err
	}

	logger.Info("connection ok", "messages", count)
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
