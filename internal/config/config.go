package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
)

// Token store backends
const (
	StoreFile    = "file"
	StoreSQLite  = "sqlite"
	StoreKeyring = "keyring"
)

// Config application configuration
type Config struct {
	// Account
	Email string `env:"SMTP_EMAIL,required"`

	// Mail servers, resolved from the account domain when empty
	IMAPServer        string `env:"IMAP_SERVER"` // host:port
	SMTPServer        string `env:"SMTP_SERVER"` // host
	SMTPPort          int    `env:"SMTP_PORT"` // 0 keeps the resolved port
	SMTPAllowInsecure bool   `env:"SMTP_ALLOW_INSECURE" envDefault:"false"`

	// OAuth
	CredentialsFile   string        `env:"CREDENTIALS_FILE" envDefault:"./oauth_credentials/credentials.json"`
	TokenFile         string        `env:"TOKEN_FILE" envDefault:"./oauth_credentials/token.json"`
	Scopes            []string      `env:"OAUTH_SCOPES" envDefault:"https://mail.google.com/" envSeparator:","`
	RedirectAddr      string        `env:"OAUTH_REDIRECT_ADDR" envDefault:"127.0.0.1:0"`
	ConsentTimeout    time.Duration `env:"OAUTH_CONSENT_TIMEOUT" envDefault:"15m"`
	TokenExpiryMargin time.Duration `env:"TOKEN_EXPIRY_MARGIN" envDefault:"60s"`
	VerifyAccount     bool          `env:"VERIFY_ACCOUNT" envDefault:"false"`

	// Token storage
	TokenStore     string `env:"TOKEN_STORE" envDefault:"file"` // file, sqlite or keyring
	KeyringService string `env:"KEYRING_SERVICE" envDefault:"gmail-oauth-client"`
	KeyringDir     string `env:"KEYRING_DIR" envDefault:"./oauth_credentials/keyring"`

	// Database
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"./data/agent.db"`
	JournalEnabled bool   `env:"JOURNAL_ENABLED" envDefault:"true"`

	// Polling
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`
	SessionTimeout  time.Duration `env:"SESSION_TIMEOUT" envDefault:"2m"`
	FetchLimit      int           `env:"FETCH_LIMIT" envDefault:"50"`

	// Reply policy
	ReplySubject  string `env:"REPLY_SUBJECT" envDefault:"Hello"`
	ReplyGreeting string `env:"REPLY_GREETING" envDefault:"Hello"`

	// Telegram operator notices (optional)
	TelegramToken   string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID  int64  `env:"TELEGRAM_CHAT_ID"`
	TelegramTopicID int    `env:"TELEGRAM_TOPIC_ID"` // forum topic, 0 means the main chat

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// TelegramEnabled returns true if operator notices via Telegram are configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// NeedsDatabase returns true if any component stores data in the sqlite database
func (c *Config) NeedsDatabase() bool {
	return c.JournalEnabled || c.TokenStore == StoreSQLite
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", apperr.ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that env tags cannot express
func (c *Config) Validate() error {
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("%w: SMTP_EMAIL must be an email address, got %q", apperr.ErrConfig, c.Email)
	}

	switch c.TokenStore {
	case StoreFile:
		if c.TokenFile == "" {
			return fmt.Errorf("%w: TOKEN_FILE must be set for the file token store", apperr.ErrConfig)
		}
	case StoreSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("%w: DATABASE_PATH must be set for the sqlite token store", apperr.ErrConfig)
		}
	case StoreKeyring:
		if c.KeyringService == "" {
			return fmt.Errorf("%w: KEYRING_SERVICE must be set for the keyring token store", apperr.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown TOKEN_STORE %q", apperr.ErrConfig, c.TokenStore)
	}

	if c.JournalEnabled && c.DatabasePath == "" {
		return fmt.Errorf("%w: DATABASE_PATH must be set when JOURNAL_ENABLED", apperr.ErrConfig)
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("%w: CREDENTIALS_FILE must be set", apperr.ErrConfig)
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("%w: OAUTH_SCOPES must not be empty", apperr.ErrConfig)
	}
	if c.PollInterval <= 0 || c.SessionTimeout <= 0 || c.IMAPDialTimeout <= 0 {
		return fmt.Errorf("%w: POLL_INTERVAL, SESSION_TIMEOUT and IMAP_DIAL_TIMEOUT must be positive", apperr.ErrConfig)
	}
	if c.TokenExpiryMargin < 0 {
		return fmt.Errorf("%w: TOKEN_EXPIRY_MARGIN must not be negative", apperr.ErrConfig)
	}
	if c.FetchLimit <= 0 {
		return fmt.Errorf("%w: FETCH_LIMIT must be positive, got %d", apperr.ErrConfig, c.FetchLimit)
	}
	if c.SMTPPort < 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("%w: SMTP_PORT out of range: %d", apperr.ErrConfig, c.SMTPPort)
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == 0) {
		return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together", apperr.ErrConfig)
	}

	return nil
}
