package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// DefaultExpiryMargin is how close to expiry a token is still handed out
const DefaultExpiryMargin = 60 * time.Second

// AccountVerifier checks that a freshly authorized token belongs to the configured mailbox
type AccountVerifier interface {
	Verify(ctx context.Context, accessToken string) error
}

// ManagerConfig configures a Manager
type ManagerConfig struct {
	ExpiryMargin time.Duration
	Verifier     AccountVerifier // optional
}

// Manager hands out valid access tokens, refreshing or re-authorizing as needed.
// Every new credential is persisted before it is returned.
type Manager struct {
	store    Store
	provider TokenProvider
	verifier AccountVerifier
	margin   time.Duration
	logger   *slog.Logger

	// Clock is replaceable in tests
	Clock func() time.Time

	mu     sync.Mutex
	cached *models.Credential
	loaded bool
}

// NewManager creates a credential manager
func NewManager(store Store, provider TokenProvider, cfg ManagerConfig, logger *slog.Logger) *Manager {
	margin := cfg.ExpiryMargin
	if margin <= 0 {
		margin = DefaultExpiryMargin
	}

	return &Manager{
		store:    store,
		provider: provider,
		verifier: cfg.Verifier,
		margin:   margin,
		logger:   logger.With("component", "credential_manager"),
		Clock:    time.Now,
	}
}

// GetValidToken returns an access token usable for at least the expiry margin.
// A cached valid credential is returned without any network call.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		cred, err := m.store.Load(ctx)
		if err != nil {
			return "", err
		}
		m.cached = cred
		m.loaded = true
		if cred == nil {
			m.logger.Info("no stored credential")
		}
	}

	if m.cached.Valid(m.Clock(), m.margin) {
		return m.cached.AccessToken, nil
	}

	if m.cached.CanRefresh() {
		token, err := m.refresh(ctx)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrRefreshRejected) {
			return "", err
		}
		m.logger.Warn("refresh token rejected, interactive authorization required", "error", err)
	}

	return m.authorize(ctx)
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	cred, err := m.provider.Refresh(ctx, m.cached.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	if cred == nil || cred.AccessToken == "" {
		return "", fmt.Errorf("%w: refresh returned no access token", apperr.ErrAuth)
	}

	if cred.RefreshToken == "" {
		cred.RefreshToken = m.cached.RefreshToken
	}
	if len(cred.Scopes) == 0 {
		cred.Scopes = append([]string(nil), m.cached.Scopes...)
	}

	if err := m.commit(ctx, cred); err != nil {
		return "", err
	}

	m.logger.Info("access token refreshed", "expiry", cred.Expiry)
	return cred.AccessToken, nil
}

func (m *Manager) authorize(ctx context.Context) (string, error) {
	cred, err := m.provider.Authorize(ctx)
	if err != nil {
		return "", fmt.Errorf("interactive authorization failed: %w", err)
	}
	if cred == nil || cred.AccessToken == "" {
		return "", fmt.Errorf("%w: authorization returned no access token", apperr.ErrAuth)
	}
	if !cred.CanRefresh() {
		m.logger.Warn("authorization did not return a refresh token")
	}

	if m.verifier != nil {
		if err := m.verifier.Verify(ctx, cred.AccessToken); err != nil {
			return "", fmt.Errorf("account verification failed: %w", err)
		}
	}

	if err := m.commit(ctx, cred); err != nil {
		return "", err
	}

	m.logger.Info("credential authorized", "expiry", cred.Expiry)
	return cred.AccessToken, nil
}

// commit persists cred and only then makes it the cached credential
func (m *Manager) commit(ctx context.Context, cred *models.Credential) error {
	if err := m.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	m.cached = cred.Clone()
	return nil
}

// Invalidate marks the current access token expired, so the next GetValidToken refreshes.
// Used when a server rejects a token the manager still considered valid.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached == nil {
		return nil
	}

	cred := m.cached.Clone()
	cred.Expiry = m.Clock().Add(-time.Second)
	if err := m.commit(ctx, cred); err != nil {
		return err
	}

	m.logger.Info("access token invalidated")
	return nil
}
