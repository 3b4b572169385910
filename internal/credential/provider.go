package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// ErrRefreshRejected means the provider refused the refresh token (revoked or expired).
// Only this outcome sends the manager to the interactive flow.
var ErrRefreshRejected = fmt.Errorf("%w: refresh token rejected", apperr.ErrAuth)

// TokenProvider mints credentials. Authorize may block until the operator completes consent.
type TokenProvider interface {
	Refresh(ctx context.Context, refreshToken string) (*models.Credential, error)
	Authorize(ctx context.Context) (*models.Credential, error)
}

// ConsentNotifier tells the operator where to complete the one-time consent step
type ConsentNotifier interface {
	NotifyConsent(ctx context.Context, authURL string) error
}

// ProviderOptions tunes the interactive flow
type ProviderOptions struct {
	RedirectAddr   string        // loopback listener for the redirect, e.g. 127.0.0.1:0
	ConsentTimeout time.Duration // zero waits until ctx is done
	HTTPTimeout    time.Duration // token endpoint calls
	Notifiers      []ConsentNotifier
}

// OAuthProvider talks to an OAuth 2.0 token endpoint with golang.org/x/oauth2
type OAuthProvider struct {
	config     *oauth2.Config
	opts       ProviderOptions
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOAuthProvider reads the client credentials file downloaded from the provider console.
// A missing or malformed file is a configuration failure.
func NewOAuthProvider(credentialsFile string, scopes []string, opts ProviderOptions, logger *slog.Logger) (*OAuthProvider, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: client credentials file not available: %w", apperr.ErrConfig, err)
	}

	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse client credentials %s: %w", apperr.ErrConfig, credentialsFile, err)
	}

	return NewProviderFromConfig(config, opts, logger), nil
}

// NewProviderFromConfig wraps an existing oauth2 configuration
func NewProviderFromConfig(config *oauth2.Config, opts ProviderOptions, logger *slog.Logger) *OAuthProvider {
	if opts.RedirectAddr == "" {
		opts.RedirectAddr = "127.0.0.1:0"
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}

	return &OAuthProvider{
		config:     config,
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.HTTPTimeout},
		logger:     logger.With("component", "oauth_provider"),
	}
}

// Refresh exchanges a refresh token for a new access token
func (p *OAuthProvider) Refresh(ctx context.Context, refreshToken string) (*models.Credential, error) {
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		if isRejection(err) {
			return nil, fmt.Errorf("%w: %w", ErrRefreshRejected, err)
		}
		return nil, fmt.Errorf("%w: token endpoint: %w", apperr.ErrConnection, err)
	}

	cred := p.credentialFromToken(tok)
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// clientContext makes oauth2 use our HTTP client, which carries an explicit timeout
func (p *OAuthProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *OAuthProvider) credentialFromToken(tok *oauth2.Token) *models.Credential {
	cred := &models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry.UTC(),
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		cred.Scopes = strings.Fields(scope)
	} else {
		cred.Scopes = append([]string(nil), p.config.Scopes...)
	}
	return cred
}

// rejectionCodes are the OAuth error codes meaning the grant or the client itself is no longer accepted
var rejectionCodes = map[string]bool{
	"invalid_grant":       true,
	"invalid_client":      true,
	"unauthorized_client": true,
}

// isRejection reports whether the token endpoint refused the grant.
// Outages and throttling (5xx, 429) are not rejections, whatever error code they carry.
func isRejection(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return false
	}

	switch re.Response.StatusCode {
	case http.StatusBadRequest:
		return rejectionCodes[re.ErrorCode]
	case http.StatusUnauthorized:
		return re.ErrorCode == "" || rejectionCodes[re.ErrorCode]
	default:
		return false
	}
}

var _ TokenProvider = (*OAuthProvider)(nil)
