package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

type credentialRow struct {
	Account      string       `db:"account"`
	AccessToken  string       `db:"access_token"`
	RefreshToken string       `db:"refresh_token"`
	TokenType    string       `db:"token_type"`
	Expiry       sql.NullTime `db:"expiry"`
	Scopes       string       `db:"scopes"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// TokenStore persists the credential of one account in the oauth_credentials table
type TokenStore struct {
	db      *DB
	account string
}

// NewTokenStore creates a token store bound to account
func NewTokenStore(db *DB, account string) *TokenStore {
	return &TokenStore{db: db, account: account}
}

// Load returns the stored credential, or nil if none was saved yet
func (s *TokenStore) Load(ctx context.Context) (*models.Credential, error) {
	var row credentialRow
	query := `SELECT * FROM oauth_credentials WHERE account = ?`
	err := s.db.GetContext(ctx, &row, query, s.account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get credential: %w", apperr.ErrStorage, err)
	}

	cred := &models.Credential{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		TokenType:    row.TokenType,
		Scopes:       strings.Fields(row.Scopes),
	}
	if row.Expiry.Valid {
		cred.Expiry = row.Expiry.Time
	}
	return cred, nil
}

// Save overwrites the stored credential
func (s *TokenStore) Save(ctx context.Context, cred *models.Credential) error {
	if cred == nil {
		return fmt.Errorf("%w: refusing to save nil credential", apperr.ErrStorage)
	}

	query := `
		INSERT INTO oauth_credentials (account, access_token, refresh_token, token_type, expiry, scopes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at
	`
	expiry := sql.NullTime{Time: cred.Expiry, Valid: !cred.Expiry.IsZero()}
	_, err := s.db.ExecContext(ctx, query,
		s.account,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenType,
		expiry,
		strings.Join(cred.Scopes, " "),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save credential: %w", apperr.ErrStorage, err)
	}
	return nil
}
