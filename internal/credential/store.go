package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// Store persists the credential record. Load returns nil, nil when nothing was stored yet.
type Store interface {
	Load(ctx context.Context) (*models.Credential, error)
	Save(ctx context.Context, cred *models.Credential) error
}

// fileRecord is the on-disk JSON shape. It also accepts token files written by
// google-auth ("token" instead of "access_token"), so existing consents survive a migration.
type fileRecord struct {
	AccessToken  string     `json:"access_token,omitempty"`
	LegacyToken  string     `json:"token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
}

// FileStore keeps the credential as a JSON file readable across restarts
type FileStore struct {
	path string
}

// NewFileStore creates a file store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the token file
func (s *FileStore) Load(_ context.Context) (*models.Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read token file: %w", apperr.ErrStorage, err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token file %s: %w", apperr.ErrStorage, s.path, err)
	}

	cred := &models.Credential{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
		Scopes:       rec.Scopes,
	}
	if cred.AccessToken == "" {
		cred.AccessToken = rec.LegacyToken
	}
	if rec.Expiry != nil {
		cred.Expiry = rec.Expiry.UTC()
	}
	return cred, nil
}

// Save atomically replaces the token file
func (s *FileStore) Save(_ context.Context, cred *models.Credential) error {
	if cred == nil {
		return fmt.Errorf("%w: refusing to save nil credential", apperr.ErrStorage)
	}

	rec := fileRecord{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		Scopes:       cred.Scopes,
	}
	if !cred.Expiry.IsZero() {
		expiry := cred.Expiry.UTC()
		rec.Expiry = &expiry
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode credential: %w", apperr.ErrStorage, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: failed to create token directory: %w", apperr.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp token file: %w", apperr.ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write token file: %w", apperr.ErrStorage, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to chmod token file: %w", apperr.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close token file: %w", apperr.ErrStorage, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: failed to replace token file: %w", apperr.ErrStorage, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
