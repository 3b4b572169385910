package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// OpenKeyring opens the system keyring, falling back to an encrypted file backend in dir.
func OpenKeyring(service, dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening keyring: %w", apperr.ErrConfig, err)
	}
	return ring, nil
}

// KeyringStore keeps the credential as a JSON item in a keyring, keyed by account
type KeyringStore struct {
	ring keyring.Keyring
	key  string
}

// NewKeyringStore creates a keyring-backed store for account
func NewKeyringStore(ring keyring.Keyring, account string) *KeyringStore {
	return &KeyringStore{ring: ring, key: "oauth:" + account}
}

// Load reads the credential item
func (s *KeyringStore) Load(_ context.Context) (*models.Credential, error) {
	item, err := s.ring.Get(s.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: getting credential %q: %w", apperr.ErrStorage, s.key, err)
	}

	var cred models.Credential
	if err := json.Unmarshal(item.Data, &cred); err != nil {
		return nil, fmt.Errorf("%w: decoding credential %q: %w", apperr.ErrStorage, s.key, err)
	}
	return &cred, nil
}

// Save overwrites the credential item
func (s *KeyringStore) Save(_ context.Context, cred *models.Credential) error {
	if cred == nil {
		return fmt.Errorf("%w: refusing to save nil credential", apperr.ErrStorage)
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("%w: encoding credential: %w", apperr.ErrStorage, err)
	}

	err = s.ring.Set(keyring.Item{
		Key:         s.key,
		Data:        data,
		Label:       "OAuth token for " + s.key,
		Description: "mailbox agent access and refresh token",
	})
	if err != nil {
		return fmt.Errorf("%w: setting credential %q: %w", apperr.ErrStorage, s.key, err)
	}
	return nil
}

var _ Store = (*KeyringStore)(nil)
