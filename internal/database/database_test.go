package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "nested", "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestTokenStore_AbsentIsNotAnError(t *testing.T) {
	store := NewTokenStore(newTestDB(t), "agent@gmail.com")

	cred, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestTokenStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewTokenStore(db, "agent@gmail.com")
	expiry := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	require.NoError(t, store.Save(ctx, &models.Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       expiry,
		Scopes:       []string{"https://mail.google.com/"},
	}))
	require.NoError(t, store.Save(ctx, &models.Credential{
		AccessToken:  "access-2",
		RefreshToken: "refresh-1",
		Expiry:       expiry.Add(time.Hour),
		Scopes:       []string{"a", "b"},
	}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.True(t, got.Expiry.Equal(expiry.Add(time.Hour)), "expiry %v", got.Expiry)
	assert.Equal(t, []string{"a", "b"}, got.Scopes)

	var rows int
	require.NoError(t, db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM oauth_credentials`))
	assert.Equal(t, 1, rows)
}

func TestTokenStore_ZeroExpiryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewTokenStore(newTestDB(t), "agent@gmail.com")

	require.NoError(t, store.Save(ctx, &models.Credential{AccessToken: "a"}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Expiry.IsZero())
	assert.Empty(t, got.Scopes)
}

func TestTokenStore_SaveNil(t *testing.T) {
	store := NewTokenStore(newTestDB(t), "agent@gmail.com")
	assert.Error(t, store.Save(context.Background(), nil))
}

func TestJournal_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	journal := NewJournal(db, "agent@gmail.com")
	other := NewJournal(db, "other@gmail.com")
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first := &models.ProcessedMessage{UID: 7, FromAddr: "alice@example.com", Subject: "Hello", Replied: true, ProcessedAt: base}
	second := &models.ProcessedMessage{UID: 8, FromAddr: "bob@example.com", Subject: "Invoice", ProcessedAt: base.Add(time.Minute)}
	require.NoError(t, journal.Record(ctx, first))
	require.NoError(t, journal.Record(ctx, second))
	require.NoError(t, other.Record(ctx, &models.ProcessedMessage{UID: 1}))
	assert.NotZero(t, first.ID)

	entries, err := journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(8), entries[0].UID)
	assert.False(t, entries[0].Replied)
	assert.Equal(t, uint32(7), entries[1].UID)
	assert.True(t, entries[1].Replied)
	assert.Equal(t, "agent@gmail.com", entries[1].Account)
}
