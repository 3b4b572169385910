package database

import (
	"context"
	"fmt"
	"time"

	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// Journal records every message handed to the reply policy before it is deleted from the mailbox
type Journal struct {
	db      *DB
	account string
}

// NewJournal creates a journal bound to account
func NewJournal(db *DB, account string) *Journal {
	return &Journal{db: db, account: account}
}

// Record inserts a processed message entry
func (j *Journal) Record(ctx context.Context, msg *models.ProcessedMessage) error {
	query := `
		INSERT INTO processed_messages (account, uid, message_id, from_addr, subject, replied, reply_error, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if msg.ProcessedAt.IsZero() {
		msg.ProcessedAt = time.Now().UTC()
	}
	msg.Account = j.account

	result, err := j.db.ExecContext(ctx, query,
		msg.Account,
		msg.UID,
		msg.MessageID,
		msg.FromAddr,
		msg.Subject,
		msg.Replied,
		msg.ReplyError,
		msg.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record processed message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// Recent returns the newest journal entries, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]*models.ProcessedMessage, error) {
	var entries []*models.ProcessedMessage
	query := `SELECT * FROM processed_messages WHERE account = ? ORDER BY processed_at DESC, id DESC LIMIT ?`
	if err := j.db.SelectContext(ctx, &entries, query, j.account, limit); err != nil {
		return nil, fmt.Errorf("failed to get processed messages: %w", err)
	}
	return entries, nil
}
