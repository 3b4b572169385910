package models

import "time"

// Message is a snapshot of an inbox message fetched during one poll cycle
type Message struct {
	UID       uint32 // IMAP UID, stable within one mailbox session
	MessageID string // Message-ID header as sent, usually in angle brackets
	From      string // Sender address
	FromName  string // Sender display name
	Subject   string
	Body      string // Plain text body (HTML-only messages are converted)
	Date      time.Time
}

// Reply is an outgoing message produced by a reply policy
type Reply struct {
	To        string
	Subject   string
	Body      string
	InReplyTo string // Message-ID of the source message, optional
}

// ProcessedMessage is a journal entry for a message handed to the reply policy
type ProcessedMessage struct {
	ID          int64     `db:"id"`
	Account     string    `db:"account"`
	UID         uint32    `db:"uid"`
	MessageID   string    `db:"message_id"`
	FromAddr    string    `db:"from_addr"`
	Subject     string    `db:"subject"`
	Replied     bool      `db:"replied"`
	ReplyError  string    `db:"reply_error"`
	ProcessedAt time.Time `db:"processed_at"`
}
