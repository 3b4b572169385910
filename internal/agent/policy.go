package agent

import (
	"strings"

	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

// ReplyPolicy decides whether a message gets a reply. It must be pure.
type ReplyPolicy interface {
	Decide(msg models.Message) (models.Reply, bool)
}

// SubjectPolicy replies to messages whose subject equals Trigger exactly
type SubjectPolicy struct {
	Trigger  string // e.g. "Hello"
	Greeting string // body is "<Greeting> <sender>"
	Self     string // own address, never replied to
}

// Decide implements ReplyPolicy
func (p SubjectPolicy) Decide(msg models.Message) (models.Reply, bool) {
	if msg.From == "" || msg.Subject != p.Trigger {
		return models.Reply{}, false
	}
	if p.Self != "" && strings.EqualFold(msg.From, p.Self) {
		return models.Reply{}, false
	}

	return models.Reply{
		To:        msg.From,
		Subject:   "Re: " + msg.Subject,
		Body:      p.Greeting + " " + msg.From,
		InReplyTo: msg.MessageID,
	}, true
}

var _ ReplyPolicy = SubjectPolicy{}
