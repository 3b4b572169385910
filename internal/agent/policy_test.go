package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

func TestSubjectPolicy(t *testing.T) {
	policy := SubjectPolicy{Trigger: "Hello", Greeting: "Hello", Self: "agent@gmail.com"}

	tests := []struct {
		name  string
		msg   models.Message
		want  models.Reply
		reply bool
	}{
		{
			name:  "trigger subject",
			msg:   models.Message{From: "alice@example.com", Subject: "Hello", MessageID: "<m1@example.com>"},
			want:  models.Reply{To: "alice@example.com", Subject: "Re: Hello", Body: "Hello alice@example.com", InReplyTo: "<m1@example.com>"},
			reply: true,
		},
		{
			name: "other subject",
			msg:  models.Message{From: "alice@example.com", Subject: "Invoice"},
		},
		{
			name: "match is exact",
			msg:  models.Message{From: "alice@example.com", Subject: "hello"},
		},
		{
			name: "already a reply",
			msg:  models.Message{From: "alice@example.com", Subject: "Re: Hello"},
		},
		{
			name: "own address",
			msg:  models.Message{From: "Agent@Gmail.com", Subject: "Hello"},
		},
		{
			name: "no sender",
			msg:  models.Message{Subject: "Hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := policy.Decide(tt.msg)
			assert.Equal(t, tt.reply, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "Processing", Processing.String())
	assert.Equal(t, "Sleeping", Sleeping.String())
	assert.Equal(t, "Unknown", State(42).String())
}
