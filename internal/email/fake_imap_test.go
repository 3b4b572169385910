package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-sasl"
)

type fakeMessage struct {
	uid       uint32
	from      imap.Address
	subject   string
	messageID string
	raw       string
	flags     []string
}

// fakeIMAP is an in-memory INBOX behind the Conn interface
type fakeIMAP struct {
	messages []*fakeMessage

	authErr    error
	selectErr  error
	fetchErr   error
	storeErr   error
	expungeErr error

	mechanism  string
	authIR     string
	stores     int
	expunges   int
	logouts    int
	terminates int
}

var _ Conn = (*fakeIMAP)(nil)

func (f *fakeIMAP) Authenticate(auth sasl.Client) error {
	mech, ir, err := auth.Start()
	if err != nil {
		return err
	}
	f.mechanism = mech
	f.authIR = string(ir)
	return f.authErr
}

func (f *fakeIMAP) Select(name string, _ bool) (*imap.MailboxStatus, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return &imap.MailboxStatus{Name: name, Messages: uint32(len(f.messages))}, nil
}

func (f *fakeIMAP) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	var uids []uint32
	for _, m := range f.messages {
		if hasAny(m.flags, criteria.WithoutFlags) {
			continue
		}
		uids = append(uids, m.uid)
	}
	return uids, nil
}

func (f *fakeIMAP) UidFetch(seqset *imap.SeqSet, _ []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	if f.fetchErr != nil {
		return f.fetchErr
	}

	for _, m := range f.messages {
		if !seqset.Contains(m.uid) {
			continue
		}
		from := m.from
		ch <- &imap.Message{
			Uid: m.uid,
			Envelope: &imap.Envelope{
				Subject:   m.subject,
				MessageId: m.messageID,
				From:      []*imap.Address{&from},
			},
			Body: map[*imap.BodySectionName]imap.Literal{
				{}: bytes.NewBufferString(m.raw),
			},
		}
	}
	return nil
}

func (f *fakeIMAP) UidStore(seqset *imap.SeqSet, _ imap.StoreItem, value interface{}, _ chan *imap.Message) error {
	f.stores++
	if f.storeErr != nil {
		return f.storeErr
	}
	for _, m := range f.messages {
		if !seqset.Contains(m.uid) {
			continue
		}
		for _, v := range value.([]interface{}) {
			m.flags = append(m.flags, v.(string))
		}
	}
	return nil
}

func (f *fakeIMAP) Expunge(_ chan uint32) error {
	f.expunges++
	if f.expungeErr != nil {
		return f.expungeErr
	}
	kept := f.messages[:0]
	for _, m := range f.messages {
		if !hasAny(m.flags, []string{imap.DeletedFlag}) {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	return nil
}

func (f *fakeIMAP) Logout() error {
	f.logouts++
	return nil
}

func (f *fakeIMAP) Terminate() error {
	f.terminates++
	return nil
}

func (f *fakeIMAP) uids() []uint32 {
	var out []uint32
	for _, m := range f.messages {
		out = append(out, m.uid)
	}
	return out
}

func hasAny(flags, want []string) bool {
	for _, f := range flags {
		for _, w := range want {
			if f == w {
				return true
			}
		}
	}
	return false
}

func plainMessage(uid uint32, fromAddr, subject, body string) *fakeMessage {
	mailbox, host, _ := strings.Cut(fromAddr, "@")
	messageID := fmt.Sprintf("<m%d@example.com>", uid)
	raw := "From: " + fromAddr + "\r\n" +
		"To: agent@gmail.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Message-ID: " + messageID + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + body + "\r\n"
	return &fakeMessage{
		uid:       uid,
		from:      imap.Address{MailboxName: mailbox, HostName: host},
		subject:   subject,
		messageID: messageID,
		raw:       raw,
	}
}

func testPoller(conn Conn, limit int) *Poller {
	return testPollerWith(conn, ClientConfig{FetchLimit: limit})
}

func testPollerWith(conn Conn, cfg ClientConfig) *Poller {
	cfg.Email = "agent@gmail.com"
	cfg.Server = "imap.test:993"
	p := NewPoller(cfg, discardLogger())
	p.Dial = func(context.Context, string) (Conn, error) { return conn, nil }
	return p
}

// stallingIMAP never answers UID SEARCH until the connection is dropped
type stallingIMAP struct {
	*fakeIMAP
	once    sync.Once
	dropped chan struct{}
}

func newStallingIMAP(messages ...*fakeMessage) *stallingIMAP {
	return &stallingIMAP{fakeIMAP: &fakeIMAP{messages: messages}, dropped: make(chan struct{})}
}

func (s *stallingIMAP) UidSearch(*imap.SearchCriteria) ([]uint32, error) {
	<-s.dropped
	return nil, errors.New("imap: connection closed")
}

func (s *stallingIMAP) Terminate() error {
	s.once.Do(func() { close(s.dropped) })
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
