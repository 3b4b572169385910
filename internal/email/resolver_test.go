package email

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubMX(t *testing.T, hosts map[string]string) {
	t.Helper()
	orig := lookupMX
	lookupMX = func(domain string) ([]*net.MX, error) {
		if h, ok := hosts[domain]; ok {
			return []*net.MX{{Host: h, Pref: 1}}, nil
		}
		return nil, errors.New("no such host")
	}
	t.Cleanup(func() { lookupMX = orig })
}

func TestResolveServers(t *testing.T) {
	stubMX(t, map[string]string{
		"workspace.example": "ASPMX.L.GOOGLE.COM.",
		"m365.example":      "m365-example.mail.protection.outlook.com.",
		"selfhosted.org":    "mx.selfhosted.org.",
	})

	tests := []struct {
		email string
		want  Servers
	}{
		{"agent@gmail.com", Servers{"imap.gmail.com:993", "smtp.gmail.com", 587}},
		{"Agent@GoogleMail.com", Servers{"imap.gmail.com:993", "smtp.gmail.com", 587}},
		{"agent@outlook.com", Servers{"outlook.office365.com:993", "smtp.office365.com", 587}},
		{"agent@workspace.example", Servers{"imap.gmail.com:993", "smtp.gmail.com", 587}},
		{"agent@m365.example", Servers{"outlook.office365.com:993", "smtp.office365.com", 587}},
		{"agent@selfhosted.org", Servers{"imap.selfhosted.org:993", "smtp.selfhosted.org", 587}},
		{"agent@nomx.net", Servers{"imap.nomx.net:993", "smtp.nomx.net", 587}},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got, err := ResolveServers(tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveServers_InvalidAddress(t *testing.T) {
	for _, email := range []string{"", "agent", "@gmail.com", "agent@", "a@b@c"} {
		_, err := ResolveServers(email)
		assert.Error(t, err, email)
	}
}

func TestServersOverride(t *testing.T) {
	resolved := Servers{IMAPAddr: "imap.gmail.com:993", SMTPHost: "smtp.gmail.com", SMTPPort: 587}

	tests := []struct {
		name     string
		imapAddr string
		smtpHost string
		smtpPort int
		want     Servers
	}{
		{"nothing set", "", "", 0, resolved},
		{"port only", "", "", 465, Servers{"imap.gmail.com:993", "smtp.gmail.com", 465}},
		{"host only", "", "mail.example.org", 0, Servers{"imap.gmail.com:993", "mail.example.org", 587}},
		{"everything", "imap.example.org:1993", "mail.example.org", 2525, Servers{"imap.example.org:1993", "mail.example.org", 2525}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolved.Override(tt.imapAddr, tt.smtpHost, tt.smtpPort))
		})
	}
}
