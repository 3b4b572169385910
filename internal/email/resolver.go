package email

import (
	"fmt"
	"net"
	"strings"
)

// Servers are the IMAP and SMTP endpoints of one mailbox
type Servers struct {
	IMAPAddr string // host:port, implicit TLS
	SMTPHost string
	SMTPPort int
}

// Override replaces the fields whose override is set. Empty strings and a zero port keep the resolved value.
func (s Servers) Override(imapAddr, smtpHost string, smtpPort int) Servers {
	if imapAddr != "" {
		s.IMAPAddr = imapAddr
	}
	if smtpHost != "" {
		s.SMTPHost = smtpHost
	}
	if smtpPort != 0 {
		s.SMTPPort = smtpPort
	}
	return s
}

// Providers known to accept XOAUTH2 bearer tokens on IMAP and SMTP
var (
	gmailServers   = Servers{IMAPAddr: "imap.gmail.com:993", SMTPHost: "smtp.gmail.com", SMTPPort: 587}
	outlookServers = Servers{IMAPAddr: "outlook.office365.com:993", SMTPHost: "smtp.office365.com", SMTPPort: 587}
	yahooServers   = Servers{IMAPAddr: "imap.mail.yahoo.com:993", SMTPHost: "smtp.mail.yahoo.com", SMTPPort: 587}
	aolServers     = Servers{IMAPAddr: "imap.aol.com:993", SMTPHost: "smtp.aol.com", SMTPPort: 587}
)

var knownServers = map[string]Servers{
	"gmail.com":      gmailServers,
	"googlemail.com": gmailServers,
	"outlook.com":    outlookServers,
	"hotmail.com":    outlookServers,
	"live.com":       outlookServers,
	"msn.com":        outlookServers,
	"yahoo.com":      yahooServers,
	"yahoo.co.uk":    yahooServers,
	"aol.com":        aolServers,
}

// MX host suffixes of hosted domains (Google Workspace, Microsoft 365)
var mxSuffixes = map[string]Servers{
	"google.com":                  gmailServers,
	"googlemail.com":              gmailServers,
	"mail.protection.outlook.com": outlookServers,
}

// lookupMX is replaced in tests
var lookupMX = net.LookupMX

// ResolveServers determines the mail servers for an email address
func ResolveServers(email string) (Servers, error) {
	domain := GetDomainFromEmail(email)
	if domain == "" {
		return Servers{}, fmt.Errorf("invalid email format: %q", email)
	}

	// Check known providers first
	if s, ok := knownServers[domain]; ok {
		return s, nil
	}

	// Custom domains hosted by a known provider
	if s, ok := resolveViaMX(domain); ok {
		return s, nil
	}

	// Default fallback
	return Servers{IMAPAddr: "imap." + domain + ":993", SMTPHost: "smtp." + domain, SMTPPort: 587}, nil
}

// resolveViaMX maps the primary MX record to a known provider
func resolveViaMX(domain string) (Servers, bool) {
	mxRecords, err := lookupMX(domain)
	if err != nil || len(mxRecords) == 0 {
		return Servers{}, false
	}

	mxHost := strings.ToLower(strings.TrimSuffix(mxRecords[0].Host, "."))
	for suffix, s := range mxSuffixes {
		if mxHost == suffix || strings.HasSuffix(mxHost, "."+suffix) {
			return s, true
		}
	}
	return Servers{}, false
}

// GetDomainFromEmail extracts domain from email address
func GetDomainFromEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}
