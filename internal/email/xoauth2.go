package email

import (
	"net/smtp"

	"github.com/emersion/go-sasl"
)

// XOAuth2 is the SASL mechanism name for bearer token authentication
const XOAuth2 = "XOAUTH2"

// xoauth2Response builds the initial client response:
// "user=<user>\x01auth=Bearer <token>\x01\x01"
func xoauth2Response(username, token string) []byte {
	return []byte("user=" + username + "\x01auth=Bearer " + token + "\x01\x01")
}

// xoauth2Client implements sasl.Client for IMAP AUTHENTICATE
type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2Client returns a SASL client that authenticates with an OAuth access token
func NewXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	return XOAuth2, xoauth2Response(c.username, c.token), nil
}

// Next answers the error challenge the server sends on rejection with an empty
// response, after which the server completes the command with NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}

// xoauth2Auth implements smtp.Auth
type xoauth2Auth struct {
	username string
	token    string
}

// NewXOAuth2Auth returns an smtp.Auth that authenticates with an OAuth access token
func NewXOAuth2Auth(username, token string) smtp.Auth {
	return &xoauth2Auth{username: username, token: token}
}

func (a *xoauth2Auth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	return XOAuth2, xoauth2Response(a.username, a.token), nil
}

func (a *xoauth2Auth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		return []byte{}, nil
	}
	return nil, nil
}
