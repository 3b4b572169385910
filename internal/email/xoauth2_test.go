package email

import (
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXOAuth2Client(t *testing.T) {
	c := NewXOAuth2Client("agent@gmail.com", "ya29.token")

	mech, ir, err := c.Start()
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, []byte("user=agent@gmail.com\x01auth=Bearer ya29.token\x01\x01"), ir)

	resp, err := c.Next([]byte(`{"status":"400","schemes":"Bearer","scope":"https://mail.google.com/"}`))
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestXOAuth2Auth(t *testing.T) {
	a := NewXOAuth2Auth("agent@gmail.com", "ya29.token")

	mech, ir, err := a.Start(&smtp.ServerInfo{Name: "smtp.gmail.com", TLS: true, Auth: []string{"XOAUTH2"}})
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, []byte("user=agent@gmail.com\x01auth=Bearer ya29.token\x01\x01"), ir)

	// error challenge gets an empty answer so the server can finish with 535
	resp, err := a.Next([]byte(`{"status":"401"}`), true)
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Empty(t, resp)

	resp, err = a.Next([]byte("2.7.0 Accepted"), false)
	require.NoError(t, err)
	assert.Nil(t, resp)
}
