package models

import "time"

// Credential is the persisted OAuth access/refresh token pair for the mailbox account
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Valid reports whether the access token can still be used at now, keeping margin in reserve.
// A zero expiry means the provider did not report one and the token is treated as non-expiring.
func (c *Credential) Valid(now time.Time, margin time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return true
	}
	return now.Add(margin).Before(c.Expiry)
}

// CanRefresh reports whether the record can be renewed without operator interaction
func (c *Credential) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}

// Clone returns a deep copy so callers never share the scopes slice
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	out.Scopes = append([]string(nil), c.Scopes...)
	return &out
}
