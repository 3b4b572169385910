// Package gmail checks which account an access token was granted for.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
)

// ProfileVerifier asks the Gmail API for the profile behind a token
type ProfileVerifier struct {
	account string
	opts    []option.ClientOption
	logger  *slog.Logger
}

// NewProfileVerifier creates a verifier expecting account. Extra options are applied after the token source.
func NewProfileVerifier(account string, logger *slog.Logger, opts ...option.ClientOption) *ProfileVerifier {
	return &ProfileVerifier{
		account: account,
		opts:    opts,
		logger:  logger.With("component", "gmail_verifier"),
	}
}

// Verify fails with ErrAuth when the token is refused or belongs to another mailbox
func (v *ProfileVerifier) Verify(ctx context.Context, accessToken string) error {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, v.opts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("%w: unable to create gmail client: %w", apperr.ErrConfig, err)
	}

	profile, err := srv.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
			return fmt.Errorf("%w: gmail profile: %w", apperr.ErrAuth, err)
		}
		return fmt.Errorf("%w: gmail profile: %w", apperr.ErrConnection, err)
	}

	if !strings.EqualFold(profile.EmailAddress, v.account) {
		return fmt.Errorf("%w: token was granted for %s, expected %s", apperr.ErrAuth, profile.EmailAddress, v.account)
	}

	v.logger.Info("account verified", "email", profile.EmailAddress, "messages_total", profile.MessagesTotal)
	return nil
}
