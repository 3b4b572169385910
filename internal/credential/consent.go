package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/vendul0g/gmail-oauth-client/internal/apperr"
	"github.com/vendul0g/gmail-oauth-client/pkg/models"
)

type consentResult struct {
	code string
	err  error
}

// Authorize runs the authorization-code flow with a loopback redirect.
// It blocks until the operator completes consent, the consent timeout elapses or ctx is done.
func (p *OAuthProvider) Authorize(ctx context.Context) (*models.Credential, error) {
	ln, err := net.Listen("tcp", p.opts.RedirectAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to listen for oauth redirect on %s: %w", apperr.ErrAuth, p.opts.RedirectAddr, err)
	}

	config := *p.config
	config.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.NewString()
	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	results := make(chan consentResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results, p.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("oauth redirect server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	p.logger.Warn("operator consent required", "redirect", config.RedirectURL)
	for _, n := range p.opts.Notifiers {
		if err := n.NotifyConsent(ctx, authURL); err != nil {
			p.logger.Warn("failed to deliver consent notice", "error", err)
		}
	}

	waitCtx := ctx
	if p.opts.ConsentTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.opts.ConsentTimeout)
		defer cancel()
	}

	var res consentResult
	select {
	case <-waitCtx.Done():
		return nil, fmt.Errorf("%w: consent not completed: %w", apperr.ErrAuth, waitCtx.Err())
	case res = <-results:
	}
	if res.err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrAuth, res.err)
	}

	tok, err := config.Exchange(p.clientContext(ctx), res.code)
	if err != nil {
		if isRejection(err) {
			return nil, fmt.Errorf("%w: authorization code exchange: %w", apperr.ErrAuth, err)
		}
		return nil, fmt.Errorf("%w: authorization code exchange: %w", apperr.ErrConnection, err)
	}

	p.logger.Info("operator consent completed")
	return p.credentialFromToken(tok), nil
}

// callbackHandler receives the provider redirect. Requests with a foreign state are refused
// without ending the wait.
func callbackHandler(state string, results chan<- consentResult, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("code") == "" && q.Get("error") == "" {
			http.NotFound(w, r)
			return
		}
		if q.Get("state") != state {
			logger.Warn("oauth redirect with unexpected state")
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		res := consentResult{code: q.Get("code")}
		if e := q.Get("error"); e != "" {
			res = consentResult{err: fmt.Errorf("consent denied: %s", e)}
			fmt.Fprintln(w, "Authorization was not granted. You can close this window.")
		} else {
			fmt.Fprintln(w, "Authorization successful! You can close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})
}

// LogNotifier writes the consent URL to the log
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyConsent logs authURL for the operator
func (n LogNotifier) NotifyConsent(_ context.Context, authURL string) error {
	n.Logger.Warn("open this URL in a browser to authorize the mailbox agent", "url", authURL)
	return nil
}

var _ ConsentNotifier = LogNotifier{}
