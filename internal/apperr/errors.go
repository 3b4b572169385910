// Package apperr holds the error categories shared by the agent components.
// Components wrap one of these sentinels together with the underlying cause,
// callers classify with errors.Is.
package apperr

import "errors"

var (
	// ErrAuth means a token is invalid, rejected or could not be obtained.
	// Recoverable by refresh or re-authorization.
	ErrAuth = errors.New("authentication failure")

	// ErrConnection means a transport or network failure. The cycle is retried.
	ErrConnection = errors.New("connection failure")

	// ErrSend means a reply was not delivered.
	ErrSend = errors.New("send failure")

	// ErrConfig means operator-provided configuration is missing or invalid. Fatal.
	ErrConfig = errors.New("configuration failure")

	// ErrStorage means the token store could not be read or written.
	ErrStorage = errors.New("storage failure")
)

// Category returns a short label for logging the class of err.
func Category(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrSend):
		return "send"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrConnection):
		return "connection"
	default:
		return "unknown"
	}
}
