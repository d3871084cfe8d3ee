package auth

import "errors"

var (
	// ErrInvalidCredentials means the account rejected the username or
	// password hash. Never retried; the caller must fix the credentials.
	ErrInvalidCredentials = errors.New("invalid account credentials")

	// ErrLoginFailed covers login responses that are neither success nor
	// a credential rejection.
	ErrLoginFailed = errors.New("login failed")

	// ErrPortalUnavailable is returned once the gateway retry budget for
	// HTTP 502 answers is exhausted.
	ErrPortalUnavailable = errors.New("portal unavailable")
)
