package auth

import "github.com/jrsteele09/go-token-engine/oauth2"

// RedirectError marks a failure discovered after the client and its
// redirect URI were validated. The transport reports it by redirecting to
// the client with error query parameters instead of writing a direct
// response body.
type RedirectError struct {
	RedirectURI string
	State       string
	Err         *oauth2.Error
}

func (e *RedirectError) Error() string { return e.Err.Error() }

func (e *RedirectError) Unwrap() error { return e.Err }
