package errors

import (
	"errors"
	"fmt"
)

// Common error types for the token engine
var (
	// Client errors
	ErrInvalidClient       = errors.New("invalid client")
	ErrInvalidClientSecret = errors.New("invalid client secret")
	ErrInvalidScope        = errors.New("invalid scope")
	ErrInvalidRedirectURI  = errors.New("invalid redirect URI")

	// Authorization errors
	ErrInvalidGrant             = errors.New("invalid grant")
	ErrInvalidAuthorizationCode = errors.New("invalid authorization code")
	ErrInvalidCodeChallenge     = errors.New("invalid code challenge")
	ErrInvalidRequest           = errors.New("invalid request")
	ErrLoginRequired            = errors.New("login required")

	// Token errors
	ErrTokenMalformed      = errors.New("token malformed")
	ErrTokenSignature      = errors.New("token signature invalid")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenIssuer         = errors.New("token issuer mismatch")
	ErrTokenAudience       = errors.New("token audience mismatch")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenReused  = errors.New("refresh token reused")

	// Service principal errors
	ErrServiceNotFound     = errors.New("service principal not found")
	ErrServiceDisabled     = errors.New("service principal disabled")
	ErrInvalidSignature    = errors.New("invalid request signature")
	ErrTimestampOutOfRange = errors.New("request timestamp out of tolerance")
	ErrScopeNotAllowed     = errors.New("scope not allowed for principal")

	// General errors
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
	ErrInternal      = errors.New("internal error")
	ErrUnsupported   = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
