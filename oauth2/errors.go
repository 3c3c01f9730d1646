package oauth2

import (
	"fmt"
	"net/http"
)

// ErrorCode is the closed RFC 6749 error vocabulary, plus refresh_token_reuse
// which this implementation emits when a rotated refresh token is replayed.
type ErrorCode string

const (
	ErrInvalidRequest          ErrorCode = "invalid_request"
	ErrInvalidClient           ErrorCode = "invalid_client"
	ErrInvalidGrant            ErrorCode = "invalid_grant"
	ErrUnauthorizedClient      ErrorCode = "unauthorized_client"
	ErrUnsupportedGrantType    ErrorCode = "unsupported_grant_type"
	ErrUnsupportedResponseType ErrorCode = "unsupported_response_type"
	ErrInvalidScope            ErrorCode = "invalid_scope"
	ErrServerError             ErrorCode = "server_error"
	ErrRefreshTokenReuse       ErrorCode = "refresh_token_reuse"
)

// Error is a protocol-level OAuth2 error. It marshals directly into the
// RFC 6749 error response body.
type Error struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
}

func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:        code,
		Description: fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// StatusCode maps the error onto the HTTP status the token endpoint uses.
// invalid_client is 401 per RFC 6749 §5.2; everything else client-caused is
// 400 and internal faults are 500.
func (e *Error) StatusCode() int {
	switch e.Code {
	case ErrInvalidClient:
		return http.StatusUnauthorized
	case ErrServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
