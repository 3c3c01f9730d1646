package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-engine/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPrincipalID stores the authenticated principal (sub claim)
	ContextKeyPrincipalID ContextKey = "principal_id"
	// ContextKeyClaims stores parsed token claims
	ContextKeyClaims ContextKey = "claims"
	// ContextKeyScopes stores the token scopes
	ContextKeyScopes ContextKey = "scopes"
	// ContextKeyRequestID stores the per-request correlation id
	ContextKeyRequestID ContextKey = "request_id"
)

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// bearerToken pulls the raw token out of an Authorization: Bearer header.
// Empty when the header is missing or malformed.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RequireAuth is middleware that validates a Bearer access token.
// Used for API routes that expect OAuth2 tokens in the Authorization header.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSONError(w, "invalid_token", "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := s.manager.Authenticate(r.Context(), raw, time.Now())
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				writeJSONError(w, "invalid_token", "token is expired, revoked or malformed", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipalID, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			ctx = context.WithValue(ctx, ContextKeyScopes, claims.Scope)
			next(w, r.WithContext(ctx))
		}
	}
}

// bearerPrincipal is the default PrincipalResolver for the authorization
// endpoint: a valid user access token in the Authorization header counts as
// a login session. Anything else reads as unauthenticated, which sends the
// browser to the login URL rather than failing the request.
func (s *Server) bearerPrincipal(r *http.Request) (string, error) {
	raw := bearerToken(r)
	if raw == "" {
		return "", nil
	}
	claims, err := s.manager.Authenticate(r.Context(), raw, time.Now())
	if err != nil {
		return "", nil
	}
	if claims.TokenType != token.TokenTypeUser {
		return "", nil
	}
	return claims.Subject, nil
}
