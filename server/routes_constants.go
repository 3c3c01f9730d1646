package server

// Route path constants
// All endpoint routes are defined here to ensure consistency and prevent typos
const (
	RouteHealthz = "/healthz"

	// OAuth2 / OIDC routes
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteOAuth2Authorize       = "/oauth2/authorize"
	RouteOAuth2Token           = "/oauth2/token"
	RouteOAuth2Introspect      = "/oauth2/introspect"
	RouteOAuth2Revoke          = "/oauth2/revoke"
	RouteOAuth2RevokeAll       = "/oauth2/sessions/revoke-all"

	// HMAC-authenticated machine-caller route
	RouteServiceToken = "/service/token"
)

// Proof headers on the service token route. The signature covers the raw
// request body bytes exactly as sent.
const (
	HeaderServiceID = "X-Service-Id"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderRequestID = "X-Request-Id"
)
