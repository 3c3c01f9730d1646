package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
// Returned from the /token endpoint for all grant types.
type TokenResponse struct {
	// AccessToken is the JWT token used to access protected resources.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Usage: Include in Authorization header: "Bearer <access_token>"
	// Lifespan: Short-lived (15 minutes by default)
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token containing identity claims.
	// Only present: When "openid" scope was granted
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token (always "Bearer").
	// Usage: Tells client to use "Authorization: Bearer <token>" header
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Example: 900 (for 15 minutes)
	// Note: This is a hint - actual expiration is in the JWT's "exp" claim
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Usage: Send to /token endpoint with grant_type=refresh_token
	// Security: Stored hashed server-side, rotates on each use
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions.
	// Example: "openid profile api.read"
	// Note: May be less than requested if the client narrowed on refresh
	Scope string `json:"scope,omitempty"`
}

// IntrospectionResponse is the RFC 7662 token metadata envelope. When Active
// is false no other field is populated.
type IntrospectionResponse struct {
	Active    bool    `json:"active"`
	Scope     string  `json:"scope,omitempty"`
	ClientID  string  `json:"client_id,omitempty"`
	TokenType string  `json:"token_type,omitempty"`
	Sub       *string `json:"sub,omitempty"`
	Aud       *string `json:"aud,omitempty"`
	Iss       *string `json:"iss,omitempty"`
	Exp       *int64  `json:"exp,omitempty"`
	Iat       *int64  `json:"iat,omitempty"`
	Jti       string  `json:"jti,omitempty"`
}
