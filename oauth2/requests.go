package oauth2

import (
	"encoding/json"
	"io"
	"net/url"
)

// AuthorizationRequest holds parameters for the OAuth2 authorization request.
// These are received as query parameters at the /oauth2/authorize endpoint.
type AuthorizationRequest struct {
	// ClientID identifies the application requesting authorization.
	// Required: Yes
	// Example: "web-app-client"
	ClientID string

	// ResponseType specifies what the authorization endpoint should return.
	// Required: Yes
	// Example: "code" (only supported value)
	ResponseType ResponseType

	// RedirectURI is where the authorization response will be sent.
	// Required: Yes
	// Example: "https://myapp.com/callback"
	// Security: Must exactly match a pre-registered URI to prevent open redirects
	RedirectURI string

	// ResponseMode controls how the authorization response is returned
	// (query/fragment/form_post). Defaults to "query".
	ResponseMode ResponseModeType

	// Scope specifies the permissions being requested, space-delimited.
	// Example: "openid profile api.read"
	Scope string

	// State is an opaque value echoed back to the client on redirect.
	// Recommended for CSRF protection.
	State string

	// CodeChallenge is the PKCE challenge derived from code_verifier.
	// Required: Yes for public clients, optional for confidential
	// Example: BASE64URL(SHA256(code_verifier))
	CodeChallenge string

	// CodeChallengeMethod specifies how code_challenge was derived.
	// Only "S256" is accepted.
	CodeChallengeMethod CodeMethodType

	// Nonce is a random value bound into the ID token for replay protection.
	Nonce string
}

// ParseAuthorizationRequest reads the known authorization parameters from the
// query. Unknown parameters are ignored here; OIDC allows extensions on this
// endpoint.
func ParseAuthorizationRequest(q url.Values) AuthorizationRequest {
	return AuthorizationRequest{
		ClientID:            q.Get("client_id"),
		ResponseType:        ResponseType(q.Get("response_type")),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseMode:        ResponseModeType(q.Get("response_mode")),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: CodeMethodType(q.Get("code_challenge_method")),
		Nonce:               q.Get("nonce"),
	}
}

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the form body sent to the /oauth2/token endpoint.
type TokenRequest struct {
	// GrantType selects the exchange path. Closed set, see ParseGrantType.
	GrantType GrantType

	// ClientID identifies the OAuth2 client making the request.
	// Required: Yes (for all grant types; may arrive via Basic auth instead)
	ClientID string

	// ClientSecret is the secret credential for confidential clients.
	// Required: Yes for confidential clients, No for public clients
	// Security: Never log or expose this value
	ClientSecret string

	// Code is the authorization code received from the authorization endpoint.
	// Required: Yes (authorization_code grant only)
	// Usage: Exchanged once for tokens, then becomes invalid
	Code string

	// RedirectURI must repeat the redirect_uri used on the authorization request.
	// Required: Yes (authorization_code grant)
	RedirectURI string

	// CodeVerifier is the PKCE code verifier matching the stored code_challenge.
	// Required: Yes, if the grant was issued with a challenge
	CodeVerifier string

	// RefreshToken is the token being redeemed.
	// Required: Yes (refresh_token grant only)
	// Behavior: Rotated on every use; the presented token is spent
	RefreshToken string

	// Scope optionally narrows the issued scope. Widening is rejected.
	Scope string
}

var tokenRequestFields = map[string]struct{}{
	"grant_type":    {},
	"client_id":     {},
	"client_secret": {},
	"code":          {},
	"redirect_uri":  {},
	"code_verifier": {},
	"refresh_token": {},
	"scope":         {},
}

// ParseTokenRequest decodes a token endpoint form strictly: unknown fields
// and unknown grant types are rejected rather than ignored.
func ParseTokenRequest(form url.Values) (*TokenRequest, error) {
	if err := rejectUnknownFields(form, tokenRequestFields); err != nil {
		return nil, err
	}
	grantType, err := ParseGrantType(form.Get("grant_type"))
	if err != nil {
		return nil, err
	}
	return &TokenRequest{
		GrantType:    grantType,
		ClientID:     form.Get("client_id"),
		ClientSecret: form.Get("client_secret"),
		Code:         form.Get("code"),
		RedirectURI:  form.Get("redirect_uri"),
		CodeVerifier: form.Get("code_verifier"),
		RefreshToken: form.Get("refresh_token"),
		Scope:        form.Get("scope"),
	}, nil
}

// tokenRequestJSON mirrors TokenRequest for callers that send the token
// request as a JSON document instead of a form body.
type tokenRequestJSON struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Code         string `json:"code,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	CodeVerifier string `json:"code_verifier,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ParseTokenRequestJSON decodes a JSON token request with the same strictness
// as the form parser: unknown fields and unknown grant types are rejected.
func ParseTokenRequestJSON(body io.Reader) (*TokenRequest, error) {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	var raw tokenRequestJSON
	if err := dec.Decode(&raw); err != nil {
		return nil, NewError(ErrInvalidRequest, "malformed JSON body: %v", err)
	}
	if dec.More() {
		return nil, NewError(ErrInvalidRequest, "unexpected trailing data after JSON body")
	}
	grantType, err := ParseGrantType(raw.GrantType)
	if err != nil {
		return nil, err
	}
	return &TokenRequest{
		GrantType:    grantType,
		ClientID:     raw.ClientID,
		ClientSecret: raw.ClientSecret,
		Code:         raw.Code,
		RedirectURI:  raw.RedirectURI,
		CodeVerifier: raw.CodeVerifier,
		RefreshToken: raw.RefreshToken,
		Scope:        raw.Scope,
	}, nil
}

// RevocationRequest is the RFC 7009 revocation form body.
type RevocationRequest struct {
	// Token is the token the client wants to revoke. May be an access token
	// or a refresh token.
	Token string

	// TokenTypeHint optionally names the token kind ("access_token" or
	// "refresh_token"). The server falls back to trying both.
	TokenTypeHint string

	// ClientID / ClientSecret authenticate the revoking client.
	ClientID     string
	ClientSecret string
}

var revocationRequestFields = map[string]struct{}{
	"token":           {},
	"token_type_hint": {},
	"client_id":       {},
	"client_secret":   {},
}

// ParseRevocationRequest decodes a revocation form strictly.
func ParseRevocationRequest(form url.Values) (*RevocationRequest, error) {
	if err := rejectUnknownFields(form, revocationRequestFields); err != nil {
		return nil, err
	}
	return &RevocationRequest{
		Token:         form.Get("token"),
		TokenTypeHint: form.Get("token_type_hint"),
		ClientID:      form.Get("client_id"),
		ClientSecret:  form.Get("client_secret"),
	}, nil
}

// IntrospectionRequest is the RFC 7662 introspection form body.
type IntrospectionRequest struct {
	Token         string
	TokenTypeHint string
	ClientID      string
	ClientSecret  string
}

var introspectionRequestFields = map[string]struct{}{
	"token":           {},
	"token_type_hint": {},
	"client_id":       {},
	"client_secret":   {},
}

// ParseIntrospectionRequest decodes an introspection form strictly.
func ParseIntrospectionRequest(form url.Values) (*IntrospectionRequest, error) {
	if err := rejectUnknownFields(form, introspectionRequestFields); err != nil {
		return nil, err
	}
	return &IntrospectionRequest{
		Token:         form.Get("token"),
		TokenTypeHint: form.Get("token_type_hint"),
		ClientID:      form.Get("client_id"),
		ClientSecret:  form.Get("client_secret"),
	}, nil
}

func rejectUnknownFields(form url.Values, allowed map[string]struct{}) error {
	for key := range form {
		if _, ok := allowed[key]; !ok {
			return NewError(ErrInvalidRequest, "unknown parameter %q", key)
		}
	}
	return nil
}
