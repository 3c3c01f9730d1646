package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/oauth2"
)

// Token type claim values
const (
	TokenTypeUser    = "user"    // user-delegated access token (authorization code flow)
	TokenTypeClient  = "client"  // client credentials token (machine-to-machine)
	TokenTypeService = "service" // service principal token (signed request issuance)
)

// Claims is the decoded view of a compact signed token.
type Claims struct {
	ID        string // jti
	Subject   string
	Issuer    string
	Audience  string
	ClientID  string
	Scope     []string
	TokenType string
	FamilyID  string // refresh family the token was minted with, if any
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec encodes and decodes the engine's compact signed tokens. Encoding
// stamps the registered claim set; decoding verifies signature, expiry,
// issuer and audience and reports each failure as a distinct error kind so
// callers can branch without string matching.
type Codec struct {
	signer   Signer
	issuer   string
	audience string
}

type CodecOption func(*Codec)

// WithAudience overrides the audience stamped into access tokens. Defaults
// to the issuer URL.
func WithAudience(audience string) CodecOption {
	return func(c *Codec) {
		c.audience = audience
	}
}

func NewCodec(signer Signer, issuer string, options ...CodecOption) *Codec {
	c := &Codec{
		signer:   signer,
		issuer:   issuer,
		audience: issuer,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Audience returns the audience access tokens are stamped with.
func (c *Codec) Audience() string {
	return c.audience
}

// AccessTokenParams carries the variable claims of an access token.
type AccessTokenParams struct {
	Subject   string
	ClientID  string
	Scope     []string
	TokenType string // TokenTypeUser, TokenTypeClient or TokenTypeService
	FamilyID  string // refresh family link, empty for client credentials
	TTL       time.Duration
}

// EncodeAccessToken mints a signed access token and returns it with its
// decoded claims, so callers get the generated jti and expiry.
func (c *Codec) EncodeAccessToken(p AccessTokenParams, now time.Time) (string, *Claims, error) {
	claims := &Claims{
		ID:        uuid.New().String(),
		Subject:   p.Subject,
		Issuer:    c.issuer,
		Audience:  c.audience,
		ClientID:  p.ClientID,
		Scope:     p.Scope,
		TokenType: p.TokenType,
		FamilyID:  p.FamilyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(p.TTL),
	}

	mapClaims := jwtlib.MapClaims{
		"iss":        claims.Issuer,
		"sub":        claims.Subject,
		"aud":        claims.Audience,
		"client_id":  claims.ClientID,
		"scope":      oauth2.JoinScope(claims.Scope),
		"token_type": claims.TokenType,
		"iat":        claims.IssuedAt.Unix(),
		"exp":        claims.ExpiresAt.Unix(),
		"jti":        claims.ID,
	}
	if claims.FamilyID != "" {
		mapClaims["fid"] = claims.FamilyID
	}

	signed, err := c.signer.Sign(mapClaims)
	if err != nil {
		return "", nil, errors.Wrapf(err, "[Codec EncodeAccessToken] signing")
	}
	return signed, claims, nil
}

// IDTokenParams carries the variable claims of an OpenID Connect ID token.
type IDTokenParams struct {
	Subject  string
	ClientID string
	Nonce    string
	AuthTime time.Time
	TTL      time.Duration
}

// EncodeIDToken mints a signed ID token. Its audience is the requesting
// client rather than the resource audience.
func (c *Codec) EncodeIDToken(p IDTokenParams, now time.Time) (string, *Claims, error) {
	claims := &Claims{
		ID:        uuid.New().String(),
		Subject:   p.Subject,
		Issuer:    c.issuer,
		Audience:  p.ClientID,
		ClientID:  p.ClientID,
		Nonce:     p.Nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(p.TTL),
	}

	mapClaims := jwtlib.MapClaims{
		"iss": claims.Issuer,
		"sub": claims.Subject,
		"aud": claims.Audience,
		"iat": claims.IssuedAt.Unix(),
		"exp": claims.ExpiresAt.Unix(),
		"jti": claims.ID,
	}
	if claims.Nonce != "" {
		mapClaims["nonce"] = claims.Nonce
	}
	if !p.AuthTime.IsZero() {
		mapClaims["auth_time"] = p.AuthTime.Unix()
	}

	signed, err := c.signer.Sign(mapClaims)
	if err != nil {
		return "", nil, errors.Wrapf(err, "[Codec EncodeIDToken] signing")
	}
	return signed, claims, nil
}

// Decode verifies a compact token against the expected audience at the given
// time. Failures map onto the sentinel kinds: ErrTokenMalformed,
// ErrTokenSignature, ErrTokenExpired, ErrTokenIssuer, ErrTokenAudience. A
// token that is expired but otherwise valid always yields ErrTokenExpired.
func (c *Codec) Decode(raw string, audience string, now time.Time) (*Claims, error) {
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(c.issuer),
		jwtlib.WithAudience(audience),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
	)

	parsed, err := parser.ParseWithClaims(raw, jwtlib.MapClaims{}, c.signer.GetVerificationKey)
	if err != nil {
		return nil, decodeError(err)
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.ErrTokenMalformed
	}
	return claimsFromMap(mapClaims), nil
}

func decodeError(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenMalformed):
		return errors.Wrapf(errors.ErrTokenMalformed, "%v", err)
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return errors.Wrapf(errors.ErrTokenSignature, "%v", err)
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return errors.Wrapf(errors.ErrTokenExpired, "%v", err)
	case errors.Is(err, jwtlib.ErrTokenInvalidIssuer):
		return errors.Wrapf(errors.ErrTokenIssuer, "%v", err)
	case errors.Is(err, jwtlib.ErrTokenInvalidAudience):
		return errors.Wrapf(errors.ErrTokenAudience, "%v", err)
	default:
		return errors.Wrapf(errors.ErrTokenMalformed, "%v", err)
	}
}

func claimsFromMap(m jwtlib.MapClaims) *Claims {
	claims := &Claims{}
	claims.Issuer, _ = m["iss"].(string)
	claims.Subject, _ = m["sub"].(string)
	claims.Audience, _ = m["aud"].(string)
	claims.ClientID, _ = m["client_id"].(string)
	claims.TokenType, _ = m["token_type"].(string)
	claims.FamilyID, _ = m["fid"].(string)
	claims.Nonce, _ = m["nonce"].(string)
	claims.ID, _ = m["jti"].(string)

	if scope, ok := m["scope"].(string); ok {
		claims.Scope = oauth2.ParseScope(scope)
	}
	if iat, ok := m["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := m["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims
}
