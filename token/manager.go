// Package token implements the credential lifecycle of the authorization
// server: signed access and ID tokens, opaque rotating refresh tokens, the
// revocation denylist and RFC 7662 introspection. All state transitions for
// grants and refresh tokens run through the Manager, which treats the
// backing repositories' conditional updates as the only synchronization
// primitive.
package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-token-engine/clients"
	"github.com/jrsteele09/go-token-engine/grants"
	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/internal/utils"
	"github.com/jrsteele09/go-token-engine/oauth2"
	"github.com/jrsteele09/go-token-engine/signature"
	"github.com/jrsteele09/go-token-engine/token/denylist"
	"github.com/jrsteele09/go-token-engine/token/refresh"
)

// BearerTokenType labels every access token this server issues.
const BearerTokenType = "Bearer"

const (
	defaultAccessTokenExpiry  = 15 * time.Minute
	defaultIDTokenExpiry      = 1 * time.Hour
	defaultRefreshTokenExpiry = 7 * 24 * time.Hour
	defaultFamilyHorizon      = 30 * 24 * time.Hour
	defaultRefreshTokenLength = 32

	pkceVerifierMinLength = 43
	pkceVerifierMaxLength = 128
)

// ServiceDirectory reports whether a service principal is registered and
// enabled. The service registry implements it; declaring the interface here
// keeps this package free of a dependency on the registry itself.
type ServiceDirectory interface {
	Active(id string) (bool, error)
}

// ReuseEvent describes a replayed refresh token and the containment that
// followed. Delivered to the optional reuse hook after the principal's
// tokens have already been revoked.
type ReuseEvent struct {
	PrincipalID  string
	ClientID     string
	FamilyID     string
	PresentedID  string
	RevokedCount int
	DetectedAt   time.Time
}

// Manager drives every token state transition. Each credential moves
// issued -> active -> rotated, revoked or expired; only a rotation's
// successor returns to active. Methods take the current time explicitly so
// tests can walk the clock without faking timers.
type Manager struct {
	codec       *Codec
	clientRepo  clients.Repo
	grantRepo   grants.Repo
	refreshRepo refresh.Repo
	recordRepo  RecordRepo
	denylist    denylist.Store
	services    ServiceDirectory
	logger      zerolog.Logger
	reuseHook   func(ReuseEvent)

	accessTokenExpiry  time.Duration
	idTokenExpiry      time.Duration
	refreshTokenExpiry time.Duration
	familyHorizon      time.Duration
	refreshTokenLength int
}

// ManagerOption configures optional Manager behavior
type ManagerOption func(*Manager)

// WithTokenExpiry overrides the default lifetimes for access, ID and
// refresh tokens.
func WithTokenExpiry(accessTokenExpiry, idTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.idTokenExpiry = idTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

// WithFamilyHorizon caps how long a rotation family can keep extending
// itself. Successor tokens get a fresh expiry but never one beyond the
// horizon fixed when the family started.
func WithFamilyHorizon(horizon time.Duration) ManagerOption {
	return func(m *Manager) { m.familyHorizon = horizon }
}

// WithRefreshTokenLength sets how many random bytes back each opaque
// refresh token secret.
func WithRefreshTokenLength(length int) ManagerOption {
	return func(m *Manager) { m.refreshTokenLength = length }
}

// WithDenylist replaces the in-memory denylist, typically with the Redis
// implementation so revocations survive restarts and reach every node.
func WithDenylist(store denylist.Store) ManagerOption {
	return func(m *Manager) { m.denylist = store }
}

// WithRecordRepo enables persisted access-token records, required for
// service tokens which must be revocable by hash lookup.
func WithRecordRepo(recordRepo RecordRepo) ManagerOption {
	return func(m *Manager) { m.recordRepo = recordRepo }
}

// WithServiceDirectory lets service principals redeem the refresh tokens
// they were issued through the signed-request flow.
func WithServiceDirectory(directory ServiceDirectory) ManagerOption {
	return func(m *Manager) { m.services = directory }
}

// WithLogger attaches a logger for security events. Defaults to a no-op.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithReuseHook registers a callback invoked after reuse detection has
// revoked a principal's tokens. Alerting policy lives with the caller.
func WithReuseHook(hook func(ReuseEvent)) ManagerOption {
	return func(m *Manager) { m.reuseHook = hook }
}

// NewManager creates a Manager wired to the given codec and repositories.
func NewManager(codec *Codec, clientRepo clients.Repo, grantRepo grants.Repo, refreshRepo refresh.Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		codec:              codec,
		clientRepo:         clientRepo,
		grantRepo:          grantRepo,
		refreshRepo:        refreshRepo,
		denylist:           denylist.NewInMemory(),
		logger:             zerolog.Nop(),
		accessTokenExpiry:  defaultAccessTokenExpiry,
		idTokenExpiry:      defaultIDTokenExpiry,
		refreshTokenExpiry: defaultRefreshTokenExpiry,
		familyHorizon:      defaultFamilyHorizon,
		refreshTokenLength: defaultRefreshTokenLength,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Exchange redeems a token request via the handler for its grant type.
// Protocol failures come back as *oauth2.Error so transports can write them
// straight onto the wire; anything else is an internal error.
func (m *Manager) Exchange(ctx context.Context, req *oauth2.TokenRequest, now time.Time) (*oauth2.TokenResponse, error) {
	switch req.GrantType {
	case oauth2.AuthorizationCodeGrant:
		return m.exchangeAuthorizationCode(req, now)
	case oauth2.RefreshTokenCodeGrant:
		return m.exchangeRefreshToken(ctx, req, now)
	case oauth2.ClientCredentialsCodeGrant:
		return m.exchangeClientCredentials(req, now)
	default:
		return nil, oauth2.NewError(oauth2.ErrUnsupportedGrantType, "grant type %q is not supported", req.GrantType)
	}
}

// exchangeAuthorizationCode validates a code redemption end to end before
// committing the single-use Consume, so a failed PKCE check does not burn
// the grant. Consume is the conditional update that guarantees exactly one
// of N concurrent redemptions succeeds.
func (m *Manager) exchangeAuthorizationCode(req *oauth2.TokenRequest, now time.Time) (*oauth2.TokenResponse, error) {
	client, err := m.authenticateClient(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if req.Code == "" {
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "code is required")
	}

	grant, err := m.grantRepo.Get(req.Code)
	switch {
	case errors.Is(err, grants.ErrNotFound):
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "authorization code is invalid")
	case err != nil:
		return nil, errors.Wrapf(err, "[Manager.exchangeAuthorizationCode] grant lookup")
	}
	if grant.Used || grant.Expired(now) {
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "authorization code is invalid")
	}
	if grant.ClientID != client.ID {
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "authorization code was issued to a different client")
	}
	if grant.RedirectURI != req.RedirectURI {
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "redirect_uri does not match the authorization request")
	}

	if grant.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "code_verifier is required")
		}
		if l := len(req.CodeVerifier); l < pkceVerifierMinLength || l > pkceVerifierMaxLength {
			return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "code_verifier must be between %d and %d characters", pkceVerifierMinLength, pkceVerifierMaxLength)
		}
		if !signature.VerifyPKCE(req.CodeVerifier, grant.CodeChallenge) {
			return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "code_verifier does not match the code challenge")
		}
	} else if client.IsPublic() {
		// A public client has no secret, so a grant without a stored
		// challenge carries no proof of possession at all.
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "authorization code was issued without a code challenge")
	}

	if _, err := m.grantRepo.Consume(req.Code, now); err != nil {
		switch {
		case errors.Is(err, grants.ErrNotFound), errors.Is(err, grants.ErrConsumed), errors.Is(err, grants.ErrExpired):
			return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "authorization code is invalid")
		default:
			return nil, errors.Wrapf(err, "[Manager.exchangeAuthorizationCode] consuming grant")
		}
	}

	return m.mintPair(mintSpec{
		tokenType:   TokenTypeUser,
		kind:        refresh.KindUser,
		clientID:    client.ID,
		principalID: grant.PrincipalID,
		scope:       grant.Scope,
		idToken:     oauth2.ContainsScope(grant.Scope, oauth2.ScopeOpenID),
		nonce:       grant.Nonce,
		authTime:    grant.IssuedAt,
	}, now)
}

// exchangeRefreshToken rotates a refresh token. The presented token's used
// flag is the reuse tripwire: once it has been rotated away, any later
// presentation revokes everything the owning principal holds.
func (m *Manager) exchangeRefreshToken(ctx context.Context, req *oauth2.TokenRequest, now time.Time) (*oauth2.TokenResponse, error) {
	if err := m.authenticateRefreshPresenter(req.ClientID, req.ClientSecret); err != nil {
		return nil, err
	}
	if req.RefreshToken == "" {
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "refresh_token is required")
	}

	rt, err := m.refreshRepo.GetByHash(signature.HashToken(req.RefreshToken))
	switch {
	case errors.Is(err, refresh.ErrNotFound):
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "refresh token is invalid")
	case err != nil:
		return nil, errors.Wrapf(err, "[Manager.exchangeRefreshToken] refresh token lookup")
	}
	if rt.Revoked || rt.Expired(now) {
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "refresh token is invalid")
	}
	if rt.ClientID != req.ClientID {
		return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "refresh token was issued to a different client")
	}
	if rt.Used {
		return nil, m.respondToReuse(ctx, rt, now)
	}

	scope := rt.Scope
	if req.Scope != "" {
		requested := oauth2.ParseScope(req.Scope)
		if !oauth2.ScopeSubset(requested, rt.Scope) {
			return nil, oauth2.NewError(oauth2.ErrInvalidScope, "requested scope exceeds the original grant")
		}
		scope = requested
	}

	// MarkUsed is the conditional update. Losing the race to a concurrent
	// redemption means the token was already consumed, which is exactly
	// the reuse condition above.
	successorID := uuid.New().String()
	if err := m.refreshRepo.MarkUsed(rt.ID, successorID, now); err != nil {
		switch {
		case errors.Is(err, refresh.ErrUsed):
			return nil, m.respondToReuse(ctx, rt, now)
		case errors.Is(err, refresh.ErrRevoked), errors.Is(err, refresh.ErrNotFound):
			return nil, oauth2.NewError(oauth2.ErrInvalidGrant, "refresh token is invalid")
		default:
			return nil, errors.Wrapf(err, "[Manager.exchangeRefreshToken] rotating refresh token")
		}
	}

	return m.mintPair(mintSpec{
		tokenType:    accessTokenTypeForKind(rt.Kind),
		kind:         rt.Kind,
		clientID:     rt.ClientID,
		principalID:  rt.PrincipalID,
		scope:        scope,
		familyID:     rt.FamilyID,
		familyExp:    rt.FamilyExpiresAt,
		successorID:  successorID,
		recordAccess: rt.Kind == refresh.KindService,
		idToken:      rt.Kind == refresh.KindUser && oauth2.ContainsScope(scope, oauth2.ScopeOpenID),
	}, now)
}

// exchangeClientCredentials issues a bare access token to a confidential
// client acting as itself. No refresh token: the client can always come
// back with its secret.
func (m *Manager) exchangeClientCredentials(req *oauth2.TokenRequest, now time.Time) (*oauth2.TokenResponse, error) {
	client, err := m.authenticateClient(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if client.IsPublic() {
		return nil, oauth2.NewError(oauth2.ErrUnauthorizedClient, "public clients cannot use the client_credentials grant")
	}

	scope := client.Scopes
	if req.Scope != "" {
		requested := oauth2.ParseScope(req.Scope)
		if err := client.ValidateScopes(requested); err != nil {
			return nil, oauth2.NewError(oauth2.ErrInvalidScope, "requested scope is not allowed for this client")
		}
		scope = requested
	}

	accessToken, _, err := m.codec.EncodeAccessToken(AccessTokenParams{
		Subject:   client.ID,
		ClientID:  client.ID,
		Scope:     scope,
		TokenType: TokenTypeClient,
		TTL:       m.accessTokenExpiry,
	}, now)
	if err != nil {
		return nil, errors.Wrapf(err, "[Manager.exchangeClientCredentials] encoding access token")
	}

	return &oauth2.TokenResponse{
		AccessToken: utils.Ptr(accessToken),
		TokenType:   BearerTokenType,
		ExpiresIn:   int(m.accessTokenExpiry.Seconds()),
		Scope:       oauth2.JoinScope(scope),
	}, nil
}

// IssueServiceTokens mints the access/refresh pair returned to a service
// principal whose signed request already passed verification. The access
// token's hash is recorded so it can be revoked by lookup, and the refresh
// token enters the same rotation state machine as user tokens.
func (m *Manager) IssueServiceTokens(serviceID string, scope []string, now time.Time) (*oauth2.TokenResponse, error) {
	return m.mintPair(mintSpec{
		tokenType:    TokenTypeService,
		kind:         refresh.KindService,
		clientID:     serviceID,
		principalID:  serviceID,
		scope:        scope,
		recordAccess: true,
	}, now)
}

// Revoke implements RFC 7009. The hint only orders the search: the token is
// tried as a refresh token and as an access token either way, and the call
// reports success regardless of what was found so token existence never
// leaks.
func (m *Manager) Revoke(ctx context.Context, req *oauth2.RevocationRequest, now time.Time) error {
	if req.Token == "" {
		return nil
	}

	if req.TokenTypeHint == "access_token" {
		if done, err := m.revokeAccessToken(ctx, req.Token, now); err != nil || done {
			return err
		}
		_, err := m.revokeRefreshToken(ctx, req, now)
		return err
	}

	if done, err := m.revokeRefreshToken(ctx, req, now); err != nil || done {
		return err
	}
	_, err := m.revokeAccessToken(ctx, req.Token, now)
	return err
}

// revokeRefreshToken revokes the whole rotation family behind a presented
// refresh token and denies any access tokens minted with it that are still
// live. Reports true when the token matched a stored record.
func (m *Manager) revokeRefreshToken(ctx context.Context, req *oauth2.RevocationRequest, now time.Time) (bool, error) {
	rt, err := m.refreshRepo.GetByHash(signature.HashToken(req.Token))
	switch {
	case errors.Is(err, refresh.ErrNotFound):
		return false, nil
	case err != nil:
		return false, errors.Wrapf(err, "[Manager.revokeRefreshToken] refresh token lookup")
	}

	// A client may only revoke its own tokens. Report success anyway so the
	// endpoint cannot be used to probe for other clients' tokens.
	if req.ClientID != "" && req.ClientID != rt.ClientID {
		return true, nil
	}

	family, err := m.refreshRepo.RevokeFamily(rt.FamilyID, now)
	if err != nil {
		return false, errors.Wrapf(err, "[Manager.revokeRefreshToken] revoking family")
	}
	if err := m.denyAccessTokens(ctx, family, now); err != nil {
		return false, err
	}
	return true, nil
}

// revokeAccessToken denies a presented access token until its natural
// expiry. Service tokens are matched by stored hash first so even an
// undecodable copy can be revoked; user tokens are decoded to recover
// their ID and remaining lifetime.
func (m *Manager) revokeAccessToken(ctx context.Context, raw string, now time.Time) (bool, error) {
	if m.recordRepo != nil {
		record, err := m.recordRepo.GetByHash(signature.HashToken(raw))
		switch {
		case err == nil:
			if err := m.recordRepo.Revoke(record.ID, now); err != nil {
				return false, errors.Wrapf(err, "[Manager.revokeAccessToken] revoking record")
			}
			if record.ExpiresAt.After(now) {
				if err := m.denylist.Add(ctx, record.ID, record.ExpiresAt, now); err != nil {
					return false, errors.Wrapf(err, "[Manager.revokeAccessToken] denying access token")
				}
			}
			return true, nil
		case !errors.Is(err, ErrRecordNotFound):
			return false, errors.Wrapf(err, "[Manager.revokeAccessToken] record lookup")
		}
	}

	claims, err := m.codec.Decode(raw, m.codec.Audience(), now)
	if err != nil {
		// Nothing to revoke. Expired and malformed tokens are already dead.
		return false, nil
	}
	if claims.ExpiresAt.After(now) {
		if err := m.denylist.Add(ctx, claims.ID, claims.ExpiresAt, now); err != nil {
			return false, errors.Wrapf(err, "[Manager.revokeAccessToken] denying access token")
		}
	}
	return true, nil
}

// RevokeAllForPrincipal is the log-out-everywhere operation: every refresh
// token the principal holds is revoked and every access token minted
// alongside them is denied for its remaining lifetime. Returns how many
// refresh tokens were affected.
func (m *Manager) RevokeAllForPrincipal(ctx context.Context, principalID string, now time.Time) (int, error) {
	revoked, err := m.refreshRepo.RevokeAllForPrincipal(principalID, now)
	if err != nil {
		return 0, errors.Wrapf(err, "[Manager.RevokeAllForPrincipal] revoking refresh tokens")
	}
	if err := m.denyAccessTokens(ctx, revoked, now); err != nil {
		return 0, err
	}
	if m.recordRepo != nil {
		if _, err := m.recordRepo.RevokeAllForService(principalID, now); err != nil {
			return 0, errors.Wrapf(err, "[Manager.RevokeAllForPrincipal] revoking access records")
		}
	}
	return len(revoked), nil
}

// Authenticate verifies a presented access token: signature, expiry, issuer
// and audience through the codec, then revocation state.
func (m *Manager) Authenticate(ctx context.Context, raw string, now time.Time) (*Claims, error) {
	claims, err := m.codec.Decode(raw, m.codec.Audience(), now)
	if err != nil {
		return nil, err
	}

	denied, err := m.denylist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "[Manager.Authenticate] denylist lookup")
	}
	if denied {
		return nil, errors.Wrapf(errors.ErrTokenRevoked, "token %q", claims.ID)
	}

	if claims.TokenType == TokenTypeService && m.recordRepo != nil {
		record, err := m.recordRepo.Get(claims.ID)
		switch {
		case err == nil:
			if record.Revoked {
				return nil, errors.Wrapf(errors.ErrTokenRevoked, "token %q", claims.ID)
			}
		case !errors.Is(err, ErrRecordNotFound):
			return nil, errors.Wrapf(err, "[Manager.Authenticate] record lookup")
		}
	}

	return claims, nil
}

// Introspect implements RFC 7662: any token that fails validation, has been
// revoked or is simply unknown introspects as inactive rather than as an
// error.
func (m *Manager) Introspect(ctx context.Context, req *oauth2.IntrospectionRequest, now time.Time) (*oauth2.IntrospectionResponse, error) {
	inactive := &oauth2.IntrospectionResponse{Active: false}
	if req.Token == "" {
		return inactive, nil
	}

	if req.TokenTypeHint != "access_token" {
		rt, err := m.refreshRepo.GetByHash(signature.HashToken(req.Token))
		switch {
		case err == nil:
			if rt.Used || rt.Revoked || rt.Expired(now) {
				return inactive, nil
			}
			return &oauth2.IntrospectionResponse{
				Active:    true,
				Scope:     oauth2.JoinScope(rt.Scope),
				ClientID:  rt.ClientID,
				TokenType: "refresh_token",
				Sub:       utils.Ptr(rt.PrincipalID),
				Exp:       utils.Ptr(rt.ExpiresAt.Unix()),
				Iat:       utils.Ptr(rt.IssuedAt.Unix()),
				Jti:       rt.ID,
			}, nil
		case !errors.Is(err, refresh.ErrNotFound):
			return nil, errors.Wrapf(err, "[Manager.Introspect] refresh token lookup")
		}
	}

	claims, err := m.Authenticate(ctx, req.Token, now)
	if err != nil {
		if infraErr := asInfrastructureError(err); infraErr != nil {
			return nil, infraErr
		}
		return inactive, nil
	}
	return &oauth2.IntrospectionResponse{
		Active:    true,
		Scope:     oauth2.JoinScope(claims.Scope),
		ClientID:  claims.ClientID,
		TokenType: BearerTokenType,
		Sub:       utils.Ptr(claims.Subject),
		Aud:       utils.Ptr(claims.Audience),
		Iss:       utils.Ptr(claims.Issuer),
		Exp:       utils.Ptr(claims.ExpiresAt.Unix()),
		Iat:       utils.Ptr(claims.IssuedAt.Unix()),
		Jti:       claims.ID,
	}, nil
}

// respondToReuse is the containment path for a replayed refresh token:
// revoke everything the principal holds, log the event, notify the hook,
// and fail the request with the reuse-specific error code.
func (m *Manager) respondToReuse(ctx context.Context, rt *refresh.StoredRefreshToken, now time.Time) error {
	revokedCount, err := m.RevokeAllForPrincipal(ctx, rt.PrincipalID, now)
	if err != nil {
		return err
	}

	m.logger.Error().
		Str("principal_id", rt.PrincipalID).
		Str("client_id", rt.ClientID).
		Str("family_id", rt.FamilyID).
		Str("token_id", rt.ID).
		Int("refresh_tokens_revoked", revokedCount).
		Msg("refresh token reuse detected, all tokens for principal revoked")

	if m.reuseHook != nil {
		m.reuseHook(ReuseEvent{
			PrincipalID:  rt.PrincipalID,
			ClientID:     rt.ClientID,
			FamilyID:     rt.FamilyID,
			PresentedID:  rt.ID,
			RevokedCount: revokedCount,
			DetectedAt:   now,
		})
	}

	return oauth2.NewError(oauth2.ErrRefreshTokenReuse, "refresh token has already been used")
}

// denyAccessTokens puts the access tokens minted alongside the given
// refresh tokens on the denylist for whatever lifetime they have left.
func (m *Manager) denyAccessTokens(ctx context.Context, tokens []*refresh.StoredRefreshToken, now time.Time) error {
	for _, rt := range tokens {
		if rt.AccessTokenID == "" || !rt.AccessTokenExpiresAt.After(now) {
			continue
		}
		if err := m.denylist.Add(ctx, rt.AccessTokenID, rt.AccessTokenExpiresAt, now); err != nil {
			return errors.Wrapf(err, "[Manager.denyAccessTokens] denying access token")
		}
	}
	return nil
}

// authenticateClient resolves and authenticates the client on a token
// request. Confidential clients must present their secret; public clients
// must not present one at all.
func (m *Manager) authenticateClient(clientID, clientSecret string) (*clients.Client, error) {
	if clientID == "" {
		return nil, oauth2.NewError(oauth2.ErrInvalidClient, "client_id is required")
	}

	client, err := m.clientRepo.Get(clientID)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return nil, oauth2.NewError(oauth2.ErrInvalidClient, "client authentication failed")
	case err != nil:
		return nil, errors.Wrapf(err, "[Manager.authenticateClient] client lookup")
	}
	if client.Disabled {
		return nil, oauth2.NewError(oauth2.ErrInvalidClient, "client authentication failed")
	}

	if client.IsPublic() {
		if clientSecret != "" {
			return nil, oauth2.NewError(oauth2.ErrInvalidClient, "public clients must not send a client secret")
		}
		return client, nil
	}

	if clientSecret == "" {
		return nil, oauth2.NewError(oauth2.ErrInvalidClient, "client authentication failed")
	}
	if err := client.CheckSecret(clientSecret); err != nil {
		return nil, oauth2.NewError(oauth2.ErrInvalidClient, "client authentication failed")
	}
	return client, nil
}

// authenticateRefreshPresenter authenticates whoever presents a refresh
// token. Registered clients follow the usual confidential/public rules.
// Service principals hold no client secret; possession of the refresh
// token is their proof, so they only need to still be on the allow-list.
func (m *Manager) authenticateRefreshPresenter(clientID, clientSecret string) error {
	if clientID == "" {
		return oauth2.NewError(oauth2.ErrInvalidClient, "client_id is required")
	}

	_, err := m.authenticateClient(clientID, clientSecret)
	if err == nil {
		return nil
	}

	var oauthErr *oauth2.Error
	if !errors.As(err, &oauthErr) {
		return err
	}
	if m.services == nil {
		return err
	}

	active, dirErr := m.services.Active(clientID)
	if dirErr != nil {
		return errors.Wrapf(dirErr, "[Manager.authenticateRefreshPresenter] service lookup")
	}
	if !active {
		return err
	}
	if clientSecret != "" {
		return oauth2.NewError(oauth2.ErrInvalidClient, "service principals must not send a client secret")
	}
	return nil
}

func accessTokenTypeForKind(kind string) string {
	if kind == refresh.KindService {
		return TokenTypeService
	}
	return TokenTypeUser
}

// asInfrastructureError separates backend failures from ordinary token
// validation failures so introspection can answer inactive without
// swallowing outages.
func asInfrastructureError(err error) error {
	for _, sentinel := range []error{
		errors.ErrTokenMalformed,
		errors.ErrTokenSignature,
		errors.ErrTokenExpired,
		errors.ErrTokenIssuer,
		errors.ErrTokenAudience,
		errors.ErrTokenRevoked,
	} {
		if errors.Is(err, sentinel) {
			return nil
		}
	}
	return err
}

// mintSpec fixes everything about the access/refresh pair being minted
// except the moment of minting.
type mintSpec struct {
	tokenType   string
	kind        string
	clientID    string
	principalID string
	scope       []string

	// familyID continues an existing rotation chain, familyExp preserves
	// its horizon. Both zero for a brand-new family.
	familyID  string
	familyExp time.Time

	// successorID pre-assigns the refresh record ID when rotation has
	// already linked the predecessor to it.
	successorID string

	// recordAccess persists the access token hash for lookup revocation.
	recordAccess bool

	// idToken mints an OpenID Connect ID token alongside the pair. nonce
	// and authTime ride only on the initial code redemption; rotation
	// carries neither.
	idToken  bool
	nonce    string
	authTime time.Time
}

func (m *Manager) mintPair(spec mintSpec, now time.Time) (*oauth2.TokenResponse, error) {
	familyID := spec.familyID
	if familyID == "" {
		familyID = uuid.New().String()
	}
	familyExp := spec.familyExp
	if familyExp.IsZero() {
		familyExp = now.Add(m.familyHorizon)
	}

	accessToken, claims, err := m.codec.EncodeAccessToken(AccessTokenParams{
		Subject:   spec.principalID,
		ClientID:  spec.clientID,
		Scope:     spec.scope,
		TokenType: spec.tokenType,
		FamilyID:  familyID,
		TTL:       m.accessTokenExpiry,
	}, now)
	if err != nil {
		return nil, errors.Wrapf(err, "[Manager.mintPair] encoding access token")
	}

	secret, rt, err := refresh.Mint(refresh.MintParams{
		ID:                   spec.successorID,
		Kind:                 spec.kind,
		ClientID:             spec.clientID,
		PrincipalID:          spec.principalID,
		Scope:                spec.scope,
		FamilyID:             familyID,
		FamilyExpiresAt:      familyExp,
		TokenLength:          m.refreshTokenLength,
		TTL:                  m.refreshTokenExpiry,
		Now:                  now,
		AccessTokenID:        claims.ID,
		AccessTokenExpiresAt: claims.ExpiresAt,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[Manager.mintPair] minting refresh token")
	}
	if err := m.refreshRepo.Upsert(rt); err != nil {
		return nil, errors.Wrapf(err, "[Manager.mintPair] storing refresh token")
	}

	if spec.recordAccess && m.recordRepo != nil {
		record := &AccessTokenRecord{
			ID:        claims.ID,
			TokenHash: signature.HashToken(accessToken),
			ServiceID: spec.principalID,
			Scope:     spec.scope,
			IssuedAt:  now,
			ExpiresAt: claims.ExpiresAt,
		}
		if err := m.recordRepo.Upsert(record); err != nil {
			return nil, errors.Wrapf(err, "[Manager.mintPair] recording access token")
		}
	}

	resp := &oauth2.TokenResponse{
		AccessToken:  utils.Ptr(accessToken),
		TokenType:    BearerTokenType,
		ExpiresIn:    int(m.accessTokenExpiry.Seconds()),
		RefreshToken: utils.Ptr(secret),
		Scope:        oauth2.JoinScope(spec.scope),
	}

	if spec.idToken {
		idToken, _, err := m.codec.EncodeIDToken(IDTokenParams{
			Subject:  spec.principalID,
			ClientID: spec.clientID,
			Nonce:    spec.nonce,
			AuthTime: spec.authTime,
			TTL:      m.idTokenExpiry,
		}, now)
		if err != nil {
			return nil, errors.Wrapf(err, "[Manager.mintPair] encoding id token")
		}
		resp.IdToken = utils.Ptr(idToken)
	}

	return resp, nil
}
