// Package auth issues authorization grants for the code flow. The Issuer
// validates an authorization request against the client registration,
// negotiates scope, enforces PKCE and persists the single-use grant that
// the token endpoint later redeems.
package auth

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-token-engine/clients"
	"github.com/jrsteele09/go-token-engine/grants"
	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/oauth2"
	"github.com/jrsteele09/go-token-engine/signature"
)

const (
	defaultGrantTTL   = 10 * time.Minute
	defaultCodeLength = 32
)

// Issuer turns valid authorization requests into single-use grants.
type Issuer struct {
	clientRepo clients.Repo
	grantRepo  grants.Repo
	validator  *Validator
	logger     zerolog.Logger

	grantTTL    time.Duration
	codeLength  int
	baseScope   string
	requirePKCE bool
}

// IssuerOption configures optional Issuer behavior
type IssuerOption func(*Issuer)

// WithGrantTTL overrides how long an issued code stays redeemable.
func WithGrantTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) { i.grantTTL = ttl }
}

// WithCodeLength sets how many random bytes back each authorization code.
func WithCodeLength(length int) IssuerOption {
	return func(i *Issuer) { i.codeLength = length }
}

// WithBaseScope sets the scope injected into every grant, usually "openid"
// under the OIDC profile. Empty disables injection.
func WithBaseScope(scope string) IssuerOption {
	return func(i *Issuer) { i.baseScope = scope }
}

// WithRequirePKCE extends the PKCE requirement to confidential clients.
// Public clients always require it.
func WithRequirePKCE(required bool) IssuerOption {
	return func(i *Issuer) { i.requirePKCE = required }
}

// WithLogger attaches a logger for issuance events. Defaults to a no-op.
func WithLogger(logger zerolog.Logger) IssuerOption {
	return func(i *Issuer) { i.logger = logger }
}

// NewIssuer creates an Issuer over the client registry and grant store.
func NewIssuer(clientRepo clients.Repo, grantRepo grants.Repo, options ...IssuerOption) *Issuer {
	issuer := &Issuer{
		clientRepo: clientRepo,
		grantRepo:  grantRepo,
		validator:  NewValidator(),
		logger:     zerolog.Nop(),
		grantTTL:   defaultGrantTTL,
		codeLength: defaultCodeLength,
		baseScope:  oauth2.ScopeOpenID,
	}
	for _, option := range options {
		option(issuer)
	}
	return issuer
}

// Authorization carries the issued code back to the redirecting transport.
type Authorization struct {
	Code        string
	State       string
	RedirectURI string
}

// Authorize validates the request and persists a grant for the principal.
//
// Failures split three ways. Before the client and redirect URI are
// validated, errors are plain *oauth2.Error values and must be shown
// directly to the caller. After that point they are *RedirectError values
// and travel back to the client on its redirect URI. An unauthenticated
// principal (empty principalID) fails with ErrLoginRequired and leaves no
// state behind: the caller runs interactive login and retries.
func (i *Issuer) Authorize(req *oauth2.AuthorizationRequest, principalID string, now time.Time) (*Authorization, error) {
	if req.ClientID == "" {
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "client_id is required")
	}
	if oauthErr := ValidateRedirectURI(req.RedirectURI); oauthErr != nil {
		return nil, oauthErr
	}

	client, err := i.clientRepo.Get(req.ClientID)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "unknown client")
	case err != nil:
		return nil, errors.Wrapf(err, "[Issuer.Authorize] client lookup")
	}
	if client.Disabled {
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "client is disabled")
	}
	if err := client.ValidateRedirectURI(req.RedirectURI); err != nil {
		return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "redirect_uri is not registered for this client")
	}

	// The client and redirect URI check out, so later failures are safe to
	// deliver by redirect.
	if req.ResponseType != oauth2.CodeResponseType {
		return nil, i.redirectError(req, oauth2.NewError(oauth2.ErrUnsupportedResponseType, "response_type must be code"))
	}
	if oauthErr := ValidateResponseMode(req.ResponseMode); oauthErr != nil {
		return nil, i.redirectError(req, oauthErr)
	}
	if oauthErr := ValidateState(req.State); oauthErr != nil {
		return nil, i.redirectError(req, oauthErr)
	}
	if oauthErr := i.validator.ValidateCodeChallenge(client, req, i.requirePKCE); oauthErr != nil {
		return nil, i.redirectError(req, oauthErr)
	}

	scope, oauthErr := i.negotiateScope(client, req.Scope)
	if oauthErr != nil {
		return nil, i.redirectError(req, oauthErr)
	}

	if principalID == "" {
		return nil, errors.Wrapf(errors.ErrLoginRequired, "[Issuer.Authorize] principal not authenticated")
	}

	code, err := signature.RandomToken(i.codeLength)
	if err != nil {
		return nil, errors.Wrapf(err, "[Issuer.Authorize] generating code")
	}

	grant := &grants.Grant{
		Code:          code,
		ClientID:      client.ID,
		PrincipalID:   principalID,
		RedirectURI:   req.RedirectURI,
		Scope:         scope,
		CodeChallenge: req.CodeChallenge,
		Nonce:         req.Nonce,
		IssuedAt:      now,
		ExpiresAt:     now.Add(i.grantTTL),
	}
	if err := i.grantRepo.Create(grant); err != nil {
		i.logger.Error().Err(err).Str("client_id", client.ID).Msg("failed to persist authorization grant")
		return nil, i.redirectError(req, oauth2.NewError(oauth2.ErrServerError, "could not store authorization grant"))
	}

	i.logger.Debug().
		Str("client_id", client.ID).
		Str("principal_id", principalID).
		Str("scope", oauth2.JoinScope(scope)).
		Msg("authorization grant issued")

	return &Authorization{Code: code, State: req.State, RedirectURI: req.RedirectURI}, nil
}

// negotiateScope filters the requested scopes down to what the client may
// hold and injects the baseline scope. Requesting only unknown scopes is an
// error; requesting none yields just the baseline.
func (i *Issuer) negotiateScope(client *clients.Client, requested string) ([]string, *oauth2.Error) {
	requestedScopes := oauth2.ParseScope(requested)

	granted := make([]string, 0, len(requestedScopes)+1)
	for _, s := range requestedScopes {
		if client.HasScope(s) {
			granted = append(granted, s)
		}
	}
	if len(requestedScopes) > 0 && len(granted) == 0 {
		return nil, oauth2.NewError(oauth2.ErrInvalidScope, "none of the requested scopes are allowed for this client")
	}

	if i.baseScope != "" && client.HasScope(i.baseScope) && !oauth2.ContainsScope(granted, i.baseScope) {
		granted = append([]string{i.baseScope}, granted...)
	}
	if len(granted) == 0 {
		return nil, oauth2.NewError(oauth2.ErrInvalidScope, "client has no grantable scopes")
	}
	return granted, nil
}

func (i *Issuer) redirectError(req *oauth2.AuthorizationRequest, err *oauth2.Error) error {
	return &RedirectError{RedirectURI: req.RedirectURI, State: req.State, Err: err}
}
