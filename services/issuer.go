package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/oauth2"
	"github.com/jrsteele09/go-token-engine/signature"
)

// DefaultTimestampTolerance bounds the replay window for signed requests in
// both directions.
const DefaultTimestampTolerance = 5 * time.Minute

// TokenMinter mints the token pair for a service principal whose proof has
// already been verified. *token.Manager satisfies it.
type TokenMinter interface {
	IssueServiceTokens(serviceID string, scope []string, now time.Time) (*oauth2.TokenResponse, error)
}

// SignedRequest carries the three proof values and the exact body bytes they
// sign. Body must be the wire bytes as received; re-serialization breaks the
// signature.
type SignedRequest struct {
	ServiceID string
	Signature string // base64url HMAC-SHA256 of Body, no padding
	Timestamp string // unix milliseconds
	Body      []byte
}

// IssueRequest is the signed JSON body of a service token request. An empty
// scope requests everything the service is allowed.
type IssueRequest struct {
	Scope []string `json:"scope,omitempty"`
}

// Issuer exchanges HMAC-signed requests for service token pairs.
type Issuer struct {
	repo      Repo
	minter    TokenMinter
	tolerance time.Duration
	logger    zerolog.Logger
}

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithTimestampTolerance overrides the replay window
func WithTimestampTolerance(tolerance time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.tolerance = tolerance
	}
}

// WithLogger sets the logger used for issuance events
func WithLogger(logger zerolog.Logger) IssuerOption {
	return func(i *Issuer) {
		i.logger = logger
	}
}

// NewIssuer creates a service token issuer backed by the given registry and
// minter.
func NewIssuer(repo Repo, minter TokenMinter, options ...IssuerOption) *Issuer {
	issuer := &Issuer{
		repo:      repo,
		minter:    minter,
		tolerance: DefaultTimestampTolerance,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(issuer)
	}
	return issuer
}

// IssueFromSignedRequest verifies the proof carried by req and mints a token
// pair for the service. Checks run in order: principal lookup, timestamp
// tolerance, HMAC over the raw body, then scope negotiation. Failures return
// the sentinel for the first check that failed; the HTTP layer decides how
// much of that detail reaches the caller.
func (i *Issuer) IssueFromSignedRequest(req *SignedRequest, now time.Time) (*oauth2.TokenResponse, error) {
	principal, err := i.repo.Get(req.ServiceID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrapf(errors.ErrServiceNotFound, "[Issuer.IssueFromSignedRequest] service %q", req.ServiceID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[Issuer.IssueFromSignedRequest] looking up service %q", req.ServiceID)
	}
	if principal.Disabled {
		return nil, errors.Wrapf(errors.ErrServiceDisabled, "[Issuer.IssueFromSignedRequest] service %q", req.ServiceID)
	}

	ms, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTimestampOutOfRange, "[Issuer.IssueFromSignedRequest] malformed timestamp %q", req.Timestamp)
	}
	if !signature.WithinTolerance(time.UnixMilli(ms), now, i.tolerance) {
		return nil, errors.Wrapf(errors.ErrTimestampOutOfRange, "[Issuer.IssueFromSignedRequest] timestamp outside the %s replay window", i.tolerance)
	}

	sig, err := base64.RawURLEncoding.DecodeString(req.Signature)
	if err != nil || !signature.Verify(principal.Key, req.Body, sig) {
		i.logger.Warn().
			Str("service_id", req.ServiceID).
			Msg("rejected service request with bad signature")
		return nil, errors.Wrapf(errors.ErrInvalidSignature, "[Issuer.IssueFromSignedRequest] service %q", req.ServiceID)
	}

	var body IssueRequest
	if len(req.Body) > 0 {
		dec := json.NewDecoder(bytes.NewReader(req.Body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Issuer.IssueFromSignedRequest] decoding body: %v", err)
		}
		if dec.More() {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Issuer.IssueFromSignedRequest] trailing data after request body")
		}
	}

	scope := principal.FilterScopes(body.Scope)
	if len(scope) == 0 {
		return nil, errors.Wrapf(errors.ErrScopeNotAllowed, "[Issuer.IssueFromSignedRequest] no requested scope is allowed for service %q", req.ServiceID)
	}

	response, err := i.minter.IssueServiceTokens(principal.ID, scope, now)
	if err != nil {
		return nil, errors.Wrapf(err, "[Issuer.IssueFromSignedRequest] minting tokens for service %q", req.ServiceID)
	}

	i.logger.Debug().
		Str("service_id", principal.ID).
		Strs("scope", scope).
		Msg("issued service token pair")
	return response, nil
}
