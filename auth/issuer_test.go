package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-token-engine/auth"
	"github.com/jrsteele09/go-token-engine/clients"
	fakeclientrepo "github.com/jrsteele09/go-token-engine/clients/fakerepo"
	"github.com/jrsteele09/go-token-engine/grants"
	grantrepofake "github.com/jrsteele09/go-token-engine/grants/repofake"
	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/oauth2"
)

const (
	testClientID      = "test-client-1"
	testPublicClient  = "public-client-1"
	testUserID        = "user-1"
	testRedirectURI   = "http://localhost:3000/callback"
	testState         = "random-state-value"
	testNonce         = "random-nonce-value"
	testCodeChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

var baseTime = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

// testFixture holds all test dependencies
type testFixture struct {
	clientRepo clients.Repo
	grantRepo  grants.Repo
	issuer     *auth.Issuer
	now        time.Time
}

// setupTestFixture creates an issuer backed by in-memory fakes
func setupTestFixture(t *testing.T, options ...auth.IssuerOption) *testFixture {
	t.Helper()

	cr := fakeclientrepo.NewFakeClientRepo()
	gr := grantrepofake.NewFakeGrantRepo()

	return &testFixture{
		clientRepo: cr,
		grantRepo:  gr,
		issuer:     auth.NewIssuer(cr, gr, options...),
		now:        baseTime,
	}
}

func (f *testFixture) createConfidentialClient(t *testing.T) {
	t.Helper()

	require.NoError(t, f.clientRepo.Upsert(&clients.Client{
		ID:           testClientID,
		Name:         "Test Client",
		Type:         clients.ClientTypeConfidential,
		SecretHash:   "$2a$10$fakefakefakefakefakefake",
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"openid", "profile", "api.read"},
	}))
}

func (f *testFixture) createPublicClient(t *testing.T) {
	t.Helper()

	require.NoError(t, f.clientRepo.Upsert(&clients.Client{
		ID:           testPublicClient,
		Name:         "Public Client",
		Type:         clients.ClientTypePublic,
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"openid", "api.read"},
	}))
}

func validRequest(clientID string) *oauth2.AuthorizationRequest {
	return &oauth2.AuthorizationRequest{
		ClientID:            clientID,
		ResponseType:        oauth2.CodeResponseType,
		RedirectURI:         testRedirectURI,
		Scope:               "openid api.read",
		State:               testState,
		CodeChallenge:       testCodeChallenge,
		CodeChallengeMethod: oauth2.CodeMethodTypeS256,
		Nonce:               testNonce,
	}
}

// requireDirectError asserts a protocol-level failure that must not be
// delivered by redirect.
func requireDirectError(t *testing.T, err error, code oauth2.ErrorCode) {
	t.Helper()

	var redirectErr *auth.RedirectError
	require.False(t, errors.As(err, &redirectErr), "expected a direct error, got a redirect error")

	var oauthErr *oauth2.Error
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, code, oauthErr.Code)
}

// requireRedirectError asserts a failure that travels back on the client's
// redirect URI with the original state attached.
func requireRedirectError(t *testing.T, err error, code oauth2.ErrorCode) *auth.RedirectError {
	t.Helper()

	var redirectErr *auth.RedirectError
	require.ErrorAs(t, err, &redirectErr)
	require.Equal(t, code, redirectErr.Err.Code)
	require.Equal(t, testRedirectURI, redirectErr.RedirectURI)
	require.Equal(t, testState, redirectErr.State)
	return redirectErr
}

// TestAuthorize_IssuesGrant covers the happy path: code returned with the
// caller's state, grant persisted with the negotiated scope and PKCE
// binding.
func TestAuthorize_IssuesGrant(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	authz, err := f.issuer.Authorize(validRequest(testClientID), testUserID, f.now)
	require.NoError(t, err)
	require.NotEmpty(t, authz.Code)
	require.Equal(t, testState, authz.State)
	require.Equal(t, testRedirectURI, authz.RedirectURI)

	grant, err := f.grantRepo.Get(authz.Code)
	require.NoError(t, err)
	require.Equal(t, testClientID, grant.ClientID)
	require.Equal(t, testUserID, grant.PrincipalID)
	require.Equal(t, []string{"openid", "api.read"}, grant.Scope)
	require.Equal(t, testCodeChallenge, grant.CodeChallenge)
	require.Equal(t, testNonce, grant.Nonce)
	require.Equal(t, f.now.Add(10*time.Minute), grant.ExpiresAt)
	require.False(t, grant.Used)
}

// TestAuthorize_UnknownScopesFiltered drops unregistered scopes instead of
// failing, as long as something grantable remains.
func TestAuthorize_UnknownScopesFiltered(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	req := validRequest(testClientID)
	req.Scope = "api.read api.admin"
	authz, err := f.issuer.Authorize(req, testUserID, f.now)
	require.NoError(t, err)

	grant, err := f.grantRepo.Get(authz.Code)
	require.NoError(t, err)
	// baseline openid is injected ahead of the surviving request
	require.Equal(t, []string{"openid", "api.read"}, grant.Scope)
}

// TestAuthorize_OnlyUnknownScopes rejects when filtering leaves nothing of
// an explicit request.
func TestAuthorize_OnlyUnknownScopes(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	req := validRequest(testClientID)
	req.Scope = "api.admin api.superuser"
	_, err := f.issuer.Authorize(req, testUserID, f.now)
	requireRedirectError(t, err, oauth2.ErrInvalidScope)
}

// TestAuthorize_EmptyScopeGetsBaseline issues just the baseline scope when
// the request names none.
func TestAuthorize_EmptyScopeGetsBaseline(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	req := validRequest(testClientID)
	req.Scope = ""
	authz, err := f.issuer.Authorize(req, testUserID, f.now)
	require.NoError(t, err)

	grant, err := f.grantRepo.Get(authz.Code)
	require.NoError(t, err)
	require.Equal(t, []string{"openid"}, grant.Scope)
}

// TestAuthorize_UnknownClient fails directly, never by redirect.
func TestAuthorize_UnknownClient(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.issuer.Authorize(validRequest("no-such-client"), testUserID, f.now)
	requireDirectError(t, err, oauth2.ErrInvalidRequest)
}

// TestAuthorize_DisabledClient fails directly.
func TestAuthorize_DisabledClient(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.clientRepo.Upsert(&clients.Client{
		ID:           testClientID,
		Type:         clients.ClientTypeConfidential,
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"openid"},
		Disabled:     true,
	}))

	_, err := f.issuer.Authorize(validRequest(testClientID), testUserID, f.now)
	requireDirectError(t, err, oauth2.ErrInvalidRequest)
}

// TestAuthorize_UnregisteredRedirect fails directly: redirecting to an
// unvalidated URI would hand the code to an attacker.
func TestAuthorize_UnregisteredRedirect(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	req := validRequest(testClientID)
	req.RedirectURI = "http://evil.example.com/callback"
	_, err := f.issuer.Authorize(req, testUserID, f.now)
	requireDirectError(t, err, oauth2.ErrInvalidRequest)
}

// TestAuthorize_MissingRedirect fails directly.
func TestAuthorize_MissingRedirect(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	req := validRequest(testClientID)
	req.RedirectURI = ""
	_, err := f.issuer.Authorize(req, testUserID, f.now)
	requireDirectError(t, err, oauth2.ErrInvalidRequest)
}

// TestAuthorize_WrongResponseType is the first redirect-delivered failure:
// the client is valid, so it gets told on its own callback.
func TestAuthorize_WrongResponseType(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	req := validRequest(testClientID)
	req.ResponseType = "token"
	_, err := f.issuer.Authorize(req, testUserID, f.now)
	requireRedirectError(t, err, oauth2.ErrUnsupportedResponseType)
}

// TestAuthorize_UnknownResponseMode rejects modes outside the supported set
// instead of quietly delivering the code as query.
func TestAuthorize_UnknownResponseMode(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	req := validRequest(testClientID)
	req.ResponseMode = "web_message"
	_, err := f.issuer.Authorize(req, testUserID, f.now)
	redirectErr := requireRedirectError(t, err, oauth2.ErrInvalidRequest)
	require.Contains(t, redirectErr.Err.Description, "response_mode")

	req.ResponseMode = oauth2.FormPostResponseMode
	_, err = f.issuer.Authorize(req, testUserID, f.now)
	require.NoError(t, err)
}

// TestAuthorize_MalformedState travels back by redirect with the offending
// state echoed, as any error response carries the request's state verbatim.
func TestAuthorize_MalformedState(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	req := validRequest(testClientID)
	req.State = "short"
	_, err := f.issuer.Authorize(req, testUserID, f.now)

	var redirectErr *auth.RedirectError
	require.ErrorAs(t, err, &redirectErr)
	require.Equal(t, oauth2.ErrInvalidRequest, redirectErr.Err.Code)
	require.Equal(t, "short", redirectErr.State)
}

// TestAuthorize_PublicClientRequiresPKCE rejects a public client request
// without a challenge.
func TestAuthorize_PublicClientRequiresPKCE(t *testing.T) {
	f := setupTestFixture(t)
	f.createPublicClient(t)

	req := validRequest(testPublicClient)
	req.CodeChallenge = ""
	req.CodeChallengeMethod = ""
	_, err := f.issuer.Authorize(req, testUserID, f.now)
	requireRedirectError(t, err, oauth2.ErrInvalidRequest)
}

// TestAuthorize_ConfidentialClientMayOmitPKCE lets a confidential client
// authorize on its secret alone, unless PKCE is globally required.
func TestAuthorize_ConfidentialClientMayOmitPKCE(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	req := validRequest(testClientID)
	req.CodeChallenge = ""
	req.CodeChallengeMethod = ""
	_, err := f.issuer.Authorize(req, testUserID, f.now)
	require.NoError(t, err)

	strict := setupTestFixture(t, auth.WithRequirePKCE(true))
	strict.createConfidentialClient(t)
	_, err = strict.issuer.Authorize(req, testUserID, strict.now)
	requireRedirectError(t, err, oauth2.ErrInvalidRequest)
}

// TestAuthorize_PlainMethodRejected refuses the plain challenge method by
// name.
func TestAuthorize_PlainMethodRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.createPublicClient(t)

	req := validRequest(testPublicClient)
	req.CodeChallengeMethod = oauth2.CodeMethodTypePlain
	_, err := f.issuer.Authorize(req, testUserID, f.now)
	requireRedirectError(t, err, oauth2.ErrInvalidRequest)
}

// TestAuthorize_UnauthenticatedPrincipal returns ErrLoginRequired and
// leaves no grant behind.
func TestAuthorize_UnauthenticatedPrincipal(t *testing.T) {
	f := setupTestFixture(t)
	f.createConfidentialClient(t)

	_, err := f.issuer.Authorize(validRequest(testClientID), "", f.now)
	require.ErrorIs(t, err, errors.ErrLoginRequired)

	stored, err := f.grantRepo.List(0, 0)
	require.NoError(t, err)
	require.Empty(t, stored)
}
