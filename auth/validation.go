package auth

import (
	"regexp"
	"strings"

	"github.com/jrsteele09/go-token-engine/clients"
	"github.com/jrsteele09/go-token-engine/oauth2"
)

// challengePattern is the unreserved character set RFC 7636 allows for
// code challenges and verifiers.
var challengePattern = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)

// Validator centralizes the request validation rules for the authorization
// endpoint.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCodeChallenge enforces the PKCE rules at issuance time: clients
// that require PKCE must supply a challenge, only S256 is accepted (plain
// is rejected by name), and the challenge itself must look like a
// base64url-encoded SHA-256 digest.
func (v *Validator) ValidateCodeChallenge(client *clients.Client, req *oauth2.AuthorizationRequest, alwaysRequired bool) *oauth2.Error {
	required := alwaysRequired || client.IsPublic()

	if req.CodeChallenge == "" {
		if required {
			return oauth2.NewError(oauth2.ErrInvalidRequest, "code_challenge is required for this client")
		}
		if req.CodeChallengeMethod != "" {
			return oauth2.NewError(oauth2.ErrInvalidRequest, "code_challenge_method was sent without a code_challenge")
		}
		return nil
	}

	switch req.CodeChallengeMethod {
	case oauth2.CodeMethodTypeS256, "":
		// S256 is the default when the method is omitted
	case oauth2.CodeMethodTypePlain:
		return oauth2.NewError(oauth2.ErrInvalidRequest, "code_challenge_method plain is not supported")
	default:
		return oauth2.NewError(oauth2.ErrInvalidRequest, "code_challenge_method must be S256")
	}

	if l := len(req.CodeChallenge); l < 43 || l > 128 {
		return oauth2.NewError(oauth2.ErrInvalidRequest, "code_challenge length must be between 43 and 128 characters")
	}
	if !challengePattern.MatchString(req.CodeChallenge) {
		return oauth2.NewError(oauth2.ErrInvalidRequest, "code_challenge contains invalid characters")
	}
	return nil
}

// ValidateRedirectURI validates redirect URI format before it is checked
// against the client's registered list.
func ValidateRedirectURI(uri string) *oauth2.Error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return oauth2.NewError(oauth2.ErrInvalidRequest, "redirect_uri is required")
	}

	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		return oauth2.NewError(oauth2.ErrInvalidRequest, "redirect_uri must use http or https scheme")
	}

	if strings.Contains(uri, "#") {
		return oauth2.NewError(oauth2.ErrInvalidRequest, "redirect_uri must not contain fragments")
	}

	return nil
}

// ValidateResponseMode rejects response modes outside the supported set.
// Absent means query, the default for the code flow.
func ValidateResponseMode(mode oauth2.ResponseModeType) *oauth2.Error {
	switch mode {
	case "", oauth2.QueryResponseMode, oauth2.FragmentResponseMode, oauth2.FormPostResponseMode:
		return nil
	}
	return oauth2.NewError(oauth2.ErrInvalidRequest, "response_mode %q is not supported", mode)
}

// ValidateState validates the OAuth state parameter. State is optional,
// but when present it should be usable for CSRF protection.
func ValidateState(state string) *oauth2.Error {
	if state == "" {
		return nil
	}

	if len(state) < 8 {
		return oauth2.NewError(oauth2.ErrInvalidRequest, "state parameter should be at least 8 characters")
	}

	if strings.TrimSpace(state) != state {
		return oauth2.NewError(oauth2.ErrInvalidRequest, "state parameter must not contain leading or trailing whitespace")
	}

	return nil
}
