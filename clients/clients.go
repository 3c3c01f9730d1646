package clients

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidScope       = errors.New("scope not allowed for client")
	ErrInvalidRedirectURI = errors.New("redirect URI not registered for client")
	ErrInvalidSecret      = errors.New("invalid client secret")
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

type Client struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         ClientType `json:"type"` // public or confidential
	SecretHash   string     `json:"secretHash,omitempty"`
	RedirectURIs []string   `json:"redirectURIs"`
	Scopes       []string   `json:"scopes"`             // Allowed scopes for this client
	Disabled     bool       `json:"disabled,omitempty"` // Disabled clients cannot start or continue flows
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requested []string) error {
	for _, scope := range requested {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

// ValidateRedirectURI checks the URI against the registered list. Matching is
// exact, no prefix or wildcard rules.
func (c *Client) ValidateRedirectURI(uri string) error {
	for _, registered := range c.RedirectURIs {
		if uri == registered {
			return nil
		}
	}
	return ErrInvalidRedirectURI
}

// CheckSecret verifies a presented client_secret against the stored hash.
// Public clients have no secret and always fail this check.
func (c *Client) CheckSecret(secret string) error {
	if c.IsPublic() || c.SecretHash == "" {
		return ErrInvalidSecret
	}
	if !CheckSecretHash(secret, c.SecretHash) {
		return ErrInvalidSecret
	}
	return nil
}

// HashSecret hashes a client secret for storage
func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckSecretHash checks a secret against a stored bcrypt hash
func CheckSecretHash(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}
