package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-token-engine/signature"
)

// MintParams carries everything needed to create a refresh token record.
type MintParams struct {
	// ID pre-assigns the record identifier. Rotation needs the successor's
	// ID before the successor row exists, so the used-marker can link to it.
	ID string

	Kind        string
	ClientID    string
	PrincipalID string
	Scope       []string

	// FamilyID continues an existing rotation chain; empty starts a new one.
	FamilyID string

	// FamilyExpiresAt caps rotation for an existing chain. Zero means the
	// new token's own expiry becomes the family horizon.
	FamilyExpiresAt time.Time

	TokenLength int
	TTL         time.Duration
	Now         time.Time

	AccessTokenID        string
	AccessTokenExpiresAt time.Time
}

// Mint generates a fresh refresh token secret and its stored record. The raw
// secret is returned once for the response body; only its hash is kept.
func Mint(p MintParams) (string, *StoredRefreshToken, error) {
	if p.TokenLength <= 0 {
		p.TokenLength = 32
	}

	tokenBytes := make([]byte, p.TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, errors.Wrap(err, "[refresh.Mint] generating random bytes")
	}
	secret := hex.EncodeToString(tokenBytes)

	expiresAt := p.Now.Add(p.TTL)
	familyExpiresAt := p.FamilyExpiresAt
	if familyExpiresAt.IsZero() {
		familyExpiresAt = expiresAt
	}
	if expiresAt.After(familyExpiresAt) {
		expiresAt = familyExpiresAt
	}

	familyID := p.FamilyID
	if familyID == "" {
		familyID = uuid.New().String()
	}

	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}

	rt := &StoredRefreshToken{
		ID:                   id,
		TokenHash:            signature.HashToken(secret),
		FamilyID:             familyID,
		Kind:                 p.Kind,
		ClientID:             p.ClientID,
		PrincipalID:          p.PrincipalID,
		Scope:                p.Scope,
		IssuedAt:             p.Now,
		ExpiresAt:            expiresAt,
		FamilyExpiresAt:      familyExpiresAt,
		AccessTokenID:        p.AccessTokenID,
		AccessTokenExpiresAt: p.AccessTokenExpiresAt,
	}
	return secret, rt, nil
}
