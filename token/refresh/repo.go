package refresh

import (
	"errors"
	"time"
)

// Kind labels who a refresh token belongs to.
const (
	KindUser    = "user"
	KindService = "service"
)

var (
	ErrNotFound = errors.New("refresh token not found")
	ErrUsed     = errors.New("refresh token already used")
	ErrRevoked  = errors.New("refresh token revoked")
)

// StoredRefreshToken is the server-side record of a refresh token. The client
// only ever holds the random secret; the server stores its SHA-256 hash plus
// the metadata needed for rotation and reuse detection.
type StoredRefreshToken struct {
	ID              string    // jti of this record
	TokenHash       string    // hex SHA-256 of the secret sent to the client
	FamilyID        string    // constant across a rotation chain
	Kind            string    // KindUser or KindService
	ClientID        string
	PrincipalID     string
	Scope           []string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	FamilyExpiresAt time.Time // rotation never extends a session past this
	Used            bool
	UsedAt          time.Time
	ReplacedByID    string // jti of the successor once rotated
	Revoked         bool
	RevokedAt       time.Time

	// AccessTokenID / AccessTokenExpiresAt identify the access token minted
	// alongside this refresh token, so a family revocation can denylist the
	// outstanding access tokens too.
	AccessTokenID        string
	AccessTokenExpiresAt time.Time
}

func (rt *StoredRefreshToken) Expired(now time.Time) bool {
	return now.After(rt.ExpiresAt)
}

// Repo manages server-side refresh token records, keyed by token hash.
//
// MarkUsed is the rotation gate and must be atomic: with concurrent
// presenters of the same token exactly one call succeeds, the rest observe
// ErrUsed. SQL implementations should guard the update with a
// used = false AND revoked = false predicate.
type Repo interface {
	Upsert(rt *StoredRefreshToken) error
	GetByHash(tokenHash string) (*StoredRefreshToken, error)

	// MarkUsed atomically marks the record used and links its successor.
	MarkUsed(id, replacedByID string, now time.Time) error

	// Revoke marks a single record revoked. Revoking an already revoked
	// record is a no-op.
	Revoke(id string, now time.Time) error

	// RevokeFamily revokes every record in a rotation chain and returns
	// them, so callers can denylist the associated access tokens.
	RevokeFamily(familyID string, now time.Time) ([]*StoredRefreshToken, error)

	// RevokeAllForPrincipal revokes every family belonging to a principal.
	RevokeAllForPrincipal(principalID string, now time.Time) ([]*StoredRefreshToken, error)

	List(offset, limit int) ([]*StoredRefreshToken, error)
	DeleteExpired(now time.Time) (int, error)
}
