package token

import (
	"errors"
	"time"
)

var ErrRecordNotFound = errors.New("access token record not found")

// AccessTokenRecord tracks an access token issued to a service principal so
// it can be revoked ahead of its natural expiry. User access tokens are
// self-contained and only enter the denylist on explicit revocation.
type AccessTokenRecord struct {
	ID        string // jti
	TokenHash string // hex SHA-256 of the signed token
	ServiceID string
	Scope     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

func (r *AccessTokenRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

type RecordRepo interface {
	Upsert(record *AccessTokenRecord) error
	Get(id string) (*AccessTokenRecord, error)
	GetByHash(tokenHash string) (*AccessTokenRecord, error)

	// Revoke marks a single record revoked. Unknown ids fail with
	// ErrRecordNotFound; revoking twice is a no-op.
	Revoke(id string, now time.Time) error

	// RevokeAllForService marks every live record for the service revoked
	// and returns them, so callers can denylist the jtis.
	RevokeAllForService(serviceID string, now time.Time) ([]*AccessTokenRecord, error)

	DeleteExpired(now time.Time) (int, error)
}
