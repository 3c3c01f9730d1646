package grants

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("authorization grant not found")
	ErrConsumed = errors.New("authorization grant already used")
	ErrExpired  = errors.New("authorization grant expired")
)

// Repo stores issued authorization grants. Consume is the only redemption
// path and must be atomic: given N concurrent calls for the same code,
// exactly one succeeds and the rest observe ErrConsumed. SQL implementations
// should guard the update with a used = false predicate.
type Repo interface {
	Create(grant *Grant) error

	// Get returns the grant without changing its state, so callers can run
	// client and PKCE checks before committing to the one-shot Consume.
	Get(code string) (*Grant, error)

	// Consume marks the grant used and returns it. Unknown codes fail with
	// ErrNotFound, expired grants with ErrExpired, spent grants with
	// ErrConsumed.
	Consume(code string, now time.Time) (*Grant, error)

	List(offset, limit int) ([]*Grant, error)
	Delete(code string) error
	DeleteExpired(now time.Time) (int, error)
}
