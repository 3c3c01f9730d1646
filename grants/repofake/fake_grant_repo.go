package repofake

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-token-engine/grants"
)

var _ grants.Repo = (*FakeGrantRepo)(nil)

// FakeGrantRepo is a thread-safe in-memory implementation of grants.Repo
type FakeGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*grants.Grant
}

func NewFakeGrantRepo() *FakeGrantRepo {
	return &FakeGrantRepo{
		grants: make(map[string]*grants.Grant),
	}
}

func (r *FakeGrantRepo) Create(grant *grants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *grant
	r.grants[grant.Code] = &copied
	return nil
}

func (r *FakeGrantRepo) Get(code string) (*grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	grant, ok := r.grants[code]
	if !ok {
		return nil, grants.ErrNotFound
	}

	copied := *grant
	return &copied, nil
}

// Consume performs the check-and-set under one lock so concurrent redeemers
// of the same code serialize: the first marks the grant used, the rest fail.
func (r *FakeGrantRepo) Consume(code string, now time.Time) (*grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	grant, ok := r.grants[code]
	if !ok {
		return nil, grants.ErrNotFound
	}
	if grant.Expired(now) {
		return nil, grants.ErrExpired
	}
	if grant.Used {
		return nil, grants.ErrConsumed
	}
	grant.Used = true

	copied := *grant
	return &copied, nil
}

func (r *FakeGrantRepo) List(offset, limit int) ([]*grants.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*grants.Grant, 0, len(r.grants))
	for _, grant := range r.grants {
		copied := *grant
		all = append(all, &copied)
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *FakeGrantRepo) Delete(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.grants, code)
	return nil
}

// DeleteExpired removes grants past their expiry, consumed or not. A spent
// grant keeps reporting ErrConsumed until its TTL lapses.
func (r *FakeGrantRepo) DeleteExpired(now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	for code, grant := range r.grants {
		if grant.Expired(now) {
			delete(r.grants, code)
			removed++
		}
	}
	return removed, nil
}
