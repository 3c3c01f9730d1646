package refreshrepofake

import (
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-engine/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.StoredRefreshToken // keyed by record ID
	hashes map[string]string                      // token hash to record ID
	lock   sync.Mutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.StoredRefreshToken),
		hashes: make(map[string]string),
	}
}

func (tr *FakeRefreshTokenRepo) Upsert(rt *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	copied := *rt
	tr.tokens[rt.ID] = &copied
	tr.hashes[rt.TokenHash] = rt.ID
	return nil
}

func (tr *FakeRefreshTokenRepo) GetByHash(tokenHash string) (*refresh.StoredRefreshToken, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	id, ok := tr.hashes[tokenHash]
	if !ok {
		return nil, refresh.ErrNotFound
	}
	copied := *tr.tokens[id]
	return &copied, nil
}

// MarkUsed does the check-and-set under one lock so concurrent presenters of
// the same token serialize: the first call claims it, later calls observe
// ErrUsed and run reuse handling.
func (tr *FakeRefreshTokenRepo) MarkUsed(id, replacedByID string, now time.Time) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[id]
	if !ok {
		return refresh.ErrNotFound
	}
	if rt.Revoked {
		return refresh.ErrRevoked
	}
	if rt.Used {
		return refresh.ErrUsed
	}
	rt.Used = true
	rt.UsedAt = now
	rt.ReplacedByID = replacedByID
	return nil
}

func (tr *FakeRefreshTokenRepo) Revoke(id string, now time.Time) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[id]
	if !ok {
		return refresh.ErrNotFound
	}
	if !rt.Revoked {
		rt.Revoked = true
		rt.RevokedAt = now
	}
	return nil
}

func (tr *FakeRefreshTokenRepo) RevokeFamily(familyID string, now time.Time) ([]*refresh.StoredRefreshToken, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var revoked []*refresh.StoredRefreshToken
	for _, rt := range tr.tokens {
		if rt.FamilyID != familyID {
			continue
		}
		if !rt.Revoked {
			rt.Revoked = true
			rt.RevokedAt = now
		}
		copied := *rt
		revoked = append(revoked, &copied)
	}
	return revoked, nil
}

func (tr *FakeRefreshTokenRepo) RevokeAllForPrincipal(principalID string, now time.Time) ([]*refresh.StoredRefreshToken, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var revoked []*refresh.StoredRefreshToken
	for _, rt := range tr.tokens {
		if rt.PrincipalID != principalID {
			continue
		}
		if !rt.Revoked {
			rt.Revoked = true
			rt.RevokedAt = now
		}
		copied := *rt
		revoked = append(revoked, &copied)
	}
	return revoked, nil
}

func (tr *FakeRefreshTokenRepo) List(offset, limit int) ([]*refresh.StoredRefreshToken, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tokens := make([]*refresh.StoredRefreshToken, 0, len(tr.tokens))
	for _, v := range tr.tokens {
		copied := *v
		tokens = append(tokens, &copied)
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].IssuedAt.Before(tokens[j].IssuedAt)
	})

	if offset >= len(tokens) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(tokens) {
		end = len(tokens)
	}
	return tokens[offset:end], nil
}

func (tr *FakeRefreshTokenRepo) DeleteExpired(now time.Time) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var removed int
	for id, rt := range tr.tokens {
		if rt.Expired(now) {
			delete(tr.hashes, rt.TokenHash)
			delete(tr.tokens, id)
			removed++
		}
	}
	return removed, nil
}
