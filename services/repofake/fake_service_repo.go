package servicerepofake

import (
	"sort"
	"sync"

	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/services"
)

var _ services.Repo = (*FakeServiceRepo)(nil)

type FakeServiceRepo struct {
	principals map[string]*services.ServicePrincipal
	lock       sync.RWMutex
}

func NewFakeServiceRepo() *FakeServiceRepo {
	return &FakeServiceRepo{
		principals: make(map[string]*services.ServicePrincipal),
	}
}

func (r *FakeServiceRepo) Upsert(principal *services.ServicePrincipal) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.principals[principal.ID] = principal
	return nil
}

func (r *FakeServiceRepo) Delete(serviceID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.principals, serviceID)
	return nil
}

func (r *FakeServiceRepo) Get(serviceID string) (*services.ServicePrincipal, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	principal, ok := r.principals[serviceID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return principal, nil
}

func (r *FakeServiceRepo) List(offset, limit int) ([]*services.ServicePrincipal, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	all := make([]*services.ServicePrincipal, 0, len(r.principals))
	for _, v := range r.principals {
		all = append(all, v)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
