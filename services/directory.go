package services

import (
	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/token"
)

var _ token.ServiceDirectory = (*Directory)(nil)

// Directory adapts the service registry to the lookup the token engine runs
// when a refresh token arrives bearing a service principal's client_id.
type Directory struct {
	repo Repo
}

func NewDirectory(repo Repo) *Directory {
	return &Directory{repo: repo}
}

// Active reports whether id names a known, enabled service principal.
func (d *Directory) Active(id string) (bool, error) {
	principal, err := d.repo.Get(id)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "[Directory.Active] looking up service %q", id)
	}
	return !principal.Disabled, nil
}
