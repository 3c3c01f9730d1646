package services

type Repo interface {
	Upsert(principal *ServicePrincipal) error
	Delete(serviceID string) error
	Get(serviceID string) (*ServicePrincipal, error)
	List(offset, limit int) ([]*ServicePrincipal, error)
}
