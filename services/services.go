// Package services authenticates machine callers. A service principal proves
// possession of its shared HMAC key by signing the literal request body; there
// is no browser flow and no client secret. Verified services receive the same
// signed access / opaque refresh pair users do, tagged with the service token
// type.
package services

// ServicePrincipal is the machine analogue of a Client: a fixed identifier, a
// pre-shared key distributed out of band, and an allow-list of requestable
// scopes.
type ServicePrincipal struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Key           []byte   `json:"-"` // shared HMAC key, never serialized
	AllowedScopes []string `json:"allowedScopes"`
	Disabled      bool     `json:"disabled,omitempty"`
}

// HasScope checks if the service is allowed a specific scope
func (p *ServicePrincipal) HasScope(scope string) bool {
	for _, s := range p.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// FilterScopes returns the requested scopes this service may hold. Unknown
// scopes are dropped rather than rejected; an empty request defaults to the
// full allow-list.
func (p *ServicePrincipal) FilterScopes(requested []string) []string {
	if len(requested) == 0 {
		return append([]string(nil), p.AllowedScopes...)
	}
	var filtered []string
	for _, s := range requested {
		if p.HasScope(s) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
