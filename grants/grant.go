package grants

import "time"

// Grant is a single-use authorization code issued by the authorize endpoint
// and redeemed once at the token endpoint.
type Grant struct {
	Code          string    `json:"code"`
	ClientID      string    `json:"clientId"`
	PrincipalID   string    `json:"principalId"`
	RedirectURI   string    `json:"redirectUri"`
	Scope         []string  `json:"scope"`
	CodeChallenge string    `json:"codeChallenge,omitempty"` // S256, base64url without padding
	Nonce         string    `json:"nonce,omitempty"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Used          bool      `json:"used"`
}

func (g *Grant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}
