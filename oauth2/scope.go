package oauth2

import (
	"slices"
	"strings"
)

// ScopeOpenID requests an ID token alongside the access token.
const ScopeOpenID = "openid"

// ParseScope splits a space-delimited scope string into its tokens,
// dropping empty entries.
func ParseScope(s string) []string {
	return strings.Fields(s)
}

// JoinScope renders a scope list back into its wire form.
func JoinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ScopeSubset reports whether every requested scope appears in allowed.
// An empty request is a subset of anything.
func ScopeSubset(requested, allowed []string) bool {
	for _, s := range requested {
		if !slices.Contains(allowed, s) {
			return false
		}
	}
	return true
}

// ContainsScope reports whether scope appears in the list.
func ContainsScope(scopes []string, scope string) bool {
	return slices.Contains(scopes, scope)
}
