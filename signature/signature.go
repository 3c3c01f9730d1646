// Package signature holds the low-level cryptographic operations shared by the
// token engine: HMAC-SHA256 request signing, at-rest token hashing, PKCE
// verification, and timestamp tolerance checks. All comparisons of secret
// material are constant-time.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

// Sign computes the HMAC-SHA256 of payload under key.
func Sign(key, payload []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// Verify recomputes the HMAC of payload and compares it against sig in
// constant time.
func Verify(key, payload, sig []byte) bool {
	expected := Sign(key, payload)
	return hmac.Equal(expected, sig)
}

// HashToken returns the hex-encoded SHA-256 of a token secret. Refresh and
// service token secrets are stored only in this form.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifyPKCE checks a code_verifier against an S256 code_challenge:
// base64url(sha256(verifier)) without padding. The plain method is not
// supported.
func VerifyPKCE(verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	hash := sha256.Sum256([]byte(verifier))
	computed := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// WithinTolerance reports whether ts is no further than tol from now, in
// either direction.
func WithinTolerance(ts, now time.Time, tol time.Duration) bool {
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tol
}

// RandomToken returns n random bytes as an unpadded base64url string.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[RandomToken] reading entropy")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
