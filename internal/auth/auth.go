// Package auth verifies the shared upload secret. The comparison is
// constant time and verification fails closed when no secret is
// configured.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Authenticator holds the configured secret. All state is read-only
// configuration; Verify has no side effects.
type Authenticator struct {
	secretDigest []byte // sha256 of the plaintext secret, nil when unset
	bcryptHash   []byte // bcrypt hash of the secret, preferred when set
}

// New builds an Authenticator from a plaintext secret, a bcrypt hash
// of the secret, or neither. When both are provided the hash wins.
func New(secret, bcryptHash string) *Authenticator {
	a := &Authenticator{}
	if bcryptHash != "" {
		a.bcryptHash = []byte(bcryptHash)
		return a
	}
	if secret != "" {
		d := sha256.Sum256([]byte(secret))
		a.secretDigest = d[:]
	}
	return a
}

// Configured reports whether any secret is set. Used at startup to
// refuse to serve an unauthenticated store.
func (a *Authenticator) Configured() bool {
	return len(a.secretDigest) > 0 || len(a.bcryptHash) > 0
}

// zeroDigest is compared against when no secret is configured, so the
// unconfigured path performs the same work as a mismatch and the two
// are indistinguishable by timing.
var zeroDigest [sha256.Size]byte

// Verify reports whether submitted matches the configured secret.
// Comparing SHA-256 digests with hmac.Equal keeps the running time
// independent of where the first mismatching byte occurs and of the
// secret's length.
func (a *Authenticator) Verify(submitted string) bool {
	if len(a.bcryptHash) > 0 {
		return bcrypt.CompareHashAndPassword(a.bcryptHash, []byte(submitted)) == nil
	}

	got := sha256.Sum256([]byte(submitted))
	if len(a.secretDigest) == 0 {
		hmac.Equal(got[:], zeroDigest[:])
		return false
	}
	return hmac.Equal(got[:], a.secretDigest)
}
