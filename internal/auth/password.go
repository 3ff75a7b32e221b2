// Package auth provides the credential and session primitives: bcrypt
// password hashing, signed session tokens, password-reset tokens, and the
// HTTP middleware that maps a request to an authenticated identity.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, which is the point — it makes offline
// brute-force expensive. It also generates a random salt per hash and embeds
// it in the output, so no separate salt column is needed and two users with
// the same password get different hashes. Fast digests (MD5, SHA-1, SHA-256)
// are never acceptable for password or token material.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor for production use: roughly 250ms
// per hash on current server hardware. Tests inject bcrypt.MinCost instead.
const DefaultCost = 12

// PasswordService hashes and verifies passwords.
//
// It's a struct rather than free functions so the cost can be injected —
// production uses DefaultCost, tests use the minimum to stay fast.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given bcrypt cost.
// Costs below bcrypt's minimum are raised to DefaultCost so a zero-value
// config can't silently weaken hashing.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. The output is self-contained
// (version, cost, salt, digest) and is stored directly in the users table.
//
// bcrypt silently truncates inputs beyond 72 bytes; we reject them instead
// so "myLongPassphrase..." and its 72-byte prefix can't collide.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("auth: password must not be empty")
	}
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash.
//
// It never panics and never errors: a malformed or empty hash simply
// verifies false. bcrypt's comparison is constant-time with respect to the
// password bytes, so response timing doesn't leak prefix matches.
func (p *PasswordService) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
