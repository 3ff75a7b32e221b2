package auth

import (
	"time"

	"github.com/google/uuid"
)

// ResetToken is a single-use credential permitting a password change without
// the old password. Issued on reset request, stored server-side next to the
// user row, and cleared atomically when consumed.
type ResetToken struct {
	Value     string
	ExpiresAt time.Time
}

// ResetTokenService issues password-reset tokens.
//
// TOKEN MATERIAL:
// Tokens are random UUIDv4 values, drawn from crypto/rand — 122 bits of
// entropy, unguessable and unrelated to any user attribute. Deriving tokens
// from predictable inputs (timestamp, email, a fast digest of either) would
// let an attacker who knows the account reconstruct the token offline.
type ResetTokenService struct {
	ttl time.Duration
}

// NewResetTokenService creates a service issuing tokens valid for ttl.
func NewResetTokenService(ttl time.Duration) *ResetTokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResetTokenService{ttl: ttl}
}

// Issue returns a fresh token with its expiration. Every token gets an
// expiry — a reset credential that never lapses is a standing backdoor on
// the account.
func (s *ResetTokenService) Issue() ResetToken {
	return ResetToken{
		Value:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.ttl),
	}
}
