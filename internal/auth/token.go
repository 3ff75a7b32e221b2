package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what a validated session token asserts about the caller:
// who they are, nothing more. Deliberately absent: the admin flag. Role is
// re-read from the database on every privileged request, so a stale token
// can never escalate (or retain) privileges the database no longer grants.
type Identity struct {
	UserID   int64
	Username string
}

// TokenService issues and validates signed session tokens (JWT, HS256).
//
// The token is the session: the server stores nothing per session, and the
// HMAC signature is what makes the client-held token trustworthy. A client
// can read its own token but cannot forge or alter one without the secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

const issuer = "bloghub"

// sessionClaims carries the identity inside the JWT. Subject holds the
// user ID (the standard claim for "who this token is about"); the username
// rides along so handlers can log it without a DB round-trip.
type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; config enforces this too, but a second check here keeps the
// invariant local to the code that depends on it.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: signing secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Generate signs a session token for the given identity, valid for the
// service's TTL.
func (s *TokenService) Generate(id Identity) (string, error) {
	now := time.Now()

	c := sessionClaims{
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string, returning the identity it
// asserts. Signature, expiry, issuer, and algorithm are all checked — the
// algorithm restriction prevents an attacker from downgrading to "none" or
// swapping in an asymmetric scheme (algorithm confusion).
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, errors.New("auth: token has no valid subject")
	}

	return Identity{UserID: userID, Username: c.Username}, nil
}
