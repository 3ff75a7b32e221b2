package auth

import (
	"context"
	"net/http"
)

// contextKey is unexported so no other package can read or shadow the
// identity stored in a request context.
type contextKey struct{}

var identityKey contextKey

// SessionCookie is the name of the HttpOnly cookie carrying the session
// token. HttpOnly keeps it out of reach of page scripts (XSS can't steal
// what it can't read).
const SessionCookie = "token"

// RoleChecker answers "is this user an admin, right now?". The sqlite user
// repository implements it; the middleware depends only on the interface.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// RequireAuth enforces authentication. It reads the session cookie,
// validates the token, and stores the Identity in the request context. A
// missing or invalid token ends the request with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identityFromRequest(r, tokens)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin enforces admin privilege. It must be mounted inside
// RequireAuth.
//
// The admin flag is NOT trusted from the token. It is re-read from the
// database on every privileged request, so demoting a user takes effect on
// their very next request — a live session cannot coast on a role it no
// longer holds.
func RequireAdmin(roles RoleChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}

			isAdmin, err := roles.IsAdmin(r.Context(), id.UserID)
			if err != nil {
				http.Error(w, `{"error":"storage","message":"could not verify privileges"}`, http.StatusInternalServerError)
				return
			}
			if !isAdmin {
				http.Error(w, `{"error":"forbidden","message":"admin privileges required"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuth extracts the identity if a valid token is present but never
// blocks the request. Public read routes use it so logged-in readers can be
// recognized without requiring login.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := identityFromRequest(r, tokens); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), identityKey, id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext returns the authenticated identity, or ok=false for
// an anonymous request.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID > 0
}

func identityFromRequest(r *http.Request, tokens *TokenService) (Identity, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return Identity{}, err
	}
	return tokens.Validate(cookie.Value)
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, `{"error":"authentication","message":"valid authentication required"}`, http.StatusUnauthorized)
}
