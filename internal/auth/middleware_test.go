package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeRoleChecker lets tests control the answer RequireAdmin gets from the
// database without standing up a real one.
type fakeRoleChecker struct {
	admins map[int64]bool
	err    error
}

func (f *fakeRoleChecker) IsAdmin(_ context.Context, userID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.admins[userID], nil
}

// okHandler records whether the request made it through the middleware chain.
func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithToken(t *testing.T, ts *TokenService, id Identity) *http.Request {
	t.Helper()
	token, err := ts.Generate(id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	return r
}

func TestRequireAuth_NoCookie(t *testing.T) {
	ts := newTestTokenService(t, time.Hour)
	called := false

	h := RequireAuth(ts)(okHandler(&called))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if called {
		t.Error("handler ran despite missing authentication")
	}
}

func TestRequireAuth_ValidToken(t *testing.T) {
	ts := newTestTokenService(t, time.Hour)

	var got Identity
	h := RequireAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestWithToken(t, ts, Identity{UserID: 5, Username: "carol"}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.UserID != 5 || got.Username != "carol" {
		t.Errorf("identity in context = %+v, want UserID 5 / carol", got)
	}
}

func TestRequireAdmin_ChecksDatabaseNotToken(t *testing.T) {
	ts := newTestTokenService(t, time.Hour)
	roles := &fakeRoleChecker{admins: map[int64]bool{1: true}}

	chain := func(next http.Handler) http.Handler {
		return RequireAuth(ts)(RequireAdmin(roles)(next))
	}

	// User 1 is an admin per the role source: allowed.
	called := false
	w := httptest.NewRecorder()
	chain(okHandler(&called)).ServeHTTP(w, requestWithToken(t, ts, Identity{UserID: 1, Username: "root"}))
	if w.Code != http.StatusOK || !called {
		t.Errorf("admin request: status = %d, called = %v", w.Code, called)
	}

	// User 2 has a perfectly valid session but is not an admin: 403.
	called = false
	w = httptest.NewRecorder()
	chain(okHandler(&called)).ServeHTTP(w, requestWithToken(t, ts, Identity{UserID: 2, Username: "peon"}))
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin request: status = %d, want 403", w.Code)
	}
	if called {
		t.Error("handler ran for a non-admin")
	}
}

func TestRequireAdmin_RoleSourceFailure(t *testing.T) {
	ts := newTestTokenService(t, time.Hour)
	roles := &fakeRoleChecker{err: errors.New("db down")}

	called := false
	h := RequireAuth(ts)(RequireAdmin(roles)(okHandler(&called)))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestWithToken(t, ts, Identity{UserID: 1, Username: "root"}))

	// Fail closed: if we can't verify the role, we don't grant it.
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if called {
		t.Error("handler ran although the role check failed")
	}
}

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	ts := newTestTokenService(t, time.Hour)

	var anonymous bool
	h := OptionalAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := IdentityFromContext(r.Context())
		anonymous = !ok
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !anonymous {
		t.Error("request without a token should be anonymous")
	}
}
