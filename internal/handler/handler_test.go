package handler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/karim/bloghub/internal/auth"
	"github.com/karim/bloghub/internal/handler"
	sqliteRepo "github.com/karim/bloghub/internal/repository/sqlite"
	"github.com/karim/bloghub/internal/service"
)

// testEnv wires real services against an in-memory database so handler
// tests exercise the same code paths as production, minus the listener.
type testEnv struct {
	router *chi.Mux
	db     *sqliteRepo.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	// MinCost keeps the bcrypt work factor out of the test runtime.
	passwords := auth.NewPasswordService(bcrypt.MinCost)
	resets := auth.NewResetTokenService(time.Hour)

	users := db.Users()
	authService := service.NewAuthService(users, passwords, tokens, resets, logger)
	postService := service.NewPostService(db.Posts(), db.Comments(), logger)
	commentService := service.NewCommentService(db.Comments(), logger)

	authHandler := handler.NewAuthHandler(authService, time.Hour, logger)
	postHandler := handler.NewPostHandler(postService, commentService, logger)
	adminHandler := handler.NewAdminHandler(authService, logger)
	systemHandler := handler.NewSystemHandler(db, db, logger)

	requireAuth := auth.RequireAuth(tokens)
	requireAdmin := auth.RequireAdmin(users)

	router := chi.NewRouter()
	router.Get("/health", systemHandler.HandleHealth)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.Post("/reset-password", authHandler.HandleResetPassword)
			r.Post("/change-password", authHandler.HandleChangePassword)
			r.Get("/profile/{username}", authHandler.HandleProfile)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", authHandler.HandleMe)
			})
		})
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.HandleList)
			r.Get("/search", postHandler.HandleSearch)
			r.Get("/slug/{slug}", postHandler.HandleGetBySlug)
			r.Get("/{id}", postHandler.HandleGet)
			r.Get("/{id}/comments", postHandler.HandleListComments)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", postHandler.HandleCreate)
				r.Patch("/{id}", postHandler.HandleUpdate)
				r.Post("/{id}/publish", postHandler.HandlePublish)
				r.Post("/{id}/comments", postHandler.HandleAddComment)
			})
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireAdmin)
			r.Get("/users", adminHandler.HandleListUsers)
			r.Post("/users/{id}/promote", adminHandler.HandlePromote)
			r.Post("/users/{id}/deactivate", adminHandler.HandleDeactivate)
			r.Get("/stats", systemHandler.HandleStats)
		})
	})

	return &testEnv{router: router, db: db}
}

// do sends a request through the router. body may be nil; session may be nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, session *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != nil {
		req.AddCookie(session)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// register creates an account and returns its session cookie.
func (e *testEnv) register(t *testing.T, username string) *http.Cookie {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct horse battery",
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	return e.login(t, username, "correct horse battery")
}

func (e *testEnv) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	t.Fatal("login response did not set a session cookie")
	return nil
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "a strong password",
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	body := decodeBody(t, rr)
	assert.Equal(t, "alice", body["username"])
	assert.NotZero(t, body["userId"])

	cookie := env.login(t, "alice", "a strong password")
	assert.True(t, cookie.HttpOnly, "session cookie must be HttpOnly")
	assert.NotEmpty(t, cookie.Value)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "a strong password",
	}, nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "conflict", decodeBody(t, rr)["error"])
}

func TestRegister_BadBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"username":`))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "not the password",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/auth/logout", nil, session)
	require.Equal(t, http.StatusOK, rr.Code)

	var cleared *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	rr := env.do(t, http.MethodGet, "/api/auth/profile/alice", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "alice", body["username"])
	// The password hash must never appear in a response body.
	_, leaked := body["passwordHash"]
	assert.False(t, leaked)

	rr = env.do(t, http.MethodGet, "/api/auth/profile/nobody", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMe_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "alice")

	rr := env.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/auth/me", nil, session)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", decodeBody(t, rr)["username"])
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/posts/", map[string]any{
		"title":   "Hello World!",
		"content": "first post",
		"tags":    []string{"go", "web"},
	}, session)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	body := decodeBody(t, rr)
	assert.Equal(t, "hello-world", body["slug"])
	assert.Equal(t, false, body["published"])
}

func TestCreatePost_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/posts/", map[string]any{
		"title":   "Hello",
		"content": "body",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPublishAndList(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/posts/", map[string]any{
		"title":   "Draft",
		"content": "body",
	}, session)
	require.Equal(t, http.StatusCreated, rr.Code)
	postID := int64(decodeBody(t, rr)["id"].(float64))

	// Drafts stay out of the public listing.
	rr = env.do(t, http.MethodGet, "/api/posts/", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody(t, rr)["posts"])

	rr = env.do(t, http.MethodPost, "/api/posts/"+itoa(postID)+"/publish", nil, session)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/posts/", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["posts"], 1)
}

func TestUpdatePost_OnlyOwner(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	mallory := env.register(t, "mallory")

	rr := env.do(t, http.MethodPost, "/api/posts/", map[string]any{
		"title":   "Mine",
		"content": "body",
	}, alice)
	require.Equal(t, http.StatusCreated, rr.Code)
	postID := int64(decodeBody(t, rr)["id"].(float64))

	rr = env.do(t, http.MethodPatch, "/api/posts/"+itoa(postID), map[string]any{
		"title": "Stolen",
	}, mallory)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodPatch, "/api/posts/"+itoa(postID), map[string]any{
		"content": "edited",
	}, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Mine", body["title"])
	assert.Equal(t, "edited", body["content"])
}

func TestGetPost_BadIDAndMissing(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/posts/banana", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/posts/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/posts/", map[string]any{
		"title":   "Discussable",
		"content": "body",
	}, session)
	require.Equal(t, http.StatusCreated, rr.Code)
	postID := int64(decodeBody(t, rr)["id"].(float64))

	rr = env.do(t, http.MethodPost, "/api/posts/"+itoa(postID)+"/comments", map[string]string{
		"content": "nice post",
	}, session)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/posts/"+itoa(postID)+"/comments", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	comments := decodeBody(t, rr)["comments"].([]any)
	require.Len(t, comments, 1)
	first := comments[0].(map[string]any)
	assert.Equal(t, "nice post", first["content"])
	assert.Equal(t, "alice", first["authorName"])
}

func TestSearch_ByKeywordAndTag(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "alice")

	for _, p := range []struct {
		title string
		tags  []string
	}{
		{"Go Concurrency Patterns", []string{"go"}},
		{"Cooking With Cast Iron", []string{"food"}},
	} {
		rr := env.do(t, http.MethodPost, "/api/posts/", map[string]any{
			"title":   p.title,
			"content": "body",
			"tags":    p.tags,
		}, session)
		require.Equal(t, http.StatusCreated, rr.Code)
		postID := int64(decodeBody(t, rr)["id"].(float64))
		rr = env.do(t, http.MethodPost, "/api/posts/"+itoa(postID)+"/publish", nil, session)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/posts/search?q=concurrency", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["posts"], 1)

	rr = env.do(t, http.MethodGet, "/api/posts/search?tags=food", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	posts := decodeBody(t, rr)["posts"].([]any)
	require.Len(t, posts, 1)
	assert.Equal(t, "Cooking With Cast Iron", posts[0].(map[string]any)["title"])
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email": "alice@example.com",
	}, nil)
	require.Equal(t, http.StatusAccepted, rr.Code)

	// The token travels out of band in production; the test reads it from
	// the store the way the mail sender would.
	user, err := env.db.Users().GetByEmail(t.Context(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, user.ResetToken)

	rr = env.do(t, http.MethodPost, "/api/auth/change-password", map[string]string{
		"email":       "alice@example.com",
		"token":       *user.ResetToken,
		"newPassword": "a brand new password",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	env.login(t, "alice", "a brand new password")

	// The token is single use.
	rr = env.do(t, http.MethodPost, "/api/auth/change-password", map[string]string{
		"email":       "alice@example.com",
		"token":       *user.ResetToken,
		"newPassword": "yet another password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPasswordReset_UnknownEmailLooksTheSame(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email": "ghost@example.com",
	}, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "alice")

	rr := env.do(t, http.MethodGet, "/api/admin/users", nil, session)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	user, err := env.db.Users().GetByUsername(t.Context(), "alice")
	require.NoError(t, err)
	require.NoError(t, env.db.Users().SetAdmin(t.Context(), user.ID, true))

	rr = env.do(t, http.MethodGet, "/api/admin/users", nil, session)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["users"], 1)
}

func TestAdmin_PromoteAndDeactivate(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "root")
	env.register(t, "bob")

	rootUser, err := env.db.Users().GetByUsername(t.Context(), "root")
	require.NoError(t, err)
	require.NoError(t, env.db.Users().SetAdmin(t.Context(), rootUser.ID, true))

	bob, err := env.db.Users().GetByUsername(t.Context(), "bob")
	require.NoError(t, err)

	rr := env.do(t, http.MethodPost, "/api/admin/users/"+itoa(bob.ID)+"/promote", nil, admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	isAdmin, err := env.db.Users().IsAdmin(t.Context(), bob.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	rr = env.do(t, http.MethodPost, "/api/admin/users/"+itoa(bob.ID)+"/deactivate", nil, admin)
	require.Equal(t, http.StatusOK, rr.Code)

	// Deactivated accounts can't log in anymore.
	lr := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "bob",
		"password": "correct horse battery",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, lr.Code)
}

func TestStatsAndHealth(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "alice")

	rr := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])

	user, err := env.db.Users().GetByUsername(t.Context(), "alice")
	require.NoError(t, err)
	require.NoError(t, env.db.Users().SetAdmin(t.Context(), user.ID, true))

	pr := env.do(t, http.MethodPost, "/api/posts/", map[string]any{
		"title":   "Counted",
		"content": "body",
	}, session)
	require.Equal(t, http.StatusCreated, pr.Code)

	rr = env.do(t, http.MethodGet, "/api/admin/stats", nil, session)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, float64(1), body["users"])
	assert.Equal(t, float64(1), body["posts"])
	assert.Equal(t, float64(0), body["comments"])
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
