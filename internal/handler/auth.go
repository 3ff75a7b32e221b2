// Package handler contains the HTTP layer: parse the request, call a
// service, serialize the result. No business rules and no SQL live here.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/auth"
	"github.com/karim/bloghub/internal/service"
	"github.com/karim/bloghub/internal/validation"
)

// AuthHandler serves registration, login, logout, password reset, and
// profile lookup.
type AuthHandler struct {
	authService *service.AuthService
	tokenTTL    time.Duration
	logger      *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Check(req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"userId":   user.ID,
		"username": user.Username,
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin authenticates and sets the session cookie.
//
// HTTP: POST /auth/login
//
// The token goes in an HttpOnly cookie: page scripts can't read it, so a
// script injection can't exfiltrate the session.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Check(req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.authService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.Token, h.tokenTTL))

	writeJSON(w, http.StatusOK, map[string]any{
		"user": result.User,
	})
}

// HandleLogout clears the session cookie. The * → Anonymous transition:
// after this, the browser holds nothing that authenticates it.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -time.Hour))
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleResetPassword starts the password-reset flow.
//
// HTTP: POST /auth/reset-password
//
// The response is identical whether or not the email exists — 202 either
// way. The token travels out of band, never in this response.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Check(req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the email exists, reset instructions have been sent",
	})
}

type changePasswordRequest struct {
	Email       string `json:"email"       validate:"required,email"`
	Token       string `json:"token"       validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// HandleChangePassword redeems a reset token.
//
// HTTP: POST /auth/change-password
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Check(req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authService.ConsumePasswordReset(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// HandleProfile returns a user's public profile.
//
// HTTP: GET /auth/profile/{username}
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Profile(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	// model.User hides PasswordHash and reset fields via struct tags, so
	// serializing the model directly is safe.
	writeJSON(w, http.StatusOK, user)
}

// HandleMe returns the account behind the current session.
//
// HTTP: GET /auth/me (requires auth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.InvalidCredentials())
		return
	}
	user, err := h.authService.Profile(r.Context(), id.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) sessionCookie(value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
