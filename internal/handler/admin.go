package handler

import (
	"log/slog"
	"net/http"

	"github.com/karim/bloghub/internal/service"
)

// AdminHandler serves the user-management endpoints. Routes mounting these
// handlers sit behind the admin middleware; nothing here rechecks the role.
type AdminHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

func NewAdminHandler(authService *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{authService: authService, logger: logger}
}

// HandleListUsers lists accounts, optionally filtered by role.
//
// HTTP: GET /admin/users?role=admin|user&limit=&offset=
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context(), r.URL.Query().Get("role"), listOptions(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// HandlePromote grants admin to an account.
//
// HTTP: POST /admin/users/{id}/promote
func (h *AdminHandler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.authService.PromoteUser(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user promoted"})
}

// HandleDeactivate soft-disables an account. The row stays so posts and
// comments keep their author; the user just can't log in anymore.
//
// HTTP: POST /admin/users/{id}/deactivate
func (h *AdminHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.authService.DeactivateUser(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deactivated"})
}
