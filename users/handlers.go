package users

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/auth"
)

// Handlers bundles the HTTP handlers for the users endpoints.
type Handlers struct {
	service UserService
}

// NewHandlers creates user handlers backed by the given service.
func NewHandlers(service UserService) *Handlers {
	return &Handlers{service: service}
}

// HandleGetMe returns a handler that fetches the caller's own profile.
// @Summary Get own profile
// @Tags users
// @Produce json
// @Success 200 {object} Profile
// @Failure 401 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /users/me [get]
func (h *Handlers) HandleGetMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("authentication required", nil))
			return
		}

		profile, err := h.service.GetProfile(r.Context(), identity.UserID)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// HandleUpdateMe returns a handler that edits the caller's own profile.
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "Fields to update"
// @Success 200 {object} Profile
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /users/me [patch]
func (h *Handlers) HandleUpdateMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("authentication required", nil))
			return
		}

		var req UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body", err))
			return
		}

		profile, err := h.service.UpdateProfile(r.Context(), identity.UserID, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// HandleGetByUsername returns a handler that fetches a public profile.
// @Summary Get a user's public profile
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} Profile
// @Failure 404 {object} apperror.ErrorResponse
// @Router /users/{username} [get]
func (h *Handlers) HandleGetByUsername() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := h.service.GetProfileByUsername(r.Context(), chi.URLParam(r, "username"))
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
