package auth

import (
	"encoding/json"
	"net/http"

	"github.com/user/queryloop-go/apperror"
)

// Handlers exposes the auth endpoints.
type Handlers struct {
	service *AuthService
}

// NewHandlers creates auth handlers backed by the given service.
func NewHandlers(service *AuthService) *Handlers {
	return &Handlers{service: service}
}

// HandleRegister godoc
// @Summary Register a new user
// @Description Creates an account and its public profile. The display name defaults to the username.
// @Tags auth
// @Accept json
// @Produce json
// @Param registration body RegisterRequest true "Registration data"
// @Success 201 {object} User
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 409 {object} apperror.ErrorResponse
// @Router /auth/register [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		user, err := h.service.Register(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

// HandleLogin godoc
// @Summary Log in
// @Description Authenticates by username or email and returns an access/refresh token pair.
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login credentials"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Router /auth/login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		if req.Login == "" || req.Password == "" {
			WriteError(w, r, apperror.NewBadRequestError("login and password are required", nil))
			return
		}

		resp, err := h.service.Login(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleRefreshToken godoc
// @Summary Refresh the access token
// @Tags auth
// @Accept json
// @Produce json
// @Param refresh body RefreshTokenRequest true "Refresh token"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Router /auth/refresh [post]
func (h *Handlers) HandleRefreshToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RefreshTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		if req.RefreshToken == "" {
			WriteError(w, r, apperror.NewBadRequestError("refresh_token is required", nil))
			return
		}

		resp, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// writeJSON serializes data to the response with the given status.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		}
	}
}

// WriteError converts any error into the standard JSON error response.
// Non-apperror errors become opaque 500s so internals never leak.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("an unexpected error occurred", err)
	}
	writeJSON(w, appErr.StatusCode(), appErr.ToResponse())
}
