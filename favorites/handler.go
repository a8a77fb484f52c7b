package favorites

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/auth"
)

// Handlers bundles the HTTP handlers for the favorites endpoint.
type Handlers struct {
	service FavoriteService
}

// NewHandlers creates favorite handlers backed by the given service.
func NewHandlers(service FavoriteService) *Handlers {
	return &Handlers{service: service}
}

// HandleToggle returns a handler that toggles the caller's favorite on a
// question.
// @Summary Toggle a favorite
// @Description Favorites the question, or removes the favorite if one exists.
// @Tags favorites
// @Produce json
// @Param questionID path string true "Question ID"
// @Success 200 {object} FavoriteResult
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/questions/{questionID}/favorite [post]
func (h *Handlers) HandleToggle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("authentication required", nil))
			return
		}

		result, err := h.service.Toggle(r.Context(), identity.UserID, chi.URLParam(r, "questionID"))
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(result)
	}
}
