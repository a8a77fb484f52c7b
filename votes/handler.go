package votes

import (
	"encoding/json"
	"net/http"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/auth"
)

// Handlers bundles the HTTP handlers for the votes endpoint.
type Handlers struct {
	service VoteService
}

// NewHandlers creates vote handlers backed by the given service.
func NewHandlers(service VoteService) *Handlers {
	return &Handlers{service: service}
}

// HandleCast returns a handler that casts, flips or retracts a vote.
// @Summary Cast a vote
// @Description Votes on a question or answer. Repeating the same vote retracts it; the opposite vote flips it.
// @Tags votes
// @Accept json
// @Produce json
// @Param request body VoteRequest true "Vote payload"
// @Success 200 {object} VoteResult
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/votes [post]
func (h *Handlers) HandleCast() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("authentication required", nil))
			return
		}

		var req VoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body", err))
			return
		}

		result, err := h.service.Cast(r.Context(), identity.UserID, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(result)
	}
}
