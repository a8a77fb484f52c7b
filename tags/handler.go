package tags

import (
	"encoding/json"
	"net/http"

	"github.com/user/queryloop-go/auth"
)

// Handlers bundles the HTTP handlers for the tags endpoint.
type Handlers struct {
	service TagService
}

// NewHandlers creates tag handlers backed by the given service.
func NewHandlers(service TagService) *Handlers {
	return &Handlers{service: service}
}

// HandleList returns a handler that lists all tags.
// @Summary List tags
// @Description Lists all tags with their public question counts.
// @Tags tags
// @Produce json
// @Success 200 {array} Tag
// @Failure 500 {object} apperror.ErrorResponse
// @Router /api/v1/tags [get]
func (h *Handlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := h.service.List(r.Context())
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(tags)
	}
}
