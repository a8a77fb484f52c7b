package answers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/auth"
)

// Handlers bundles the HTTP handlers for the answers endpoints.
type Handlers struct {
	service AnswerService
}

// NewHandlers creates answer handlers backed by the given service.
func NewHandlers(service AnswerService) *Handlers {
	return &Handlers{service: service}
}

// HandleCreate returns a handler that posts an answer to a question.
// @Summary Answer a question
// @Description Posts an answer to a public question. Pending questions reject answers.
// @Tags answers
// @Accept json
// @Produce json
// @Param questionID path string true "Question ID"
// @Param request body CreateAnswerRequest true "Answer payload"
// @Success 201 {object} Answer
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/questions/{questionID}/answers [post]
func (h *Handlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("authentication required", nil))
			return
		}

		var req CreateAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body", err))
			return
		}

		a, err := h.service.Create(r.Context(), chi.URLParam(r, "questionID"), identity, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// HandleDelete returns a handler that deletes an answer.
// @Summary Delete an answer
// @Description Deletes an answer, its votes and its stored files. Author or admin only.
// @Tags answers
// @Produce json
// @Param answerID path string true "Answer ID"
// @Success 204 "No Content"
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/answers/{answerID} [delete]
func (h *Handlers) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("authentication required", nil))
			return
		}

		if err := h.service.Delete(r.Context(), chi.URLParam(r, "answerID"), identity); err != nil {
			auth.WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

const maxAttachmentBytes = 10 << 20

// HandleAddAttachment returns a handler that uploads a file attachment for
// an answer.
// @Summary Attach a file to an answer
// @Description Uploads a multipart file and records it against the answer. Author only.
// @Tags answers
// @Accept multipart/form-data
// @Produce json
// @Param answerID path string true "Answer ID"
// @Param file formData file true "File to attach"
// @Success 201 {object} Attachment
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/answers/{answerID}/attachments [post]
func (h *Handlers) HandleAddAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("authentication required", nil))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("missing or oversized file field", err))
			return
		}
		defer file.Close()

		attachment, err := h.service.AddAttachment(r.Context(), chi.URLParam(r, "answerID"), identity, header.Filename, file)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, attachment)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
