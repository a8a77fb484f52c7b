package questions

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/auth"
)

// Handlers bundles the HTTP handlers for the questions endpoints.
type Handlers struct {
	service QuestionService
}

// NewHandlers creates question handlers backed by the given service.
func NewHandlers(service QuestionService) *Handlers {
	return &Handlers{service: service}
}

// HandleCreate returns a handler that submits a new question. The question
// starts hidden and enters the moderation queue.
// @Summary Ask a question
// @Description Submits a new question. It stays hidden until an admin approves it.
// @Tags questions
// @Accept json
// @Produce json
// @Param request body CreateQuestionRequest true "Question payload"
// @Success 201 {object} Question
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/questions [post]
func (h *Handlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("authentication required", nil))
			return
		}

		var req CreateQuestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body", err))
			return
		}

		q, err := h.service.Create(r.Context(), identity.UserID, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// HandleList returns a handler that lists public questions.
// @Summary List questions
// @Description Lists approved questions, newest first. Supports tag filtering and pagination.
// @Tags questions
// @Produce json
// @Param tag query string false "Filter by tag name"
// @Param page query int false "Page number (1-based)"
// @Param per_page query int false "Page size (max 100)"
// @Success 200 {object} QuestionListResponse
// @Failure 500 {object} apperror.ErrorResponse
// @Router /api/v1/questions [get]
func (h *Handlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		perPage := queryInt(r, "per_page", 20)

		resp, err := h.service.List(r.Context(), r.URL.Query().Get("tag"), page, perPage)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleGet returns a handler that fetches a question with its answers.
// Pending questions are visible only to their author and admins.
// @Summary Get a question
// @Description Fetches a question, its tags, attachments and answers. Pending questions return 403 for other users.
// @Tags questions
// @Produce json
// @Param questionID path string true "Question ID"
// @Success 200 {object} QuestionDetail
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/v1/questions/{questionID} [get]
func (h *Handlers) HandleGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var viewer *auth.Identity
		if identity, ok := auth.IdentityFromContext(r.Context()); ok {
			viewer = &identity
		}

		detail, err := h.service.Get(r.Context(), chi.URLParam(r, "questionID"), viewer)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// HandleDelete returns a handler that deletes a question and everything
// attached to it.
// @Summary Delete a question
// @Description Deletes a question, its answers, votes, favorites, tag links and stored files. Author or admin only.
// @Tags questions
// @Produce json
// @Param questionID path string true "Question ID"
// @Success 204 "No Content"
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/questions/{questionID} [delete]
func (h *Handlers) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("authentication required", nil))
			return
		}

		if err := h.service.Delete(r.Context(), chi.URLParam(r, "questionID"), identity); err != nil {
			auth.WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// maxAttachmentBytes caps uploads at 10 MiB.
const maxAttachmentBytes = 10 << 20

// HandleAddAttachment returns a handler that uploads a file attachment for
// a question.
// @Summary Attach a file to a question
// @Description Uploads a multipart file and records it against the question. Author only.
// @Tags questions
// @Accept multipart/form-data
// @Produce json
// @Param questionID path string true "Question ID"
// @Param file formData file true "File to attach"
// @Success 201 {object} Attachment
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/questions/{questionID}/attachments [post]
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

		attachment, err := h.service.AddAttachment(r.Context(), chi.URLParam(r, "questionID"), identity, header.Filename, file)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, attachment)
	}
}

func queryInt(r *http.Request, key string, def int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
