package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/auth"
	"github.com/user/queryloop-go/questions"
	"github.com/user/queryloop-go/users"
)

// Handlers bundles the admin console endpoints. They sit behind the JWT
// and admin-role middlewares and speak a simpler action-based protocol
// than the public API: a JSON action envelope in, {"success":true} or
// {"error":...} out.
type Handlers struct {
	questions questions.QuestionService
	users     users.UserService
}

// NewHandlers creates admin handlers on top of the question and user
// services.
func NewHandlers(qs questions.QuestionService, us users.UserService) *Handlers {
	return &Handlers{questions: qs, users: us}
}

// ModerationRequest is the action envelope for the moderation endpoint.
type ModerationRequest struct {
	Action     string `json:"action" example:"approve"`
	QuestionID string `json:"questionId"`
}

// QuestionActionRequest is the action envelope for admin question edits.
type QuestionActionRequest struct {
	Action     string `json:"action" example:"edit"`
	QuestionID string `json:"questionId"`
	NewTitle   string `json:"newTitle,omitempty"`
}

// UserActionRequest is the action envelope for admin user management.
type UserActionRequest struct {
	Action string `json:"action" example:"toggleAdmin"`
	UserID string `json:"userId"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleListPending returns a handler that lists the moderation queue.
// @Summary List pending questions
// @Description Lists questions awaiting moderation, oldest first.
// @Tags admin
// @Produce json
// @Success 200 {array} questions.PendingQuestion
// @Failure 403 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/admin/moderation [get]
func (h *Handlers) HandleListPending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := h.questions.ListPending(r.Context())
		if err != nil {
			writeAdminError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pending)
	}
}

// HandleModeration returns a handler that approves or rejects a pending
// question. Rejection deletes the question outright, cascade included;
// there is no rejected state to park it in.
// @Summary Moderate a question
// @Description Approves a pending question or rejects it. Rejection deletes the question and all its data.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body ModerationRequest true "Moderation action"
// @Success 200 {object} successResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Security BearerAuth
// @Router /api/admin/moderation [post]
func (h *Handlers) HandleModeration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		var req ModerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.QuestionID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "questionId is required"})
			return
		}

		var err error
		switch req.Action {
		case "approve":
			err = h.questions.Approve(r.Context(), req.QuestionID)
		case "reject":
			err = h.questions.Delete(r.Context(), req.QuestionID, identity)
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown action"})
			return
		}
		if err != nil {
			writeAdminError(w, err)
			return
		}

		slog.Info("moderation action", "action", req.Action,
			"question_id", req.QuestionID, "admin_id", identity.UserID)
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

// HandleQuestionAction returns a handler that deletes or retitles a
// question on an admin's behalf.
// @Summary Manage a question
// @Description Deletes a question (with its full cascade) or edits its title.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body QuestionActionRequest true "Question action"
// @Success 200 {object} successResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Security BearerAuth
// @Router /api/admin/questions [post]
func (h *Handlers) HandleQuestionAction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		var req QuestionActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.QuestionID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "questionId is required"})
			return
		}

		var err error
		switch req.Action {
		case "delete":
			err = h.questions.Delete(r.Context(), req.QuestionID, identity)
		case "edit":
			if req.NewTitle == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "newTitle is required"})
				return
			}
			err = h.questions.EditTitle(r.Context(), req.QuestionID, req.NewTitle)
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown action"})
			return
		}
		if err != nil {
			writeAdminError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

// HandleUserAction returns a handler that deletes a user or toggles their
// admin flag.
// @Summary Manage a user
// @Description Deletes a user account (with all authored content) or toggles the admin role.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body UserActionRequest true "User action"
// @Success 200 {object} successResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Security BearerAuth
// @Router /api/admin/users [post]
func (h *Handlers) HandleUserAction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		var req UserActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.UserID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
			return
		}
		// Admins cannot delete or demote themselves through this endpoint.
		if req.UserID == identity.UserID {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cannot manage own account"})
			return
		}

		var err error
		switch req.Action {
		case "delete":
			err = h.users.DeleteUser(r.Context(), req.UserID)
		case "toggleAdmin":
			var current bool
			current, err = h.users.IsAdmin(r.Context(), req.UserID)
			if err == nil {
				err = h.users.SetAdmin(r.Context(), req.UserID, !current)
			}
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown action"})
			return
		}
		if err != nil {
			writeAdminError(w, err)
			return
		}

		slog.Info("user action", "action", req.Action,
			"user_id", req.UserID, "admin_id", identity.UserID)
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

// writeAdminError maps service errors onto the console's flat error shape.
func writeAdminError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	if appErr, ok := apperror.FromError(err); ok {
		status = appErr.StatusCode()
		msg = appErr.Message
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
