package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"database", NewDatabaseError("db down", nil), http.StatusInternalServerError},
		{"auth", NewAuthError("bad credentials", nil), http.StatusUnauthorized},
		{"unauthorized", NewUnauthorizedError("not an admin", nil), http.StatusForbidden},
		{"not found", NewNotFoundError("question not found", nil), http.StatusNotFound},
		{"validation", NewValidationError("title is required", nil), http.StatusBadRequest},
		{"bad request", NewBadRequestError("invalid payload", nil), http.StatusBadRequest},
		{"internal", NewInternalError("boom", nil), http.StatusInternalServerError},
		{"external", NewExternalServiceError("file store failed", nil), http.StatusBadGateway},
		{"migration", NewMigrationError("migrate failed", nil), http.StatusInternalServerError},
		{"conflict", NewConflictError("username already exists", nil), http.StatusConflict},
		{"unknown", NewAppError(UnknownError, "??", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.StatusCode(); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDatabaseError("failed to load question", cause)

	if err.Error() != "failed to load question: connection refused" {
		t.Errorf("unexpected Error(): %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestToResponseHidesCause(t *testing.T) {
	err := NewInternalError("something went wrong", errors.New("secret detail"))
	resp := err.ToResponse()
	if resp.Error != "something went wrong" {
		t.Errorf("ToResponse().Error = %q, want message only", resp.Error)
	}
}

func TestPredicatesThroughWrapping(t *testing.T) {
	inner := NewNotFoundError("answer not found", nil)
	wrapped := fmt.Errorf("loading answer: %w", inner)

	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through fmt.Errorf wrapping")
	}
	if IsConflictError(wrapped) {
		t.Error("IsConflictError should be false for a NotFoundError")
	}
}

func TestFromError(t *testing.T) {
	if _, ok := FromError(nil); ok {
		t.Error("FromError(nil) should report false")
	}
	if _, ok := FromError(errors.New("plain")); ok {
		t.Error("FromError(plain error) should report false")
	}
	ae := NewValidationError("bad input", nil)
	got, ok := FromError(fmt.Errorf("wrap: %w", ae))
	if !ok || got.Type != ValidationError {
		t.Errorf("FromError should unwrap to the AppError, got %v ok=%v", got, ok)
	}
}
