// Package apperror defines the application's error taxonomy. Services return
// typed errors; HTTP handlers map them to status codes and a uniform JSON
// body via StatusCode and ToResponse.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an application error.
type ErrorType int

const (
	// UnknownError is for unspecified errors.
	UnknownError ErrorType = iota
	// DatabaseError represents an error originating from the database.
	DatabaseError
	// ConfigError represents an error in application configuration.
	ConfigError
	// AuthError represents an authentication failure (no/invalid credentials).
	AuthError
	// UnauthorizedError represents an authorization failure (valid identity,
	// insufficient permission).
	UnauthorizedError
	// NotFoundError represents a missing resource.
	NotFoundError
	// ValidationError represents invalid input.
	ValidationError
	// BadRequestError represents a malformed request.
	BadRequestError
	// InternalError represents an unexpected server-side failure.
	InternalError
	// ExternalServiceError represents a failure in a collaborator such as
	// the file store.
	ExternalServiceError
	// MigrationError represents a failure while migrating the database schema.
	MigrationError
	// ConflictError represents a state conflict, e.g. a duplicate resource.
	ConflictError
)

// AppError carries a classified, user-presentable error together with the
// underlying cause for logs and error-chain inspection.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code appropriate for the error type.
func (e *AppError) StatusCode() int {
	switch e.Type {
	case DatabaseError, ConfigError, InternalError, MigrationError:
		return http.StatusInternalServerError
	case AuthError:
		return http.StatusUnauthorized
	case UnauthorizedError:
		// 401 is "who are you" (AuthError); 403 is "you may not".
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case ValidationError, BadRequestError:
		return http.StatusBadRequest
	case ExternalServiceError:
		return http.StatusBadGateway
	case ConflictError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates an AppError of an arbitrary type.
func NewAppError(errType ErrorType, message string, underlyingError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     underlyingError,
	}
}

// NewDatabaseError creates a new DatabaseError.
func NewDatabaseError(message string, underlyingError error) *AppError {
	return NewAppError(DatabaseError, message, underlyingError)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, underlyingError error) *AppError {
	return NewAppError(ConfigError, message, underlyingError)
}

// NewAuthError creates a new AuthError.
func NewAuthError(message string, underlyingError error) *AppError {
	return NewAppError(AuthError, message, underlyingError)
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string, underlyingError error) *AppError {
	return NewAppError(UnauthorizedError, message, underlyingError)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(message string, underlyingError error) *AppError {
	return NewAppError(NotFoundError, message, underlyingError)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string, underlyingError error) *AppError {
	return NewAppError(ValidationError, message, underlyingError)
}

// NewBadRequestError creates a new BadRequestError.
func NewBadRequestError(message string, underlyingError error) *AppError {
	return NewAppError(BadRequestError, message, underlyingError)
}

// NewInternalError creates a new InternalError.
func NewInternalError(message string, underlyingError error) *AppError {
	return NewAppError(InternalError, message, underlyingError)
}

// NewExternalServiceError creates a new ExternalServiceError.
func NewExternalServiceError(message string, underlyingError error) *AppError {
	return NewAppError(ExternalServiceError, message, underlyingError)
}

// NewMigrationError creates a new MigrationError.
func NewMigrationError(message string, underlyingError error) *AppError {
	return NewAppError(MigrationError, message, underlyingError)
}

// NewConflictError creates a new ConflictError.
func NewConflictError(message string, underlyingError error) *AppError {
	return NewAppError(ConflictError, message, underlyingError)
}

// ErrorResponse is the JSON error payload returned to API clients.
type ErrorResponse struct {
	Error string `json:"error" example:"A description of the error"`
}

// ToResponse converts an AppError to its client-facing representation.
// Only the message is exposed; the underlying error stays server-side.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message}
}

// FromError attempts to interpret err as an *AppError.
func FromError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == NotFoundError
}

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == AuthError
}

// IsUnauthorizedError reports whether err is an UnauthorizedError.
func IsUnauthorizedError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == UnauthorizedError
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == ValidationError
}

// IsConflictError reports whether err is a ConflictError.
func IsConflictError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == ConflictError
}
