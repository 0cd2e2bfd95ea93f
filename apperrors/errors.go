// Package apperrors defines the domain error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure. Handlers map it to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidState
	KindBadRequest
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindBadRequest:
		return "bad_request"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code the boundary layer answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidState, KindBadRequest:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two domain errors by code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New builds a domain error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a cause to a copy of a domain error.
func Wrap(base *Error, cause error) *Error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: base.Message, Err: cause}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return Wrap(ErrInternal, cause)
}

// KindOf returns the kind of err, KindInternal for non-domain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, "INTERNAL_ERROR" for non-domain errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal.Code
}

var (
	ErrInternal = New(KindInternal, "INTERNAL_ERROR", "Internal server error")

	ErrInvalidCredentials = New(KindUnauthorized, "INVALID_EMAIL_OR_PASSWORD", "Invalid email or password")
	ErrInvalidToken       = New(KindUnauthorized, "INVALID_TOKEN", "Invalid token")

	ErrNotAuthorized = New(KindForbidden, "NOT_AUTHORIZED", "Not authorized to perform this action")
	ErrAdminRequired = New(KindForbidden, "ADMIN_PRIVILEGES_REQUIRED", "Admin privileges required")

	ErrUserNotFound        = New(KindNotFound, "USER_NOT_FOUND", "User not found")
	ErrRequestNotFound     = New(KindNotFound, "REQUEST_NOT_FOUND", "Request not found")
	ErrApplicationNotFound = New(KindNotFound, "NO_APPLICATION_FOUND", "No application found")
	ErrBadgeNotFound       = New(KindNotFound, "BADGE_NOT_FOUND", "Badge not found")
	ErrQuestNotFound       = New(KindNotFound, "QUEST_NOT_FOUND", "Quest not found")

	ErrUserAlreadyExists = New(KindConflict, "USER_ALREADY_EXISTS", "User with this email already exists")
	ErrApplicationExists = New(KindConflict, "APPLICATION_ALREADY_EXISTS", "Application already exists for this request")

	ErrRequestNotOpen           = New(KindInvalidState, "REQUEST_NOT_OPEN", "Request is not open")
	ErrRequestCannotBeUpdated   = New(KindInvalidState, "REQUEST_CANNOT_BE_UPDATED", "Request cannot be updated")
	ErrCannotDeleteApplication  = New(KindInvalidState, "CAN_NOT_DELETE_APPLICATION", "Can not delete application")
	ErrCannotAcceptApplication  = New(KindInvalidState, "CAN_NOT_ACCEPT_APPLICATION", "Can not accept application")
	ErrApplicationCannotBeRated = New(KindInvalidState, "APPLICATION_CANNOT_BE_RATED", "Application cannot be rated")

	ErrValidation = New(KindBadRequest, "VALIDATION_ERROR", "Invalid request")

	ErrAIUnavailable = New(KindUnavailable, "AI_SERVICE_UNAVAILABLE", "AI Service is unavailable")
)

// Validation returns a bad-request error carrying a specific message.
func Validation(message string) *Error {
	return &Error{Kind: KindBadRequest, Code: ErrValidation.Code, Message: message}
}
