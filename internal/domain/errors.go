package domain

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code returned to callers.
type Code string

const (
	CodeWrongState          Code = "WRONG_STATE"
	CodeDeadlinePassed      Code = "DEADLINE_PASSED"
	CodeQuestionMismatch    Code = "QUESTION_MISMATCH"
	CodeNotHost             Code = "NOT_HOST"
	CodeDuplicateSubmission Code = "DUPLICATE_SUBMISSION"
	CodeParticipantInactive Code = "PARTICIPANT_INACTIVE"
	CodeNoParticipants      Code = "NO_PARTICIPANTS"
	CodeParticipantNotFound Code = "PARTICIPANT_NOT_FOUND"
	CodeParticipantRemoved  Code = "PARTICIPANT_REMOVED"
	CodeUnknownOption       Code = "UNKNOWN_OPTION"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeInvalidMessage      Code = "INVALID_MESSAGE"
	CodeInvalidContent      Code = "INVALID_CONTENT"
	CodeSessionNotFound     Code = "SESSION_NOT_FOUND"
	CodeSessionClosed       Code = "SESSION_CLOSED"
	CodeHostConnected       Code = "HOST_ALREADY_CONNECTED"
	CodeRoleMismatch        Code = "ROLE_MISMATCH"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeInternal            Code = "INTERNAL"
)

// Error is a structured failure reported to a caller. Validation failures
// never change session state.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func Invalid(code Code, msg string, details map[string]any) *Error {
	return &Error{Code: code, Message: msg, Details: details}
}

func Internal(msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Cause: cause}
}

var (
	ErrSessionNotFound = &Error{Code: CodeSessionNotFound, Message: "session not found"}
	ErrSessionClosed   = &Error{Code: CodeSessionClosed, Message: "session is closed"}
	ErrUnauthorized    = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrNotHost         = &Error{Code: CodeNotHost, Message: "caller is not the session host"}
)

// CodeOf extracts the code of err, INTERNAL when err is not structured.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AsError converts any error into a structured one without leaking internals.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal error", err)
}

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeSessionNotFound, CodeParticipantNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotHost, CodeParticipantRemoved, CodeRoleMismatch:
		return http.StatusForbidden
	case CodeInvalidMessage, CodeInvalidContent, CodeUnknownOption:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}
