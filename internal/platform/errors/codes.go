package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Case errors
	CodeCaseIDEmpty  Code = "CASE_ID_EMPTY"
	CodeCaseNotFound Code = "CASE_NOT_FOUND"

	// Session errors
	CodeSessionNotFound  Code = "SESSION_NOT_FOUND"
	CodeSessionForbidden Code = "SESSION_FORBIDDEN"

	// Message errors
	CodeMessageContentEmpty   Code = "MESSAGE_CONTENT_EMPTY"
	CodeMessageContentTooLong Code = "MESSAGE_CONTENT_TOO_LONG"
	CodeMessageRoleInvalid    Code = "MESSAGE_ROLE_INVALID"

	// Progress errors
	CodeProgressNothingToUpdate Code = "PROGRESS_NOTHING_TO_UPDATE"

	// Request errors
	CodeRequestInvalid Code = "REQUEST_INVALID"

	// Auth errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeRateLimited     Code = "RATE_LIMITED"

	// Storage/queue errors
	CodeNotFound Code = "NOT_FOUND"
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeCaseIDEmpty,
		CodeRequestInvalid,
		CodeMessageContentEmpty,
		CodeMessageContentTooLong,
		CodeMessageRoleInvalid,
		CodeProgressNothingToUpdate:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeSessionForbidden:
		return http.StatusForbidden
	case CodeCaseNotFound,
		CodeSessionNotFound,
		CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
