package auth

import "errors"

// Status is the closed set of failure classes produced by the auth and
// ACL core. The HTTP boundary maps each one to a transport status; the
// core never returns an untyped failure for an expected condition.
type Status int

const (
	StatusBadRequest Status = iota + 1
	StatusUnauthorized
	StatusForbidden
	StatusNotFound
	StatusConflict
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusBadRequest:
		return "bad_request"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusForbidden:
		return "forbidden"
	case StatusNotFound:
		return "not_found"
	case StatusConflict:
		return "conflict"
	case StatusInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a status-coded error. Two Errors match under errors.Is when
// their statuses are equal, so callers can compare against the canonical
// sentinels below without caring about the message.
type Error struct {
	Status  Status
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status
}

// E builds a status-coded error.
func E(status Status, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Canonical sentinels, one per status, for errors.Is comparisons.
var (
	ErrBadRequest   = E(StatusBadRequest, "bad request")
	ErrUnauthorized = E(StatusUnauthorized, "unauthorized")
	ErrForbidden    = E(StatusForbidden, "forbidden")
	ErrNotFound     = E(StatusNotFound, "not found")
	ErrConflict     = E(StatusConflict, "resource conflict")
	ErrInternal     = E(StatusInternal, "internal error")
)

// StatusOf extracts the status of err; non-Error values classify as
// StatusInternal.
func StatusOf(err error) Status {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusInternal
}
