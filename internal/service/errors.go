package service

import (
	"errors"
	"net/http"
)

// Kind classifies a service error. Handlers map kinds to HTTP statuses.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindTransient
	KindIntegrity
)

// Error codes carried in API responses.
const (
	CodeInvalidWindow    = "invalid_window"
	CodeInvalidHorizon   = "invalid_horizon"
	CodeLotNotFound      = "lot_not_found"
	CodeResNotFound      = "reservation_not_found"
	CodeLotFull          = "lot_full"
	CodeAlreadyCancelled = "already_cancelled"
	CodeForbidden        = "forbidden"
	CodeBusy             = "busy"
	CodeIntegrity        = "integrity"
	CodeInternal         = "internal"
)

// Error is the typed error returned by the reservation service.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so sentinels can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidWindow    = &Error{Kind: KindValidation, Code: CodeInvalidWindow, Message: "end time must be after start time"}
	ErrLotNotFound      = &Error{Kind: KindNotFound, Code: CodeLotNotFound, Message: "Parking lot not found"}
	ErrNotFound         = &Error{Kind: KindNotFound, Code: CodeResNotFound, Message: "Reservation not found"}
	ErrLotFull          = &Error{Kind: KindConflict, Code: CodeLotFull, Message: "Parking lot is full"}
	ErrAlreadyCancelled = &Error{Kind: KindConflict, Code: CodeAlreadyCancelled, Message: "Reservation already cancelled"}
	ErrForbidden        = &Error{Kind: KindForbidden, Code: CodeForbidden, Message: "Not authorized to access this reservation"}
	ErrBusy             = &Error{Kind: KindTransient, Code: CodeBusy, Message: "Storage busy, try again later"}
)

func wrap(base *Error, err error) *Error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: base.Message, Err: err}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

func integrity(msg string, err error) *Error {
	return &Error{Kind: KindIntegrity, Code: CodeIntegrity, Message: msg, Err: err}
}

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the code of err, or CodeInternal for untyped errors.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}
