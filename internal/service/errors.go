package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure.  Handlers map kinds to HTTP
// statuses; nothing else should inspect them.
type Kind int

const (
	KindInternal   Kind = iota // unexpected store failure, opaque to callers
	KindValidation             // malformed or missing input, never retried
	KindNotFound               // referenced entity absent
	KindForbidden              // caller may not act on the entity
	KindConflict               // state conflict; retrying the same request will not help
)

// Error is the error type returned by every service operation.  Code is
// a stable machine-readable identifier; Message is safe to show.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Booking conflicts.  Each names the rule that failed so a client can
// tell whether to re-query availability.
var (
	ErrSlotAlreadyBooked = &Error{Kind: KindConflict, Code: "SlotAlreadyBooked", Message: "the slot is already booked"}
	ErrSlotNotAvailable  = &Error{Kind: KindConflict, Code: "SlotNotAvailable", Message: "the doctor is not available at that time"}
	ErrInvalidStatus     = &Error{Kind: KindConflict, Code: "InvalidStatus", Message: "only booked appointments can be cancelled"}
)

var (
	errAppointmentNotFound = &Error{Kind: KindNotFound, Code: "not_found", Message: "appointment not found"}
	errDoctorNotFound      = &Error{Kind: KindNotFound, Code: "not_found", Message: "doctor not found"}
	errForbidden           = &Error{Kind: KindForbidden, Code: "forbidden", Message: "you may not act on this appointment"}
	errNotADoctor          = &Error{Kind: KindForbidden, Code: "forbidden", Message: "no doctor profile is linked to this account"}
	errAlreadyReviewed     = &Error{Kind: KindValidation, Code: "validation_error", Message: "appointment already reviewed"}
	errReviewCancelled     = &Error{Kind: KindValidation, Code: "validation_error", Message: "a cancelled appointment cannot be reviewed"}
)

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: fmt.Sprintf(format, args...)}
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "internal error", Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
