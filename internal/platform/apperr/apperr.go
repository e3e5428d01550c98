// Package apperr defines the typed errors surfaced by the domain services and
// the echo error handler that renders them as {"error":{"code","message"}}.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error by the transport status it maps to.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindExternal
)

// HTTPStatus returns the HTTP status code for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external"
	default:
		return "internal"
	}
}

// Error is a domain failure with a machine-readable code and a message that is
// safe to return to the caller. Err optionally carries the underlying cause,
// which is logged but never rendered.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New creates an Error. Package-level sentinels are built with New and compared
// with errors.Is, which matches on Code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithMessage returns a copy of e with a different caller-facing message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// From extracts the *Error from err's chain.
func From(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsDomain reports whether err carries a domain *Error of any kind other than
// KindInternal.
func IsDomain(err error) bool {
	ae, ok := From(err)
	return ok && ae.Kind != KindInternal
}

// BadRequest builds an ad-hoc validation error.
func BadRequest(format string, args ...any) *Error {
	return ErrBadRequest.WithMessage(fmt.Sprintf(format, args...))
}

// Bad request.
var (
	ErrBadRequest              = New(KindBadRequest, "bad_request", "Bad request")
	ErrVerificationFailed      = New(KindBadRequest, "verification_failed", "Verification failed")
	ErrInvalidStatusTransition = New(KindBadRequest, "invalid_appointment_status_transition", "Invalid appointment status transition")
	ErrInvalidStatus           = New(KindBadRequest, "invalid_status", "Unknown appointment status")
	ErrInvalidSlot             = New(KindBadRequest, "invalid_slot", "Slot index must be in range [0, 24)")
	ErrInitDataMalformed       = New(KindBadRequest, "malformed_init_data", "Init data is malformed")
)

// Unauthorized.
var (
	ErrUnauthorized        = New(KindUnauthorized, "unauthorized", "Authentication failed")
	ErrTokenInvalid        = New(KindUnauthorized, "token_error", "Token is invalid")
	ErrTokenMissingSubject = New(KindUnauthorized, "token_missing_subject", "Token missing subject")
	ErrTokenTypeMismatch   = New(KindUnauthorized, "token_type_mismatch", "Token type mismatch")
	ErrInvalidSignature    = New(KindUnauthorized, "invalid_signature", "Invalid init data signature")
	ErrMissingHash         = New(KindUnauthorized, "missing_hash", "Missing hash in init data")
	ErrInitDataExpired     = New(KindUnauthorized, "init_data_expired", "Init data has expired")
	ErrInvalidCredentials  = New(KindUnauthorized, "invalid_credentials", "Invalid credentials")
	ErrTokenNotFound       = New(KindUnauthorized, "token_not_found", "Token not found")
	ErrTokenExpired        = New(KindUnauthorized, "token_expired", "Token has expired")
	ErrTokenRevoked        = New(KindUnauthorized, "token_revoked", "Token has been revoked")
)

// Forbidden.
var (
	ErrForbidden = New(KindForbidden, "forbidden", "Forbidden")
)

// Not found.
var (
	ErrUserNotFound        = New(KindNotFound, "user_not_found", "User not found")
	ErrDoctorNotFound      = New(KindNotFound, "doctor_not_found", "Doctor not found")
	ErrAppointmentNotFound = New(KindNotFound, "appointment_not_found", "Appointment not found")
)

// Conflict.
var (
	ErrDoctorAlreadyExists          = New(KindConflict, "doctor_already_exists", "Doctor already exists")
	ErrDoctorHasAppointments        = New(KindConflict, "doctor_has_appointments", "Doctor has appointments and cannot be deleted")
	ErrAppointmentAlreadyExists     = New(KindConflict, "appointment_already_exists", "Appointment already exists")
	ErrDoctorSlotBusy               = New(KindConflict, "doctor_slot_busy", "Doctor slot busy")
	ErrAppointmentCannotBeCancelled = New(KindConflict, "appointment_cannot_be_cancelled", "Appointment cannot be cancelled")
)

// External service.
var (
	ErrExternalService = New(KindExternal, "external_service_error", "External service error")
)
