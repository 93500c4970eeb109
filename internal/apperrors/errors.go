package apperrors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers and the HTTP layer can react without
// parsing messages.
type Kind string

const (
	KindNotFound      Kind = "NOT_FOUND"
	KindAuthorization Kind = "AUTHORIZATION"
	KindBusiness      Kind = "BUSINESS"
	KindDatabase      Kind = "DATABASE"
)

// Machine-readable codes for Business failures callers distinguish on.
const (
	CodeInsufficientTickets = "INSUFFICIENT_TICKETS"
	CodeIllegalTransition   = "ILLEGAL_TRANSITION"
	CodeTicketSetMismatch   = "TICKET_SET_MISMATCH"
	CodeRaffleNotInStatus   = "RAFFLE_NOT_IN_STATUS"
	CodeTicketUnavailable   = "TICKET_UNAVAILABLE"
	CodeCartNotActive       = "CART_NOT_ACTIVE"
	CodeAssociationMismatch = "ASSOCIATION_MISMATCH"
	CodeTicketNotInCart     = "TICKET_NOT_IN_CART"
	CodeInvalidComment      = "INVALID_COMMENT"
)

// Error standardizes application errors across services.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a stable status for the transport layer.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindBusiness:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewNotFound(resource, id string) error {
	return &Error{
		Kind:    KindNotFound,
		Code:    string(KindNotFound),
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]any{"id": id},
	}
}

func NewAuthorization(message string) error {
	return &Error{Kind: KindAuthorization, Code: string(KindAuthorization), Message: message}
}

func NewBusiness(code, message string, details map[string]any) error {
	return &Error{Kind: KindBusiness, Code: code, Message: message, Details: details}
}

// NewIllegalTransition carries the attempted/expected status pair for diagnostics.
func NewIllegalTransition(got, want string) error {
	return &Error{
		Kind:    KindBusiness,
		Code:    CodeIllegalTransition,
		Message: fmt.Sprintf("transition rejected: status is %s, expected %s", got, want),
		Details: map[string]any{"got": got, "want": want},
	}
}

func NewDatabase(op string, err error) error {
	return &Error{
		Kind:    KindDatabase,
		Code:    string(KindDatabase),
		Message: fmt.Sprintf("persistence failure during %s", op),
		Err:     err,
	}
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// HasCode reports whether err carries the given machine-readable code.
func HasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// FromError converts generic errors to *Error, mapping sql.ErrNoRows to NotFound.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Kind: KindNotFound, Code: string(KindNotFound), Message: "resource not found", Err: err}
	}
	return &Error{Kind: KindDatabase, Code: string(KindDatabase), Message: "internal error", Err: err}
}
