package gate

import (
	"errors"
	"net/http"
)

// Kind classifies a gate error by the HTTP status it maps to.
type Kind string

const (
	// KindConfiguration: the action or the gate itself is misdeclared.
	KindConfiguration Kind = "configuration"
	// KindValidation: the request is malformed.
	KindValidation Kind = "validation"
	// KindUnauthorized: the execution token is missing, expired or forged.
	KindUnauthorized Kind = "unauthorized"
	// KindConflict: the token is valid but not for this action.
	KindConflict Kind = "conflict"
	// KindPrecondition: the request is well-formed but current state forbids it.
	KindPrecondition Kind = "precondition"
	// KindInternal: a dependency failed.
	KindInternal Kind = "internal"
)

// HTTPStatus returns the status code a transport should answer with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindPrecondition:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// Error codes.
const (
	CodeActionNotDeclared    = "GOVERNANCE_ACTION_NOT_DECLARED"
	CodeGateMisconfigured    = "GOVERNANCE_GATE_MISCONFIGURED"
	CodeShiftContextRequired = "SHIFT_CONTEXT_REQUIRED"
	CodeShiftContextPartial  = "SHIFT_CONTEXT_PARTIAL"
	CodeShiftDateInvalid     = "SHIFT_DATE_INVALID"
	CodeShiftCodeInvalid     = "SHIFT_CODE_INVALID"
	CodeTokenRequired        = "EXECUTION_TOKEN_REQUIRED"
	CodeTokenExpired         = "EXECUTION_TOKEN_EXPIRED"
	CodeTokenInvalid         = "EXECUTION_TOKEN_INVALID"
	CodeTokenScopeMismatch   = "EXECUTION_TOKEN_SCOPE_MISMATCH"
	CodeShiftLegalStop       = "SHIFT_LEGAL_STOP"
	CodeReadinessUnavailable = "READINESS_UNAVAILABLE"
	CodeAuditWriteFailed     = "AUDIT_WRITE_FAILED"
)

// Error is a structured gate failure.
type Error struct {
	Kind    Kind     `json:"-"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Reasons []string `json:"reason_codes,omitempty"`
	Err     error    `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code of the error's kind.
func (e *Error) HTTPStatus() int { return e.Kind.HTTPStatus() }

// AsError extracts a gate error from err's chain.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}
