// Package brokerr defines the typed error kinds the coordination broker
// distinguishes (spec.md §7) and their JSON-RPC 2.0 code mapping.
//
// There is no third-party typed-error library in the example pack (the
// teacher wraps plain errors with fmt.Errorf throughout); this package stays
// on the standard library for the same reason, adding only the kind/code
// table the JSON-RPC envelope needs.
package brokerr

import "fmt"

// Kind is one of the error categories the broker's dispatcher distinguishes.
type Kind string

const (
	BadRequest     Kind = "bad_request"
	MethodNotFound Kind = "method_not_found"
	ParseError     Kind = "parse_error"
	NotFound       Kind = "not_found"
	Conflict       Kind = "conflict"
	StateViolation Kind = "state_violation"
	AuthRequired   Kind = "auth_required"
	UpstreamError  Kind = "upstream_error"
	Timeout        Kind = "timeout"
	Internal       Kind = "internal"
)

// JSONRPCCode returns the JSON-RPC 2.0 error code for a kind.
func (k Kind) JSONRPCCode() int {
	switch k {
	case BadRequest:
		return -32602
	case MethodNotFound:
		return -32601
	case ParseError:
		return -32700
	case Internal:
		return -32603
	default:
		// not_found, conflict, state_violation, auth_required, upstream_error,
		// timeout: these are native-handler-level errors, not JSON-RPC framework
		// errors; the dispatcher's native-result envelope (spec.md §4.1) uses a
		// flat -1 code for {error, s} style results.
		return -1
	}
}

// Error is a typed broker error carrying a Kind alongside the message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(k Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, defaulting
// to Internal otherwise.
func KindOf(err error) Kind {
	var be *Error
	if As(err, &be) {
		return be.Kind
	}
	return Internal
}

// As walks err's Unwrap chain looking for a *Error and stores the first one
// found in target: a local equivalent of errors.As for this one type, kept
// here to avoid importing errors in every caller just for this one check.
func As(err error, target **Error) bool {
	for err != nil {
		if be, ok := err.(*Error); ok {
			*target = be
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
