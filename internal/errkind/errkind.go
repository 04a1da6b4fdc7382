// Package errkind defines the closed set of error kinds the core surfaces
// across the Source Connection Lifecycle, Sync Runner, and Search Pipeline.
// Every outward-facing failure is wrapped in an *Error so API handlers can
// map Kind to an HTTP status without inspecting error strings.
package errkind

import "fmt"

// Kind is a closed enumeration of the error classes the core distinguishes.
type Kind int

const (
	// Unknown is the zero value; never construct an Error with this kind
	// deliberately.
	Unknown Kind = iota
	// NotFound indicates a referenced entity is absent (404-class).
	NotFound
	// Validation indicates input failed a schema or semantic check
	// (422-class). Fields enumerates per-field reasons.
	Validation
	// Permission indicates the caller may not access the resource
	// (403-class).
	Permission
	// Conflict indicates an illegal state transition (400/409-class).
	Conflict
	// ProviderError indicates an outbound third-party call failed
	// non-retryably.
	ProviderError
	// TokenRefresh indicates a refresh flow could not obtain a new token.
	TokenRefresh
	// RateLimit indicates a 429 that exceeded the retry budget.
	RateLimit
	// Skipped is not an error; it is a distinguished outcome consumed by
	// the caller (e.g. the File Downloader skipping an oversize file).
	Skipped
	// Cancelled indicates cooperative cancellation; terminal for a job.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case Permission:
		return "permission"
	case Conflict:
		return "conflict"
	case ProviderError:
		return "provider_error"
	case TokenRefresh:
		return "token_refresh"
	case RateLimit:
		return "rate_limit"
	case Skipped:
		return "skipped"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the machine-readable error shape carried across package
// boundaries. Code is a short machine-readable token distinct from Kind
// (e.g. "source_not_registered"); Message is human-readable; Fields holds
// per-field validation reasons when Kind == Validation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, code string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithFields attaches per-field validation reasons and returns the receiver
// for chaining.
func (e *Error) WithFields(fields map[string]string) *Error {
	e.Fields = fields
	return e
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
