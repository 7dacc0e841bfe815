// Package apperr defines the closed set of error kinds the runtime can return,
// per the error handling contract: every failure carries a stable machine code
// and a short user-facing message, never a bare panic.
package apperr

import "fmt"

// Kind is a stable, machine-readable error code.
type Kind string

const (
	ConfigInvalid        Kind = "ConfigInvalid"
	NotFound             Kind = "NotFound"
	NotInitialized       Kind = "NotInitialized"
	PermissionDenied     Kind = "PermissionDenied"
	ConfirmationRequired Kind = "ConfirmationRequired"

	VersionConflict Kind = "VersionConflict"
	LockTimeout     Kind = "LockTimeout"
	Corrupt         Kind = "Corrupt"
	Conflict        Kind = "Conflict"

	UnknownDestination Kind = "UnknownDestination"
	NotReachable       Kind = "NotReachable"
	NotAtLocation      Kind = "NotAtLocation"
	NotCollectible     Kind = "NotCollectible"
	NotInInventory     Kind = "NotInInventory"
	NotUsable          Kind = "NotUsable"
	AlreadyCollected   Kind = "AlreadyCollected"
	NpcNotFound        Kind = "NpcNotFound"
	NotAtNpc           Kind = "NotAtNpc"

	UnknownCommand     Kind = "UnknownCommand"
	MalformedInput     Kind = "MalformedInput"
	InvalidStateUpdate Kind = "InvalidStateUpdate"

	LlmUnavailable   Kind = "LlmUnavailable"
	MalformedResponse Kind = "MalformedResponse"
	TransportError   Kind = "TransportError"
)

// Error is the concrete error type carrying a Kind, a user-facing message,
// and an optional payload (e.g. a reset preview for ConfirmationRequired).
type Error struct {
	Kind    Kind
	Message string
	Payload map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind with a user-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithPayload attaches a structured payload (e.g. a reset preview) and returns e.
func (e *Error) WithPayload(payload map[string]any) *Error {
	e.Payload = payload
	return e
}

// KindOf extracts the Kind from err, defaulting to "" if err isn't an *Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
