package engine

import "errors"

// Sentinel errors for typed handling on the caller side. Use errors.Is to
// match.
var (
	ErrAlreadyCommitted  = errors.New("engine: transaction already committed")
	ErrAlreadyExists     = errors.New("engine: key already exists")
	ErrNotFound          = errors.New("engine: key not found")
	ErrConflict          = errors.New("engine: write-write conflict")
	ErrAncestorCommitted = errors.New("engine: ancestor transaction already committed")

	// ErrBackendKeyNotFound is the convention a Backend implementation uses
	// to report that Read was called on an absent key (Delete of an absent
	// key is a no-op in both reference adapters). The engine itself never
	// relies on it: it only calls Read after Exists has confirmed the key is
	// present.
	ErrBackendKeyNotFound = errors.New("engine: backend key not found")
)

// ErrorKind classifies the error carried by a Result.
type ErrorKind string

const (
	KindAlreadyCommitted  ErrorKind = "AlreadyCommitted"
	KindAlreadyExists     ErrorKind = "AlreadyExists"
	KindNotFound          ErrorKind = "NotFound"
	KindConflict          ErrorKind = "Conflict"
	KindAncestorCommitted ErrorKind = "AncestorCommitted"
	KindBackendError      ErrorKind = "BackendError"
)

// ResultError is the structured error embedded in a Result. A BackendError
// wraps the adapter's error verbatim; Commit returns it as its error value,
// with a nil Result, rather than embedding it.
type ResultError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ResultError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ResultError) Unwrap() error { return e.Err }

func backendError(err error) *ResultError {
	return &ResultError{Kind: KindBackendError, Message: "backend operation failed", Err: err}
}
