package apperrors

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	TypeConnection ErrorType = "Connection" // Network issue
	TypeAuth       ErrorType = "Auth"       // Basic auth, SSH keys, TLS certs
	TypeIntegrity  ErrorType = "Integrity"  // Checksum mismatch, digest mismatch, corrupt record stream
	TypeConfig     ErrorType = "Config"     // Invalid flags, missing required params
	TypeResource   ErrorType = "Resource"   // Permission denied, out of space, file not found
	TypeInternal   ErrorType = "Internal"   // Unexpected internal failure

	TypeRange      ErrorType = "Range"      // A chunk size parameter is outside its allowed bounds
	TypeRelational ErrorType = "Relational" // Chunk size parameters are inconsistent with each other
	TypeCapacity   ErrorType = "Capacity"   // Source or target region does not fit its buffer
	TypeInvariant  ErrorType = "Invariant"  // The cut-point search produced an impossible chunk
)

// AppError is a rich error type that provides categorize and hints for users.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Hint    string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(t ErrorType, msg string, hint string) *AppError {
	return &AppError{
		Type:    t,
		Message: msg,
		Hint:    hint,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, t ErrorType, msg string, hint string) *AppError {
	return &AppError{
		Type:    t,
		Message: msg,
		Err:     err,
		Hint:    hint,
	}
}

// IsType reports whether any AppError in err's chain has type t.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// HintOf returns the hint of the first AppError in err's chain, if any.
func HintOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Hint
	}
	return ""
}

var (
	ErrIntegrityMismatch = New(TypeIntegrity, "Integrity failure", "The record stream may be corrupt or tampered with. Re-run chunking against the source.")
)
