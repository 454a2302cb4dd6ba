// Package apperrors defines the closed set of error variants produced by the
// portal's services. Handlers match these exhaustively at the HTTP boundary
// instead of inspecting error message text.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrMissingCode         = errors.New("authorization code missing from callback")
	ErrMissingVerifier     = errors.New("code verifier missing or expired")
	ErrTokenExchangeFailed = errors.New("token exchange failed")
)

// ProviderError reports an unsuccessful response from an upstream data or
// OAuth provider. StatusCode is 0 for transport-level failures.
type ProviderError struct {
	Provider   string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("provider %s unreachable: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError reports the first field of a record that failed its declared
// range, type, or enum check. No partial write happens after one is raised.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q failed validation (%s): got %v", e.Field, e.Reason, e.Value)
}

// StorageError wraps a persistence-layer failure with the operation that
// produced it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a provider timeout, including context
// deadline expiry wrapped inside a ProviderError.
func IsTimeout(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Timeout
	}
	return false
}
