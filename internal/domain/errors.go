package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by the token codec, the refresh token ledger and the
// auth flows. Callers branch on them with errors.Is.
var (
	ErrConfiguration      = errors.New("auth configuration error")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenNotRecognized = errors.New("refresh token not recognized")
	ErrBindingMismatch    = errors.New("token binding mismatch")
	ErrStorage            = errors.New("storage error")
	ErrNotFound           = errors.New("record not found")
	ErrConflict           = errors.New("record already exists")
)

// StorageError wraps a failure of the persistence layer. It matches
// ErrStorage and unwraps to the driver error for server-side logging.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
