package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedRecord is matched by every *MalformedRecordError.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrStorageUnavailable marks a local cache or durable store that could not be reached.
	// Operations failing with it are safe to retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrReconciliationIncomplete is matched by every *ReconciliationIncompleteError.
	ErrReconciliationIncomplete = errors.New("reconciliation incomplete")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

type ArgumentError struct {
	msg string
}

func NewArgumentError(msg string) *ArgumentError {
	return &ArgumentError{msg}
}

func (err *ArgumentError) Error() string {
	return err.msg
}

// MalformedRecordError reports a catalog row that cannot be turned into a valid record.
type MalformedRecordError struct {
	Index  int    // position of the row in its batch
	ID     string // record ID, if it could be read
	Field  string
	Reason string
}

func (err *MalformedRecordError) Error() string {
	if err.ID != "" {
		return fmt.Sprintf("malformed record #%d (%s): %s: %s", err.Index, err.ID, err.Field, err.Reason)
	}
	return fmt.Sprintf("malformed record #%d: %s: %s", err.Index, err.Field, err.Reason)
}

func (err *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// StorageError wraps an I/O failure of a store so that it matches ErrStorageUnavailable.
func StorageError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &storageError{cause: errors.Wrap(err, msg)}
}

type storageError struct {
	cause error
}

func (err *storageError) Error() string { return ErrStorageUnavailable.Error() + ": " + err.cause.Error() }

func (err *storageError) Unwrap() error { return err.cause }

func (err *storageError) Is(target error) bool { return target == ErrStorageUnavailable }

// ReconciliationIncompleteError is returned when the account write of a reconciliation failed.
// The guest progress is left untouched; the reconciliation can be retried.
type ReconciliationIncompleteError struct {
	AccountID string
	Err       error
}

func (err *ReconciliationIncompleteError) Error() string {
	return fmt.Sprintf("reconciliation into account %q incomplete: %v", err.AccountID, err.Err)
}

func (err *ReconciliationIncompleteError) Unwrap() error { return err.Err }

func (err *ReconciliationIncompleteError) Is(target error) bool {
	return target == ErrReconciliationIncomplete
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
