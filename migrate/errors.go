package migrate

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error classes. Every error the engine returns can be tested against these
// with errors.Is, including errors that crossed a plugin boundary.
var (
	// ErrNotFound is returned when no valid local version exists or a
	// requested version folder is missing.
	ErrNotFound = errors.New("version not found")

	// ErrUnsupportedPlatform is returned when neither a built-in adapter nor
	// a plugin resolves for the requested platform.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrConnection is returned when a provider cannot reach the database.
	ErrConnection = errors.New("connection failed")

	// ErrBatchExecution is returned when a batch fails against the database.
	ErrBatchExecution = errors.New("batch execution failed")

	// ErrDuplicateVersion is returned when two folders parse to the same version.
	ErrDuplicateVersion = errors.New("duplicate version folder")

	// ErrInvalidToken is returned for malformed KEY=VALUE token input.
	ErrInvalidToken = errors.New("invalid token")

	// ErrVerifyRequiresAtomicDDL is returned when verify-only mode is asked
	// of a platform whose DDL cannot be rolled back.
	ErrVerifyRequiresAtomicDDL = errors.New("verify requires atomic DDL support")
)

// BatchExecutionError reports a failed batch. Err keeps the provider-native
// message untouched.
type BatchExecutionError struct {
	Version string
	Script  string
	Batch   int
	Err     error
}

// Error implements the error interface.
func (e *BatchExecutionError) Error() string {
	if e.Script == "" {
		return fmt.Sprintf("%s: batch %d failed: %v", e.Version, e.Batch, e.Err)
	}
	return fmt.Sprintf("%s: %s: batch %d failed: %v", e.Version, e.Script, e.Batch, e.Err)
}

// Unwrap returns the underlying error.
func (e *BatchExecutionError) Unwrap() error {
	return e.Err
}

// Is makes BatchExecutionError match ErrBatchExecution.
func (e *BatchExecutionError) Is(target error) bool {
	return target == ErrBatchExecution
}

// PartialApplicationWarning is attached to a run report when a platform
// without atomic DDL aborts in the middle of a version. The batches counted
// in BatchesApplied stay in the database.
type PartialApplicationWarning struct {
	Version        string
	BatchesApplied int
	Err            error
}

// Error implements the error interface.
func (w *PartialApplicationWarning) Error() string {
	return fmt.Sprintf("%s partially applied: %d batch(es) committed before failure: %v",
		w.Version, w.BatchesApplied, w.Err)
}

// Unwrap returns the failure that stopped the version.
func (w *PartialApplicationWarning) Unwrap() error {
	return w.Err
}

// MarkConnection classifies err as a connection failure.
func MarkConnection(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrConnection)
}

// MarkBatch classifies err as a batch execution failure.
func MarkBatch(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrBatchExecution)
}

// IsNotFound reports whether err is classified as ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnsupportedPlatform reports whether err is classified as ErrUnsupportedPlatform.
func IsUnsupportedPlatform(err error) bool { return errors.Is(err, ErrUnsupportedPlatform) }

// IsConnection reports whether err is classified as ErrConnection.
func IsConnection(err error) bool { return errors.Is(err, ErrConnection) }

// IsBatchExecution reports whether err is classified as ErrBatchExecution.
func IsBatchExecution(err error) bool { return errors.Is(err, ErrBatchExecution) }

// Class returns the name of the error class err belongs to, or "" when it
// matches none. Used to carry the classification across process boundaries.
func Class(err error) string {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c.name
		}
	}
	return ""
}

// FromClass rebuilds an error with the given class and message.
func FromClass(class, msg string) error {
	err := errors.New(msg)
	for _, c := range classes {
		if c.name == class {
			return errors.Mark(err, c.sentinel)
		}
	}
	return err
}

// Most specific first: a batch failure wrapping a connection drop reports
// as a batch failure.
var classes = []struct {
	name     string
	sentinel error
}{
	{"batch_execution", ErrBatchExecution},
	{"connection", ErrConnection},
	{"not_found", ErrNotFound},
	{"unsupported_platform", ErrUnsupportedPlatform},
	{"duplicate_version", ErrDuplicateVersion},
	{"invalid_token", ErrInvalidToken},
	{"verify_requires_ddl", ErrVerifyRequiresAtomicDDL},
}
