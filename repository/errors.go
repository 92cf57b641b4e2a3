package repository

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/chasm/model"
)

// ConcurrencyError means a WriteCommitRef found the ref in a state other
// than the caller expected. Err is the underlying cause, if any.
type ConcurrencyError struct {
	Name   string
	Branch string
	Err    error
}

func (e *ConcurrencyError) Error() string {
	s := fmt.Sprintf("commit ref %s@%s changed concurrently", e.Name, e.Branch)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ConcurrencyError) Unwrap() error { return e.Err }

// ValidationError reports a malformed argument. No I/O was done.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CorruptionError means the bytes stored for an object or ref could not be
// decoded, or do not hash to the object's id.
type CorruptionError struct {
	ID  string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupt object %s: %s", e.ID, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// FanoutError is returned by Hybrid writes when at least one tier failed.
// Errs is indexed by tier and is nil for tiers which succeeded. Tiers which
// succeeded keep what was written.
type FanoutError struct {
	Errs []error
}

func (e *FanoutError) Error() string {
	var failed []string
	for i, err := range e.Errs {
		if err != nil {
			failed = append(failed, fmt.Sprintf("tier %d: %s", i, err))
		}
	}
	return fmt.Sprintf("write failed on %d of %d tiers: %s",
		len(failed), len(e.Errs), strings.Join(failed, "; "))
}

// IsConcurrency reports whether err is, or wraps, a *ConcurrencyError.
func IsConcurrency(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

// IsCorruption reports whether err is, or wraps, a *CorruptionError.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// validation converts an error from the model package.
func validation(err error) error {
	if ie, ok := err.(*model.InvalidError); ok {
		return &ValidationError{Field: ie.Field, Reason: ie.Reason}
	}
	return err
}

// validateRef checks the name and branch of a ref.
func validateRef(name, branch string) error {
	if err := model.ValidateName("name", name); err != nil {
		return validation(err)
	}
	return validation(model.ValidateName("branch", branch))
}
