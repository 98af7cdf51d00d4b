package compounding

import (
	"errors"
	"fmt"
)

// Sentinels for the error kinds callers branch on. The typed errors below
// match them through errors.Is.
var (
	ErrValidation        = errors.New("compounding: validation failed")
	ErrNotFound          = errors.New("compounding: not found")
	ErrIncompatibleUnits = errors.New("compounding: incompatible units")
	ErrInsufficientStock = errors.New("compounding: insufficient stock")
	ErrConflict          = errors.New("compounding: conflict")
	ErrStorage           = errors.New("compounding: storage failure")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IncompatibleUnitsError reports a conversion across unit kinds.
type IncompatibleUnitsError struct {
	FromCode string
	FromKind string
	ToCode   string
	ToKind   string
}

func (e *IncompatibleUnitsError) Error() string {
	return fmt.Sprintf("cannot convert %s (%s) to %s (%s)", e.FromCode, e.FromKind, e.ToCode, e.ToKind)
}

func (e *IncompatibleUnitsError) Is(target error) bool { return target == ErrIncompatibleUnits }

// InsufficientStockError carries the lot's availability at the time the
// consumption was rejected.
type InsufficientStockError struct {
	LotID     uint
	Available float64
	UnitCode  string
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("lot %d has %g %s available, %g %s requested", e.LotID, e.Available, e.UnitCode, e.Requested, e.UnitCode)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ConflictError reports an operation refused because other records still
// depend on the target.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageError unless it already carries one of the
// domain kinds, which pass through untouched.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrIncompatibleUnits, ErrInsufficientStock, ErrConflict, ErrStorage} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return &StorageError{Op: op, Err: err}
}
