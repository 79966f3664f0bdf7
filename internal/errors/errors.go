package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the span index
type ErrorType string

const (
	// Storage format errors
	ErrorTypeEncoding      ErrorType = "encoding"
	ErrorTypeDecode        ErrorType = "decode"
	ErrorTypeOrdering      ErrorType = "ordering"
	ErrorTypeMergeConflict ErrorType = "merge_conflict"

	// Pipeline errors
	ErrorTypeFile  ErrorType = "file"
	ErrorTypeStore ErrorType = "store"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// Sentinel values for errors.Is matching against the typed errors below.
var (
	ErrEncoding      = errors.New("value does not fit the encoded width")
	ErrDecode        = errors.New("corrupt or truncated encoded data")
	ErrOrdering      = errors.New("spans are not ordered by start")
	ErrMergeConflict = errors.New("rows with the same merge id disagree")
)

// EncodingError reports a value that cannot be represented in the byte width
// allotted to an integer array. It is a caller contract violation.
type EncodingError struct {
	Index     int
	Value     int64
	Minimum   int64
	ByteWidth int
}

// NewEncodingError creates a new encoding error
func NewEncodingError(index int, value, minimum int64, byteWidth int) *EncodingError {
	return &EncodingError{Index: index, Value: value, Minimum: minimum, ByteWidth: byteWidth}
}

// Error implements the error interface
func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: value %d at index %d does not fit %d byte(s) above minimum %d",
		ErrorTypeEncoding, e.Value, e.Index, e.ByteWidth, e.Minimum)
}

// Is matches ErrEncoding
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

// DecodeError reports a corrupt or truncated compressed payload. It is fatal
// to the read of the unit that owns the payload.
type DecodeError struct {
	Operation  string
	Underlying error
}

// NewDecodeError creates a new decode error
func NewDecodeError(op string, err error) *DecodeError {
	return &DecodeError{Operation: op, Underlying: err}
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Underlying == nil {
		return fmt.Sprintf("%s %s failed", ErrorTypeDecode, e.Operation)
	}
	return fmt.Sprintf("%s %s failed: %v", ErrorTypeDecode, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *DecodeError) Unwrap() error {
	return e.Underlying
}

// Is matches ErrDecode
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// OrderingViolationError reports a span whose start precedes the start of the
// span before it.
type OrderingViolationError struct {
	Index      int
	Start      int64
	PriorStart int64
}

// NewOrderingViolationError creates a new ordering error
func NewOrderingViolationError(index int, start, priorStart int64) *OrderingViolationError {
	return &OrderingViolationError{Index: index, Start: start, PriorStart: priorStart}
}

// Error implements the error interface
func (e *OrderingViolationError) Error() string {
	return fmt.Sprintf("%s: span %d starts at %d before prior start %d",
		ErrorTypeOrdering, e.Index, e.Start, e.PriorStart)
}

// Is matches ErrOrdering
func (e *OrderingViolationError) Is(target error) bool {
	return target == ErrOrdering
}

// MergeConflictError reports two physical rows of one logical file that
// disagree on an immutable field.
type MergeConflictError struct {
	MergeID string
	Field   string
	First   string
	Second  string
}

// NewMergeConflictError creates a new merge conflict error
func NewMergeConflictError(mergeID, field, first, second string) *MergeConflictError {
	return &MergeConflictError{MergeID: mergeID, Field: field, First: first, Second: second}
}

// Error implements the error interface
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("%s for %s: field %s is %q in one row and %q in another",
		ErrorTypeMergeConflict, e.MergeID, e.Field, e.First, e.Second)
}

// Is matches ErrMergeConflict
func (e *MergeConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// FileError isolates a failure to a single file so a batch can continue.
type FileError struct {
	Type       ErrorType
	ProjectID  string
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, projectID, path string, err error) *FileError {
	return &FileError{
		Type:       ErrorTypeFile,
		ProjectID:  projectID,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s failed for %s/%s: %v", e.Type, e.Operation, e.ProjectID, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// StoreError represents a document store failure
type StoreError struct {
	Type       ErrorType
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewStoreError creates a new store error
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{
		Type:       ErrorTypeStore,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
