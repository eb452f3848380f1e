package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every pipeline failure matches exactly one of these via errors.Is.
var (
	ErrDocumentLoad = errors.New("document load error")
	ErrEmbedding    = errors.New("embedding error")
	ErrStore        = errors.New("store error")
	ErrGeneration   = errors.New("generation error")
)

// Specific causes, wrapped inside a kind.
var (
	ErrEmptyDocument     = errors.New("no extractable text")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrDuplicateID       = errors.New("duplicate record id")
	ErrLengthMismatch    = errors.New("chunks and embeddings differ in length")
	ErrEmptyOutput       = errors.New("generator returned no text")
	ErrInvalidWindow     = errors.New("invalid chunk window")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrQuestionTooLong   = errors.New("question too long")
	ErrBusy              = errors.New("ingestion in progress")
	ErrOutsideRoot       = errors.New("path outside document root")
	ErrRemoteDisabled    = errors.New("remote documents are disabled")
)

// PipelineError attaches a kind and the failing operation to a cause.
type PipelineError struct {
	Kind    error
	Op      string
	Wrapped error
}

func (e *PipelineError) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Wrapped)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *PipelineError) Unwrap() []error {
	if e.Wrapped == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Wrapped}
}

func newKind(kind error, op string, err error) error {
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Kind == kind {
		return err
	}
	return &PipelineError{Kind: kind, Op: op, Wrapped: err}
}

// DocumentLoadError reports an unreadable file or a document without text.
func DocumentLoadError(op string, err error) error { return newKind(ErrDocumentLoad, op, err) }

// EmbeddingError reports an encoder failure.
func EmbeddingError(op string, err error) error { return newKind(ErrEmbedding, op, err) }

// StoreError reports a vector store read or write failure.
func StoreError(op string, err error) error { return newKind(ErrStore, op, err) }

// GenerationError reports a generator failure or malformed output.
func GenerationError(op string, err error) error { return newKind(ErrGeneration, op, err) }

// Kind returns the error kind of err, or nil if it carries none.
func Kind(err error) error {
	for _, k := range []error{ErrDocumentLoad, ErrEmbedding, ErrStore, ErrGeneration} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
