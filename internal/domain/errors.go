package domain

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable category of a failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindUnsupported Kind = "unsupported"
	KindUpstream    Kind = "upstream"
	KindStorage     Kind = "storage"
	KindNotFound    Kind = "not_found"
	KindInternal    Kind = "internal"
)

var (
	// ErrEmptyText is returned when there is nothing to ingest.
	ErrEmptyText = errors.New("text is empty")

	// ErrEmptyQuestion is returned when a question is blank.
	ErrEmptyQuestion = errors.New("question is required")

	// ErrInvalidURL indicates a missing or unusable URL.
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnsupportedType indicates a file type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrDimensionMismatch indicates embeddings of differing lengths.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Error carries a human-readable message together with its Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Validation wraps err as a validation failure.
func Validation(err error, format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Unsupported wraps err as an unsupported-input failure.
func Unsupported(err error, format string, args ...any) error {
	return &Error{Kind: KindUnsupported, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Upstream wraps err as a failure of an external collaborator.
func Upstream(err error, format string, args ...any) error {
	return &Error{Kind: KindUpstream, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Storage wraps err as a durable storage failure.
func Storage(err error, format string, args ...any) error {
	return &Error{Kind: KindStorage, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the category of err. Errors that carry no category are
// internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
