package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/talent-ranker/internal/grounding"
	"github.com/spigell/talent-ranker/internal/profile"
	"github.com/spigell/talent-ranker/internal/semantic"
)

// Kind classifies an engine failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindInternal    Kind = "internal"
)

// Error is the structured failure returned by every engine operation.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable || e.Kind == KindTimeout
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

// wrap converts err into an *Error, keeping existing classifications.
func wrap(detail string, err error) error {
	if err == nil {
		return nil
	}

	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindTimeout, Detail: detail + " timed out or was cancelled", Err: err}
	case errors.Is(err, semantic.ErrEmbeddingUnavailable):
		return &Error{Kind: KindUnavailable, Detail: "embedding model is unavailable", Err: err}
	case errors.Is(err, profile.ErrEmptyText), errors.Is(err, grounding.ErrEmptyQuestion):
		return &Error{Kind: KindValidation, Detail: err.Error(), Err: err}
	default:
		return &Error{Kind: KindInternal, Detail: detail + " failed", Err: err}
	}
}
