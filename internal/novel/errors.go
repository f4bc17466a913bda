package novel

import (
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for catalog construction and progress reconciliation.
var (
	ErrCatalogEmpty      = errors.New("catalog contains no chapters")
	ErrExtractionFailed  = errors.New("catalog extraction failed")
	ErrStaleProgress     = errors.New("saved progress does not match catalog")
	ErrIncompleteCatalog = errors.New("catalog has unfetched chapters")
	ErrProgressNotFound  = errors.New("no saved progress")
)

// FailureClass partitions fetch errors by how the scheduler should react.
type FailureClass int

const (
	// ClassTransient errors are retried with backoff.
	ClassTransient FailureClass = iota
	// ClassPermanentParse errors mark the chapter failed and move on.
	ClassPermanentParse
	// ClassPermanentAccess errors abort the whole run.
	ClassPermanentAccess
)

type classifiedError struct {
	class FailureClass
	err   error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// MarkTransient tags err as retryable.
func MarkTransient(err error) error {
	return &classifiedError{class: ClassTransient, err: err}
}

// MarkParseFailure tags err as a permanent parse problem for one chapter.
func MarkParseFailure(err error) error {
	return &classifiedError{class: ClassPermanentParse, err: err}
}

// MarkAccessFailure tags err as a site-level denial that should stop the run.
func MarkAccessFailure(err error) error {
	return &classifiedError{class: ClassPermanentAccess, err: err}
}

// ParseFailuref builds a permanent parse failure from a format string.
func ParseFailuref(format string, args ...any) error {
	return MarkParseFailure(fmt.Errorf(format, args...))
}

// ClassOf returns the failure class of err. Unclassified errors default to
// transient, which only costs wasted retries rather than lost chapters.
func ClassOf(err error) FailureClass {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ClassTransient
	}
	return ClassTransient
}

// KindForClass maps a failure class to the kind recorded in progress.
func KindForClass(c FailureClass) FailureKind {
	switch c {
	case ClassPermanentParse:
		return FailurePermanentParse
	case ClassPermanentAccess:
		return FailurePermanentAccess
	default:
		return FailureTransientExhausted
	}
}
