package core

import (
	"context"
	"errors"
)

// Kind classifies a Failure.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindAlreadyReturned    Kind = "already_returned"
	KindNoCopiesAvailable  Kind = "no_copies_available"
	KindBorrowLimitReached Kind = "borrow_limit_reached"
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindCanceled           Kind = "canceled"
	KindUnexpected         Kind = "unexpected"
)

// Failure is a typed lending error. Its Message is what the caller gets to see.
type Failure struct {
	Kind    Kind
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Is matches another Failure of the same Kind. A target without a Message matches every
// Failure of its Kind, so errors.Is(err, ErrNotFound) holds for books, students and loans.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok || t.Kind != f.Kind {
		return false
	}

	return t.Message == "" || t.Message == f.Message
}

var (
	ErrNotFound           = &Failure{Kind: KindNotFound}
	ErrBookNotFound       = &Failure{Kind: KindNotFound, Message: "Book not found"}
	ErrStudentNotFound    = &Failure{Kind: KindNotFound, Message: "Student not found"}
	ErrUnknownStudent     = &Failure{Kind: KindNotFound, Message: "Invalid student ID"}
	ErrLoanNotFound       = &Failure{Kind: KindNotFound, Message: "Transaction not found"}
	ErrAlreadyReturned    = &Failure{Kind: KindAlreadyReturned, Message: "Book already returned"}
	ErrNoCopiesAvailable  = &Failure{Kind: KindNoCopiesAvailable, Message: "No copies available"}
	ErrBorrowLimitReached = &Failure{Kind: KindBorrowLimitReached, Message: "Borrow limit reached"}
	ErrValidation         = &Failure{Kind: KindValidation}
	ErrConflict           = &Failure{Kind: KindConflict, Message: "The request conflicted with a concurrent update, please try again"}
	ErrStoreUnavailable   = &Failure{Kind: KindStoreUnavailable, Message: "The library store is currently unavailable"}
)

// Validation creates a Failure for missing or malformed input.
func Validation(message string) error {
	return &Failure{Kind: KindValidation, Message: message}
}

// KindOf classifies any error. Errors that are not a Failure are either canceled or unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}

	return KindUnexpected
}

// IsBusinessFailure reports whether err is an expected outcome of a lending rule,
// as opposed to a technical failure.
func IsBusinessFailure(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindAlreadyReturned, KindNoCopiesAvailable, KindBorrowLimitReached, KindValidation, KindConflict:
		return true
	default:
		return false
	}
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var f *Failure
	if errors.As(err, &f) && f.Message != "" {
		return f.Message
	}

	return "An unexpected error occurred"
}
