// ABOUTME: Error taxonomy for SDK operations
// ABOUTME: Every failure is tagged with the operation kind that produced it

package sdk

import (
	"errors"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a logged-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// FailureKind identifies which operation failed.
type FailureKind int

const (
	QueryFailure FailureKind = iota + 1
	LoginFailure
	NotificationRegistrationFailure
)

func (k FailureKind) String() string {
	switch k {
	case QueryFailure:
		return "query failed"
	case LoginFailure:
		return "login failed"
	case NotificationRegistrationFailure:
		return "push registration failed"
	default:
		return "failed"
	}
}

// Failure is an operation error. Callers log it and fall back to a safe state.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return f.Kind.String() + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf returns the FailureKind carried by err, or 0 when err is not a Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}
