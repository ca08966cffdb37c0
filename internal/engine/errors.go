package engine

import "errors"

var (
	// ErrSubjectNotFound is returned when an operation references a subject
	// that does not exist. Surfaced to the caller, never retried.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrAlertNotFound is returned when an alert id does not resolve.
	ErrAlertNotFound = errors.New("alert not found")
)
