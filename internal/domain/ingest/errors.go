package ingest

import "errors"

var (
	// ErrUnknownSession is returned when a report references a session
	// without a stored journey. The report is dropped.
	ErrUnknownSession = errors.New("unknown session")
	// ErrInvalidInput is returned for reports missing required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistence is returned when the store fails. Callers do not retry.
	ErrPersistence = errors.New("persistence failure")
)
