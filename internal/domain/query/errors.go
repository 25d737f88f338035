package query

import "errors"

var (
	// ErrStorage is returned when journeys cannot be read.
	ErrStorage = errors.New("journey storage unavailable")
	// ErrExport is returned when a CSV file cannot be rendered.
	ErrExport = errors.New("export failed")
)
