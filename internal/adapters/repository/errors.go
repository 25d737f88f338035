package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound       = errors.New("journey not found")
	ErrAlreadyExists  = errors.New("journey already exists")
	ErrInvalidJourney = errors.New("invalid journey")
	ErrUnknownDriver  = errors.New("unknown storage driver")
	ErrCorruptRow     = errors.New("corrupt stored row")
)
