package identity

import "errors"

// ErrUninitialized is returned when no session could be started. Tracking
// stays disabled until the next page view.
var ErrUninitialized = errors.New("tracking session not initialized")
