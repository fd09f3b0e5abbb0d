package device

import "errors"

var (
	// ErrSourceUnavailable wraps frame pull failures. The loop substitutes a placeholder.
	ErrSourceUnavailable = errors.New("frame source unavailable")
	// ErrRunning is returned by SetParameters once the loop has started
	ErrRunning = errors.New("device loop is running")
)
