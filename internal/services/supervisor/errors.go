package supervisor

import "errors"

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoSnapshot     = errors.New("no snapshot available yet")
)
