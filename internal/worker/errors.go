package worker

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the previous run was not joined or detached
	ErrAlreadyRunning = errors.New("worker already running")
	// ErrNotStarted is returned by Join or Detach on a worker with no run to release
	ErrNotStarted = errors.New("worker not started")
	// ErrDetached is returned by Join after Detach released the run
	ErrDetached = errors.New("worker detached")
)
