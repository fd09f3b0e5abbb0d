package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// State is the lifecycle position of a Worker
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateExited
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// Runner is the loop body hosted by a Worker. Run must return soon after ctx is done.
type Runner interface {
	Run(ctx context.Context)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context)

func (f RunnerFunc) Run(ctx context.Context) { f(ctx) }

// Worker owns one goroutine executing a Runner.
//
// Every successful Start must be paired with exactly one Join or Detach
// before the worker can be started again.
type Worker struct {
	name   string
	runner Runner
	logger zerolog.Logger

	state int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle worker
func New(name string, runner Runner, logger zerolog.Logger) *Worker {
	return &Worker{
		name:   name,
		runner: runner,
		logger: logger.With().Str("worker", name).Logger(),
	}
}

// Name returns the worker name
func (w *Worker) Name() string { return w.name }

// State returns the current lifecycle state
func (w *Worker) State() State {
	return State(atomic.LoadInt32(&w.state))
}

// Running reports whether the goroutine is still executing
func (w *Worker) Running() bool {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Start spawns the goroutine
func (w *Worker) Start() error {
	if !atomic.CompareAndSwapInt32(&w.state, int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyRunning, w.name, w.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	w.logger.Debug().Msg("Worker starting")
	go w.run(ctx, cancel, done)
	return nil
}

func (w *Worker) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer func() {
		cancel()
		if r := recover(); r != nil {
			w.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Worker panic recovered")
		}

		for {
			switch State(atomic.LoadInt32(&w.state)) {
			case StateRunning:
				if atomic.CompareAndSwapInt32(&w.state, int32(StateRunning), int32(StateExited)) {
					close(done)
					return
				}
			case StateDetached:
				if atomic.CompareAndSwapInt32(&w.state, int32(StateDetached), int32(StateIdle)) {
					close(done)
					return
				}
			default:
				close(done)
				return
			}
		}
	}()

	w.runner.Run(ctx)
	w.logger.Debug().Msg("Worker loop returned")
}

// RequestStop asks the runner to exit. It does not wait.
func (w *Worker) RequestStop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// Done is closed when the current run exits. Nil before the first Start.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Join blocks until the goroutine exits, then returns the worker to idle.
// If ctx ends first the run stays joinable and ctx.Err() is returned.
func (w *Worker) Join(ctx context.Context) error {
	switch w.State() {
	case StateIdle:
		return fmt.Errorf("%w: %s", ErrNotStarted, w.name)
	case StateDetached:
		return fmt.Errorf("%w: %s", ErrDetached, w.name)
	}

	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if !atomic.CompareAndSwapInt32(&w.state, int32(StateExited), int32(StateIdle)) {
		return fmt.Errorf("%w: %s", ErrNotStarted, w.name)
	}
	w.logger.Debug().Msg("Worker joined")
	return nil
}

// Detach releases ownership without waiting. The worker becomes idle once the goroutine exits.
func (w *Worker) Detach() error {
	for {
		switch w.State() {
		case StateRunning:
			if atomic.CompareAndSwapInt32(&w.state, int32(StateRunning), int32(StateDetached)) {
				w.logger.Debug().Msg("Worker detached")
				return nil
			}
		case StateExited:
			if atomic.CompareAndSwapInt32(&w.state, int32(StateExited), int32(StateIdle)) {
				return nil
			}
		case StateDetached:
			return fmt.Errorf("%w: %s", ErrDetached, w.name)
		default:
			return fmt.Errorf("%w: %s", ErrNotStarted, w.name)
		}
	}
}
