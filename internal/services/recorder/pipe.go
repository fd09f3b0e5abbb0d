package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/helpers"
	"sentinel-worker-go/internal/models"
)

const outputTailSize = 4096

// PipeFactory spawns an external encoder per segment from a command template
// and streams raw BGR24 frames into its stdin.
type PipeFactory struct {
	Command      string
	Vars         helpers.Placeholders
	WriteTimeout time.Duration
	CloseTimeout time.Duration
	Shell        string
	Logger       zerolog.Logger
}

func (f *PipeFactory) Kind() string { return "external" }

func (f *PipeFactory) Open(path string, spec StreamSpec) (Encoder, error) {
	vars := f.Vars
	vars.Time = spec.Start
	if vars.Time.IsZero() {
		vars.Time = time.Now()
	}
	vars.Width = spec.Width
	vars.Height = spec.Height
	vars.Extra = map[string]string{
		"{framerate}": strconv.FormatFloat(spec.FrameRate, 'f', -1, 64),
		"{videoPath}": path,
	}
	cmdline := vars.ExpandShell(f.Command)

	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty encoder command", ErrEncoderOpenFailed)
	}
	// Only a literal executable path is checked up front; anything else is
	// left to the shell.
	if isPlainPath(fields[0]) {
		if _, err := exec.LookPath(fields[0]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoderOpenFailed, err)
		}
	}

	shell := f.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell, "-c", cmdline)

	// stdout and stderr share one buffer, like 2>&1
	out := &tailBuffer{limit: outputTailSize}
	cmd.Stdout = out
	cmd.Stderr = out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create stdin pipe: %v", ErrEncoderOpenFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start encoder: %v", ErrEncoderOpenFailed, err)
	}

	f.Logger.Debug().
		Str("command", cmdline).
		Int("pid", cmd.Process.Pid).
		Msg("External encoder started")

	closeTimeout := f.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 5 * time.Second
	}

	return &PipeEncoder{
		cmd:          cmd,
		stdin:        stdin,
		out:          out,
		spec:         spec,
		writeTimeout: f.WriteTimeout,
		closeTimeout: closeTimeout,
		logger:       f.Logger,
	}, nil
}

func isPlainPath(word string) bool {
	return strings.ContainsRune(word, '/') && !strings.ContainsAny(word, `'"$=\`+"`")
}

// PipeEncoder is one running external encoder process
type PipeEncoder struct {
	cmd          *exec.Cmd
	stdin        io.WriteCloser
	out          *tailBuffer
	spec         StreamSpec
	writeTimeout time.Duration
	closeTimeout time.Duration
	logger       zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

func (e *PipeEncoder) Write(frame *models.Frame) error {
	if !frame.Valid() || frame.Width != e.spec.Width || frame.Height != e.spec.Height {
		return fmt.Errorf("%w: frame %dx%d (%d bytes) does not match stream %dx%d",
			ErrEncoderWriteFailed, frame.Width, frame.Height, len(frame.Data), e.spec.Width, e.spec.Height)
	}

	if dw, ok := e.stdin.(deadlineWriter); ok && e.writeTimeout > 0 {
		_ = dw.SetWriteDeadline(time.Now().Add(e.writeTimeout))
	}

	if _, err := e.stdin.Write(frame.Data); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoderWriteFailed, err)
	}
	return nil
}

// Close ends the input stream and waits for the encoder to finalize the file.
// A process that outlives the close timeout is interrupted, then killed.
func (e *PipeEncoder) Close() error {
	e.closeOnce.Do(func() {
		_ = e.stdin.Close()

		done := make(chan error, 1)
		go func() {
			done <- e.cmd.Wait()
		}()

		var err error
		select {
		case err = <-done:
		case <-time.After(e.closeTimeout):
			if sigErr := e.cmd.Process.Signal(os.Interrupt); sigErr != nil {
				e.logger.Warn().Err(sigErr).Msg("Failed to send interrupt signal")
			}
			select {
			case err = <-done:
			case <-time.After(2 * time.Second):
				_ = e.cmd.Process.Kill()
				<-done
				err = errors.New("encoder killed after close timeout")
				e.logger.Warn().Msg("Force killed external encoder")
			}
		}

		if err != nil {
			e.logger.Warn().
				Err(err).
				Str("output", e.out.String()).
				Msg("External encoder exited with error")
			e.closeErr = fmt.Errorf("external encoder: %w", err)
			return
		}
		if s := e.out.String(); s != "" {
			e.logger.Debug().Str("output", s).Msg("External encoder output")
		}
	})
	return e.closeErr
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
