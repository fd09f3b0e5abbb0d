package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/helpers"
	"sentinel-worker-go/internal/models"
)

// Options wires a Recorder to its collaborators
type Options struct {
	Device   config.DeviceConfig
	Factory  EncoderFactory
	Listener Listener // optional
	Budget   *Budget  // optional
	Logger   zerolog.Logger
	Now      func() time.Time
}

type session struct {
	seg      models.Segment
	encoder  Encoder
	cooldown int
}

// Recorder is the per-device recording state machine (Closed / Recording).
// It is owned by the device loop goroutine and is not safe for concurrent use.
type Recorder struct {
	dev      config.DeviceConfig
	factory  EncoderFactory
	listener Listener
	budget   *Budget
	logger   zerolog.Logger
	now      func() time.Time

	current *session

	lastBase string
	repeat   int
	opened   int64
}

func New(opts Options) *Recorder {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	listener := opts.Listener
	if listener == nil {
		listener = Listeners(nil)
	}
	return &Recorder{
		dev:      opts.Device,
		factory:  opts.Factory,
		listener: listener,
		budget:   opts.Budget,
		logger:   opts.Logger,
		now:      now,
	}
}

// Recording reports whether a segment is open
func (r *Recorder) Recording() bool { return r.current != nil }

// Cooldown returns the no-motion frames still tolerated, or 0 when closed
func (r *Recorder) Cooldown() int {
	if r.current == nil {
		return 0
	}
	return r.current.cooldown
}

// FrameCount returns the frames written to the open segment
func (r *Recorder) FrameCount() int {
	if r.current == nil {
		return 0
	}
	return r.current.seg.Frames
}

// SegmentsOpened returns how many segments were started
func (r *Recorder) SegmentsOpened() int64 { return r.opened }

// Current returns a copy of the open segment
func (r *Recorder) Current() (models.Segment, bool) {
	if r.current == nil {
		return models.Segment{}, false
	}
	return r.current.seg, true
}

// Observe runs the Closed -> Recording transition for this frame's classification.
// Open failures leave the recorder closed; the next motion frame retries.
func (r *Recorder) Observe(motion bool) error {
	if !motion || r.current != nil {
		return nil
	}
	if !r.budget.CanOpen() {
		r.logger.Debug().Int64("budget", r.budget.Available()).Msg("Recording budget exhausted, segment not opened")
		return nil
	}
	return r.Open()
}

// Write appends frame to the open segment and applies the cooldown and
// frame-cap rules. It is a no-op while closed. Up to CooldownFrames no-motion
// frames are tolerated; the next one is written and closes the segment.
func (r *Recorder) Write(frame *models.Frame, motion bool) error {
	s := r.current
	if s == nil {
		return nil
	}

	if !r.budget.Take() {
		r.logger.Info().Int("frames", s.seg.Frames).Msg("Recording throttled")
		return r.Close(models.CloseThrottled)
	}

	if err := s.encoder.Write(frame); err != nil {
		if !errors.Is(err, ErrEncoderWriteFailed) {
			err = fmt.Errorf("%w: %v", ErrEncoderWriteFailed, err)
		}
		r.logger.Error().Err(err).Str("path", s.seg.Path).Int("frames", s.seg.Frames).Msg("Segment write failed, closing segment")
		_ = r.Close(models.CloseWriteFailed)
		return err
	}
	s.seg.Frames++

	if motion {
		s.cooldown = r.dev.Video.CooldownFrames
	} else if s.cooldown > 0 {
		s.cooldown--
	} else {
		return r.Close(models.CloseCooldown)
	}

	if s.seg.Frames >= r.dev.Video.MaxFramesPerVideo {
		_ = r.Close(models.CloseMaxFrames)
		if motion {
			// rollover: the next frame lands in a fresh segment
			return r.Open()
		}
	}
	return nil
}

// Process is Observe followed by Write
func (r *Recorder) Process(frame *models.Frame, motion bool) error {
	if err := r.Observe(motion); err != nil {
		return err
	}
	return r.Write(frame, motion)
}

// Open starts a new segment
func (r *Recorder) Open() error {
	if r.current != nil {
		return ErrSessionOpen
	}

	start := r.now()
	path := r.nextPath(start)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		err = fmt.Errorf("%w: %v", ErrEncoderOpenFailed, err)
		r.logger.Error().Err(err).Str("path", path).Msg("Failed to open segment")
		return err
	}

	spec := StreamSpec{
		Width:     r.dev.Width,
		Height:    r.dev.Height,
		FrameRate: r.dev.Video.FrameRate,
		Start:     start,
	}
	enc, err := r.factory.Open(path, spec)
	if err != nil {
		if !errors.Is(err, ErrEncoderOpenFailed) {
			err = fmt.Errorf("%w: %v", ErrEncoderOpenFailed, err)
		}
		r.logger.Error().Err(err).Str("path", path).Msg("Failed to open segment")
		return err
	}

	r.current = &session{
		seg: models.Segment{
			ID:          uuid.New().String(),
			DeviceIndex: r.dev.Index,
			DeviceName:  r.dev.Name,
			Path:        path,
			Encoder:     r.factory.Kind(),
			Width:       spec.Width,
			Height:      spec.Height,
			StartedAt:   start,
		},
		encoder:  enc,
		cooldown: r.dev.Video.CooldownFrames,
	}
	r.opened++

	r.logger.Info().
		Str("segment_id", r.current.seg.ID).
		Str("path", path).
		Str("encoder", r.factory.Kind()).
		Msg("Recording started")
	r.listener.SegmentOpened(r.current.seg)
	return nil
}

// Close finalizes the open segment. It is a no-op while closed.
func (r *Recorder) Close(reason models.CloseReason) error {
	s := r.current
	if s == nil {
		return nil
	}
	r.current = nil

	err := s.encoder.Close()
	s.seg.EndedAt = r.now()
	s.seg.Reason = reason

	r.logger.Info().
		Str("segment_id", s.seg.ID).
		Str("path", s.seg.Path).
		Int("frames", s.seg.Frames).
		Str("reason", string(reason)).
		Dur("duration", s.seg.EndedAt.Sub(s.seg.StartedAt)).
		Msg("Recording stopped")
	if err != nil {
		r.logger.Warn().Err(err).Str("path", s.seg.Path).Msg("Segment finalize reported an error")
	}
	r.listener.SegmentClosed(s.seg)
	return err
}

// nextPath expands the video template and never hands out the same path twice in a row
func (r *Recorder) nextPath(ts time.Time) string {
	vars := helpers.Placeholders{
		DeviceName:  r.dev.Name,
		DeviceIndex: r.dev.Index,
		Width:       r.dev.Width,
		Height:      r.dev.Height,
		Time:        ts,
	}
	base := vars.ExpandPath(r.dev.Video.Directory, r.dev.Video.Filename)

	if base != r.lastBase {
		r.lastBase = base
		r.repeat = 0
	}
	path := base
	if r.repeat > 0 {
		path = helpers.WithSuffix(base, r.repeat)
	}
	for exists(path) {
		r.repeat++
		path = helpers.WithSuffix(base, r.repeat)
	}
	r.repeat++
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
