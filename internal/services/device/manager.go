package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/helpers"
	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/recorder"
	"sentinel-worker-go/internal/services/snapshot"
)

// Deps are the collaborators of one device loop
type Deps struct {
	Source   FrameSource
	Ops      ImageOps
	Encoders recorder.EncoderFactory
	Store    *snapshot.Store
	Segments recorder.Listener // optional
	Motion   MotionListener    // optional
	Budget   *recorder.Budget  // optional
}

// stats are written by the loop and read by HTTP handlers
type stats struct {
	processed    atomic.Int64
	throttled    atomic.Int64
	placeholders atomic.Int64
	segments     atomic.Int64
	changeRate   atomic.Uint64 // float64 bits
	fps          atomic.Uint64 // float64 bits
	motion       atomic.Bool
	recording    atomic.Bool
	lastFrameAt  atomic.Int64 // unix nanos
}

// Manager runs the frame loop of one camera. Everything except the snapshot
// store and the stats counters is owned by the loop goroutine.
type Manager struct {
	cfg     config.DeviceConfig
	deps    Deps
	logger  zerolog.Logger
	limiter *logging.Limiter
	now     func() time.Time

	running atomic.Bool
	stats   stats

	rec       *recorder.Recorder
	motion    *classifier
	queue     timestampQueue
	prev      *models.Frame
	lastDiff  Diff
	lastState models.MotionState
	processed int64
	dropout   bool
}

// New validates cfg and builds an idle manager
func New(cfg config.DeviceConfig, deps Deps, logger zerolog.Logger) (*Manager, error) {
	if deps.Source == nil || deps.Ops == nil || deps.Encoders == nil || deps.Store == nil {
		return nil, errors.New("device manager requires a source, image ops, an encoder factory and a snapshot store")
	}
	m := &Manager{
		deps:    deps,
		logger:  logging.WithDevice(logger, cfg.Name, cfg.Index),
		limiter: logging.NewLimiter(30 * time.Second),
		now:     time.Now,
	}
	if err := m.apply(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// SetParameters replaces the configuration. Only allowed before the loop starts.
func (m *Manager) SetParameters(cfg config.DeviceConfig) error {
	if m.running.Load() {
		return fmt.Errorf("%w: %s", ErrRunning, m.cfg.Name)
	}
	return m.apply(cfg)
}

func (m *Manager) apply(cfg config.DeviceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfg = cfg
	m.motion = newClassifier(cfg.Motion.DiffLowerPercent, cfg.Motion.DiffUpperPercent)
	m.rec = recorder.New(recorder.Options{
		Device:   cfg,
		Factory:  m.deps.Encoders,
		Listener: m.deps.Segments,
		Budget:   m.deps.Budget,
		Logger:   m.logger,
		Now:      func() time.Time { return m.now() },
	})
	return nil
}

// Config returns the device configuration
func (m *Manager) Config() config.DeviceConfig { return m.cfg }

// Store returns the snapshot store served over HTTP
func (m *Manager) Store() *snapshot.Store { return m.deps.Store }

// Running reports whether the loop is executing
func (m *Manager) Running() bool { return m.running.Load() }

// Run is the device loop. It returns after ctx is cancelled and the open
// segment, if any, has been finalized.
func (m *Manager) Run(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		m.logger.Error().Msg("Device loop already running")
		return
	}
	defer m.running.Store(false)
	defer m.shutdown()

	m.logger.Info().
		Str("uri", m.cfg.URI).
		Int("width", m.cfg.Width).
		Int("height", m.cfg.Height).
		Bool("external_encoder", m.cfg.Video.UseExternalEncoder).
		Msg("Device loop started")

	for ctx.Err() == nil {
		m.step(ctx)
	}
}

func (m *Manager) shutdown() {
	if err := m.rec.Close(models.CloseShutdown); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to finalize segment on shutdown")
	}
	m.stats.recording.Store(false)
	if err := m.deps.Source.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to close frame source")
	}
	m.logger.Info().
		Int64("frames_processed", m.stats.processed.Load()).
		Int64("segments", m.rec.SegmentsOpened()).
		Msg("Device loop stopped")
}

// step runs one loop iteration
func (m *Manager) step(ctx context.Context) {
	frame := m.pull(ctx)
	if frame == nil {
		return
	}

	now := m.now()
	if !m.queue.allow(now, m.cfg.ThrottleFPS) {
		m.stats.throttled.Add(1)
		return
	}
	m.processed++

	state := m.evaluate(frame)
	motion := state == models.MotionDetected
	if state != m.lastState {
		m.motionChanged(state, now)
	}

	// Observe and Write log their own failures; the loop carries on either way
	_ = m.rec.Observe(motion)

	display := m.annotate(frame, motion)

	_ = m.rec.Write(display, motion)

	m.snapshot(display, now)

	m.stats.processed.Add(1)
	m.stats.segments.Store(m.rec.SegmentsOpened())
	m.stats.recording.Store(m.rec.Recording())
	m.stats.motion.Store(motion)
	m.stats.changeRate.Store(math.Float64bits(m.lastDiff.Percent))
	m.stats.fps.Store(math.Float64bits(m.queue.rate(now)))
	m.stats.lastFrameAt.Store(now.UnixNano())
}

// pull returns the next frame, or a placeholder when the source has none.
// Nil means ctx was cancelled.
func (m *Manager) pull(ctx context.Context) *models.Frame {
	frame, err := m.deps.Source.Next(ctx)
	if ctx.Err() != nil {
		return nil
	}

	if err == nil && frame.Valid() && frame.Width == m.cfg.Width && frame.Height == m.cfg.Height {
		if m.dropout {
			m.dropout = false
			m.limiter.Reset("source")
			m.logger.Info().Msg("Frame source recovered")
		}
		if frame.Timestamp.IsZero() {
			frame.Timestamp = m.now()
		}
		return frame
	}

	switch {
	case err != nil:
		err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	case frame == nil:
		err = fmt.Errorf("%w: no frame", ErrSourceUnavailable)
	default:
		err = fmt.Errorf("%w: unexpected frame %dx%d (%d bytes)", ErrSourceUnavailable, frame.Width, frame.Height, len(frame.Data))
	}
	m.dropout = true
	if ok, suppressed := m.limiter.Allow("source"); ok {
		m.logger.Warn().Err(err).Int("suppressed", suppressed).Msg("Frame source unavailable, using placeholder")
	}
	m.stats.placeholders.Add(1)

	wait(ctx, m.cfg.Source.RetryDelay)
	if ctx.Err() != nil {
		return nil
	}

	p := m.deps.Ops.Placeholder(m.cfg.Width, m.cfg.Height, "No signal: "+m.cfg.Name, m.now())
	p.Placeholder = true
	return p
}

// evaluate classifies the frame. Placeholders always count as zero change and
// clear the baseline so the first real frame after a dropout is not compared
// against a blank image.
func (m *Manager) evaluate(frame *models.Frame) models.MotionState {
	if frame.Placeholder {
		m.prev = nil
		m.lastDiff = Diff{}
		return m.motion.update(0)
	}

	if (m.processed-1)%int64(m.cfg.Motion.DiffEveryNthFrame) != 0 {
		return m.motion.current()
	}

	if m.prev == nil || !m.prev.SameGeometry(frame) {
		m.prev = frame
		m.lastDiff = Diff{}
		return m.motion.update(0)
	}

	diff, err := m.deps.Ops.ChangeRate(m.prev, frame, m.cfg.Motion.PixelThreshold)
	m.prev = frame
	if err != nil {
		if ok, suppressed := m.limiter.Allow("diff"); ok {
			m.logger.Warn().Err(err).Int("suppressed", suppressed).Msg("Frame differencing failed")
		}
		return m.motion.current()
	}
	m.lastDiff = diff
	return m.motion.update(diff.Percent)
}

func (m *Manager) motionChanged(state models.MotionState, now time.Time) {
	m.lastState = state
	m.logger.Info().
		Str("state", state.String()).
		Float64("change_rate", m.lastDiff.Percent).
		Msg("Motion state changed")

	if m.deps.Motion != nil {
		m.deps.Motion.MotionChanged(models.MotionEvent{
			DeviceIndex: m.cfg.Index,
			DeviceName:  m.cfg.Name,
			State:       state,
			StateName:   state.String(),
			ChangeRate:  m.lastDiff.Percent,
			Timestamp:   now,
		})
	}
}

func (m *Manager) annotate(frame *models.Frame, motion bool) *models.Frame {
	o := Overlay{
		Timestamp:  frame.Timestamp,
		DeviceName: m.cfg.Name,
		FontScale:  m.cfg.FontScale,
		ChangeRate: m.lastDiff.Percent,
		Motion:     motion,
		Recording:  m.rec.Recording(),
		Cooldown:   m.rec.Cooldown(),
		FrameCount: m.rec.FrameCount(),
	}
	if m.cfg.Motion.DrawContours {
		o.Boxes = m.lastDiff.Boxes
	}

	display, err := m.deps.Ops.Annotate(frame, o)
	if err != nil || display == nil {
		if ok, _ := m.limiter.Allow("overlay"); ok {
			m.logger.Warn().Err(err).Msg("Overlay failed, using raw frame")
		}
		return frame
	}
	return display
}

func (m *Manager) snapshot(display *models.Frame, now time.Time) {
	if (m.processed-1)%int64(m.cfg.Snapshot.IntervalFrames) != 0 {
		return
	}

	jpeg, err := m.deps.Ops.EncodeJPEG(display, m.cfg.Snapshot.JPEGQuality)
	if err != nil {
		if ok, suppressed := m.limiter.Allow("jpeg"); ok {
			m.logger.Warn().Err(err).Int("suppressed", suppressed).Msg("Snapshot encode failed")
		}
		return
	}
	m.deps.Store.Update(jpeg)

	if m.cfg.Snapshot.Filename == "" {
		return
	}
	vars := helpers.Placeholders{
		DeviceName:  m.cfg.Name,
		DeviceIndex: m.cfg.Index,
		Width:       m.cfg.Width,
		Height:      m.cfg.Height,
		Time:        now,
	}
	path := vars.ExpandPath(m.cfg.Snapshot.Directory, m.cfg.Snapshot.Filename)
	if err := snapshot.WriteFile(path, jpeg); err != nil {
		if ok, suppressed := m.limiter.Allow("snapshot-file"); ok {
			m.logger.Warn().Err(err).Str("path", path).Int("suppressed", suppressed).Msg("Snapshot file write failed")
		}
	}
}

// Status returns the counters published by the loop
func (m *Manager) Status() models.DeviceStatus {
	st := models.DeviceStatus{
		Index:           m.cfg.Index,
		Name:            m.cfg.Name,
		Running:         m.running.Load(),
		Motion:          models.MotionIdle.String(),
		Recording:       m.stats.recording.Load(),
		ChangeRate:      math.Float64frombits(m.stats.changeRate.Load()),
		FramesProcessed: m.stats.processed.Load(),
		FramesThrottled: m.stats.throttled.Load(),
		Placeholders:    m.stats.placeholders.Load(),
		Segments:        m.stats.segments.Load(),
		FPS:             math.Float64frombits(m.stats.fps.Load()),
		SnapshotBytes:   m.deps.Store.Len(),
	}
	if m.stats.motion.Load() {
		st.Motion = models.MotionDetected.String()
	}
	if ns := m.stats.lastFrameAt.Load(); ns > 0 {
		st.LastFrameAt = time.Unix(0, ns)
	}
	return st
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
