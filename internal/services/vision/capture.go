package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/device"
)

const maxConsecutiveErrors = 10

// ErrReadTimeout is returned by Next when no frame arrived within the read timeout
var ErrReadTimeout = errors.New("frame read timed out")

// Capture is a device.FrameSource over an OpenCV VideoCapture. A reader
// goroutine owns the capture handle and keeps only the newest frame, so a
// slow consumer never works on stale video.
type Capture struct {
	cfg     config.DeviceConfig
	logger  zerolog.Logger
	limiter *logging.Limiter

	frames chan *models.Frame

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ device.FrameSource = (*Capture)(nil)

func NewCapture(cfg config.DeviceConfig, logger zerolog.Logger) *Capture {
	return &Capture{
		cfg:     cfg,
		logger:  logger.With().Str("component", "capture").Logger(),
		limiter: logging.NewLimiter(30 * time.Second),
		frames:  make(chan *models.Frame, 1),
	}
}

// Next waits for the newest frame. The reader is started on first use and
// again after Close.
func (c *Capture) Next(ctx context.Context) (*models.Frame, error) {
	c.start()

	t := time.NewTimer(c.cfg.Source.ReadTimeout)
	defer t.Stop()
	select {
	case f := <-c.frames:
		return f, nil
	case <-t.C:
		return nil, ErrReadTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the reader and waits for it to release the capture handle
func (c *Capture) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	// a blocked Read can only be abandoned, never interrupted
	select {
	case <-done:
		return nil
	case <-time.After(c.cfg.Source.ReadTimeout + time.Second):
		return fmt.Errorf("capture reader for %s still blocked in read", c.cfg.Name)
	}
}

func (c *Capture) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.read(ctx, c.done)
}

func (c *Capture) open() (*gocv.VideoCapture, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(c.cfg.URI); convErr == nil {
		vc, err = gocv.OpenVideoCaptureWithAPI(id, gocv.VideoCaptureAny)
	} else {
		vc, err = gocv.OpenVideoCaptureWithAPI(c.cfg.URI, gocv.VideoCaptureFFmpeg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", c.cfg.URI, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video capture for %s is not opened", c.cfg.URI)
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	c.logger.Info().
		Str("uri", c.cfg.URI).
		Float64("fps", vc.Get(gocv.VideoCaptureFPS)).
		Float64("width", vc.Get(gocv.VideoCaptureFrameWidth)).
		Float64("height", vc.Get(gocv.VideoCaptureFrameHeight)).
		Msg("Video capture opened")
	return vc, nil
}

func (c *Capture) read(ctx context.Context, done chan struct{}) {
	defer close(done)

	img := gocv.NewMat()
	defer img.Close()

	backoff := c.cfg.Source.RetryDelay
	for ctx.Err() == nil {
		vc, err := c.open()
		if err != nil {
			if ok, suppressed := c.limiter.Allow("open"); ok {
				c.logger.Warn().Err(err).Int("suppressed", suppressed).Dur("retry_in", backoff).Msg("Failed to open video capture")
			}
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = c.cfg.Source.RetryDelay
		c.limiter.Reset("open")

		c.readLoop(ctx, vc, &img)
		vc.Close()
	}
}

// readLoop reads until ctx ends or the capture looks dead
func (c *Capture) readLoop(ctx context.Context, vc *gocv.VideoCapture, img *gocv.Mat) {
	consecutiveErrors := 0
	for ctx.Err() == nil {
		if ok := vc.Read(img); !ok || img.Empty() {
			consecutiveErrors++
			if consecutiveErrors >= maxConsecutiveErrors {
				c.logger.Warn().Int("consecutive_errors", consecutiveErrors).Msg("Too many failed reads, reopening capture")
				return
			}
			delay := time.Duration(consecutiveErrors*50) * time.Millisecond
			if !sleep(ctx, min(delay, 2*time.Second)) {
				return
			}
			continue
		}
		consecutiveErrors = 0

		frame, err := c.convert(*img)
		if err != nil {
			if ok, _ := c.limiter.Allow("convert"); ok {
				c.logger.Warn().Err(err).Msg("Failed to convert frame")
			}
			continue
		}
		c.publish(frame)
	}
}

// convert rotates and resizes to the configured geometry and copies out BGR24 bytes
func (c *Capture) convert(img gocv.Mat) (*models.Frame, error) {
	ts := time.Now()
	cur := img.Clone()
	defer func() { cur.Close() }()

	switch img.Channels() {
	case 1:
		bgr := gocv.NewMat()
		gocv.CvtColor(cur, &bgr, gocv.ColorGrayToBGR)
		cur.Close()
		cur = bgr
	case 4:
		bgr := gocv.NewMat()
		gocv.CvtColor(cur, &bgr, gocv.ColorBGRAToBGR)
		cur.Close()
		cur = bgr
	}

	if flag, ok := rotateFlag(c.cfg.Rotation); ok {
		rotated := gocv.NewMat()
		gocv.Rotate(cur, &rotated, flag)
		cur.Close()
		cur = rotated
	}

	if cur.Cols() != c.cfg.Width || cur.Rows() != c.cfg.Height {
		resized := gocv.NewMat()
		gocv.Resize(cur, &resized, image.Pt(c.cfg.Width, c.cfg.Height), 0, 0, gocv.InterpolationLinear)
		cur.Close()
		cur = resized
	}

	data := cur.ToBytes()
	if len(data) != c.cfg.Width*c.cfg.Height*3 {
		return nil, fmt.Errorf("unexpected frame buffer of %d bytes", len(data))
	}
	return &models.Frame{Data: data, Width: c.cfg.Width, Height: c.cfg.Height, Timestamp: ts}, nil
}

// publish replaces any frame the consumer has not picked up yet
func (c *Capture) publish(f *models.Frame) {
	select {
	case <-c.frames:
	default:
	}
	select {
	case c.frames <- f:
	default:
	}
}

func rotateFlag(degrees int) (gocv.RotateFlag, bool) {
	switch degrees {
	case 90:
		return gocv.Rotate90Clockwise, true
	case 180:
		return gocv.Rotate180Clockwise, true
	case 270:
		return gocv.Rotate90CounterClockwise, true
	}
	return 0, false
}

func nextBackoff(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	return min(d*2, 10*time.Second)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
