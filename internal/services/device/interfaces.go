package device

import (
	"context"
	"image"
	"time"

	"sentinel-worker-go/internal/models"
)

// FrameSource yields decoded frames. A nil frame with a nil error means no
// frame is available right now. Next must return promptly once ctx is done.
type FrameSource interface {
	Next(ctx context.Context) (*models.Frame, error)
	Close() error
}

// Diff is the result of comparing two frames
type Diff struct {
	Percent float64           // share of pixels whose delta exceeds the threshold, 0..100
	Boxes   []image.Rectangle // bounding boxes of changed regions
}

// Overlay is what gets drawn onto the display copy of a frame
type Overlay struct {
	Timestamp  time.Time
	DeviceName string
	FontScale  float64
	Boxes      []image.Rectangle
	ChangeRate float64
	Motion     bool
	Recording  bool
	Cooldown   int
	FrameCount int
}

// ImageOps are the pixel operations the loop needs
type ImageOps interface {
	ChangeRate(prev, cur *models.Frame, pixelThreshold int) (Diff, error)
	Annotate(frame *models.Frame, o Overlay) (*models.Frame, error)
	EncodeJPEG(frame *models.Frame, quality int) ([]byte, error)
	Placeholder(width, height int, text string, ts time.Time) *models.Frame
}

// MotionListener observes classification flips
type MotionListener interface {
	MotionChanged(ev models.MotionEvent)
}
