package recorder

import (
	"time"

	"sentinel-worker-go/internal/models"
)

// StreamSpec describes the raw stream an encoder receives
type StreamSpec struct {
	Width     int
	Height    int
	FrameRate float64
	Start     time.Time // segment start, also used for the output path
}

// Encoder consumes frames of one segment. Close finalizes the file.
type Encoder interface {
	Write(frame *models.Frame) error
	Close() error
}

// EncoderFactory opens encoders bound to an output path
type EncoderFactory interface {
	Open(path string, spec StreamSpec) (Encoder, error)
	Kind() string
}

// Listener observes segment boundaries. Calls happen on the device loop
// goroutine and must not block.
type Listener interface {
	SegmentOpened(seg models.Segment)
	SegmentClosed(seg models.Segment)
}

// Listeners fans out to several listeners
type Listeners []Listener

func (ls Listeners) SegmentOpened(seg models.Segment) {
	for _, l := range ls {
		if l != nil {
			l.SegmentOpened(seg)
		}
	}
}

func (ls Listeners) SegmentClosed(seg models.Segment) {
	for _, l := range ls {
		if l != nil {
			l.SegmentClosed(seg)
		}
	}
}
