package models

import (
	"image"
	"time"
)

// Frame is one decoded picture as packed BGR24 bytes (OpenCV's native order)
type Frame struct {
	Data        []byte
	Width       int
	Height      int
	Timestamp   time.Time
	Placeholder bool // generated while the source had nothing to deliver
}

// NewFrame allocates a zeroed frame of the given geometry
func NewFrame(width, height int, ts time.Time) *Frame {
	return &Frame{
		Data:      make([]byte, width*height*3),
		Width:     width,
		Height:    height,
		Timestamp: ts,
	}
}

// Valid reports whether the buffer length matches the geometry
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Data) == f.Width*f.Height*3
}

// SameGeometry reports whether two frames can be compared pixel by pixel
func (f *Frame) SameGeometry(o *Frame) bool {
	return f != nil && o != nil && f.Width == o.Width && f.Height == o.Height
}

// Clone returns a deep copy
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c
}

// Bounds returns the frame rectangle
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}
