package models

import "time"

// MotionState is the per-device motion classification
type MotionState int

const (
	MotionIdle MotionState = iota
	MotionDetected
)

// String returns the string representation of MotionState
func (m MotionState) String() string {
	if m == MotionDetected {
		return "motion"
	}
	return "idle"
}

// CloseReason records why a segment was finalized
type CloseReason string

const (
	CloseCooldown    CloseReason = "cooldown"
	CloseMaxFrames   CloseReason = "max_frames"
	CloseWriteFailed CloseReason = "write_failed"
	CloseThrottled   CloseReason = "throttled"
	CloseShutdown    CloseReason = "shutdown"
)

// Segment describes one recorded video file
type Segment struct {
	ID          string      `json:"id"`
	DeviceIndex int         `json:"device_index"`
	DeviceName  string      `json:"device_name"`
	Path        string      `json:"path"`
	Encoder     string      `json:"encoder"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     time.Time   `json:"ended_at,omitempty"`
	Frames      int         `json:"frames"`
	Reason      CloseReason `json:"reason,omitempty"`

	// Filled by the catalog prober after the file is finalized
	Codec           string  `json:"codec,omitempty"`
	Format          string  `json:"format,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// MotionEvent is emitted when a device's classification flips
type MotionEvent struct {
	DeviceIndex int         `json:"device_index"`
	DeviceName  string      `json:"device_name"`
	State       MotionState `json:"-"`
	StateName   string      `json:"state"`
	ChangeRate  float64     `json:"change_rate"`
	Timestamp   time.Time   `json:"timestamp"`
}

// DeviceStatus is the read-only view of a device exposed over HTTP
type DeviceStatus struct {
	Index           int       `json:"index"`
	Name            string    `json:"name"`
	Running         bool      `json:"running"`
	Motion          string    `json:"motion"`
	Recording       bool      `json:"recording"`
	ChangeRate      float64   `json:"change_rate"`
	FramesProcessed int64     `json:"frames_processed"`
	FramesThrottled int64     `json:"frames_throttled"`
	Placeholders    int64     `json:"placeholders"`
	Segments        int64     `json:"segments"`
	FPS             float64   `json:"fps"`
	LastFrameAt     time.Time `json:"last_frame_at,omitempty"`
	SnapshotBytes   int       `json:"snapshot_bytes"`
}
