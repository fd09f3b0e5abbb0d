package recorder

import "errors"

var (
	// ErrEncoderOpenFailed means the segment could not be started (spawn or file-open failure)
	ErrEncoderOpenFailed = errors.New("encoder open failed")
	// ErrEncoderWriteFailed means the open segment rejected a frame and was force-closed
	ErrEncoderWriteFailed = errors.New("encoder write failed")
	// ErrSessionOpen is returned by Open while a segment is already recording
	ErrSessionOpen = errors.New("recording session already open")
)
