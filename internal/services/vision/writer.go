package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/recorder"
)

// WriterFactory opens segments with OpenCV's built-in VideoWriter
type WriterFactory struct {
	Codec string // fourcc, e.g. mp4v
}

var _ recorder.EncoderFactory = (*WriterFactory)(nil)

func (f *WriterFactory) Kind() string { return "internal" }

func (f *WriterFactory) Open(path string, spec recorder.StreamSpec) (recorder.Encoder, error) {
	vw, err := gocv.VideoWriterFile(path, f.Codec, spec.FrameRate, spec.Width, spec.Height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recorder.ErrEncoderOpenFailed, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("%w: video writer for %s with codec %s is not opened", recorder.ErrEncoderOpenFailed, path, f.Codec)
	}
	return &WriterEncoder{vw: vw, spec: spec}, nil
}

// WriterEncoder writes one segment through a gocv.VideoWriter
type WriterEncoder struct {
	vw   *gocv.VideoWriter
	spec recorder.StreamSpec
}

func (e *WriterEncoder) Write(frame *models.Frame) error {
	if frame.Width != e.spec.Width || frame.Height != e.spec.Height {
		return fmt.Errorf("%w: frame %dx%d does not match stream %dx%d",
			recorder.ErrEncoderWriteFailed, frame.Width, frame.Height, e.spec.Width, e.spec.Height)
	}
	mat, err := matFromFrame(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", recorder.ErrEncoderWriteFailed, err)
	}
	defer mat.Close()

	if err := e.vw.Write(mat); err != nil {
		return fmt.Errorf("%w: %v", recorder.ErrEncoderWriteFailed, err)
	}
	return nil
}

func (e *WriterEncoder) Close() error {
	return e.vw.Close()
}
