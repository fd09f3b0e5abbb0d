package catalog

import (
	"fmt"
	"strconv"

	"github.com/xfrr/goffmpeg/transcoder"
)

// Probe is what the prober learns from a finished file
type Probe struct {
	Codec           string
	Format          string
	Width           int
	Height          int
	DurationSeconds float64
}

type Prober interface {
	Probe(path string) (Probe, error)
}

// FFmpegProber reads container metadata with ffprobe through goffmpeg
type FFmpegProber struct{}

func (FFmpegProber) Probe(path string) (Probe, error) {
	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(path, ""); err != nil {
		return Probe{}, fmt.Errorf("failed to initialize transcoder for %s: %w", path, err)
	}

	md := trans.MediaFile().Metadata()
	p := Probe{Format: md.Format.FormatName}
	if d, err := strconv.ParseFloat(md.Format.Duration, 64); err == nil {
		p.DurationSeconds = d
	}
	for _, stream := range md.Streams {
		if stream.CodecType == "video" {
			p.Codec = stream.CodecName
			p.Width = stream.Width
			p.Height = stream.Height
			break
		}
	}
	if p.Codec == "" {
		return p, fmt.Errorf("no video stream in %s", path)
	}
	return p, nil
}
