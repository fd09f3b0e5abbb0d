package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultExternalCommand pipes raw BGR24 frames into ffmpeg on stdin
const DefaultExternalCommand = "/usr/bin/ffmpeg -y -loglevel warning -f rawvideo -pixel_format bgr24 " +
	"-video_size {width}x{height} -framerate {framerate} -i pipe:0 " +
	"-vcodec libx264 -preset veryfast -pix_fmt yuv420p {videoPath}"

// DeviceConfig is the immutable per-camera configuration handed to a device manager
type DeviceConfig struct {
	Index       int            `yaml:"-" json:"index"`
	Name        string         `yaml:"name" json:"name" validate:"required"`
	URI         string         `yaml:"uri" json:"uri" validate:"required"`
	Width       int            `yaml:"width" json:"width" validate:"gt=0"`
	Height      int            `yaml:"height" json:"height" validate:"gt=0"`
	Rotation    int            `yaml:"rotation" json:"rotation" validate:"oneof=0 90 180 270"`
	FontScale   float64        `yaml:"font_scale" json:"font_scale" validate:"gt=0"`
	ThrottleFPS int            `yaml:"throttle_fps" json:"throttle_fps" validate:"gte=0"`
	Motion      MotionConfig   `yaml:"motion" json:"motion"`
	Video       VideoConfig    `yaml:"video" json:"video"`
	Snapshot    SnapshotConfig `yaml:"snapshot" json:"snapshot"`
	Source      SourceConfig   `yaml:"source" json:"source"`
}

type MotionConfig struct {
	DiffLowerPercent  float64 `yaml:"diff_lower_percent" json:"diff_lower_percent" validate:"gte=0,lte=100,ltefield=DiffUpperPercent"`
	DiffUpperPercent  float64 `yaml:"diff_upper_percent" json:"diff_upper_percent" validate:"gte=0,lte=100"`
	PixelThreshold    int     `yaml:"pixel_threshold" json:"pixel_threshold" validate:"gte=0,lte=255"`
	DiffEveryNthFrame int     `yaml:"diff_every_nth_frame" json:"diff_every_nth_frame" validate:"gte=1"`
	DrawContours      bool    `yaml:"draw_contours" json:"draw_contours"`
}

type VideoConfig struct {
	UseExternalEncoder bool    `yaml:"use_external_encoder" json:"use_external_encoder"`
	ExternalCommand    string  `yaml:"external_command" json:"external_command"`
	InternalCodec      string  `yaml:"internal_codec" json:"internal_codec" validate:"len=4"`
	MaxFramesPerVideo  int     `yaml:"max_frames_per_video" json:"max_frames_per_video" validate:"gte=1"`
	CooldownFrames     int     `yaml:"cooldown_frames" json:"cooldown_frames" validate:"gte=0"`
	FrameRate          float64 `yaml:"frame_rate" json:"frame_rate" validate:"gt=0"`
	Directory          string  `yaml:"directory" json:"directory" validate:"required"`
	Filename           string  `yaml:"filename" json:"filename" validate:"required"`
}

type SnapshotConfig struct {
	IntervalFrames int    `yaml:"interval_frames" json:"interval_frames" validate:"gte=1"`
	Directory      string `yaml:"directory" json:"directory"`
	Filename       string `yaml:"filename" json:"filename"` // empty: keep snapshots in memory only
	JPEGQuality    int    `yaml:"jpeg_quality" json:"jpeg_quality" validate:"gte=1,lte=100"`
}

type SourceConfig struct {
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gt=0"`
	RetryDelay  time.Duration `yaml:"retry_delay" json:"retry_delay" validate:"gte=0"`
}

// DefaultDevice returns the built-in defaults every device file is layered on
func DefaultDevice() DeviceConfig {
	return DeviceConfig{
		Width:     640,
		Height:    480,
		FontScale: 0.6,
		Motion: MotionConfig{
			DiffLowerPercent:  5,
			DiffUpperPercent:  20,
			PixelThreshold:    30,
			DiffEveryNthFrame: 1,
			DrawContours:      true,
		},
		Video: VideoConfig{
			UseExternalEncoder: true,
			ExternalCommand:    DefaultExternalCommand,
			InternalCodec:      "mp4v",
			MaxFramesPerVideo:  9000,
			CooldownFrames:     50,
			FrameRate:          15,
			Directory:          "videos",
			Filename:           "{deviceName}_{timestamp}.mp4",
		},
		Snapshot: SnapshotConfig{
			IntervalFrames: 5,
			Directory:      "snapshots",
			JPEGQuality:    90,
		},
		Source: SourceConfig{
			ReadTimeout: 5 * time.Second,
			RetryDelay:  200 * time.Millisecond,
		},
	}
}

type devicesFile struct {
	Defaults yaml.Node   `yaml:"defaults"`
	Devices  []yaml.Node `yaml:"devices"`
}

// LoadDevices reads a YAML or JSON device file
func LoadDevices(path string) ([]DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read devices file %s: %w", path, err)
	}
	return ParseDevices(data)
}

// ParseDevices decodes each device over the file's defaults block, which is itself
// layered over DefaultDevice, then validates the result.
func ParseDevices(data []byte) ([]DeviceConfig, error) {
	var file devicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}
	if len(file.Devices) == 0 {
		return nil, fmt.Errorf("%w: no devices defined", ErrConfigurationInvalid)
	}

	base := DefaultDevice()
	if !file.Defaults.IsZero() {
		if err := file.Defaults.Decode(&base); err != nil {
			return nil, fmt.Errorf("%w: defaults: %v", ErrConfigurationInvalid, err)
		}
	}

	devices := make([]DeviceConfig, 0, len(file.Devices))
	names := make(map[string]int, len(file.Devices))
	for i := range file.Devices {
		d := base
		if err := file.Devices[i].Decode(&d); err != nil {
			return nil, fmt.Errorf("%w: device %d: %v", ErrConfigurationInvalid, i, err)
		}
		d.Index = i
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if prev, dup := names[d.Name]; dup {
			return nil, fmt.Errorf("%w: device %d reuses name %q of device %d", ErrConfigurationInvalid, i, d.Name, prev)
		}
		names[d.Name] = i
		devices = append(devices, d)
	}
	return devices, nil
}

var validate = validator.New()

// Validate checks ranges and cross-field constraints
func (d DeviceConfig) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: device %d (%s): %s", ErrConfigurationInvalid, d.Index, d.Name, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: device %d (%s): %v", ErrConfigurationInvalid, d.Index, d.Name, err)
	}

	if d.Video.UseExternalEncoder && !strings.Contains(d.Video.ExternalCommand, "{videoPath}") {
		return fmt.Errorf("%w: device %d (%s): video.external_command must contain {videoPath}",
			ErrConfigurationInvalid, d.Index, d.Name)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "DeviceConfig.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s must satisfy %s (got %v)", field, fe.Tag(), fe.Value())
}
