package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDevices = `
defaults:
  width: 1280
  height: 720
  motion:
    diff_upper_percent: 25
  video:
    cooldown_frames: 10
    directory: /srv/videos
devices:
  - name: porch
    uri: rtsp://10.0.0.2/stream
  - name: garage
    uri: /dev/video0
    rotation: 180
    throttle_fps: 12
    motion:
      diff_every_nth_frame: 3
      draw_contours: false
    video:
      use_external_encoder: false
      internal_codec: MJPG
    source:
      read_timeout: 2s
`

func TestParseDevicesLayersDefaults(t *testing.T) {
	devices, err := ParseDevices([]byte(yamlDevices))
	require.NoError(t, err)
	require.Len(t, devices, 2)

	porch := devices[0]
	assert.Equal(t, 0, porch.Index)
	assert.Equal(t, 1280, porch.Width)
	assert.Equal(t, 720, porch.Height)
	assert.Equal(t, 25.0, porch.Motion.DiffUpperPercent)
	assert.Equal(t, 5.0, porch.Motion.DiffLowerPercent, "built-in default survives partial defaults block")
	assert.Equal(t, 10, porch.Video.CooldownFrames)
	assert.Equal(t, "/srv/videos", porch.Video.Directory)
	assert.True(t, porch.Video.UseExternalEncoder)
	assert.Equal(t, DefaultExternalCommand, porch.Video.ExternalCommand)

	garage := devices[1]
	assert.Equal(t, 1, garage.Index)
	assert.Equal(t, 180, garage.Rotation)
	assert.Equal(t, 12, garage.ThrottleFPS)
	assert.Equal(t, 3, garage.Motion.DiffEveryNthFrame)
	assert.False(t, garage.Motion.DrawContours)
	assert.Equal(t, 30, garage.Motion.PixelThreshold)
	assert.False(t, garage.Video.UseExternalEncoder)
	assert.Equal(t, "MJPG", garage.Video.InternalCodec)
	assert.Equal(t, 2*time.Second, garage.Source.ReadTimeout)
	assert.Equal(t, 10, garage.Video.CooldownFrames)
}

func TestParseDevicesAcceptsJSON(t *testing.T) {
	data := `{
  "devices": [
    {"name": "lobby", "uri": "rtsp://cam/lobby", "snapshot": {"interval_frames": 2, "filename": "{deviceName}.jpg"}}
  ]
}`
	devices, err := ParseDevices([]byte(data))
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "lobby", devices[0].Name)
	assert.Equal(t, 2, devices[0].Snapshot.IntervalFrames)
	assert.Equal(t, "{deviceName}.jpg", devices[0].Snapshot.Filename)
	assert.Equal(t, 90, devices[0].Snapshot.JPEGQuality)
}

func TestParseDevicesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no devices", "devices: []"},
		{"missing uri", "devices:\n  - name: a\n"},
		{"missing name", "devices:\n  - uri: rtsp://x\n"},
		{"bounds inverted", "devices:\n  - name: a\n    uri: x\n    motion:\n      diff_lower_percent: 30\n      diff_upper_percent: 10\n"},
		{"pixel threshold", "devices:\n  - name: a\n    uri: x\n    motion:\n      pixel_threshold: 300\n"},
		{"stride", "devices:\n  - name: a\n    uri: x\n    motion:\n      diff_every_nth_frame: 0\n"},
		{"rotation", "devices:\n  - name: a\n    uri: x\n    rotation: 45\n"},
		{"cap", "devices:\n  - name: a\n    uri: x\n    video:\n      max_frames_per_video: 0\n"},
		{"command without path", "devices:\n  - name: a\n    uri: x\n    video:\n      external_command: ffmpeg -i pipe:0 out.mp4\n"},
		{"duplicate names", "devices:\n  - name: a\n    uri: x\n  - name: a\n    uri: y\n"},
		{"not yaml", "devices: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDevices([]byte(tt.data))
			assert.ErrorIs(t, err, ErrConfigurationInvalid)
		})
	}
}

func TestLoadDevicesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDevices), 0o644))

	devices, err := LoadDevices(path)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	_, err = LoadDevices(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultDeviceNeedsOnlyIdentity(t *testing.T) {
	d := DefaultDevice()
	d.Name = "cam"
	d.URI = "rtsp://cam"
	assert.NoError(t, d.Validate())
}
