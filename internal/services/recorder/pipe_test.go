package recorder

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-worker-go/internal/helpers"
	"sentinel-worker-go/internal/models"
)

func pipeFactory(command string) *PipeFactory {
	return &PipeFactory{
		Command:      command,
		Vars:         helpers.Placeholders{DeviceName: "porch"},
		WriteTimeout: time.Second,
		CloseTimeout: 2 * time.Second,
		Logger:       zerolog.Nop(),
	}
}

func TestPipeEncoderStreamsRawFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	f := pipeFactory("cat > {videoPath}")
	assert.Equal(t, "external", f.Kind())

	enc, err := f.Open(path, StreamSpec{Width: 2, Height: 2, FrameRate: 10})
	require.NoError(t, err)

	a := models.NewFrame(2, 2, time.Now())
	b := models.NewFrame(2, 2, time.Now())
	for i := range b.Data {
		b.Data[i] = byte(i)
	}
	require.NoError(t, enc.Write(a))
	require.NoError(t, enc.Write(b))
	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close(), "close is idempotent")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte(nil), a.Data...), b.Data...), got)
}

func TestPipeEncoderSubstitutesTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "args.txt")
	f := pipeFactory("echo {deviceName} {width}x{height} {framerate} > {videoPath}; cat > /dev/null")

	enc, err := f.Open(path, StreamSpec{Width: 320, Height: 240, FrameRate: 12.5})
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "porch 320x240 12.5\n", string(got))
}

func TestPipeEncoderPathWithSpaces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "front door")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "front door_20240601-100000.raw")

	enc, err := pipeFactory("cat > {videoPath}").Open(path, StreamSpec{Width: 1, Height: 1, FrameRate: 1})
	require.NoError(t, err)
	require.NoError(t, enc.Write(models.NewFrame(1, 1, time.Now())))
	require.NoError(t, enc.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestPipeEncoderQuotesDeviceName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "name.txt")
	f := pipeFactory("printf %s {deviceName} > {videoPath}; cat > /dev/null")
	f.Vars.DeviceName = "front door; exit 1"

	enc, err := f.Open(path, StreamSpec{Width: 1, Height: 1, FrameRate: 1})
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "front door; exit 1", string(got))
}

func TestPipeEncoderUsesSegmentStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ts.txt")
	f := pipeFactory("printf %s {timestamp} > {videoPath}; cat > /dev/null")

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	enc, err := f.Open(path, StreamSpec{Width: 1, Height: 1, FrameRate: 1, Start: start})
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "20240601-100000", string(got))
}

func TestPipeEncoderShellPrefixes(t *testing.T) {
	for _, command := range []string{
		"exec cat > {videoPath}",
		"LC_ALL=C cat > {videoPath}",
	} {
		path := filepath.Join(t.TempDir(), "out.raw")
		enc, err := pipeFactory(command).Open(path, StreamSpec{Width: 1, Height: 1, FrameRate: 1})
		require.NoError(t, err, command)
		require.NoError(t, enc.Write(models.NewFrame(1, 1, time.Now())), command)
		require.NoError(t, enc.Close(), command)

		got, err := os.ReadFile(path)
		require.NoError(t, err, command)
		assert.Len(t, got, 3, command)
	}
}

func TestPipeEncoderMissingBinary(t *testing.T) {
	f := pipeFactory("/nonexistent/ffmpeg -i pipe:0 {videoPath}")
	_, err := f.Open(filepath.Join(t.TempDir(), "x.mp4"), StreamSpec{Width: 2, Height: 2, FrameRate: 1})
	assert.ErrorIs(t, err, ErrEncoderOpenFailed)

	_, err = pipeFactory("   ").Open("x", StreamSpec{})
	assert.ErrorIs(t, err, ErrEncoderOpenFailed)
}

func TestPipeEncoderRejectsWrongGeometry(t *testing.T) {
	f := pipeFactory("cat > /dev/null")
	enc, err := f.Open("unused", StreamSpec{Width: 4, Height: 4, FrameRate: 1})
	require.NoError(t, err)
	defer enc.Close()

	err = enc.Write(models.NewFrame(2, 2, time.Now()))
	assert.ErrorIs(t, err, ErrEncoderWriteFailed)
}

func TestPipeEncoderReportsExitStatus(t *testing.T) {
	f := pipeFactory("cat > /dev/null; echo boom; exit 3")
	enc, err := f.Open("unused", StreamSpec{Width: 1, Height: 1, FrameRate: 1})
	require.NoError(t, err)
	assert.Error(t, enc.Close())
}

func TestTailBufferKeepsEnd(t *testing.T) {
	tb := &tailBuffer{limit: 8}
	_, _ = tb.Write([]byte("0123456789"))
	_, _ = tb.Write([]byte("ab"))
	assert.Equal(t, "456789ab", tb.String())
	assert.True(t, bytes.HasSuffix([]byte(tb.String()), []byte("ab")))
}
