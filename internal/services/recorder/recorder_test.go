package recorder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/models"
)

type fakeEncoder struct {
	path     string
	frames   int
	closed   bool
	failNext bool
}

func (e *fakeEncoder) Write(*models.Frame) error {
	if e.closed {
		return errors.New("write after close")
	}
	if e.failNext {
		return errors.New("broken pipe")
	}
	e.frames++
	return nil
}

func (e *fakeEncoder) Close() error {
	e.closed = true
	return nil
}

type fakeFactory struct {
	opened   []*fakeEncoder
	specs    []StreamSpec
	failOpen int // fail this many opens before succeeding
}

func (f *fakeFactory) Kind() string { return "fake" }

func (f *fakeFactory) Open(path string, spec StreamSpec) (Encoder, error) {
	f.specs = append(f.specs, spec)
	if f.failOpen > 0 {
		f.failOpen--
		return nil, errors.New("spawn failed")
	}
	e := &fakeEncoder{path: path}
	f.opened = append(f.opened, e)
	return e, nil
}

func (f *fakeFactory) open() int {
	n := 0
	for _, e := range f.opened {
		if !e.closed {
			n++
		}
	}
	return n
}

type recordingListener struct {
	opened []models.Segment
	closed []models.Segment
}

func (l *recordingListener) SegmentOpened(s models.Segment) { l.opened = append(l.opened, s) }
func (l *recordingListener) SegmentClosed(s models.Segment) { l.closed = append(l.closed, s) }

func testDevice(t *testing.T) config.DeviceConfig {
	d := config.DefaultDevice()
	d.Name = "porch"
	d.URI = "fake://"
	d.Width = 4
	d.Height = 2
	d.Video.Directory = filepath.Join(t.TempDir(), "{deviceName}")
	d.Video.Filename = "{timestamp}.mp4"
	return d
}

func newTestRecorder(t *testing.T, d config.DeviceConfig, f *fakeFactory, l Listener) *Recorder {
	clock := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return New(Options{
		Device:   d,
		Factory:  f,
		Listener: l,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return clock },
	})
}

func frame() *models.Frame { return models.NewFrame(4, 2, time.Time{}) }

func TestCooldownClosesAfterTolerance(t *testing.T) {
	d := testDevice(t)
	d.Video.CooldownFrames = 2
	f := &fakeFactory{}
	l := &recordingListener{}
	r := newTestRecorder(t, d, f, l)

	seq := []bool{true, true, false, false, false}
	for i, m := range seq {
		require.NoError(t, r.Process(frame(), m))
		if i < len(seq)-1 {
			assert.True(t, r.Recording(), "frame %d", i+1)
		}
	}
	assert.False(t, r.Recording(), "closes after the frame that finds cooldown exhausted")
	require.Len(t, f.opened, 1)
	assert.Equal(t, 5, f.opened[0].frames)
	require.Len(t, l.closed, 1)
	assert.Equal(t, models.CloseCooldown, l.closed[0].Reason)
	assert.Equal(t, 5, l.closed[0].Frames)
}

func TestOpenHandsSegmentStartToEncoder(t *testing.T) {
	d := testDevice(t)
	f := &fakeFactory{}
	r := newTestRecorder(t, d, f, nil)

	require.NoError(t, r.Open())
	seg, ok := r.Current()
	require.True(t, ok)
	require.Len(t, f.specs, 1)
	assert.Equal(t, seg.StartedAt, f.specs[0].Start)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), f.specs[0].Start)
	assert.Equal(t, "20240601-100000.mp4", filepath.Base(seg.Path))
	assert.Equal(t, 4, f.specs[0].Width)
}

func TestMotionResetsCooldown(t *testing.T) {
	d := testDevice(t)
	d.Video.CooldownFrames = 1
	f := &fakeFactory{}
	r := newTestRecorder(t, d, f, nil)

	for _, m := range []bool{true, false, true, false} {
		require.NoError(t, r.Process(frame(), m))
		assert.True(t, r.Recording())
	}
	assert.Equal(t, 0, r.Cooldown())
	require.NoError(t, r.Process(frame(), false))
	assert.False(t, r.Recording())
}

func TestNoMotionWhileClosedDoesNothing(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRecorder(t, testDevice(t), f, nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Process(frame(), false))
	}
	assert.Empty(t, f.opened)
}

func TestRolloverDuringMotionLosesNoFrames(t *testing.T) {
	d := testDevice(t)
	d.Video.MaxFramesPerVideo = 100
	f := &fakeFactory{}
	l := &recordingListener{}
	r := newTestRecorder(t, d, f, l)

	for i := 0; i < 250; i++ {
		require.NoError(t, r.Process(frame(), true))
		assert.LessOrEqual(t, f.open(), 1, "at most one open session")
	}
	require.NoError(t, r.Close(models.CloseShutdown))

	require.Len(t, f.opened, 3)
	assert.Equal(t, []int{100, 100, 50}, []int{f.opened[0].frames, f.opened[1].frames, f.opened[2].frames})
	require.Len(t, l.closed, 3)
	assert.Equal(t, models.CloseMaxFrames, l.closed[0].Reason)
	assert.Equal(t, models.CloseMaxFrames, l.closed[1].Reason)
	assert.Equal(t, models.CloseShutdown, l.closed[2].Reason)

	paths := map[string]bool{}
	for _, e := range f.opened {
		paths[e.path] = true
	}
	assert.Len(t, paths, 3, "same-second rollovers get distinct paths")
}

func TestCapWithoutMotionClosesWithoutReopen(t *testing.T) {
	d := testDevice(t)
	d.Video.MaxFramesPerVideo = 3
	d.Video.CooldownFrames = 10
	f := &fakeFactory{}
	r := newTestRecorder(t, d, f, nil)

	require.NoError(t, r.Process(frame(), true))
	require.NoError(t, r.Process(frame(), false))
	require.NoError(t, r.Process(frame(), false))
	assert.False(t, r.Recording())
	assert.Len(t, f.opened, 1)
}

func TestOpenFailureStaysClosedAndRetries(t *testing.T) {
	f := &fakeFactory{failOpen: 1}
	r := newTestRecorder(t, testDevice(t), f, nil)

	err := r.Process(frame(), true)
	assert.ErrorIs(t, err, ErrEncoderOpenFailed)
	assert.False(t, r.Recording())

	require.NoError(t, r.Process(frame(), true))
	assert.True(t, r.Recording())
	assert.Equal(t, 1, r.FrameCount())
}

func TestWriteFailureForceCloses(t *testing.T) {
	f := &fakeFactory{}
	l := &recordingListener{}
	r := newTestRecorder(t, testDevice(t), f, l)

	require.NoError(t, r.Process(frame(), true))
	f.opened[0].failNext = true

	err := r.Process(frame(), true)
	assert.ErrorIs(t, err, ErrEncoderWriteFailed)
	assert.False(t, r.Recording())
	require.Len(t, l.closed, 1)
	assert.Equal(t, models.CloseWriteFailed, l.closed[0].Reason)

	require.NoError(t, r.Process(frame(), true))
	assert.True(t, r.Recording(), "next motion opens a fresh segment")
	assert.Len(t, f.opened, 2)
}

func TestOpenWhileOpenIsGuarded(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRecorder(t, testDevice(t), f, nil)
	require.NoError(t, r.Open())
	assert.ErrorIs(t, r.Open(), ErrSessionOpen)
	assert.Len(t, f.opened, 1)
}

func TestSegmentMetadata(t *testing.T) {
	d := testDevice(t)
	f := &fakeFactory{}
	l := &recordingListener{}
	r := newTestRecorder(t, d, f, l)

	require.NoError(t, r.Process(frame(), true))
	seg, ok := r.Current()
	require.True(t, ok)
	assert.NotEmpty(t, seg.ID)
	assert.Equal(t, "porch", seg.DeviceName)
	assert.Equal(t, "fake", seg.Encoder)
	assert.Equal(t, filepath.Join(filepath.Dir(filepath.Dir(seg.Path)), "porch", "20240601-100000.mp4"), seg.Path)
	assert.Equal(t, int64(1), r.SegmentsOpened())
	require.Len(t, l.opened, 1)
	assert.Equal(t, seg.ID, l.opened[0].ID)
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time        { return c.now }
func (c *stepClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func TestBudgetThrottlesRecording(t *testing.T) {
	d := testDevice(t)
	d.Video.MaxFramesPerVideo = 1000
	clock := &stepClock{now: time.Unix(0, 0)}
	f := &fakeFactory{}
	l := &recordingListener{}
	r := New(Options{
		Device:   d,
		Factory:  f,
		Listener: l,
		Budget:   NewBudgetWithClock(1, 10, 5, clock),
		Logger:   zerolog.Nop(),
	})

	for i := 0; i < 15; i++ {
		require.NoError(t, r.Process(frame(), true))
	}
	require.Len(t, l.closed, 1)
	assert.Equal(t, models.CloseThrottled, l.closed[0].Reason)
	assert.Equal(t, 10, l.closed[0].Frames)
	assert.False(t, r.Recording(), "below the minimum the segment stays closed")

	clock.Sleep(5 * time.Second)
	require.NoError(t, r.Process(frame(), true))
	assert.True(t, r.Recording())
}

func TestNilBudgetIsUnlimited(t *testing.T) {
	assert.Nil(t, NewBudget(0, 10, 1))
	var b *Budget
	assert.True(t, b.CanOpen())
	assert.True(t, b.Take())
}
