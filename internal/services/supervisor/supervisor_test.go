package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/snapshot"
)

type fakeDevice struct {
	cfg     config.DeviceConfig
	store   *snapshot.Store
	stopped chan struct{}
}

func (d *fakeDevice) Run(ctx context.Context) {
	<-ctx.Done()
	close(d.stopped)
}

func (d *fakeDevice) Config() config.DeviceConfig { return d.cfg }
func (d *fakeDevice) Store() *snapshot.Store      { return d.store }
func (d *fakeDevice) Status() models.DeviceStatus {
	return models.DeviceStatus{Index: d.cfg.Index, Name: d.cfg.Name, Motion: "idle"}
}

func deployment(names ...string) []config.DeviceConfig {
	out := make([]config.DeviceConfig, len(names))
	for i, n := range names {
		out[i] = config.DefaultDevice()
		out[i].Index = i
		out[i].Name = n
	}
	return out
}

func newSupervisor(t *testing.T, health *HealthReporter, names ...string) (*Supervisor, []*fakeDevice) {
	var devices []*fakeDevice
	s, err := New(deployment(names...), func(cfg config.DeviceConfig) (Device, error) {
		d := &fakeDevice{cfg: cfg, store: snapshot.NewStore(), stopped: make(chan struct{})}
		devices = append(devices, d)
		return d, nil
	}, health, zerolog.Nop())
	require.NoError(t, err)
	return s, devices
}

func TestUnknownIndexIsNotFound(t *testing.T) {
	s, _ := newSupervisor(t, nil, "a", "b", "c")

	_, err := s.Snapshot(7)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.NotErrorIs(t, err, ErrNoSnapshot)

	_, err = s.Snapshot(-1)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = s.Status(3)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestEmptyStoreIsNoSnapshot(t *testing.T) {
	s, devices := newSupervisor(t, nil, "a", "b", "c")

	_, err := s.Snapshot(1)
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.NotErrorIs(t, err, ErrDeviceNotFound)

	devices[1].store.Update([]byte("jpeg"))
	data, err := s.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestNewRequiresDevices(t *testing.T) {
	_, err := New(nil, nil, nil, zerolog.Nop())
	assert.ErrorIs(t, err, config.ErrConfigurationInvalid)
}

func TestNewFailsWhenAnyDeviceFails(t *testing.T) {
	boom := errors.New("bad uri")
	_, err := New(deployment("a", "b"), func(cfg config.DeviceConfig) (Device, error) {
		if cfg.Name == "b" {
			return nil, boom
		}
		return &fakeDevice{cfg: cfg, store: snapshot.NewStore(), stopped: make(chan struct{})}, nil
	}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, boom)
}

func TestStartStopWithHealth(t *testing.T) {
	health := NewHealthReporter()
	s, devices := newSupervisor(t, health, "front", "back")
	ctx := context.Background()

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return s.Running() == 2 }, time.Second, 5*time.Millisecond)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		resp, err := health.Server().Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return resp.Status
	}
	require.Eventually(t, func() bool {
		return check(ServiceName("front")) == healthpb.HealthCheckResponse_SERVING &&
			check(ServiceName("back")) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))

	statuses := s.Statuses()
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Running)
	assert.Equal(t, "back", statuses[1].Name)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	for _, d := range devices {
		select {
		case <-d.stopped:
		default:
			t.Fatalf("device %s still running", d.cfg.Name)
		}
	}
	assert.Zero(t, s.Running())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(ServiceName("front")))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(""))
}

func TestStopBeforeStart(t *testing.T) {
	s, _ := newSupervisor(t, nil, "a")
	assert.NoError(t, s.Stop(context.Background()))
}
