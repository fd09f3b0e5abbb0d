package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/snapshot"
	"sentinel-worker-go/internal/worker"
)

// Device is what the supervisor needs from a device loop; *device.Manager implements it
type Device interface {
	worker.Runner
	Config() config.DeviceConfig
	Status() models.DeviceStatus
	Store() *snapshot.Store
}

// Factory builds the device for one configuration entry
type Factory func(cfg config.DeviceConfig) (Device, error)

type entry struct {
	dev    Device
	worker *worker.Worker
}

// Supervisor owns one worker per configured device, indexed by position in
// the device file.
type Supervisor struct {
	devices []entry
	health  *HealthReporter
	logger  zerolog.Logger
}

// New builds every device up front; any failure aborts the whole deployment
func New(configs []config.DeviceConfig, factory Factory, health *HealthReporter, logger zerolog.Logger) (*Supervisor, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no devices configured", config.ErrConfigurationInvalid)
	}

	s := &Supervisor{health: health, logger: logger}
	for i, cfg := range configs {
		dev, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("device %d (%s): %w", i, cfg.Name, err)
		}
		s.devices = append(s.devices, entry{
			dev:    dev,
			worker: worker.New(cfg.Name, s.runner(dev), logger.With().Str("device", cfg.Name).Logger()),
		})
	}
	return s, nil
}

// runner keeps the health status in step with the loop
func (s *Supervisor) runner(dev Device) worker.Runner {
	name := dev.Config().Name
	return worker.RunnerFunc(func(ctx context.Context) {
		s.setHealth(name, true)
		defer s.setHealth(name, false)
		dev.Run(ctx)
	})
}

func (s *Supervisor) setHealth(name string, serving bool) {
	if s.health != nil {
		s.health.SetDevice(name, serving)
	}
}

// Start launches every device loop
func (s *Supervisor) Start() error {
	for _, e := range s.devices {
		if err := e.worker.Start(); err != nil {
			return fmt.Errorf("failed to start device %s: %w", e.worker.Name(), err)
		}
	}
	if s.health != nil {
		s.health.SetOverall(true)
	}
	s.logger.Info().Int("devices", len(s.devices)).Msg("All device loops started")
	return nil
}

// Stop asks every loop to stop, then joins them. Each loop finalizes its
// open segment before it exits.
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.health != nil {
		s.health.SetOverall(false)
	}
	for _, e := range s.devices {
		e.worker.RequestStop()
	}

	var errs []error
	for _, e := range s.devices {
		if err := e.worker.Join(ctx); err != nil && !errors.Is(err, worker.ErrNotStarted) {
			s.logger.Warn().Err(err).Str("device", e.worker.Name()).Msg("Device loop did not stop in time")
			errs = append(errs, fmt.Errorf("device %s: %w", e.worker.Name(), err))
		}
	}
	if len(errs) == 0 {
		s.logger.Info().Msg("All device loops stopped")
	}
	return errors.Join(errs...)
}

// Len returns the number of configured devices
func (s *Supervisor) Len() int { return len(s.devices) }

func (s *Supervisor) lookup(index int) (entry, error) {
	if index < 0 || index >= len(s.devices) {
		return entry{}, fmt.Errorf("%w: index %d of %d", ErrDeviceNotFound, index, len(s.devices))
	}
	return s.devices[index], nil
}

// Snapshot returns the latest JPEG of a device. A device that exists but has
// not encoded anything yet yields ErrNoSnapshot, never ErrDeviceNotFound.
func (s *Supervisor) Snapshot(index int) ([]byte, error) {
	e, err := s.lookup(index)
	if err != nil {
		return nil, err
	}
	data := e.dev.Store().Read()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: device %d", ErrNoSnapshot, index)
	}
	return data, nil
}

// Store returns the snapshot store of a device, for streaming
func (s *Supervisor) Store(index int) (*snapshot.Store, error) {
	e, err := s.lookup(index)
	if err != nil {
		return nil, err
	}
	return e.dev.Store(), nil
}

// Status returns the live counters of one device
func (s *Supervisor) Status(index int) (models.DeviceStatus, error) {
	e, err := s.lookup(index)
	if err != nil {
		return models.DeviceStatus{}, err
	}
	return s.status(e), nil
}

// Statuses returns every device in index order
func (s *Supervisor) Statuses() []models.DeviceStatus {
	out := make([]models.DeviceStatus, 0, len(s.devices))
	for _, e := range s.devices {
		out = append(out, s.status(e))
	}
	return out
}

func (s *Supervisor) status(e entry) models.DeviceStatus {
	st := e.dev.Status()
	st.Running = e.worker.Running()
	return st
}

// Running returns how many device loops are alive
func (s *Supervisor) Running() int {
	n := 0
	for _, e := range s.devices {
		if e.worker.Running() {
			n++
		}
	}
	return n
}
