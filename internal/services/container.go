package services

import (
	"context"
	"errors"
	"fmt"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/helpers"
	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/services/catalog"
	"sentinel-worker-go/internal/services/device"
	"sentinel-worker-go/internal/services/messaging"
	"sentinel-worker-go/internal/services/recorder"
	"sentinel-worker-go/internal/services/snapshot"
	"sentinel-worker-go/internal/services/supervisor"
	"sentinel-worker-go/internal/services/vision"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config     *config.Config
	Messaging  *messaging.Service
	Catalog    *catalog.Service // nil when disabled
	Health     *supervisor.HealthReporter
	Supervisor *supervisor.Supervisor

	closeDB func() error
}

// NewServiceContainer builds every service and one device manager per entry
// in devices. Nothing is started yet.
func NewServiceContainer(cfg *config.Config, devices []config.DeviceConfig) (*ServiceContainer, error) {
	sc := &ServiceContainer{
		Config: cfg,
		Health: supervisor.NewHealthReporter(),
	}

	msg, err := messaging.NewService(cfg, logging.NewServiceLogger(cfg, "messaging"))
	if err != nil {
		return nil, err
	}
	sc.Messaging = msg

	if cfg.CatalogEnabled {
		if err := sc.openCatalog(); err != nil {
			sc.Shutdown(context.Background())
			return nil, err
		}
	}

	sup, err := supervisor.New(devices, sc.newDevice, sc.Health, logging.NewServiceLogger(cfg, "supervisor"))
	if err != nil {
		sc.Shutdown(context.Background())
		return nil, err
	}
	sc.Supervisor = sup

	return sc, nil
}

func (sc *ServiceContainer) openCatalog() error {
	db, err := catalog.Open(sc.Config.CatalogPath)
	if err != nil {
		return err
	}
	repo, err := catalog.NewSQLiteRepository(db)
	if err != nil {
		db.Close()
		return err
	}
	var prober catalog.Prober
	if sc.Config.CatalogProbe {
		prober = catalog.FFmpegProber{}
	}
	sc.Catalog = catalog.NewService(repo, prober, sc.Config.CatalogQueueSize, logging.NewServiceLogger(sc.Config, "catalog"))
	sc.closeDB = db.Close
	return nil
}

// newDevice is the supervisor factory: camera, pixel ops, encoder and
// listeners for one device.
func (sc *ServiceContainer) newDevice(dc config.DeviceConfig) (supervisor.Device, error) {
	logger := logging.WithDevice(logging.NewServiceLogger(sc.Config, "device"), dc.Name, dc.Index)

	var encoders recorder.EncoderFactory
	if dc.Video.UseExternalEncoder {
		encoders = &recorder.PipeFactory{
			Command:      dc.Video.ExternalCommand,
			Vars:         helpers.Placeholders{DeviceName: dc.Name, DeviceIndex: dc.Index},
			WriteTimeout: sc.Config.EncoderWriteTimeout,
			CloseTimeout: sc.Config.EncoderCloseTimeout,
			Logger:       logger,
		}
	} else {
		encoders = &vision.WriterFactory{Codec: dc.Video.InternalCodec}
	}

	listeners := recorder.Listeners{sc.Messaging}
	if sc.Catalog != nil {
		listeners = append(listeners, sc.Catalog)
	}

	mgr, err := device.New(dc, device.Deps{
		Source:   vision.NewCapture(dc, logger),
		Ops:      vision.NewOps(),
		Encoders: encoders,
		Store:    snapshot.NewStore(),
		Segments: listeners,
		Motion:   sc.Messaging,
		Budget:   recorder.NewBudget(sc.Config.RecordingBudgetFPS, sc.Config.RecordingBudgetBurst, int64(dc.Video.CooldownFrames)+1),
	}, logging.NewServiceLogger(sc.Config, "device"))
	if err != nil {
		return nil, fmt.Errorf("device %d (%s): %w", dc.Index, dc.Name, err)
	}
	return mgr, nil
}

// Shutdown stops device loops first so their final segments reach the
// catalog and NATS, then drains those.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error

	if sc.Supervisor != nil {
		if err := sc.Supervisor.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop devices: %w", err))
		}
	}

	if sc.Catalog != nil {
		if err := sc.Catalog.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close catalog: %w", err))
		}
	}
	if sc.closeDB != nil {
		if err := sc.closeDB(); err != nil {
			errs = append(errs, fmt.Errorf("close catalog db: %w", err))
		}
	}

	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain nats: %w", err))
		}
	}

	sc.Health.Shutdown()

	return errors.Join(errs...)
}
