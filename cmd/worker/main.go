package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sentinel-worker-go/internal/api"
	"sentinel-worker-go/internal/api/handlers"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/services"
	"sentinel-worker-go/internal/services/supervisor"
)

var version = "<not set>"

type Args struct {
	DevicesFile string `arg:"-c,--config" help:"path to the device file (YAML or JSON)"`
	EnvFile     string `arg:"-e,--env-file" help:"load settings from this .env file instead of ./.env"`
	LogLevel    string `arg:"-l,--log-level" help:"override LOG_LEVEL"`
	Port        int    `arg:"-p,--port" help:"override PORT"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	arg.MustParse(&args)
	return args
}

func main() {
	if err := runMain(); err != nil {
		log.Fatal().Err(err).Msg("Worker failed")
	}
}

func runMain() error {
	args := procArgs()

	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	var cfg *config.Config
	if args.EnvFile != "" {
		cfg = config.Load(args.EnvFile)
	} else {
		cfg = config.Load()
	}
	if args.DevicesFile != "" {
		cfg.DevicesFile = args.DevicesFile
	}
	if args.LogLevel != "" {
		cfg.LogLevel = args.LogLevel
	}
	if args.Port != 0 {
		cfg.Port = args.Port
	}
	if version != "<not set>" {
		cfg.Version = version
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Console output for development, JSON lines everywhere else
	var out io.Writer = os.Stderr
	if cfg.Environment == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	if cfg.LogdyEnabled {
		if w, _, err := logging.StartLogdy(cfg); err != nil {
			log.Warn().Err(err).Msg("Logdy disabled")
		} else {
			out = zerolog.MultiLevelWriter(out, w)
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	devices, err := config.LoadDevices(cfg.DevicesFile)
	if err != nil {
		return fmt.Errorf("invalid device configuration: %w", err)
	}

	log.Info().
		Str("worker_id", cfg.WorkerID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Int("devices", len(devices)).
		Str("devices_file", cfg.DevicesFile).
		Bool("nats_enabled", cfg.NatsEnabled).
		Bool("catalog_enabled", cfg.CatalogEnabled).
		Msg("Starting Sentinel worker")

	container, err := services.NewServiceContainer(cfg, devices)
	if err != nil {
		return err
	}

	// Device loops first so the first HTTP request already finds them running
	if err := container.Supervisor.Start(); err != nil {
		container.Shutdown(context.Background())
		return err
	}

	var segments handlers.Segments
	if container.Catalog != nil {
		segments = container.Catalog
	}
	server := api.NewServer(cfg, container.Supervisor, segments, logging.NewServiceLogger(cfg, "api"))
	if err := server.Setup(); err != nil {
		container.Shutdown(context.Background())
		return err
	}

	serverErr := make(chan error, 2)
	go func() {
		serverErr <- server.Start()
	}()

	closeGRPC, err := startGRPC(cfg, container.Health, serverErr)
	if err != nil {
		container.Shutdown(context.Background())
		return err
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug().Err(err).Msg("sd_notify failed")
	} else if ok {
		log.Debug().Msg("Notified systemd")
	}

	// Wait for interrupt signal or a listener failing
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case runErr = <-serverErr:
		if runErr == nil {
			runErr = fmt.Errorf("listener stopped unexpectedly")
		}
		log.Error().Err(runErr).Msg("Listener failed, shutting down")
	}
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	closeGRPC()
	if err := container.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Services did not shut down cleanly")
	} else {
		log.Info().Msg("Shutdown complete")
	}
	return runErr
}

// startGRPC serves grpc.health.v1 for the devices. Port 0 disables it.
func startGRPC(cfg *config.Config, health *supervisor.HealthReporter, errs chan<- error) (func(), error) {
	if cfg.GRPCPort == 0 {
		return func() {}, nil
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort))
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}
	srv := supervisor.NewGRPCServer(health)
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC health service")
		errs <- srv.Serve(lis)
	}()

	return func() {
		done := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			srv.Stop()
		}
	}, nil
}
