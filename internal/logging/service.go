package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sentinel-worker-go/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

func WithDevice(base zerolog.Logger, name string, index int) zerolog.Logger {
	return base.With().Str("device", name).Int("device_index", index).Logger()
}
