package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/api/handlers"
	"sentinel-worker-go/internal/api/middleware"
	"sentinel-worker-go/internal/config"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server
	logger zerolog.Logger

	healthHandler *handlers.HealthHandler
	deviceHandler *handlers.DeviceHandler
	systemHandler *handlers.SystemHandler
}

// NewServer builds the HTTP surface. segments may be nil when the catalog is
// disabled.
func NewServer(cfg *config.Config, devices handlers.Devices, segments handlers.Segments, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		config:        cfg,
		router:        router,
		logger:        logger,
		healthHandler: handlers.NewHealthHandler(cfg.WorkerID, cfg.Version, devices),
		deviceHandler: handlers.NewDeviceHandler(devices, segments),
		systemHandler: handlers.NewSystemHandler(cfg.WorkerID, devices),
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.setupSwagger()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.CORS())
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting HTTP API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP API")
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
