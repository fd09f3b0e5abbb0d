package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Host        string
	Port        int
	GRPCPort    int // 0 disables the gRPC health endpoint
	LogLevel    string

	// Device definitions (YAML or JSON)
	DevicesFile string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// NATS (motion and segment events)
	// Default: nats://localhost:4222
	// Docker: Use nats://nats:4222 if running worker in Docker
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	NatsDrainTimeout   time.Duration // For graceful shutdown
	NatsSubjectPrefix  string
	NatsEncoding       string // json or proto

	// Segment catalog
	CatalogEnabled   bool
	CatalogPath      string
	CatalogProbe     bool // run ffprobe over finished segments
	CatalogQueueSize int

	// Encoders
	EncoderWriteTimeout time.Duration
	EncoderCloseTimeout time.Duration

	// Recording budget shared by all segments of a device, in frames per second.
	// 0 disables it.
	RecordingBudgetFPS   float64
	RecordingBudgetBurst int64

	// Swagger Configuration
	SwaggerHost string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

// Load reads .env (if present) and the process environment.
// envFiles overrides the default .env lookup.
func Load(envFiles ...string) *Config {
	// Load .env file if it exists
	if err := godotenv.Load(envFiles...); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Strs("files", envFiles).Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "sentinel-1"),
		Host:        getEnv("HOST", "0.0.0.0"),
		Port:        getEnvInt("PORT", 8000),
		GRPCPort:    getEnvInt("GRPC_PORT", 8001),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DevicesFile: getEnv("DEVICES_FILE", defaultDevicesFile()),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		NatsDrainTimeout:   getEnvDuration("NATS_DRAIN_TIMEOUT", 5*time.Second),
		NatsSubjectPrefix:  getEnv("NATS_SUBJECT_PREFIX", "sentinel"),
		NatsEncoding:       getEnv("NATS_ENCODING", "json"),

		// Segment catalog
		CatalogEnabled:   getEnvBool("CATALOG_ENABLED", true),
		CatalogPath:      getEnv("CATALOG_PATH", "sentinel.db"),
		CatalogProbe:     getEnvBool("CATALOG_PROBE", false),
		CatalogQueueSize: getEnvInt("CATALOG_QUEUE_SIZE", 64),

		// Encoders
		EncoderWriteTimeout: getEnvDuration("ENCODER_WRITE_TIMEOUT", 2*time.Second),
		EncoderCloseTimeout: getEnvDuration("ENCODER_CLOSE_TIMEOUT", 5*time.Second),

		RecordingBudgetFPS:   getEnvFloat("RECORDING_BUDGET_FPS", 0),
		RecordingBudgetBurst: int64(getEnvInt("RECORDING_BUDGET_BURST", 0)),

		SwaggerHost: getEnv("SWAGGER_HOST", "localhost:8000"),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}

// defaultDevicesFile mirrors the per-user config location, falling back to the working directory
func defaultDevicesFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		p := dir + "/sentinel/devices.yaml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "devices.yaml"
}
