package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("ENCODER_WRITE_TIMEOUT", "750ms")
	t.Setenv("RECORDING_BUDGET_FPS", "12.5")
	t.Setenv("GRPC_PORT", "not-a-number")

	cfg := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.NatsEnabled)
	assert.Equal(t, 750*time.Millisecond, cfg.EncoderWriteTimeout)
	assert.Equal(t, 12.5, cfg.RecordingBudgetFPS)
	assert.Equal(t, 8001, cfg.GRPCPort, "unparsable values fall back to defaults")
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("WORKER_ID=edge-7\nCATALOG_PROBE=true\n"), 0o644))
	t.Setenv("WORKER_ID", "")
	os.Unsetenv("WORKER_ID")
	os.Unsetenv("CATALOG_PROBE")
	t.Cleanup(func() {
		os.Unsetenv("WORKER_ID")
		os.Unsetenv("CATALOG_PROBE")
	})

	cfg := Load(path)
	assert.Equal(t, "edge-7", cfg.WorkerID)
	assert.True(t, cfg.CatalogProbe)
}
