package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":5000", cfg.Master.Address)
	assert.Equal(t, time.Duration(0), cfg.Master.HeartbeatTTL)
	assert.Equal(t, "localhost", cfg.Worker.BaseURL)
	assert.Equal(t, 5001, cfg.Worker.Port)
	assert.Equal(t, 5, cfg.Worker.WorkStep)
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.WorkStepDelay)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.InitialDelay)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.RequestTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
master:
  address: ":6000"
  heartbeat_ttl: 30s
worker:
  port: 7001
  work_step: 10
scheduler:
  tick_interval: 2s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.Master.Address)
	assert.Equal(t, 30*time.Second, cfg.Master.HeartbeatTTL)
	assert.Equal(t, 7001, cfg.Worker.Port)
	assert.Equal(t, 10, cfg.Worker.WorkStep)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched values keep their defaults
	assert.Equal(t, "localhost", cfg.Worker.BaseURL)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("master: ["), 0644))

	_, err := LoadFromFile(configPath)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WORKER_BASE_URL", "10.0.0.7")
	t.Setenv("WORKER_PORT", "6123")
	t.Setenv("WORKER_NODE_URL", "http://10.0.0.7:6123")
	t.Setenv("SCHEDULER_REQUEST_TIMEOUT", "3s")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", cfg.Worker.BaseURL)
	assert.Equal(t, 6123, cfg.Worker.Port)
	assert.Equal(t, "http://10.0.0.7:6123", cfg.Scheduler.TargetURL)
	assert.Equal(t, 3*time.Second, cfg.Scheduler.RequestTimeout)
}

func TestEnvOverrideInvalidValue(t *testing.T) {
	t.Setenv("WORKER_PORT", "not-a-port")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestCmdOverridesWinOverEnv(t *testing.T) {
	t.Setenv("WORKER_PORT", "6123")

	cfg, err := NewLoader().WithCmdArgs(map[string]string{
		"worker.port":          "7000",
		"master.heartbeat_ttl": "15s",
		"scheduler.enabled":    "false",
		"logging.level":        "warn",
	}).Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Worker.Port)
	assert.Equal(t, 15*time.Second, cfg.Master.HeartbeatTTL)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestCmdOverrideUnknownPath(t *testing.T) {
	_, err := NewLoader().WithCmdArgs(map[string]string{"worker.nope": "1"}).Load()
	assert.Error(t, err)
}

func TestWorkerAddresses(t *testing.T) {
	w := WorkerConfig{BaseURL: "localhost", Port: 5001}
	assert.Equal(t, "localhost:5001", w.ListenAddress())
	assert.Equal(t, "http://localhost:5001", w.AdvertiseURL())

	w.BaseURL = "http://10.1.2.3/"
	assert.Equal(t, "10.1.2.3:5001", w.ListenAddress())
}

func TestSerializeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Worker.Port = 9999

	data, err := cfg.Serialize()
	require.NoError(t, err)

	parsed, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}
