package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, 5556, cfg.EventPort)
	require.Equal(t, 5555, cfg.OrderPort)
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("event_port: 7001\norder_port: 7000\nmetrics_port: 7002\nsnapshot_path: /tmp/snap.msgpack\nsnapshot_interval_seconds: 60\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7001, cfg.EventPort)
	require.Equal(t, 60, cfg.SnapshotIntervalSeconds)
	require.Equal(t, "/tmp/snap.msgpack", cfg.SnapshotPath)
}

func TestValidateRejectsZeroPorts(t *testing.T) {
	cfg := defaults()
	cfg.EventPort = 0
	require.Error(t, cfg.Validate())
}

func TestSnapshotIntervalConvertsSeconds(t *testing.T) {
	cfg := defaults()
	cfg.SnapshotIntervalSeconds = 5
	require.Equal(t, int64(5), cfg.SnapshotInterval().Milliseconds()/1000)
}
