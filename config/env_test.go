package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Equal(t, "drop_oldest", cfg.OverflowPolicy)
	assert.Equal(t, "remove", cfg.OfflinePolicy)
	assert.Equal(t, 60*time.Second, cfg.StaleAfter)
	assert.Equal(t, 10*time.Minute, cfg.EvictAfter)
	assert.False(t, cfg.RejectUnknownVehicles)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: "9090"
offline_policy: retain
queue_size: 128
stale_after: 2m
evict_after: 0s
require_active_trip: true
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("QUEUE_SIZE", "256")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "retain", cfg.OfflinePolicy)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, 2*time.Minute, cfg.StaleAfter)
	assert.Zero(t, cfg.EvictAfter)
	assert.True(t, cfg.RequireActiveTrip)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad policy":   {"OFFLINE_POLICY": "forget"},
		"bad overflow": {"OVERFLOW_POLICY": "block"},
		"bad duration": {"STALE_AFTER": "soon"},
		"bad int":      {"QUEUE_SIZE": "many"},
		"zero queue":   {"QUEUE_SIZE": "0"},
		"bad bool":     {"REQUIRE_ACTIVE_TRIP": "maybe"},
		"bad port":     {"HTTP_PORT": "http"},
		"missing file": {"CONFIG_FILE": "/does/not/exist.yml"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
