package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6142", cfg.ApplicationConfiguration.ListenAddress())
	assert.EqualValues(t, 3600, cfg.ApplicationConfiguration.Index.CrawlInterval)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manager.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
ApplicationConfiguration:
  Address: 0.0.0.0
  Port: 7000
  LogLevel: debug
  LogEncoding: json
  Prometheus:
    Enabled: true
    Addresses:
      - "127.0.0.1:2112"
  Index:
    CachePath: /var/cache/pai/index.db
    Roots:
      - /home/user/music
    CrawlInterval: 600
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	app := cfg.ApplicationConfiguration
	assert.Equal(t, "0.0.0.0:7000", app.ListenAddress())
	assert.Equal(t, "debug", app.LogLevel)
	assert.Equal(t, "json", app.LogEncoding)
	assert.True(t, app.Prometheus.Enabled)
	assert.Equal(t, []string{"127.0.0.1:2112"}, app.Prometheus.Addresses)
	assert.Equal(t, []string{"/home/user/music"}, app.Index.Roots)
	assert.EqualValues(t, 600, app.Index.CrawlInterval)
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manager.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
ApplicationConfiguration:
  LogEncoding: banana
`), 0o644))
	_, err := LoadFile(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))
	_, err = LoadFile(path)
	require.Error(t, err)
}
