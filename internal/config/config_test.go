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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "bannerd.db", cfg.Database.DSN)
	assert.Equal(t, "./data", cfg.Storage.BaseDir)
	assert.Equal(t, int64(20*1024*1024), cfg.Storage.MaxMediaSize.Bytes())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, 3, cfg.Resolver.AttemptCap)
	assert.Equal(t, time.Duration(0), cfg.Resolver.AttemptDelay)
	assert.Equal(t, "/banners/media", cfg.Resolver.DirectEndpoint)
	assert.Equal(t, "/proxy", cfg.Resolver.ProxyPrefix)
	assert.Equal(t, []string{"banner-images", "banner-uploads"}, cfg.Resolver.Buckets)
	assert.Equal(t, "/uploads", cfg.Resolver.UploadsPath)
	assert.Equal(t, "/assets/banner-placeholder.png", cfg.Resolver.PlaceholderPath)
	assert.False(t, cfg.Resolver.ForceReload)

	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
storage:
  base_dir: /var/lib/bannerd
  max_media_size: 5MB
resolver:
  attempt_cap: 2
  buckets:
    - custom-bucket
  force_reload: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/bannerd", cfg.Storage.BaseDir)
	assert.Equal(t, int64(5*1024*1024), cfg.Storage.MaxMediaSize.Bytes())
	assert.Equal(t, 2, cfg.Resolver.AttemptCap)
	assert.Equal(t, []string{"custom-bucket"}, cfg.Resolver.Buckets)
	assert.True(t, cfg.Resolver.ForceReload)

	// Defaults still apply for unset keys
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "/proxy", cfg.Resolver.ProxyPrefix)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BANNERD_SERVER_PORT", "7070")
	t.Setenv("BANNERD_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("valid defaults", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad driver", func(t *testing.T) {
		cfg := valid()
		cfg.Database.Driver = "oracle"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing dsn", func(t *testing.T) {
		cfg := valid()
		cfg.Database.DSN = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero attempt cap", func(t *testing.T) {
		cfg := valid()
		cfg.Resolver.AttemptCap = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("no buckets", func(t *testing.T) {
		cfg := valid()
		cfg.Resolver.Buckets = nil
		assert.Error(t, cfg.Validate())
	})
}

func TestStorageConfig_Paths(t *testing.T) {
	cfg := StorageConfig{BaseDir: "/data", MediaDir: "media", UploadsDir: "uploads"}
	assert.Equal(t, "/data/media", cfg.MediaPath())
	assert.Equal(t, "/data/uploads", cfg.UploadsPath())
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8081}
	assert.Equal(t, "127.0.0.1:8081", cfg.Address())
}
