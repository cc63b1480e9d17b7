package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, "5000", cfg.Server.HTTPPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "http://localhost:5000", cfg.Client.APIURL)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devmon.yaml")
	body := []byte(`
server:
  http_port: "8080"
database:
  driver: sqlite
  dsn: "file::memory:"
logging:
  level: debug
  format: json
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("DEVMON_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db/monitoring_db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/monitoring_db", cfg.Database.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{HTTPPort: ""},
		Database: DatabaseConfig{Driver: "oracle", DSN: ""},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
	assert.Contains(t, err.Error(), "database.dsn is empty")
	assert.Contains(t, err.Error(), "server.http_port is empty")

	cfg = &Config{
		Server:   ServerConfig{HTTPPort: "5000"},
		Database: DatabaseConfig{Driver: "mysql", DSN: "u:p@tcp(localhost)/db"},
	}
	assert.NoError(t, cfg.Validate())
}
