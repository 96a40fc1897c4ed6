package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, 4, cfg.Map.Buckets)
	assert.Equal(t, 0.8, cfg.Map.MaxLightness)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "dmarcviz.yaml", `
port: ":9090"
db_path: /tmp/dmarc.db
map:
  buckets: 6
  min_lightness: 0.1
  max_lightness: 0.9
geoip:
  192.0.2.0/24: AT
auth:
  users:
    - name: admin
      password_hash: "$2a$10$abc"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "/tmp/dmarc.db", cfg.DBPath)
	assert.Equal(t, 6, cfg.Map.Buckets)
	assert.Equal(t, "AT", cfg.GeoIP["192.0.2.0/24"])
	require.Len(t, cfg.Auth.Users, 1)
	assert.Equal(t, "admin", cfg.Auth.Users[0].Name)
	// Unset fields keep their defaults
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "dmarcviz.toml", `
port = ":7070"
workers = 2

[map]
buckets = 5
min_lightness = 0.0
max_lightness = 0.8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Port)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 5, cfg.Map.Buckets)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":1234")
	t.Setenv("DB_PATH", "/data/x.db")
	t.Setenv("WORKERS", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":1234", cfg.Port)
	assert.Equal(t, "/data/x.db", cfg.DBPath)
	assert.Equal(t, 8, cfg.Workers)

	t.Setenv("WORKERS", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "config.json", "{}"))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = Load(writeFile(t, "bad.yaml", "map:\n  buckets: 0\n"))
	assert.ErrorContains(t, err, "map.buckets")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.GeoIP = map[string]string{"not-a-prefix": "AUT"}
	cfg.Map.MinLightness = 0.9
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "geoip prefix")
	assert.ErrorContains(t, err, "alpha-2")
	assert.ErrorContains(t, err, "lightness")
}
