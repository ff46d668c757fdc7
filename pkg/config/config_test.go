package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadEnv(t *testing.T) {
	cfg := Default()
	err := cfg.loadEnv(mapLookup(map[string]string{
		"PORT":               "9000",
		"BASE_PATH":          "/functions/v1",
		"BACKEND":            "rpc",
		"BACKEND_URL":        "https://db.example.com",
		"SERVICE_ROLE_KEY":   "secret",
		"STRICT_ACTIONS":     "true",
		"REDIS_DB":           "3",
		"CORS_ALLOW_HEADERS": "authorization, apikey ,,content-type",
		"OTEL_SAMPLE_RATE":   "0.5",
		"SHUTDOWN_TIMEOUT":   "3s",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/functions/v1", cfg.BasePath)
	assert.Equal(t, BackendRPC, cfg.Backend)
	assert.True(t, cfg.StrictActions)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, []string{"authorization", "apikey", "content-type"}, cfg.CORS.AllowHeaders)
	assert.Equal(t, 0.5, cfg.OTel.SampleRate)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvAddrWinsOverPort(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.loadEnv(mapLookup(map[string]string{"ADDR": "127.0.0.1:8080", "PORT": "9000"})))
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
}

func TestLoadEnvParseErrors(t *testing.T) {
	cfg := Default()
	err := cfg.loadEnv(mapLookup(map[string]string{
		"STRICT_ACTIONS": "maybe",
		"REDIS_DB":       "zero",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRICT_ACTIONS")
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "postgres_ok", mutate: func(c *Config) { c.DatabaseURL = "postgres://localhost/db" }},
		{name: "postgres_missing_url", mutate: func(c *Config) {}, wantErr: "DATABASE_URL"},
		{name: "rpc_missing_key", mutate: func(c *Config) { c.Backend = BackendRPC; c.BackendURL = "http://x" }, wantErr: "SERVICE_ROLE_KEY"},
		{name: "redis_ok", mutate: func(c *Config) { c.Backend = BackendRedis }},
		{name: "memory_ok", mutate: func(c *Config) { c.Backend = BackendMemory }},
		{name: "unknown_backend", mutate: func(c *Config) { c.Backend = "mongo" }, wantErr: "unknown backend"},
		{name: "half_tls", mutate: func(c *Config) { c.Backend = BackendMemory; c.TLSCert = "a.crt" }, wantErr: "TLS_CERT"},
		{name: "sample_rate", mutate: func(c *Config) { c.Backend = BackendMemory; c.OTel.SampleRate = 2 }, wantErr: "OTEL_SAMPLE_RATE"},
		{name: "base_path", mutate: func(c *Config) { c.Backend = BackendMemory; c.BasePath = "api" }, wantErr: "BASE_PATH"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: redis
base_path: /functions/v1
shutdown_timeout: 5s
redis:
  addr: redis:6379
  token_ttl: 720h
cors:
  allow_origin: https://oficina.example.com
otel:
  host: collector:4317
  sample_rate: 0.1
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_ADDR", "cache:6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "/functions/v1", cfg.BasePath)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 720*time.Hour, cfg.Redis.TokenTTL)
	assert.Equal(t, "https://oficina.example.com", cfg.CORS.AllowOrigin)
	assert.Equal(t, []string{"authorization", "x-client-info", "apikey", "content-type"}, cfg.CORS.AllowHeaders)
	assert.Equal(t, "collector:4317", cfg.OTel.Host)
	assert.Equal(t, 0.1, cfg.OTel.SampleRate)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
