// Package config loads the service configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendPostgres = "postgres"
	BackendRPC      = "rpc"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds server configuration.
type Config struct {
	Addr            string        `yaml:"addr"`
	BasePath        string        `yaml:"base_path"`
	TLSCert         string        `yaml:"tls_cert"`
	TLSKey          string        `yaml:"tls_key"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	StrictActions   bool          `yaml:"strict_actions"`
	Swagger         bool          `yaml:"swagger"`

	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"database_url"`
	BackendURL  string `yaml:"backend_url"`
	ServiceKey  string `yaml:"service_role_key"`

	Redis RedisConfig `yaml:"redis"`
	CORS  CORSConfig  `yaml:"cors"`
	OTel  OTelConfig  `yaml:"otel"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type CORSConfig struct {
	AllowOrigin  string   `yaml:"allow_origin"`
	AllowHeaders []string `yaml:"allow_headers"`
}

type OTelConfig struct {
	Host       string  `yaml:"host"`
	SampleRate float64 `yaml:"sample_rate"`
	Stdout     bool    `yaml:"stdout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Addr:            ":8443",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		Swagger:         true,
		Backend:         BackendPostgres,
		Redis:           RedisConfig{Addr: "localhost:6379"},
		CORS: CORSConfig{
			AllowOrigin:  "*",
			AllowHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
		},
		OTel: OTelConfig{SampleRate: 1.0},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if set) and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	parse := func(key string, fn func(string) error) {
		if v, ok := lookup(key); ok && v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	boolean := func(key string, dst *bool) {
		parse(key, func(v string) (err error) { *dst, err = strconv.ParseBool(v); return })
	}
	duration := func(key string, dst *time.Duration) {
		parse(key, func(v string) (err error) { *dst, err = time.ParseDuration(v); return })
	}

	str("ADDR", &c.Addr)
	if v, ok := lookup("PORT"); ok && v != "" && !hasKey(lookup, "ADDR") {
		c.Addr = ":" + v
	}
	str("BASE_PATH", &c.BasePath)
	str("TLS_CERT", &c.TLSCert)
	str("TLS_KEY", &c.TLSKey)
	str("LOG_LEVEL", &c.LogLevel)
	duration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	boolean("STRICT_ACTIONS", &c.StrictActions)
	boolean("SWAGGER", &c.Swagger)

	str("BACKEND", &c.Backend)
	str("DATABASE_URL", &c.DatabaseURL)
	str("BACKEND_URL", &c.BackendURL)
	str("SERVICE_ROLE_KEY", &c.ServiceKey)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	parse("REDIS_DB", func(v string) (err error) { c.Redis.DB, err = strconv.Atoi(v); return })
	duration("REDIS_TOKEN_TTL", &c.Redis.TokenTTL)

	str("CORS_ALLOW_ORIGIN", &c.CORS.AllowOrigin)
	if v, ok := lookup("CORS_ALLOW_HEADERS"); ok && v != "" {
		c.CORS.AllowHeaders = splitList(v)
	}

	str("OTEL_HOST", &c.OTel.Host)
	parse("OTEL_SAMPLE_RATE", func(v string) (err error) { c.OTel.SampleRate, err = strconv.ParseFloat(v, 64); return })
	boolean("OTEL_STDOUT", &c.OTel.Stdout)

	return errors.Join(errs...)
}

func hasKey(lookup func(string) (string, bool), key string) bool {
	v, ok := lookup(key)
	return ok && v != ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendRPC:
		if c.BackendURL == "" {
			errs = append(errs, errors.New("BACKEND_URL is required for the rpc backend"))
		}
		if c.ServiceKey == "" {
			errs = append(errs, errors.New("SERVICE_ROLE_KEY is required for the rpc backend"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, errors.New("TLS_CERT and TLS_KEY must be set together"))
	}
	if c.OTel.SampleRate < 0 || c.OTel.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE %v out of range [0,1]", c.OTel.SampleRate))
	}
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		errs = append(errs, fmt.Errorf("BASE_PATH %q must start with /", c.BasePath))
	}
	return errors.Join(errs...)
}
