package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"repairtrack/docs"
	"repairtrack/pkg/api"
	"repairtrack/pkg/config"
	"repairtrack/pkg/logger"
	"repairtrack/pkg/otel"
	"repairtrack/pkg/tracking"
	"repairtrack/pkg/tracking/memory"
	"repairtrack/pkg/tracking/postgres"
	"repairtrack/pkg/tracking/redis"
	"repairtrack/pkg/tracking/rpc"
)

const serviceName = "repairtrack"

const backendTimeout = 10 * time.Second

// demoSnapshot seeds the memory backend so the endpoint can be tried locally.
var demoSnapshot = json.RawMessage(`{"order_number":"OS-0001","device":"Notebook","status":"awaiting_quote_approval","quote":{"total":350.0,"currency":"BRL"}}`)

// @title Repair Tracking API
// @version 1.0
// @description Public order tracking and quote decisions for repair shop customers
// @host localhost:8443
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	log := logger.New(os.Stdout, level, serviceName, otel.GetTraceID)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelCfg := otel.Config{
		ServiceName: serviceName,
		Host:        cfg.OTel.Host,
		Probability: cfg.OTel.SampleRate,
		Stdout:      cfg.OTel.Stdout,
		Writer:      os.Stderr,
	}
	tp, shutdownTracing, err := otel.InitTracing(log, otelCfg)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTelemetry(log, "tracing", shutdownTracing)

	metrics, shutdownMetrics, err := otel.InitMetrics(otelCfg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer shutdownTelemetry(log, "metrics", shutdownMetrics)

	store, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.BasePath != "" {
		docs.SwaggerInfo.BasePath = cfg.BasePath
	}

	handler := api.New(tracking.NewService(store), log)
	router := api.NewRouter(handler, api.Options{
		BasePath:      cfg.BasePath,
		AllowOrigin:   cfg.CORS.AllowOrigin,
		AllowHeaders:  cfg.CORS.AllowHeaders,
		StrictActions: cfg.StrictActions,
		Swagger:       cfg.Swagger,
		Tracer:        tp.Tracer(serviceName),
		Metrics:       metrics,
		Log:           log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.Addr, "backend", cfg.Backend, "tls", cfg.TLSCert != "")
		if cfg.TLSCert != "" {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildStore connects the configured backend. The returned close function
// releases its connections.
func buildStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (tracking.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db open: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, backendTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		return postgres.New(db), func() { _ = db.Close() }, nil

	case config.BackendRPC:
		hc := &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   backendTimeout,
		}
		return rpc.New(cfg.BackendURL, cfg.ServiceKey, hc), func() { hc.CloseIdleConnections() }, nil

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, backendTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connect: %w", err)
		}
		return redis.New(client, cfg.Redis.TokenTTL), func() { _ = client.Close() }, nil

	case config.BackendMemory:
		store := memory.New()
		token := store.Mint(demoSnapshot)
		log.Info(ctx, "memory backend seeded", "demo_path", cfg.BasePath+"/tracking/"+string(token))
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func shutdownTelemetry(log *logger.Logger, what string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error(ctx, "telemetry shutdown", "signal", what, "error", err)
	}
}
