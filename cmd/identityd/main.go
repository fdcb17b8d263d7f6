package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/praxisauth/identity"
	"github.com/praxisauth/identity/httpapi"
	"github.com/praxisauth/identity/postgres"
	"github.com/praxisauth/identity/redisrate"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	logger := log.New(os.Stderr, "identityd ", log.LstdFlags)

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		logger.Fatal("DATABASE_DSN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer store.Close()

	builder := identity.New().
		WithStore(store).
		WithConfig(configFromEnv()).
		WithAuditSink(identity.NewJSONWriterSink(os.Stdout))

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatalf("redis ping: %v", err)
		}
		defer client.Close()
		builder = builder.WithRateLimitStore(redisrate.New(client))
		logger.Printf("rate limits on redis at %s", addr)
	}

	engine, err := builder.Build()
	if err != nil {
		logger.Fatalf("build engine: %v", err)
	}
	defer engine.Close()

	if err := engine.EnsureSigningKey(ctx); err != nil {
		logger.Fatalf("ensure signing key: %v", err)
	}

	go sweepLoop(ctx, engine, logger)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           httpapi.New(engine, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Print("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("serve: %v", err)
		}
	}
}

// sweepLoop runs lifecycle cleanup on an interval. Sweeps are idempotent,
// so overlapping instances across replicas are harmless.
func sweepLoop(ctx context.Context, engine *identity.Engine, logger *log.Logger) {
	interval := durationEnv("SWEEP_INTERVAL", time.Hour)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := engine.Sweep(ctx)
			if err != nil {
				logger.Printf("sweep: %v", err)
				continue
			}
			logger.Printf("sweep: users=%d refresh=%d crossdomain=%d emailchanges=%d",
				report.UsersPurged, report.RefreshTokensPurged,
				report.CrossDomainPurged, report.EmailChangesPurged)
		}
	}
}

func configFromEnv() identity.Config {
	cfg := identity.DefaultConfig()

	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		cfg.JWT.Issuer = issuer
	}
	if audiences := os.Getenv("JWT_AUDIENCES"); audiences != "" {
		cfg.JWT.Audiences = strings.Split(audiences, ",")
	}
	cfg.JWT.AccessTTL = durationEnv("ACCESS_TOKEN_TTL", cfg.JWT.AccessTTL)
	cfg.Refresh.TTL = durationEnv("REFRESH_TOKEN_TTL", cfg.Refresh.TTL)
	cfg.Refresh.ReuseGrace = durationEnv("REFRESH_REUSE_GRACE", cfg.Refresh.ReuseGrace)
	cfg.CrossDomain.TTL = durationEnv("CROSS_DOMAIN_TTL", cfg.CrossDomain.TTL)
	cfg.Lifecycle.PurgeAfter = durationEnv("PURGE_AFTER", cfg.Lifecycle.PurgeAfter)

	return cfg
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s %q, using %s", name, raw, fallback)
		return fallback
	}
	return d
}
