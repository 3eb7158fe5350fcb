package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"filedrop/internal/config"
	"filedrop/internal/server"
	"filedrop/internal/storage"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = ""
	commit  = ""
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "filedrop: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := server.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	for _, w := range cfg.Warnings() {
		logger.Warn("configuration", zap.String("warning", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("storage unavailable", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
		return err
	}

	build := server.BuildInfo{
		Version: getenvDefault("FILEDROP_VERSION", orDefault(version, "dev")),
		Commit:  getenvDefault("FILEDROP_COMMIT", orDefault(commit, "unknown")),
	}

	srv, err := server.New(serverConfig(cfg, build), store, logger)
	if err != nil {
		return err
	}

	logger.Info("starting",
		zap.String("addr", cfg.Addr()),
		zap.String("backend", cfg.Storage.Backend),
		zap.String("version", build.Version),
		zap.String("commit", build.Commit),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		srv.StartCleanupJob(gctx, server.CleanupConfig{
			Enabled:  cfg.Cleanup.Enabled,
			Interval: cfg.Cleanup.Interval,
			MaxAge:   cfg.Cleanup.MaxAge,
		})
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// openStore builds the backend named by the configuration.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMinio:
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return storage.NewBucket(ctx, storage.BucketConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
		})
	case config.BackendDir, "":
		return storage.NewDir(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func serverConfig(cfg config.Config, build server.BuildInfo) server.Config {
	return server.Config{
		Addr:                   cfg.Addr(),
		Password:               cfg.Password,
		SecretKey:              cfg.SecretKey,
		MaxUploadBytes:         cfg.MaxUploadBytes,
		SessionTTL:             cfg.SessionTTL,
		CookieSecure:           cfg.CookieSecure,
		TrustProxy:             cfg.TrustProxy,
		LoginRatePerMinute:     cfg.LoginRatePerMinute,
		MaxConcurrentTransfers: cfg.MaxConcurrentTransfers,
		Build:                  build,
	}
}

// getenvDefault reads an environment variable and returns def if it is unset or empty.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
