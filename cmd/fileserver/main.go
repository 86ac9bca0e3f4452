package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"fileserver/internal/auth"
	"fileserver/internal/config"
	"fileserver/internal/logging"
	"fileserver/internal/server"
	"fileserver/internal/service"
	"fileserver/internal/storage"
)

func main() {
	// .env is optional; real deployments configure via the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("service=fileserver msg=%q err=%v", "config_invalid", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	build := server.BuildInfo{
		Version: getenvDefault("VERSION", "dev"),
		Commit:  getenvDefault("COMMIT", "unknown"),
	}

	authn := auth.New(cfg.UploadPassword, cfg.UploadPasswordHash)
	// Safety: refuse to serve an unauthenticated store.
	if !authn.Configured() {
		logger.Fatal("no upload password configured")
	}

	policy := storage.NewPolicy(cfg.MaxFileSize, cfg.AllowedExtensions, cfg.BlockedExtensions)

	var engine storage.Engine
	switch cfg.StorageBackend {
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		engine, err = storage.NewObjectStore(ctx, storage.ObjectStoreConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
		}, policy)
		cancel()
	default:
		engine, err = storage.NewDisk(cfg.StorageDir, policy)
	}
	if err != nil {
		logger.WithError(err).Fatal("storage backend init failed")
	}

	svc := service.New(authn, engine, cfg.BaseURL, cfg.PublicRead, logger)

	srv := server.New(server.Config{
		Addr:        cfg.Addr(),
		Build:       build,
		Service:     svc,
		Log:         logger,
		MaxFileSize: cfg.MaxFileSize,
		RateLimit:   cfg.RateLimit,
		RateWindow:  cfg.RateWindow,
	})

	// Start the HTTP server in a background goroutine so we can
	// listen for OS signals while it runs.
	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"backend": cfg.StorageBackend,
			"version": build.Version,
		}).Info("starting")
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
		// Give the server 5 seconds to finish in-flight requests.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("shutdown error")
			os.Exit(1)
		}
		logger.Info("shutdown complete")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("server error")
			os.Exit(1)
		}
	}
}

// getenvDefault reads an environment variable and returns a default
// value if not set.
func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
