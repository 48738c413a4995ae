package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/instrument-market/internal/auth"
	"github.com/shinyyama/instrument-market/internal/config"
	"github.com/shinyyama/instrument-market/internal/db"
	"github.com/shinyyama/instrument-market/internal/events"
	"github.com/shinyyama/instrument-market/internal/logging"
	appmw "github.com/shinyyama/instrument-market/internal/middleware"
	"github.com/shinyyama/instrument-market/internal/server"
	"github.com/shinyyama/instrument-market/internal/storage"
)

var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	conn, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}

	deps := server.Deps{
		DB:             conn,
		Issuer:         auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL),
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		GitSHA:         gitSHA,
		BuildTime:      buildTime,
	}

	if cfg.StorageBucket != "" {
		gcs, err := storage.NewGCS(ctx, cfg.StorageBucket)
		if err != nil {
			return err
		}
		defer gcs.Close()
		deps.Store = gcs
		logger.Info("uploads stored in bucket", "bucket", cfg.StorageBucket)
	} else {
		deps.Store = storage.NewLocal(cfg.UploadDir, cfg.PublicBaseURL)
		deps.UploadDir = cfg.UploadDir
		logger.Info("uploads stored on disk", "dir", cfg.UploadDir)
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		deps.Publisher = pub
	} else {
		deps.Publisher = events.Noop{}
	}

	if cfg.FirebaseProjectID != "" {
		client, err := appmw.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID)
		if err != nil {
			logger.Warn("firebase auth disabled", "err", err)
		} else {
			deps.Firebase = client
		}
	}

	srv := server.New(deps)
	if n, err := srv.SeedCategories(ctx); err != nil {
		return err
	} else if n > 0 {
		logger.Info("seeded categories", "count", n)
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "git_sha", gitSHA)
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
