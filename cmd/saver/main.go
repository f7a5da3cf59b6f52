package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/maraichr/reviewlens/internal/api"
	apihandler "github.com/maraichr/reviewlens/internal/api/handler"
	"github.com/maraichr/reviewlens/internal/config"
	"github.com/maraichr/reviewlens/internal/ingestion"
	"github.com/maraichr/reviewlens/internal/store"
	"github.com/maraichr/reviewlens/internal/store/blob"
	minioclient "github.com/maraichr/reviewlens/internal/store/minio"
	"github.com/maraichr/reviewlens/internal/store/postgres"
	s3client "github.com/maraichr/reviewlens/internal/store/s3"
	vk "github.com/maraichr/reviewlens/internal/store/valkey"
	"github.com/maraichr/reviewlens/internal/vectorsave"
	"github.com/maraichr/reviewlens/pkg/apierr"
)

func main() {
	_ = godotenv.Load() // ignore error if .env missing

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.Storage.Bucket == "" {
		logger.Error("S3_BUCKET_NAME is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	s := store.New(pool)
	if err := postgres.New(pool).EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Storage
	var bucket blob.Bucket
	switch cfg.Storage.Backend {
	case "minio":
		mc, err := minioclient.NewClient(cfg.MinIO, cfg.Storage.Bucket)
		if err != nil {
			logger.Error("failed to create minio client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		bucket = mc
	default:
		sc, err := s3client.NewClient(cfg.S3, cfg.Storage.Bucket)
		if err != nil {
			logger.Error("failed to create s3 client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		bucket = sc
	}

	// Valkey
	vkClient, err := vk.NewClient(ctx, cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	saver := vectorsave.NewSaver(bucket, s, logger)
	consumer := ingestion.NewConsumer[ingestion.SaveRequest](vkClient, ingestion.ConsumerOptions{
		Stream:      cfg.Worker.SaveStream,
		Group:       ingestion.SaveGroupName,
		ConsumerID:  cfg.Worker.ConsumerID,
		BatchSize:   cfg.Worker.BatchSize,
		MessageType: ingestion.MessageTypeSaveRequest,
	}, logger)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Error("failed to ensure consumer group", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := api.NewRouter(logger, &api.RouterDeps{
		Checks: []apihandler.Check{databaseCheck(pool), {Name: "valkey", Ping: vk.Ping(vkClient), NotReady: apierr.QueueNotReady}},
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("ops server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting vector saver, consuming from stream", slog.String("stream", cfg.Worker.SaveStream))
		if err := consumer.Consume(ctx, saver.Handle); err != nil {
			if ctx.Err() == nil {
				logger.Error("consumer error", slog.String("error", err.Error()))
			}
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	wg.Wait()
	logger.Info("saver stopped")
}

func databaseCheck(pool *pgxpool.Pool) apihandler.Check {
	return apihandler.Check{
		Name:     "database",
		Ping:     pool.Ping,
		NotReady: apierr.DatabaseNotReady,
	}
}
