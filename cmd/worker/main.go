package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maraichr/reviewlens/internal/api"
	apihandler "github.com/maraichr/reviewlens/internal/api/handler"
	"github.com/maraichr/reviewlens/internal/config"
	"github.com/maraichr/reviewlens/internal/embedding"
	"github.com/maraichr/reviewlens/internal/ingestion"
	"github.com/maraichr/reviewlens/internal/llm"
	"github.com/maraichr/reviewlens/internal/store/blob"
	minioclient "github.com/maraichr/reviewlens/internal/store/minio"
	s3client "github.com/maraichr/reviewlens/internal/store/s3"
	vk "github.com/maraichr/reviewlens/internal/store/valkey"
	"github.com/maraichr/reviewlens/pkg/apierr"
)

func main() {
	key := flag.String("key", "", "process a single review document key and exit")
	dev := flag.Bool("dev", false, "with -key: use an in-memory bucket seeded from -file and print the result")
	file := flag.String("file", "", "with -dev: local review document to seed the in-memory bucket")
	flag.Parse()

	_ = godotenv.Load() // ignore error if .env missing

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *dev {
		cfg.Env = config.EnvDevelopment
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Inference
	llmClient, err := llm.NewClient(cfg.Inference)
	if err != nil {
		logger.Error("failed to create inference client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	embedder, err := embedding.NewEmbedder(cfg, llmClient)
	if err != nil {
		logger.Error("failed to create embedder", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("inference ready",
		slog.String("chat_model", llmClient.ChatModel()),
		slog.String("embedding_provider", cfg.Inference.EmbeddingProvider),
		slog.String("embedding_model", embedder.ModelID()))

	opts := ingestion.Options{
		Variant:      ingestion.Variant(cfg.Worker.Variant),
		SourcePrefix: cfg.Storage.SourcePrefix,
		ResultPrefix: cfg.Storage.ResultPrefix,
		ChunkSize:    cfg.Worker.ChunkSize,
		FanoutLimit:  cfg.Worker.FanoutLimit,
		ChatModel:    cfg.Inference.ChatModel,
	}

	if *key != "" {
		if err := runOnce(ctx, cfg, opts, llmClient, embedder, *key, *dev, *file, logger); err != nil {
			logger.Error("run failed", slog.String("error", err.Error()), slog.String("code", string(apierr.CodeOf(err))))
			os.Exit(1)
		}
		return
	}

	// Storage
	bucket, err := openBucket(ctx, cfg)
	if err != nil {
		logger.Error("failed to open bucket", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("storage ready", slog.String("backend", cfg.Storage.Backend), slog.String("bucket", cfg.Storage.Bucket))

	// Valkey
	vkClient, err := vk.NewClient(ctx, cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	var publisher ingestion.SaveRequestPublisher
	if opts.Variant == ingestion.VariantExtended {
		publisher = ingestion.NewPublisher(vkClient, cfg.Worker.SaveStream)
	}

	stages := ingestion.BuildStages(opts, ingestion.Deps{
		Bucket:    bucket,
		Completer: llmClient,
		Embedder:  embedder,
		Publisher: publisher,
		Logger:    logger,
	})
	pipeline := ingestion.NewPipeline(stages, logger)
	worker := ingestion.NewWorker(pipeline, publisher, cfg.Storage.ResultPrefix, logger)

	consumer := ingestion.NewConsumer[ingestion.JobMessage](vkClient, ingestion.ConsumerOptions{
		Stream:     cfg.Worker.JobStream,
		Group:      ingestion.JobGroupName,
		ConsumerID: cfg.Worker.ConsumerID,
		BatchSize:  cfg.Worker.BatchSize,
	}, logger)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Error("failed to ensure consumer group", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ops API
	router := api.NewRouter(logger, &api.RouterDeps{
		Producer: ingestion.NewProducer(vkClient, cfg.Worker.JobStream),
		Checks:   []apihandler.Check{{Name: "valkey", Ping: vk.Ping(vkClient), NotReady: apierr.QueueNotReady}},
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
		logger.Info("starting embedding worker, consuming from stream",
			slog.String("stream", cfg.Worker.JobStream),
			slog.String("variant", cfg.Worker.Variant))
		if err := consumer.Consume(ctx, worker.Handle); err != nil {
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
	logger.Info("worker stopped")
}

// runOnce processes one document without the queue. In dev mode the bucket
// is in memory and the save request is only logged.
func runOnce(ctx context.Context, cfg *config.Config, opts ingestion.Options, c llm.Completer, e embedding.Embedder, key string, dev bool, file string, logger *slog.Logger) error {
	var (
		bucket    blob.Bucket
		publisher ingestion.SaveRequestPublisher
	)

	if dev {
		mem := blob.NewMemory()
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			if err := mem.Put(ctx, ingestion.SourceKey(opts.SourcePrefix, key), data, "application/json"); err != nil {
				return err
			}
		}
		bucket = mem
		publisher = logPublisher{logger: logger}
	} else {
		b, err := openBucket(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open bucket: %w", err)
		}
		bucket = b
		if opts.Variant == ingestion.VariantExtended {
			vkClient, err := vk.NewClient(ctx, cfg.Valkey)
			if err != nil {
				return fmt.Errorf("connect valkey: %w", err)
			}
			defer vkClient.Close()
			publisher = ingestion.NewPublisher(vkClient, cfg.Worker.SaveStream)
		}
	}

	stages := ingestion.BuildStages(opts, ingestion.Deps{
		Bucket:    bucket,
		Completer: c,
		Embedder:  e,
		Publisher: publisher,
		Logger:    logger,
	})
	rc, err := ingestion.NewPipeline(stages, logger).Process(ctx, ingestion.JobMessage{ReviewKey: key})
	if err != nil {
		return err
	}

	if dev {
		data, err := bucket.Get(ctx, rc.ResultKey)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, string(data))
	}
	return nil
}

func openBucket(ctx context.Context, cfg *config.Config) (blob.Bucket, error) {
	switch cfg.Storage.Backend {
	case "minio":
		mc, err := minioclient.NewClient(cfg.MinIO, cfg.Storage.Bucket)
		if err != nil {
			return nil, err
		}
		if err := mc.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return mc, nil
	default:
		return s3client.NewClient(cfg.S3, cfg.Storage.Bucket)
	}
}

type logPublisher struct {
	logger *slog.Logger
}

func (p logPublisher) PublishSaveRequest(_ context.Context, resultKey string) error {
	p.logger.Info("save request (dev, not published)", slog.String("s3Key", resultKey))
	return nil
}
