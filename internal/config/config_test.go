package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Worker.ChunkSize != 20 {
		t.Errorf("expected chunk size 20, got %d", cfg.Worker.ChunkSize)
	}
	if cfg.Worker.Variant != VariantExtended {
		t.Errorf("expected extended variant, got %s", cfg.Worker.Variant)
	}
	if cfg.Storage.ResultPrefix != "embedding" {
		t.Errorf("expected result prefix embedding, got %s", cfg.Storage.ResultPrefix)
	}
	if cfg.Inference.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("unexpected base URL %s", cfg.Inference.BaseURL)
	}
	if cfg.Inference.ChatModel != "gpt-4o-mini" {
		t.Errorf("unexpected chat model %s", cfg.Inference.ChatModel)
	}
	if cfg.Inference.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("unexpected embedding model %s", cfg.Inference.EmbeddingModel)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("S3_BUCKET_NAME", "reviews")
	t.Setenv("S3_REVIEW_BUCKET_DIRECTORY", "review")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PIPELINE_VARIANT", "SIMPLE")
	t.Setenv("WORKER_CHUNK_SIZE", "5")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Bucket != "reviews" || cfg.Storage.SourcePrefix != "review" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Worker.Variant != VariantSimple {
		t.Errorf("variant should be lower-cased, got %s", cfg.Worker.Variant)
	}
	if cfg.Worker.ChunkSize != 5 {
		t.Errorf("expected chunk size 5, got %d", cfg.Worker.ChunkSize)
	}
	if !cfg.MinIO.UseSSL {
		t.Error("expected MinIO SSL enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("WORKER_BATCH_SIZE", "many")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Worker.BatchSize != 10 {
		t.Errorf("expected fallback batch size 10, got %d", cfg.Worker.BatchSize)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	for _, key := range []string{"APP_ENV", "S3_BUCKET_NAME", "S3_REVIEW_BUCKET_DIRECTORY", "OPENAI_API_KEY"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing bucket, prefix and API key")
	}
	for _, want := range []string{"S3_BUCKET_NAME", "S3_REVIEW_BUCKET_DIRECTORY", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidate_DevelopmentPlaceholders(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("S3_BUCKET_NAME", "")
	t.Setenv("S3_REVIEW_BUCKET_DIRECTORY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("development config should validate, got %v", err)
	}
	if cfg.Storage.Bucket != "test-bucket" {
		t.Errorf("expected placeholder bucket, got %s", cfg.Storage.Bucket)
	}
	if cfg.Storage.SourcePrefix != "review" {
		t.Errorf("expected placeholder prefix, got %s", cfg.Storage.SourcePrefix)
	}
	if cfg.Inference.APIKey != "test-api-key" {
		t.Errorf("expected placeholder API key, got %s", cfg.Inference.APIKey)
	}
}

func TestValidate_UnknownVariant(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("PIPELINE_VARIANT", "fancy")
	cfg, _ := Load()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "PIPELINE_VARIANT") {
		t.Errorf("expected variant error, got %v", err)
	}
}

func TestValidate_ExtendedNeedsSaveStream(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	cfg, _ := Load()
	cfg.Worker.SaveStream = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SAVE_RESTAURANT_STREAM") {
		t.Errorf("expected save stream error, got %v", err)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	if got := d.DSN(); got != "postgres://u:p@db:5432/n?sslmode=disable" {
		t.Errorf("unexpected DSN %s", got)
	}
}
