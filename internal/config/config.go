package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	S3        S3Config
	MinIO     MinIOConfig
	Valkey    ValkeyConfig
	Inference InferenceConfig
	Bedrock   BedrockConfig
	Database  DatabaseConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WorkerConfig struct {
	ConsumerID  string
	Variant     string // PIPELINE_VARIANT: "extended" or "simple"
	BatchSize   int
	ChunkSize   int
	FanoutLimit int // 0 means unbounded
	JobStream   string
	SaveStream  string
}

type StorageConfig struct {
	Backend      string // "s3" or "minio"
	Bucket       string
	SourcePrefix string
	ResultPrefix string
}

type S3Config struct {
	Region   string // S3_REGION
	Endpoint string // S3_ENDPOINT (for MinIO/LocalStack compatibility)
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

type InferenceConfig struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	EmbeddingModel    string
	EmbeddingProvider string // "openai" or "bedrock"
	Timeout           time.Duration
}

type BedrockConfig struct {
	Region  string
	ModelID string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

const (
	VariantExtended = "extended"
	VariantSimple   = "simple"

	EnvDevelopment = "development"
)

func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Worker: WorkerConfig{
			ConsumerID:  getEnv("WORKER_CONSUMER_ID", "embedder-1"),
			Variant:     strings.ToLower(getEnv("PIPELINE_VARIANT", VariantExtended)),
			BatchSize:   getEnvInt("WORKER_BATCH_SIZE", 10),
			ChunkSize:   getEnvInt("WORKER_CHUNK_SIZE", 20),
			FanoutLimit: getEnvInt("WORKER_FANOUT_LIMIT", 0),
			JobStream:   getEnv("JOB_STREAM", "reviewlens:embed"),
			SaveStream:  getEnv("SAVE_RESTAURANT_STREAM", "reviewlens:save"),
		},
		Storage: StorageConfig{
			Backend:      strings.ToLower(getEnv("STORAGE_BACKEND", "s3")),
			Bucket:       getEnv("S3_BUCKET_NAME", ""),
			SourcePrefix: getEnv("S3_REVIEW_BUCKET_DIRECTORY", ""),
			ResultPrefix: getEnv("EMBEDDING_BUCKET_DIRECTORY", "embedding"),
		},
		S3: S3Config{
			Region:   getEnv("S3_REGION", "ap-northeast-2"),
			Endpoint: getEnv("S3_ENDPOINT", ""),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "reviewlens"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "reviewlens123"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		Inference: InferenceConfig{
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			BaseURL:           getEnv("OPENAI_API_URL", "https://api.openai.com/v1"),
			ChatModel:         getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel:    getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", "openai")),
			Timeout:           time.Duration(getEnvInt("INFERENCE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Bedrock: BedrockConfig{
			Region:  getEnv("BEDROCK_REGION", "us-east-1"),
			ModelID: getEnv("BEDROCK_MODEL_ID", "cohere.embed-multilingual-v3"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("RECOMMEND_DB_HOST", "localhost"),
			Port:     getEnvInt("RECOMMEND_DB_PORT", 5432),
			User:     getEnv("RECOMMEND_DB_USER", "reviewlens"),
			Password: getEnv("RECOMMEND_DB_PASSWORD", "reviewlens"),
			Name:     getEnv("RECOMMEND_DB_NAME", "recommend"),
			SSLMode:  getEnv("RECOMMEND_DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("RECOMMEND_DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("RECOMMEND_DB_MIN_CONNS", 1)),
		},
	}
	return cfg, nil
}

// Validate checks the settings the embedding worker cannot run without. In
// development, missing values are replaced with placeholders instead.
func (c *Config) Validate() error {
	if c.Env == EnvDevelopment {
		c.applyDevPlaceholders()
	}

	var errs []error
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET_NAME is required"))
	}
	if c.Storage.SourcePrefix == "" {
		errs = append(errs, errors.New("S3_REVIEW_BUCKET_DIRECTORY is required"))
	}
	if c.Storage.Backend != "s3" && c.Storage.Backend != "minio" {
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be s3 or minio, got %q", c.Storage.Backend))
	}
	if c.Inference.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.Inference.EmbeddingProvider != "openai" && c.Inference.EmbeddingProvider != "bedrock" {
		errs = append(errs, fmt.Errorf("EMBEDDING_PROVIDER must be openai or bedrock, got %q", c.Inference.EmbeddingProvider))
	}
	switch c.Worker.Variant {
	case VariantExtended:
		if c.Worker.SaveStream == "" {
			errs = append(errs, errors.New("SAVE_RESTAURANT_STREAM is required for the extended pipeline"))
		}
	case VariantSimple:
	default:
		errs = append(errs, fmt.Errorf("PIPELINE_VARIANT must be extended or simple, got %q", c.Worker.Variant))
	}
	if c.Worker.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CHUNK_SIZE must be positive, got %d", c.Worker.ChunkSize))
	}
	if c.Worker.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("WORKER_BATCH_SIZE must be positive, got %d", c.Worker.BatchSize))
	}
	return errors.Join(errs...)
}

func (c *Config) applyDevPlaceholders() {
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "test-bucket"
	}
	if c.Storage.SourcePrefix == "" {
		c.Storage.SourcePrefix = "review"
	}
	if c.Inference.APIKey == "" {
		c.Inference.APIKey = "test-api-key"
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
