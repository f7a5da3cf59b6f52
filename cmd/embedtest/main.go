// embedtest makes a single embedding request using config from env (and .env if present).
// Run from project root: go run ./cmd/embedtest -text "조용한"
// Bedrock: go run ./cmd/embedtest -provider bedrock
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/maraichr/reviewlens/internal/config"
	"github.com/maraichr/reviewlens/internal/embedding"
	"github.com/maraichr/reviewlens/internal/llm"
)

func main() {
	text := flag.String("text", "데이트", "text to embed")
	provider := flag.String("provider", "", "override EMBEDDING_PROVIDER for this run (openai or bedrock)")
	flag.Parse()

	_ = godotenv.Load(".env") // ignore error if .env missing

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *provider != "" {
		cfg.Inference.EmbeddingProvider = strings.ToLower(*provider)
	}

	var client *llm.Client
	if cfg.Inference.EmbeddingProvider != "bedrock" {
		if cfg.Inference.APIKey == "" {
			fmt.Fprintln(os.Stderr, "OPENAI_API_KEY is not set (set in env or .env)")
			os.Exit(1)
		}
		client, err = llm.NewClient(cfg.Inference)
		if err != nil {
			log.Fatalf("inference client: %v", err)
		}
	}

	embedder, err := embedding.NewEmbedder(cfg, client)
	if err != nil {
		log.Fatalf("embedder: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("Provider: %s\n", cfg.Inference.EmbeddingProvider)
	fmt.Printf("Model: %s\n", embedder.ModelID())
	fmt.Printf("Text: %q\n", *text)

	vec, err := embedder.Embed(ctx, *text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embed failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: dims=%d\n", len(vec))
	if len(vec) > 0 {
		n := min(len(vec), 5)
		fmt.Printf("First %d values: %v\n", n, vec[:n])
	}
}
