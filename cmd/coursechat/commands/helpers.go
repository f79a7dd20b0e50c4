package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/coursechat/coursechat-go/internal/embedder"
	"github.com/coursechat/coursechat-go/internal/vectorstore"
)

// Default Qdrant collection names. The catalog holds one point per course;
// the content collection holds every chunk.
const (
	defaultCatalogCollection = "course_catalog"
	defaultContentCollection = "course_content"
)

// buildStore constructs the embedder and the Qdrant-backed dual-collection
// store from environment variables. Shared by the ask, ingest, and stats
// commands.
func buildStore(ctx context.Context) (*vectorstore.QdrantStore, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	embModel := getEnvOrDefault("EMBEDDING_MODEL", embedder.DefaultModel(embBackend))
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	store, err := vectorstore.NewQdrantStore(ctx, &vectorstore.QdrantConfig{
		Host:              host,
		Port:              port,
		CatalogCollection: getEnvOrDefault("QDRANT_CATALOG_COLLECTION", defaultCatalogCollection),
		ContentCollection: getEnvOrDefault("QDRANT_CONTENT_COLLECTION", defaultContentCollection),
		VectorSize:        vectorSize,
		EmbeddingModel:    embModel,
		APIKey:            os.Getenv("QDRANT_API_KEY"),
		UseTLS:            os.Getenv("QDRANT_TLS") == "true",
	}, emb)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return store, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// getEnvFloat64 returns the float64 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat64(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration returns the duration value of the named environment
// variable, or fallback if the variable is unset, empty, or not parseable.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
