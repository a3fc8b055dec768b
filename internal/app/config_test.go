package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		configFileEnv, "DB_DRIVER", "DATABASE_URL", "SUMMARY_BATCH_SIZE", "SUMMARY_LLM_PROVIDER",
		"BACKFILL_DELAY", "RESOLVER_SIMILARITY_THRESHOLD", "VECTOR_BACKEND", "REDIS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig(logger.NewNop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Summary.BatchSize != 50 || cfg.Resolver.SimilarityThreshold != 0.85 || cfg.Resolver.NameWeight != 0.7 {
		t.Fatalf("defaults: got=%+v", cfg)
	}
	if cfg.Backfill.Delay != time.Second || cfg.Redis.EmbeddingTTL != 30*24*time.Hour {
		t.Fatalf("durations: got=%+v %+v", cfg.Backfill, cfg.Redis)
	}
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "lifecycle.yaml")
	body := strings.Join([]string{
		"db:",
		"  driver: sqlite",
		"  dsn: lifecycle.db",
		"summary:",
		"  batch_size: 20",
		"  provider: anthropic",
		"backfill:",
		"  delay: 250ms",
		"resolver:",
		"  similarity_threshold: 0.9",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(configFileEnv, path)
	t.Setenv("SUMMARY_BATCH_SIZE", "25")

	cfg, err := LoadConfig(logger.NewNop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN != "lifecycle.db" {
		t.Fatalf("db: got=%+v", cfg.DB)
	}
	if cfg.Summary.BatchSize != 25 {
		t.Fatalf("env should win over yaml: got=%d", cfg.Summary.BatchSize)
	}
	if cfg.Summary.Provider != "anthropic" || cfg.Backfill.Delay != 250*time.Millisecond || cfg.Resolver.SimilarityThreshold != 0.9 {
		t.Fatalf("yaml overlay: got=%+v %+v %+v", cfg.Summary, cfg.Backfill, cfg.Resolver)
	}
	if cfg.Summary.MaxListItems != 10 {
		t.Fatalf("untouched defaults: got=%d", cfg.Summary.MaxListItems)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":    func(c *Config) { c.DB.Driver = "mysql" },
		"threshold": func(c *Config) { c.Resolver.SimilarityThreshold = 1.5 },
		"weights":   func(c *Config) { c.Resolver.NameWeight, c.Resolver.DescriptionWeight = 0, 0 },
		"backend":   func(c *Config) { c.Resolver.VectorBackend = "pinecone" },
		"batch":     func(c *Config) { c.Summary.BatchSize = 0 },
		"provider":  func(c *Config) { c.Summary.Provider = "gemini" },
		"delay":     func(c *Config) { c.Backfill.Delay = -time.Second },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: want validation error", name)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
