package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lifeapp/lifecycle-backend/internal/data/db"
	"github.com/lifeapp/lifecycle-backend/internal/platform/envutil"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

const configFileEnv = "LIFECYCLE_CONFIG_FILE"

type Config struct {
	LogMode string `yaml:"log_mode"`

	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	Resolver ResolverConfig `yaml:"resolver"`
	Summary  SummaryConfig  `yaml:"summary"`
	Backfill BackfillConfig `yaml:"backfill"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Otel     OtelConfig     `yaml:"otel"`
}

type DBConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	// EmbeddingTTL bounds how long cached embeddings live.
	EmbeddingTTL time.Duration `yaml:"embedding_ttl"`
}

type ResolverConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	NameWeight          float64 `yaml:"name_weight"`
	DescriptionWeight   float64 `yaml:"description_weight"`
	PageSize            int     `yaml:"page_size"`
	CandidateTopK       int     `yaml:"candidate_top_k"`
	// VectorBackend is bruteforce, qdrant or auto (qdrant when QDRANT_URL is set).
	VectorBackend string `yaml:"vector_backend"`
}

type SummaryConfig struct {
	BatchSize          int     `yaml:"batch_size"`
	MaxListItems       int     `yaml:"max_list_items"`
	FallbackConfidence float64 `yaml:"fallback_confidence"`
	// Provider is openai, anthropic or none.
	Provider string `yaml:"provider"`
}

type BackfillConfig struct {
	Delay time.Duration `yaml:"delay"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type OtelConfig struct {
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
}

func DefaultConfig() Config {
	return Config{
		LogMode: "development",
		DB:      DBConfig{Driver: db.DriverPostgres},
		Redis:   RedisConfig{Channel: "lifecycle.events", EmbeddingTTL: 30 * 24 * time.Hour},
		Resolver: ResolverConfig{
			SimilarityThreshold: 0.85,
			NameWeight:          0.7,
			DescriptionWeight:   0.3,
			PageSize:            500,
			CandidateTopK:       20,
			VectorBackend:       string(VectorBackendAuto),
		},
		Summary: SummaryConfig{
			BatchSize:          50,
			MaxListItems:       10,
			FallbackConfidence: 0.6,
			Provider:           "openai",
		},
		Backfill: BackfillConfig{Delay: time.Second},
		Metrics:  MetricsConfig{Addr: ":9090"},
		Otel:     OtelConfig{ServiceName: "lifecycle-backend", Environment: "development"},
	}
}

// LoadConfig layers defaults, the optional YAML file named by LIFECYCLE_CONFIG_FILE,
// and environment variables, in that order. A local .env is read first if present.
func LoadConfig(log *logger.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not read .env", "error", err)
	}
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		log.Info("config file loaded", "path", path)
	}
	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg Config) Config {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DSN = envutil.String("DATABASE_URL", cfg.DB.DSN)
	cfg.DB.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Channel = envutil.String("REDIS_EVENTS_CHANNEL", cfg.Redis.Channel)
	cfg.Redis.EmbeddingTTL = envutil.Duration("EMBEDDING_CACHE_TTL", cfg.Redis.EmbeddingTTL)

	cfg.Resolver.SimilarityThreshold = envutil.Float("RESOLVER_SIMILARITY_THRESHOLD", cfg.Resolver.SimilarityThreshold)
	cfg.Resolver.NameWeight = envutil.Float("RESOLVER_NAME_WEIGHT", cfg.Resolver.NameWeight)
	cfg.Resolver.DescriptionWeight = envutil.Float("RESOLVER_DESCRIPTION_WEIGHT", cfg.Resolver.DescriptionWeight)
	cfg.Resolver.PageSize = envutil.Int("RESOLVER_PAGE_SIZE", cfg.Resolver.PageSize)
	cfg.Resolver.CandidateTopK = envutil.Int("RESOLVER_CANDIDATE_TOP_K", cfg.Resolver.CandidateTopK)
	cfg.Resolver.VectorBackend = envutil.String("VECTOR_BACKEND", cfg.Resolver.VectorBackend)

	cfg.Summary.BatchSize = envutil.Int("SUMMARY_BATCH_SIZE", cfg.Summary.BatchSize)
	cfg.Summary.MaxListItems = envutil.Int("SUMMARY_MAX_LIST_ITEMS", cfg.Summary.MaxListItems)
	cfg.Summary.FallbackConfidence = envutil.Float("SUMMARY_FALLBACK_CONFIDENCE", cfg.Summary.FallbackConfidence)
	cfg.Summary.Provider = envutil.String("SUMMARY_LLM_PROVIDER", cfg.Summary.Provider)

	cfg.Backfill.Delay = envutil.Duration("BACKFILL_DELAY", cfg.Backfill.Delay)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("APP_ENV", cfg.Otel.Environment)
	return cfg
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("config: unsupported db driver %q", c.DB.Driver)
	}
	if t := c.Resolver.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("config: similarity_threshold must be in (0, 1], got %v", t)
	}
	if c.Resolver.NameWeight < 0 || c.Resolver.DescriptionWeight < 0 || c.Resolver.NameWeight+c.Resolver.DescriptionWeight <= 0 {
		return fmt.Errorf("config: resolver weights must be non-negative with a positive sum")
	}
	if _, err := ParseVectorBackend(c.Resolver.VectorBackend); err != nil {
		return err
	}
	if c.Summary.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.Summary.BatchSize)
	}
	switch c.summaryProvider() {
	case "openai", "anthropic", "none":
	default:
		return fmt.Errorf("config: unsupported summary provider %q", c.Summary.Provider)
	}
	if c.Backfill.Delay < 0 {
		return fmt.Errorf("config: backfill delay must not be negative")
	}
	return nil
}

func (c Config) summaryProvider() string {
	p := strings.ToLower(strings.TrimSpace(c.Summary.Provider))
	if p == "" {
		return "none"
	}
	return p
}
