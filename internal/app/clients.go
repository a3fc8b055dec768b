package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lifeapp/lifecycle-backend/internal/modules/catalog"
	"github.com/lifeapp/lifecycle-backend/internal/modules/lifecycle"
	"github.com/lifeapp/lifecycle-backend/internal/platform/anthropic"
	"github.com/lifeapp/lifecycle-backend/internal/platform/embedcache"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
	"github.com/lifeapp/lifecycle-backend/internal/platform/openai"
	"github.com/lifeapp/lifecycle-backend/internal/platform/qdrant"
	"github.com/lifeapp/lifecycle-backend/internal/realtime/bus"
)

type Clients struct {
	Redis goredis.UniversalClient
	Bus   bus.Bus

	OpenAI openai.Client
	// Embedder is OpenAI, cached in Redis when Redis is configured.
	Embedder  catalog.Embedder
	Completer lifecycle.Completer

	ProductIndex qdrant.ProductIndex
	Vector       VectorBackendConfig
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("ping redis %s: %w", addr, err)
		}
		out.Redis = rdb
		b, err := bus.NewRedisBus(log, rdb, cfg.Redis.Channel)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		out.Bus = b
	} else {
		out.Bus = bus.NewNoop()
	}

	// OpenAI. Without a key the resolver cannot embed and summaries fall back.
	ocfg := openai.ConfigFromEnv()
	if strings.TrimSpace(ocfg.APIKey) != "" {
		oc, err := openai.NewClient(log, ocfg)
		if err != nil {
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		out.OpenAI = oc
		out.Embedder = oc
		if out.Redis != nil {
			out.Embedder = embedcache.New(log, oc, embedcache.NewRedisStore(out.Redis), embedcache.Options{TTL: cfg.Redis.EmbeddingTTL})
		}
	} else {
		log.Warn("OPENAI_API_KEY not set; product resolution is unavailable")
	}

	// Summarization model
	switch cfg.summaryProvider() {
	case "openai":
		if out.OpenAI != nil {
			out.Completer = lifecycle.NewOpenAICompleter(out.OpenAI)
		}
	case "anthropic":
		ac, err := anthropic.NewClient(log, anthropic.ConfigFromEnv())
		if err != nil {
			return Clients{}, fmt.Errorf("init anthropic client: %w", err)
		}
		out.Completer = ac
	}
	if out.Completer == nil {
		log.Warn("no summary model configured; summaries use the deterministic fallback")
	}

	// Vector index
	mode, err := ParseVectorBackend(cfg.Resolver.VectorBackend)
	if err != nil {
		return Clients{}, err
	}
	vcfg, err := resolveVectorBackendConfig(mode)
	if err != nil {
		return Clients{}, err
	}
	out.Vector = vcfg
	if vcfg.Backend == VectorBackendQdrant {
		idx, err := qdrant.NewProductIndex(ctx, log, vcfg.Qdrant)
		if err != nil {
			return Clients{}, fmt.Errorf("init qdrant product index: %w", err)
		}
		out.ProductIndex = idx
	}
	log.Info("vector backend selected", "backend", vcfg.Backend, "source", vcfg.ModeSource)
	return out, nil
}

func (c Clients) Close() {
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
