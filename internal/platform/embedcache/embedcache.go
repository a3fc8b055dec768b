// Package embedcache memoizes embedding vectors in Redis keyed by model and text.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

const flightTimeout = 2 * time.Minute

// Embedder is the provider being cached.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	EmbedModel() string
}

// Store is the key/value backend. Get returns ok=false on a miss.
type Store interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Cache struct {
	log    *logger.Logger
	inner  Embedder
	store  Store
	ttl    time.Duration
	prefix string
	group  singleflight.Group
}

type Options struct {
	TTL    time.Duration
	Prefix string
}

func New(log *logger.Logger, inner Embedder, store Store, opts Options) *Cache {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * 24 * time.Hour
	}
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = "lc:embed:"
	}
	return &Cache{
		log:    log.With("service", "EmbeddingCache"),
		inner:  inner,
		store:  store,
		ttl:    opts.TTL,
		prefix: opts.Prefix,
	}
}

func (c *Cache) EmbedModel() string { return c.inner.EmbedModel() }

// Key is sha256(model|text) under the cache prefix.
func (c *Cache) Key(text string) string {
	sum := sha256.Sum256([]byte(c.inner.EmbedModel() + "|" + text))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Embed serves cached vectors and sends every miss to the provider in one call.
// Cache read or write failures degrade to the provider and are only logged.
func (c *Cache) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	var missIdx []int
	var missText []string
	metrics := observability.Current()

	for i, text := range inputs {
		raw, ok, err := c.store.Get(ctx, c.Key(text))
		if err != nil {
			metrics.IncEmbeddingCache("error")
			c.log.Warn("embedding cache read failed", "error", err)
		}
		if ok {
			var vec []float32
			if jErr := json.Unmarshal(raw, &vec); jErr == nil && len(vec) > 0 {
				metrics.IncEmbeddingCache("hit")
				out[i] = vec
				continue
			}
		}
		metrics.IncEmbeddingCache("miss")
		missIdx = append(missIdx, i)
		missText = append(missText, text)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	// Callers with the same misses share one flight, detached from any single
	// caller's cancellation; each caller stops waiting on its own ctx.
	ch := c.group.DoChan(c.flightKey(missText), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return c.inner.Embed(fctx, missText)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	vecs := res.Val.([][]float32)
	if len(vecs) != len(missText) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(vecs), len(missText))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		raw, _ := json.Marshal(vecs[j])
		if err := c.store.Set(ctx, c.Key(missText[j]), raw, c.ttl); err != nil {
			c.log.Warn("embedding cache write failed", "error", err)
		}
	}
	return out, nil
}

func (c *Cache) flightKey(texts []string) string {
	h := sha256.New()
	_, _ = h.Write([]byte(c.inner.EmbedModel()))
	for _, t := range texts {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type redisStore struct {
	rdb goredis.UniversalClient
}

// NewRedisStore adapts a go-redis client to Store.
func NewRedisStore(rdb goredis.UniversalClient) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, val, ttl).Err()
}
