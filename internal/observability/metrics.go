package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/lifeapp/lifecycle-backend/internal/platform/envutil"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

type Metrics struct {
	resolveTotal     *CounterVec
	resolveLatency   *HistogramVec
	resolveBestScore *HistogramVec

	stepsRecorded   *CounterVec
	summaryTotal    *CounterVec
	summaryLatency  *HistogramVec
	backfillScopes  *CounterVec
	regenerateTotal *CounterVec

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	embedCache    *CounterVec
	vectorQueries *CounterVec
	eventsSent    *CounterVec

	aggOps       *CounterVec
	aggLatency   *HistogramVec
	aggConflicts *CounterVec
	aggRetries   *CounterVec

	dbStats *GaugeVec
	redisUp *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Enabled reports whether METRICS_ENABLED is set truthy.
func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry once. It returns nil when metrics are disabled,
// and every method on a nil *Metrics is a no-op.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// New returns an unregistered registry. Tests use it directly.
func New() *Metrics {
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	llm := []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}
	return &Metrics{
		resolveTotal:     NewCounterVec("lc_resolve_total", "Product resolutions by outcome.", []string{"outcome"}),
		resolveLatency:   NewHistogramVec("lc_resolve_duration_seconds", "Product resolution latency by outcome.", []string{"outcome"}, latency),
		resolveBestScore: NewHistogramVec("lc_resolve_best_similarity", "Best candidate similarity per resolution.", []string{"backend"}, []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.85, 0.9, 0.95, 1}),

		stepsRecorded:   NewCounterVec("lc_steps_recorded_total", "Lifecycle steps recorded by type.", []string{"step_type"}),
		summaryTotal:    NewCounterVec("lc_summaries_total", "Summary generation attempts by kind.", []string{"kind"}),
		summaryLatency:  NewHistogramVec("lc_summary_duration_seconds", "Summary generation latency by kind.", []string{"kind"}, llm),
		backfillScopes:  NewCounterVec("lc_backfill_scopes_total", "Backfilled scopes by status.", []string{"status"}),
		regenerateTotal: NewCounterVec("lc_regenerations_total", "Full summary regenerations by status.", []string{"status"}),

		llmRequests: NewCounterVec("lc_llm_requests_total", "LLM requests by provider/model/endpoint/status.", []string{"provider", "model", "endpoint", "status"}),
		llmLatency:  NewHistogramVec("lc_llm_request_duration_seconds", "LLM request latency by provider/model/endpoint.", []string{"provider", "model", "endpoint"}, llm),
		llmTokens:   NewCounterVec("lc_llm_tokens_total", "LLM tokens by model/direction.", []string{"model", "direction"}),

		embedCache:    NewCounterVec("lc_embedding_cache_total", "Embedding cache lookups by result.", []string{"result"}),
		vectorQueries: NewCounterVec("lc_vector_queries_total", "Similarity candidate queries by backend/status.", []string{"backend", "status"}),
		eventsSent:    NewCounterVec("lc_events_published_total", "Domain events published by type/status.", []string{"type", "status"}),

		aggOps:       NewCounterVec("lc_aggregate_operations_total", "Aggregate writes by op/status.", []string{"op", "status"}),
		aggLatency:   NewHistogramVec("lc_aggregate_operation_duration_seconds", "Aggregate write latency by op.", []string{"op"}, latency),
		aggConflicts: NewCounterVec("lc_aggregate_conflicts_total", "Aggregate write conflicts by op.", []string{"op"}),
		aggRetries:   NewCounterVec("lc_aggregate_retries_total", "Retryable aggregate failures by op.", []string{"op"}),

		dbStats: NewGaugeVec("lc_db_pool", "database/sql pool stats.", []string{"stat"}),
		redisUp: NewGaugeVec("lc_redis_up", "Redis reachability (1 up, 0 down).", []string{"addr"}),
	}
}

func (m *Metrics) collectors() []collector {
	return []collector{
		m.resolveTotal, m.resolveLatency, m.resolveBestScore,
		m.stepsRecorded, m.summaryTotal, m.summaryLatency, m.backfillScopes, m.regenerateTotal,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.embedCache, m.vectorQueries, m.eventsSent,
		m.aggOps, m.aggLatency, m.aggConflicts, m.aggRetries,
		m.dbStats, m.redisUp,
	}
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors() {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

// StartServer exposes /metrics until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.WriteHTTP)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && log != nil {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) ObserveResolve(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.resolveTotal.Inc(outcome)
	m.resolveLatency.Observe(dur.Seconds(), outcome)
}

func (m *Metrics) ObserveBestSimilarity(backend string, score float64) {
	if m == nil {
		return
	}
	m.resolveBestScore.Observe(score, backend)
}

func (m *Metrics) IncStepRecorded(stepType string) {
	if m == nil {
		return
	}
	m.stepsRecorded.Inc(stepType)
}

// ObserveSummary records one summary attempt. kind is generated, fallback or existing.
func (m *Metrics) ObserveSummary(kind string, dur time.Duration) {
	if m == nil {
		return
	}
	m.summaryTotal.Inc(kind)
	m.summaryLatency.Observe(dur.Seconds(), kind)
}

func (m *Metrics) IncBackfillScope(status string) {
	if m == nil {
		return
	}
	m.backfillScopes.Inc(status)
}

func (m *Metrics) IncRegeneration(status string) {
	if m == nil {
		return
	}
	m.regenerateTotal.Inc(status)
}

func (m *Metrics) ObserveLLMRequest(provider, model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(provider, model, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), provider, model, endpoint)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

// IncEmbeddingCache counts a cache lookup; result is hit, miss or error.
func (m *Metrics) IncEmbeddingCache(result string) {
	if m == nil {
		return
	}
	m.embedCache.Inc(result)
}

func (m *Metrics) IncVectorQuery(backend, status string) {
	if m == nil {
		return
	}
	m.vectorQueries.Inc(backend, status)
}

func (m *Metrics) IncEventPublished(eventType, status string) {
	if m == nil {
		return
	}
	m.eventsSent.Inc(eventType, status)
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggOps.Inc(op, status)
	m.aggLatency.Observe(dur.Seconds(), op)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggRetries.Inc(op)
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// StartDBCollector samples connection pool stats until ctx is done.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
				m.dbStats.Set(float64(stats.InUse), "in_use")
				m.dbStats.Set(float64(stats.Idle), "idle")
				m.dbStats.Set(float64(stats.WaitCount), "wait_count")
				m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

// StartRedisCollector pings rdb on every scrape interval until ctx is done.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient, addr string) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0, addr)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1, addr)
			}
		}
	}()
}
