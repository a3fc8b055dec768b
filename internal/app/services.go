package app

import (
	"gorm.io/gorm"

	"github.com/lifeapp/lifecycle-backend/internal/data/aggregates"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/modules/catalog"
	catalogsteps "github.com/lifeapp/lifecycle-backend/internal/modules/catalog/steps"
	"github.com/lifeapp/lifecycle-backend/internal/modules/lifecycle"
	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

type Services struct {
	CatalogAggregate   domainagg.CatalogAggregate
	LifecycleAggregate domainagg.LifecycleAggregate

	Catalog   catalog.Usecases
	Lifecycle lifecycle.Usecases
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) Services {
	log.Info("Wiring services...")
	base := aggregates.BaseDeps{
		DB:    db,
		Log:   log.With("component", "aggregates"),
		Hooks: aggregates.NewObservabilityHooks(observability.Current()),
	}
	catalogAgg := aggregates.NewCatalogAggregate(aggregates.CatalogAggregateDeps{
		Base:     base,
		Products: r.Product,
		Scans:    r.ProductScan,
	})
	lifecycleAgg := aggregates.NewLifecycleAggregate(aggregates.LifecycleAggregateDeps{
		Base:      base,
		Products:  r.Product,
		Steps:     r.LifecycleStep,
		Summaries: r.LifecycleSummary,
	})

	resolverCfg := catalogsteps.ResolverConfig{
		SimilarityThreshold: cfg.Resolver.SimilarityThreshold,
		NameWeight:          cfg.Resolver.NameWeight,
		DescriptionWeight:   cfg.Resolver.DescriptionWeight,
		PageSize:            cfg.Resolver.PageSize,
		CandidateTopK:       cfg.Resolver.CandidateTopK,
	}
	var search catalogsteps.SimilaritySearch
	if c.ProductIndex != nil {
		search = catalogsteps.NewQdrantSearch(log, c.ProductIndex, r.Product, resolverCfg)
	}

	return Services{
		CatalogAggregate:   catalogAgg,
		LifecycleAggregate: lifecycleAgg,
		Catalog: catalog.New(catalog.UsecasesDeps{
			Log:      log,
			Products: r.Product,
			Scans:    r.ProductScan,
			Catalog:  catalogAgg,
			Embedder: c.Embedder,
			Search:   search,
			Index:    c.ProductIndex,
			Bus:      c.Bus,
			Config:   resolverCfg,
		}),
		Lifecycle: lifecycle.New(lifecycle.UsecasesDeps{
			Log:       log,
			Products:  r.Product,
			Steps:     r.LifecycleStep,
			Summaries: r.LifecycleSummary,
			Lifecycle: lifecycleAgg,
			LLM:       c.Completer,
			Bus:       c.Bus,
			Config: lifecycle.SummaryConfig{
				BatchSize:          cfg.Summary.BatchSize,
				MaxListItems:       cfg.Summary.MaxListItems,
				FallbackConfidence: cfg.Summary.FallbackConfidence,
			},
		}),
	}
}
