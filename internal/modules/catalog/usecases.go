package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/modules/catalog/steps"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
	"github.com/lifeapp/lifecycle-backend/internal/platform/qdrant"
	"github.com/lifeapp/lifecycle-backend/internal/realtime/bus"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Products repos.ProductRepo
	Scans    repos.ProductScanRepo
	Catalog  domainagg.CatalogAggregate

	Embedder steps.Embedder
	// Search defaults to brute force over Products.
	Search steps.SimilaritySearch
	// Index is the Qdrant product index; nil in brute-force mode.
	Index qdrant.ProductIndex
	Bus   bus.Bus

	Config steps.ResolverConfig
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	deps.Config = deps.Config.WithDefaults()
	if deps.Search == nil && deps.Products != nil {
		deps.Search = steps.NewBruteForceSearch(deps.Products, deps.Config)
	}
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	Content          = steps.Content
	Analysis         = steps.Analysis
	ResolveInput     = steps.ResolveInput
	ResolveOutput    = steps.ResolveOutput
	ResolverConfig   = steps.ResolverConfig
	Embedder         = steps.Embedder
	SimilaritySearch = steps.SimilaritySearch
	ReindexOutput    = steps.ReindexOutput
)

func (u Usecases) Resolve(ctx context.Context, in ResolveInput) (ResolveOutput, error) {
	return steps.Resolve(ctx, steps.ResolveDeps{
		Log:      u.deps.Log,
		Scans:    u.deps.Scans,
		Catalog:  u.deps.Catalog,
		Embedder: u.deps.Embedder,
		Search:   u.deps.Search,
		Bus:      u.deps.Bus,
		Config:   u.deps.Config,
	}, in)
}

// Reindex loads every product embedded with model into the vector index. An
// empty model means the embedder's current one.
func (u Usecases) Reindex(ctx context.Context, model string, batchSize int) (ReindexOutput, error) {
	if model == "" && u.deps.Embedder != nil {
		model = u.deps.Embedder.EmbedModel()
	}
	return steps.ReindexProducts(ctx, steps.ReindexDeps{
		Log:      u.deps.Log,
		Products: u.deps.Products,
		Index:    u.deps.Index,
	}, steps.ReindexInput{Model: model, BatchSize: batchSize})
}

// ListScans returns a product's scans, oldest first.
func (u Usecases) ListScans(ctx context.Context, productID uuid.UUID, limit int) ([]*types.ProductScan, error) {
	if u.deps.Scans == nil {
		return nil, fmt.Errorf("list scans: missing scan repo")
	}
	return u.deps.Scans.ListByProduct(dbctx.Background(ctx), productID, limit)
}
