package steps

import (
	"context"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
	"github.com/lifeapp/lifecycle-backend/internal/platform/qdrant"
)

type qdrantSearch struct {
	log      *logger.Logger
	index    qdrant.ProductIndex
	products repos.ProductRepo
	fallback SimilaritySearch
	cfg      ResolverConfig
}

// NewQdrantSearch takes top-K name-vector candidates from Qdrant and rescores
// them exactly against the stored vectors. When the index has no live point for
// the candidate's model it scans the catalog instead and indexes what it finds.
func NewQdrantSearch(log *logger.Logger, index qdrant.ProductIndex, products repos.ProductRepo, cfg ResolverConfig) SimilaritySearch {
	if log == nil {
		log = logger.NewNop()
	}
	cfg = cfg.WithDefaults()
	return &qdrantSearch{
		log:      log.With("service", "QdrantSearch"),
		index:    index,
		products: products,
		fallback: NewBruteForceSearch(products, cfg),
		cfg:      cfg,
	}
}

func (s *qdrantSearch) Backend() string { return "qdrant" }

func (s *qdrantSearch) FindBest(ctx context.Context, c Candidate) (*Match, error) {
	hits, err := s.index.Search(ctx, c.Model, c.Name, s.cfg.CandidateTopK)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ProductID)
	}
	var products []*types.Product
	if len(ids) > 0 {
		products, err = s.products.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
		if err != nil {
			return nil, err
		}
		s.pruneStale(ctx, ids, products)
	}
	if len(products) > 0 {
		return bestOf(s.cfg, c, products, nil), nil
	}

	// Empty index for this model: products written before the index existed
	// are only reachable through the table.
	m, err := s.fallback.FindBest(ctx, c)
	if err != nil || m == nil {
		return m, err
	}
	s.log.Warn("matched product missing from index", "product_id", m.Product.ID, "model", c.Model)
	if ierr := s.Index(ctx, m.Product); ierr != nil {
		s.log.Warn("index matched product failed", "product_id", m.Product.ID, "error", ierr)
	}
	return m, nil
}

// pruneStale drops points whose product row no longer exists.
func (s *qdrantSearch) pruneStale(ctx context.Context, ids []uuid.UUID, found []*types.Product) {
	live := make(map[uuid.UUID]struct{}, len(found))
	for _, p := range found {
		live[p.ID] = struct{}{}
	}
	var stale []uuid.UUID
	for _, id := range ids {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return
	}
	if err := s.index.Delete(ctx, stale); err != nil {
		s.log.Warn("prune stale points failed", "count", len(stale), "error", err)
	}
}

func (s *qdrantSearch) Index(ctx context.Context, p *types.Product) error {
	if p == nil || !p.HasEmbeddings() {
		return nil
	}
	return s.index.Upsert(ctx, []qdrant.ProductVector{vectorOf(p)})
}

func vectorOf(p *types.Product) qdrant.ProductVector {
	return qdrant.ProductVector{
		ProductID: p.ID,
		Model:     p.EmbeddingModel,
		Vector:    p.NameVector(),
	}
}
