package steps

import (
	"context"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

type bruteForceSearch struct {
	products repos.ProductRepo
	cfg      ResolverConfig
}

// NewBruteForceSearch scores every embedded product of the candidate's model,
// paging by id.
func NewBruteForceSearch(products repos.ProductRepo, cfg ResolverConfig) SimilaritySearch {
	return &bruteForceSearch{products: products, cfg: cfg.WithDefaults()}
}

func (s *bruteForceSearch) Backend() string { return "bruteforce" }

func (s *bruteForceSearch) FindBest(ctx context.Context, c Candidate) (*Match, error) {
	var best *Match
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.products.ListEmbedded(dbctx.Context{Ctx: ctx}, c.Model, after, s.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		best = bestOf(s.cfg, c, page, best)
		if len(page) < s.cfg.PageSize {
			return best, nil
		}
		after = page[len(page)-1].ID
	}
}
