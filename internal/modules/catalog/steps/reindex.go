package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
	"github.com/lifeapp/lifecycle-backend/internal/platform/qdrant"
)

type ReindexDeps struct {
	Log      *logger.Logger
	Products repos.ProductRepo
	Index    qdrant.ProductIndex
}

type ReindexInput struct {
	Model     string
	BatchSize int
}

type ReindexOutput struct {
	Model   string `json:"model"`
	Indexed int    `json:"indexed"`
	Batches int    `json:"batches"`
}

// ReindexProducts upserts every product embedded with in.Model into the index,
// one page of ListEmbedded per Upsert. Rerunning it is harmless: point ids are
// derived from product ids.
func ReindexProducts(ctx context.Context, deps ReindexDeps, in ReindexInput) (ReindexOutput, error) {
	switch {
	case deps.Log == nil:
		return ReindexOutput{}, fmt.Errorf("reindex: missing logger")
	case deps.Products == nil:
		return ReindexOutput{}, fmt.Errorf("reindex: missing product repo")
	case deps.Index == nil:
		return ReindexOutput{}, fmt.Errorf("reindex: vector index not configured")
	}
	model := strings.TrimSpace(in.Model)
	if model == "" {
		return ReindexOutput{}, fmt.Errorf("reindex: missing embedding model")
	}
	batch := in.BatchSize
	if batch <= 0 {
		batch = DefaultResolverConfig().PageSize
	}
	log := deps.Log.With("service", "CatalogReindex", "model", model)

	out := ReindexOutput{Model: model}
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		page, err := deps.Products.ListEmbedded(dbctx.Context{Ctx: ctx}, model, after, batch)
		if err != nil {
			return out, fmt.Errorf("list embedded products: %w", err)
		}
		if len(page) == 0 {
			break
		}
		vectors := make([]qdrant.ProductVector, 0, len(page))
		for _, p := range page {
			if p.HasEmbeddings() {
				vectors = append(vectors, vectorOf(p))
			}
		}
		if err := deps.Index.Upsert(ctx, vectors); err != nil {
			return out, fmt.Errorf("upsert batch after %s: %w", after, err)
		}
		out.Indexed += len(vectors)
		out.Batches++
		log.Debug("reindexed batch", "batch", out.Batches, "count", len(vectors))
		if len(page) < batch {
			break
		}
		after = page[len(page)-1].ID
	}
	log.Info("reindex complete", "indexed", out.Indexed, "batches", out.Batches)
	return out, nil
}
