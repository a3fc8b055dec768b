package steps

import (
	"sort"

	"github.com/google/uuid"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

// fakeProducts serves ListEmbedded from byModel and GetByIDs from byID.
type fakeProducts struct {
	byModel   []*types.Product
	byID      map[uuid.UUID]*types.Product
	listCalls int
}

func (f *fakeProducts) Create(dbctx.Context, *types.Product) error { return nil }

func (f *fakeProducts) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Product, error) {
	return f.byID[id], nil
}

func (f *fakeProducts) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*types.Product, error) {
	out := make([]*types.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Product, error) {
	return f.GetByID(dbc, id)
}

func (f *fakeProducts) Save(dbctx.Context, *types.Product) error { return nil }

func (f *fakeProducts) IncrementScanCount(dbctx.Context, uuid.UUID) error { return nil }

func (f *fakeProducts) ListEmbedded(_ dbctx.Context, model string, afterID uuid.UUID, limit int) ([]*types.Product, error) {
	f.listCalls++
	sorted := append([]*types.Product{}, f.byModel...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.String() < sorted[j].ID.String() })
	var out []*types.Product
	for _, p := range sorted {
		if p.EmbeddingModel != model {
			continue
		}
		if afterID != uuid.Nil && p.ID.String() <= afterID.String() {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
