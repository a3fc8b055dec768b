package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/data/aggregates/testutil"
	"github.com/lifeapp/lifecycle-backend/internal/data/repos/memrepo"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/modules/catalog/steps"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
	"github.com/lifeapp/lifecycle-backend/internal/platform/pointers"
	"github.com/lifeapp/lifecycle-backend/internal/platform/qdrant"
	"github.com/lifeapp/lifecycle-backend/internal/realtime"
	"github.com/lifeapp/lifecycle-backend/internal/realtime/bus"
)

const testModel = "embed-test"

// stubEmbedder maps each text to a fixed vector; unknown texts get fallback.
type stubEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func (e *stubEmbedder) EmbedModel() string { return testModel }

func (e *stubEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if v, ok := e.vectors[in]; ok {
			out[i] = v
			continue
		}
		out[i] = e.fallback
	}
	return out, nil
}

type fixture struct {
	store *memrepo.Store
	emb   *stubEmbedder
	bus   *bus.MemoryBus
	uc    Usecases
}

func newFixture(search steps.SimilaritySearch) *fixture {
	store := memrepo.New()
	emb := &stubEmbedder{vectors: map[string][]float32{}, fallback: []float32{0, 0, 1, 0}}
	mb := bus.NewMemory()
	agg := aggregates.NewCatalogAggregate(aggregates.CatalogAggregateDeps{
		Base:     aggregates.BaseDeps{Runner: &testutil.InjectedTxRunner{}},
		Products: store.Products(),
		Scans:    store.Scans(),
	})
	uc := New(UsecasesDeps{
		Log:      logger.NewNop(),
		Products: store.Products(),
		Scans:    store.Scans(),
		Catalog:  agg,
		Embedder: emb,
		Search:   search,
		Bus:      mb,
	})
	return &fixture{store: store, emb: emb, bus: mb, uc: uc}
}

func (f *fixture) seed(t *testing.T, name string, score int, nameVec, descVec []float32, materials []string) *types.Product {
	t.Helper()
	p := &types.Product{CanonicalName: name, EcoScore: pointers.Int(score), ScanCount: 1, Confidence: 1}
	p.SetEmbeddings(testModel, nameVec, descVec)
	p.SetMaterials(materials)
	if err := f.store.Products().Create(dbctx.Context{Ctx: context.Background()}, p); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return p
}

func input(name, text string, score int) ResolveInput {
	return ResolveInput{
		Content:  Content{URL: "https://shop.example/" + name, Title: name, Text: text},
		Analysis: Analysis{ProductName: name, EcoScore: score, Materials: []string{"steel"}},
	}
}

func TestResolveExactDuplicateIsIdempotent(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	in := input("Steel Bottle", "insulated bottle", 70)

	first, err := f.uc.Resolve(ctx, in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.IsExisting || first.Similarity != nil || first.Product.ScanCount != 1 {
		t.Fatalf("first: %+v", first)
	}
	second, err := f.uc.Resolve(ctx, in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Product.ID != first.Product.ID || !second.IsExisting {
		t.Fatalf("second: want same product got=%+v", second)
	}
	if second.Similarity == nil || *second.Similarity != 1.0 {
		t.Fatalf("similarity: want=1 got=%v", second.Similarity)
	}
	if second.Product.ScanCount != 2 {
		t.Fatalf("scan count: want=2 got=%d", second.Product.ScanCount)
	}
	if f.emb.calls != 1 {
		t.Fatalf("embedding calls: want=1 got=%d", f.emb.calls)
	}
	if f.store.ScanCount() != 1 {
		t.Fatalf("scans: want=1 got=%d", f.store.ScanCount())
	}
	if len(f.bus.Events(realtime.EventProductRescanned)) != 1 || len(f.bus.Events(realtime.EventProductCreated)) != 1 {
		t.Fatalf("events: created=%d rescanned=%d", len(f.bus.Events(realtime.EventProductCreated)), len(f.bus.Events(realtime.EventProductRescanned)))
	}
}

func TestResolveThresholdBoundary(t *testing.T) {
	cases := []struct {
		name      string
		desc      []float32
		wantMerge bool
	}{
		{name: "exactly 0.85 merges", desc: []float32{1, 1, 1, 1}, wantMerge: true},
		{name: "just below creates", desc: []float32{1, 1, 1, 1.01}, wantMerge: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(nil)
			existing := f.seed(t, "Bottle", 50, []float32{1, 0, 0, 0}, []float32{1, 0, 0, 0}, nil)
			f.emb.vectors["Bottle v2"] = []float32{1, 0, 0, 0}
			f.emb.vectors["new text"] = tc.desc

			out, err := f.uc.Resolve(context.Background(), input("Bottle v2", "new text", 50))
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			merged := out.Product.ID == existing.ID
			if merged != tc.wantMerge || out.IsExisting != tc.wantMerge {
				t.Fatalf("merge: want=%v got=%v (products=%d)", tc.wantMerge, merged, f.store.ProductCount())
			}
		})
	}
}

func TestResolveMergeScenario(t *testing.T) {
	f := newFixture(nil)
	existing := f.seed(t, "Bottle", 40, []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0}, []string{"steel"})
	f.emb.vectors["Bottle"] = []float32{1, 0, 0, 0}
	f.emb.vectors["bamboo bottle"] = []float32{0, 1, 0, 0}

	in := input("Bottle", "bamboo bottle", 80)
	in.Analysis.Materials = []string{"bamboo"}
	out, err := f.uc.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Product.ID != existing.ID || !out.IsExisting {
		t.Fatalf("want merge into %s got=%+v", existing.ID, out)
	}
	if *out.Product.EcoScore != 60 || out.Product.ScanCount != 2 {
		t.Fatalf("merge: score=%d scans=%d", *out.Product.EcoScore, out.Product.ScanCount)
	}
	mats := out.Product.MaterialList()
	if len(mats) != 2 || mats[1] != "bamboo" {
		t.Fatalf("materials: got=%v", mats)
	}
	if out.Similarity == nil || *out.Similarity < 0.999 {
		t.Fatalf("similarity: got=%v", out.Similarity)
	}
	if len(f.bus.Events(realtime.EventProductMerged)) != 1 {
		t.Fatalf("merged event missing")
	}
}

func TestResolveZeroVectorsNeverMatch(t *testing.T) {
	f := newFixture(nil)
	f.seed(t, "Thing A", 50, []float32{0, 0, 0, 0}, []float32{0, 0, 0, 0}, nil)
	f.emb.fallback = []float32{0, 0, 0, 0}

	out, err := f.uc.Resolve(context.Background(), input("Thing B", "other", 50))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.IsExisting || f.store.ProductCount() != 2 {
		t.Fatalf("zero vectors matched: %+v products=%d", out, f.store.ProductCount())
	}
}

func TestResolveIgnoresOtherEmbeddingModel(t *testing.T) {
	f := newFixture(nil)
	old := &types.Product{CanonicalName: "Bottle", ScanCount: 1}
	old.SetEmbeddings("legacy-model", []float32{0, 0, 1, 0}, []float32{0, 0, 1, 0})
	if err := f.store.Products().Create(dbctx.Context{Ctx: context.Background()}, old); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out, err := f.uc.Resolve(context.Background(), input("Bottle", "same vectors", 50))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Product.ID == old.ID || out.Product.EmbeddingModel != testModel {
		t.Fatalf("legacy product must be invisible: %+v", out.Product)
	}
}

func TestResolveEmbeddingFailureIsHard(t *testing.T) {
	f := newFixture(nil)
	boom := errors.New("provider down")
	f.emb.err = boom
	_, err := f.uc.Resolve(context.Background(), input("Bottle", "x", 50))
	if !errors.Is(err, boom) {
		t.Fatalf("want provider error got=%v", err)
	}
	if f.store.ProductCount() != 0 || f.store.ScanCount() != 0 {
		t.Fatalf("nothing may be written: products=%d scans=%d", f.store.ProductCount(), f.store.ScanCount())
	}
}

func TestResolveValidation(t *testing.T) {
	f := newFixture(nil)
	_, err := f.uc.Resolve(context.Background(), input("", "x", 50))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("want validation got=%v", err)
	}
	_, err = f.uc.Resolve(context.Background(), input("Bottle", "x", 140))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("want validation got=%v", err)
	}
	if f.emb.calls != 0 {
		t.Fatalf("validation must precede embedding: calls=%d", f.emb.calls)
	}
}

// racingSearch inserts the same content hash before the resolver's own insert,
// standing in for a concurrent identical request.
type racingSearch struct {
	store *memrepo.Store
	hash  string
	owner *types.Product
	index int
}

func (r *racingSearch) Backend() string { return "racing" }

func (r *racingSearch) FindBest(ctx context.Context, _ steps.Candidate) (*steps.Match, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if err := r.store.Products().Create(dbc, r.owner); err != nil {
		return nil, err
	}
	if err := r.store.Scans().Create(dbc, &types.ProductScan{ProductID: r.owner.ID, ContentHash: r.hash}); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *racingSearch) Index(context.Context, *types.Product) error {
	r.index++
	return nil
}

func TestResolveConflictRetriesExactPath(t *testing.T) {
	in := input("Bottle", "x", 50)
	hash, err := steps.ContentHash(in.Content)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	race := &racingSearch{hash: hash, owner: &types.Product{CanonicalName: "Bottle", ScanCount: 1}}
	f := newFixture(race)
	race.store = f.store

	out, err := f.uc.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Product.ID != race.owner.ID || !out.IsExisting || out.Product.ScanCount != 2 {
		t.Fatalf("want winner rescanned got=%+v", out)
	}
	if race.index != 0 {
		t.Fatalf("loser must not be indexed")
	}
}

func TestResolveIndexesCreatedProducts(t *testing.T) {
	f := newFixture(nil)
	search := &indexingSearch{inner: steps.NewBruteForceSearch(f.store.Products(), steps.ResolverConfig{})}
	f.uc = New(UsecasesDeps{
		Log:      logger.NewNop(),
		Products: f.store.Products(),
		Scans:    f.store.Scans(),
		Catalog: aggregates.NewCatalogAggregate(aggregates.CatalogAggregateDeps{
			Base:     aggregates.BaseDeps{Runner: &testutil.InjectedTxRunner{}},
			Products: f.store.Products(),
			Scans:    f.store.Scans(),
		}),
		Embedder: f.emb,
		Search:   search,
	})
	if _, err := f.uc.Resolve(context.Background(), input("Kettle", "x", 50)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if search.indexed != 1 {
		t.Fatalf("index calls: want=1 got=%d", search.indexed)
	}
}

type indexingSearch struct {
	inner   steps.SimilaritySearch
	indexed int
}

func (s *indexingSearch) Backend() string { return s.inner.Backend() }

func (s *indexingSearch) FindBest(ctx context.Context, c steps.Candidate) (*steps.Match, error) {
	return s.inner.FindBest(ctx, c)
}

func (s *indexingSearch) Index(context.Context, *types.Product) error {
	s.indexed++
	return nil
}

// memIndex is a ProductIndex that returns every point of the queried model.
type memIndex struct {
	mu     sync.Mutex
	points map[uuid.UUID]qdrant.ProductVector
}

func (m *memIndex) Upsert(_ context.Context, vectors []qdrant.ProductVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.points == nil {
		m.points = map[uuid.UUID]qdrant.ProductVector{}
	}
	for _, v := range vectors {
		m.points[v.ProductID] = v
	}
	return nil
}

func (m *memIndex) Search(_ context.Context, model string, _ []float32, topK int) ([]qdrant.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []qdrant.Match
	for id, v := range m.points {
		if v.Model == model && len(out) < topK {
			out = append(out, qdrant.Match{ProductID: id, Score: 1})
		}
	}
	return out, nil
}

func (m *memIndex) Delete(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func TestResolveQdrantModeMatchesUnindexedProduct(t *testing.T) {
	f := newFixture(nil)
	idx := &memIndex{}
	f.uc = New(UsecasesDeps{
		Log:      logger.NewNop(),
		Products: f.store.Products(),
		Scans:    f.store.Scans(),
		Catalog: aggregates.NewCatalogAggregate(aggregates.CatalogAggregateDeps{
			Base:     aggregates.BaseDeps{Runner: &testutil.InjectedTxRunner{}},
			Products: f.store.Products(),
			Scans:    f.store.Scans(),
		}),
		Embedder: f.emb,
		Search:   steps.NewQdrantSearch(logger.NewNop(), idx, f.store.Products(), steps.ResolverConfig{}),
		Index:    idx,
	})
	existing := f.seed(t, "Bottle", 40, []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0}, []string{"steel"})
	f.emb.vectors["Bottle"] = []float32{1, 0, 0, 0}
	f.emb.vectors["steel bottle"] = []float32{0, 1, 0, 0}

	out, err := f.uc.Resolve(context.Background(), input("Bottle", "steel bottle", 60))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !out.IsExisting || out.Product.ID != existing.ID {
		t.Fatalf("want merge into %s got=%+v", existing.ID, out)
	}
	if _, ok := idx.points[existing.ID]; !ok {
		t.Fatalf("matched product should be indexed: got=%v", idx.points)
	}

	scans, err := f.uc.ListScans(context.Background(), existing.ID, 10)
	if err != nil {
		t.Fatalf("ListScans: %v", err)
	}
	if len(scans) != 1 || scans[0].Similarity == nil {
		t.Fatalf("scans: want one merged scan got=%+v", scans)
	}
}

func TestReindexLoadsCatalog(t *testing.T) {
	f := newFixture(nil)
	idx := &memIndex{}
	f.uc = New(UsecasesDeps{
		Log:      logger.NewNop(),
		Products: f.store.Products(),
		Scans:    f.store.Scans(),
		Embedder: f.emb,
		Index:    idx,
	})
	a := f.seed(t, "Bottle", 40, []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0}, nil)
	b := f.seed(t, "Kettle", 55, []float32{0, 0, 1, 0}, []float32{0, 1, 0, 0}, nil)

	out, err := f.uc.Reindex(context.Background(), "", 1)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if out.Model != testModel || out.Indexed != 2 {
		t.Fatalf("reindex: want model=%s indexed=2 got=%+v", testModel, out)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		if _, ok := idx.points[id]; !ok {
			t.Fatalf("product %s not indexed", id)
		}
	}

	f.uc = New(UsecasesDeps{Log: logger.NewNop(), Products: f.store.Products(), Embedder: f.emb})
	if _, err := f.uc.Reindex(context.Background(), "", 0); err == nil {
		t.Fatalf("without an index: want error")
	}
}
