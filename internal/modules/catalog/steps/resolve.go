package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
	"github.com/lifeapp/lifecycle-backend/internal/realtime"
	"github.com/lifeapp/lifecycle-backend/internal/realtime/bus"
)

const opResolve = "Catalog.Resolve"

// Embedder produces vectors for the product name and description in one call.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	EmbedModel() string
}

type ResolveDeps struct {
	Log      *logger.Logger
	Scans    repos.ProductScanRepo
	Catalog  domainagg.CatalogAggregate
	Embedder Embedder
	Search   SimilaritySearch
	Bus      bus.Bus
	Config   ResolverConfig
	Now      func() time.Time
}

func (d ResolveDeps) validate() error {
	switch {
	case d.Log == nil:
		return fmt.Errorf("resolve: missing logger")
	case d.Scans == nil || d.Catalog == nil:
		return fmt.Errorf("resolve: missing repositories")
	case d.Embedder == nil:
		return fmt.Errorf("resolve: missing embedder")
	case d.Search == nil:
		return fmt.Errorf("resolve: missing similarity search")
	}
	return nil
}

// Resolve maps an analyzed page onto the canonical catalog: an exact content
// match rescans, a near duplicate merges and anything else creates a product.
func Resolve(ctx context.Context, deps ResolveDeps, in ResolveInput) (out ResolveOutput, err error) {
	if err := deps.validate(); err != nil {
		return ResolveOutput{}, err
	}
	if deps.Bus == nil {
		deps.Bus = bus.NewNoop()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	log := deps.Log.With("service", "CatalogResolver")

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "catalog.resolve", attribute.String("catalog.product_name", in.Analysis.ProductName))
	outcome := "error"
	defer func() {
		observability.Current().ObserveResolve(outcome, time.Since(start))
		observability.EndSpan(span, err)
	}()

	if verr := in.Analysis.Validate(); verr != nil {
		return ResolveOutput{}, domainagg.NewError(domainagg.CodeValidation, opResolve, verr.Error(), nil)
	}
	hash, err := ContentHash(in.Content)
	if err != nil {
		return ResolveOutput{}, domainagg.NewError(domainagg.CodeValidation, opResolve, "content is not encodable", err)
	}

	if res, ok, err := rescanExact(ctx, deps, hash); err != nil {
		return ResolveOutput{}, err
	} else if ok {
		outcome = "exact"
		log.Debug("exact duplicate", "product_id", res.Product.ID, "content_hash", hash)
		return res, nil
	}

	candidate, err := embedCandidate(ctx, deps.Embedder, in)
	if err != nil {
		log.Error("embedding failed", "error", err)
		return ResolveOutput{}, err
	}

	match, err := deps.Search.FindBest(ctx, candidate)
	if err != nil {
		return ResolveOutput{}, fmt.Errorf("similarity search: %w", err)
	}

	mi := MergeInput{Analysis: in.Analysis, Content: in.Content, Source: sourceOf(in.Content), Now: deps.Now()}
	scan := newScan(in, hash)

	if match != nil {
		observability.Current().ObserveBestSimilarity(deps.Search.Backend(), match.Score)
		score := match.Score
		scan.Similarity = &score
		res, err := deps.Catalog.MergeScan(ctx, domainagg.MergeScanInput{
			ProductID: match.Product.ID,
			Scan:      scan,
			Merge: func(p *types.Product) error {
				ApplyMerge(p, mi)
				scan.Confidence = p.Confidence
				return nil
			},
		})
		if domainagg.IsCode(err, domainagg.CodeConflict) {
			return retryExact(ctx, deps, log, hash, err, &outcome)
		}
		if err != nil {
			return ResolveOutput{}, err
		}
		outcome = "merged"
		log.Info("product merged", "product_id", res.Product.ID, "similarity", score, "scan_count", res.Product.ScanCount)
		publish(ctx, deps, log, realtime.EventProductMerged, res.Product, map[string]any{"similarity": score})
		return ResolveOutput{Product: res.Product, IsExisting: true, Similarity: &score}, nil
	}

	scan.Confidence = 1.0
	res, err := deps.Catalog.CreateProduct(ctx, domainagg.CreateProductInput{
		Product: NewProduct(candidate, mi),
		Scan:    scan,
	})
	if domainagg.IsCode(err, domainagg.CodeConflict) {
		return retryExact(ctx, deps, log, hash, err, &outcome)
	}
	if err != nil {
		return ResolveOutput{}, err
	}
	outcome = "created"
	log.Info("product created", "product_id", res.Product.ID, "name", res.Product.CanonicalName)

	if ix, ok := deps.Search.(Indexer); ok {
		if ierr := ix.Index(ctx, res.Product); ierr != nil {
			log.Warn("index new product failed", "product_id", res.Product.ID, "error", ierr)
		}
	}
	publish(ctx, deps, log, realtime.EventProductCreated, res.Product, nil)
	return ResolveOutput{Product: res.Product, IsExisting: false}, nil
}

func rescanExact(ctx context.Context, deps ResolveDeps, hash string) (ResolveOutput, bool, error) {
	existing, err := deps.Scans.GetByContentHash(dbctx.Context{Ctx: ctx}, hash)
	if err != nil {
		return ResolveOutput{}, false, fmt.Errorf("lookup content hash: %w", err)
	}
	if existing == nil {
		return ResolveOutput{}, false, nil
	}
	p, err := deps.Catalog.Rescan(ctx, existing.ProductID)
	if err != nil {
		return ResolveOutput{}, false, err
	}
	one := 1.0
	publish(ctx, deps, deps.Log, realtime.EventProductRescanned, p, nil)
	return ResolveOutput{Product: p, IsExisting: true, Similarity: &one}, true, nil
}

// retryExact handles a concurrent identical request that inserted the same
// content hash first. The exact path is tried once; otherwise the conflict stands.
func retryExact(ctx context.Context, deps ResolveDeps, log *logger.Logger, hash string, conflict error, outcome *string) (ResolveOutput, error) {
	log.Warn("content hash conflict, retrying exact match", "content_hash", hash)
	res, ok, err := rescanExact(ctx, deps, hash)
	if err != nil {
		return ResolveOutput{}, err
	}
	if !ok {
		return ResolveOutput{}, conflict
	}
	*outcome = "exact"
	return res, nil
}

func embedCandidate(ctx context.Context, e Embedder, in ResolveInput) (Candidate, error) {
	name := strings.TrimSpace(in.Analysis.ProductName)
	desc := strings.TrimSpace(in.Content.Text)
	if desc == "" {
		desc = strings.TrimSpace(in.Content.Title)
	}
	if desc == "" {
		desc = name
	}
	vecs, err := e.Embed(ctx, []string{name, desc})
	if err != nil {
		return Candidate{}, fmt.Errorf("embed candidate: %w", err)
	}
	if len(vecs) != 2 || len(vecs[0]) == 0 || len(vecs[1]) == 0 {
		return Candidate{}, fmt.Errorf("embed candidate: want 2 vectors, got %d", len(vecs))
	}
	return Candidate{Model: e.EmbedModel(), Name: vecs[0], Description: vecs[1]}, nil
}

func newScan(in ResolveInput, hash string) *types.ProductScan {
	raw, _ := json.Marshal(in.Analysis)
	s := &types.ProductScan{
		SourceURL:      in.Content.URL,
		ContentHash:    hash,
		RawName:        in.Analysis.ProductName,
		RawDescription: in.Content.Text,
		RawAnalysis:    raw,
		EcoScore:       in.Analysis.EcoScore,
	}
	s.SetMaterials(in.Analysis.Materials)
	s.SetCertifications(in.Analysis.Certifications)
	return s
}

func sourceOf(c Content) string {
	if u := strings.TrimSpace(c.URL); u != "" {
		return u
	}
	return "scan"
}

func publish(ctx context.Context, deps ResolveDeps, log *logger.Logger, t realtime.EventType, p *types.Product, data map[string]any) {
	if deps.Bus == nil || p == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["scan_count"] = p.ScanCount
	if err := deps.Bus.Publish(ctx, realtime.NewEvent(t, p.ID, nil, data)); err != nil {
		log.Warn("publish catalog event failed", "type", t, "error", err)
	}
}
