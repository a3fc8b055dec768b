package steps

import (
	"context"
	"math"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
)

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Cosine is 0 for empty, zero or mismatched-length vectors.
func Cosine(a, b []float32) float64 { return cosine(a, b) }

// Candidate is the embedded form of an incoming analysis.
type Candidate struct {
	Model       string
	Name        []float32
	Description []float32
}

type Match struct {
	Product *types.Product
	Score   float64
}

// CombinedSimilarity weighs name and description cosine similarity.
func CombinedSimilarity(cfg ResolverConfig, c Candidate, p *types.Product) float64 {
	return cfg.NameWeight*cosine(c.Name, p.NameVector()) + cfg.DescriptionWeight*cosine(c.Description, p.DescriptionVector())
}

// SimilaritySearch finds the best existing product at or above the threshold.
// It returns nil when nothing qualifies.
type SimilaritySearch interface {
	Backend() string
	FindBest(ctx context.Context, c Candidate) (*Match, error)
}

// Indexer is implemented by backends that keep a secondary index of new products.
type Indexer interface {
	Index(ctx context.Context, p *types.Product) error
}

// bestOf keeps the highest combined score that clears the threshold. Ties keep
// the earlier product so results are stable across pages.
func bestOf(cfg ResolverConfig, c Candidate, products []*types.Product, best *Match) *Match {
	for _, p := range products {
		if p == nil || p.EmbeddingModel != c.Model || !p.HasEmbeddings() {
			continue
		}
		score := CombinedSimilarity(cfg, c, p)
		if score < cfg.SimilarityThreshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Product: p, Score: score}
		}
	}
	return best
}
