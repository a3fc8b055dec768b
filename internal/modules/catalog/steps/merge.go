package steps

import (
	"math"
	"strings"
	"time"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
)

// MergeInput is one incoming scan applied to an existing product.
type MergeInput struct {
	Analysis Analysis
	Content  Content
	Source   string
	Now      time.Time
}

// ApplyMerge folds an incoming analysis into p. It reads ScanCount before
// incrementing it, so the caller must hold the row lock.
func ApplyMerge(p *types.Product, in MergeInput) {
	before := p.ScanCount
	oldMaterials := p.MaterialList()

	p.Confidence = MergeConfidence(p.EcoScore, in.Analysis.EcoScore, oldMaterials, in.Analysis.Materials, before)
	p.EcoScore = blendScore(p.EcoScore, in.Analysis.EcoScore, before)

	p.SetMaterials(types.UnionStrings(oldMaterials, in.Analysis.Materials))
	p.SetCertifications(types.UnionStrings(p.CertificationList(), in.Analysis.Certifications))

	if (p.Category == nil || strings.TrimSpace(*p.Category) == "") && in.Analysis.Category != nil && strings.TrimSpace(*in.Analysis.Category) != "" {
		c := *in.Analysis.Category
		p.Category = &c
	}
	if strings.TrimSpace(p.CanonicalDescription) == "" {
		p.CanonicalDescription = in.Content.Text
	}

	insights := p.Insights()
	insights.Append(analysisEntry(in))
	p.SetInsights(insights)

	p.ScanCount = before + 1
}

func analysisEntry(in MergeInput) types.AnalysisEntry {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return types.AnalysisEntry{
		Timestamp: now,
		EcoScore:  in.Analysis.EcoScore,
		Insights:  append([]string{}, in.Analysis.Insights...),
		Reasoning: in.Analysis.Reasoning,
		Source:    in.Source,
	}
}

// blendScore is the running mean weighted by prior scans.
func blendScore(old *int, incoming, scanCount int) *int {
	if old == nil {
		v := incoming
		return &v
	}
	w := 1.0 / float64(scanCount+1)
	v := int(math.Round(float64(*old)*(1-w) + float64(incoming)*w))
	return &v
}

// MergeConfidence averages the computable agreement factors and adds a bonus
// of 0.1 per prior scan capped at 0.3. With no factor the base is 0.5.
func MergeConfidence(oldScore *int, incoming int, oldMaterials, newMaterials []string, scanCount int) float64 {
	var factors []float64
	if oldScore != nil {
		diff := math.Abs(float64(*oldScore - incoming))
		switch {
		case diff <= 10:
			factors = append(factors, 1.0)
		case diff <= 20:
			factors = append(factors, 0.5)
		default:
			factors = append(factors, 0)
		}
	}
	if len(oldMaterials) > 0 && len(newMaterials) > 0 {
		factors = append(factors, materialOverlap(oldMaterials, newMaterials))
	}

	base := 0.5
	if len(factors) > 0 {
		sum := 0.0
		for _, f := range factors {
			sum += f
		}
		base = sum / float64(len(factors))
	}
	bonus := math.Min(float64(scanCount)*0.1, 0.3)
	return math.Min(base+bonus, 1.0)
}

// materialOverlap is the share of existing materials with a case-insensitive
// substring match, in either direction, among the incoming ones.
func materialOverlap(existing, incoming []string) float64 {
	matched := 0
	for _, e := range existing {
		el := strings.ToLower(strings.TrimSpace(e))
		for _, n := range incoming {
			nl := strings.ToLower(strings.TrimSpace(n))
			if el == "" || nl == "" {
				continue
			}
			if strings.Contains(el, nl) || strings.Contains(nl, el) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(existing))
}

// NewProduct builds the canonical record for a first sighting.
func NewProduct(c Candidate, in MergeInput) *types.Product {
	score := in.Analysis.EcoScore
	p := &types.Product{
		CanonicalName:        strings.TrimSpace(in.Analysis.ProductName),
		CanonicalDescription: in.Content.Text,
		EcoScore:             &score,
		ScanCount:            1,
		Confidence:           1.0,
	}
	if in.Analysis.Category != nil && strings.TrimSpace(*in.Analysis.Category) != "" {
		cat := *in.Analysis.Category
		p.Category = &cat
	}
	p.SetMaterials(types.UnionStrings(nil, in.Analysis.Materials))
	p.SetCertifications(types.UnionStrings(nil, in.Analysis.Certifications))
	p.SetEmbeddings(c.Model, c.Name, c.Description)
	p.SetInsights(types.NewInsights(analysisEntry(in)))
	return p
}
