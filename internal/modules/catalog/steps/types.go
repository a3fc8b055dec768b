package steps

import (
	"fmt"
	"strings"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
)

// Content is the scraped page a product analysis was produced from.
// Field order is part of the content hash and must not change.
type Content struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Images   []string       `json:"images"`
	Metadata map[string]any `json:"metadata"`
}

// Analysis is the upstream eco assessment of Content.
type Analysis struct {
	ProductName    string   `json:"productName"`
	EcoScore       int      `json:"ecoScore"`
	Category       *string  `json:"category,omitempty"`
	Materials      []string `json:"materials"`
	Certifications []string `json:"certifications"`
	Insights       []string `json:"insights"`
	Reasoning      string   `json:"reasoning"`
}

func (a Analysis) Validate() error {
	if strings.TrimSpace(a.ProductName) == "" {
		return fmt.Errorf("productName is required")
	}
	if a.EcoScore < 0 || a.EcoScore > 100 {
		return fmt.Errorf("ecoScore must be within 0..100, got %d", a.EcoScore)
	}
	return nil
}

type ResolveInput struct {
	Content  Content  `json:"content"`
	Analysis Analysis `json:"analysis"`
}

type ResolveOutput struct {
	Product    *types.Product `json:"product"`
	IsExisting bool           `json:"isExisting"`
	Similarity *float64       `json:"similarity,omitempty"`
}

// ResolverConfig holds the matching thresholds.
type ResolverConfig struct {
	SimilarityThreshold float64
	NameWeight          float64
	DescriptionWeight   float64
	// PageSize bounds each brute-force scan page.
	PageSize int
	// CandidateTopK is the ANN candidate count before exact rescoring.
	CandidateTopK int
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		SimilarityThreshold: 0.85,
		NameWeight:          0.7,
		DescriptionWeight:   0.3,
		PageSize:            500,
		CandidateTopK:       20,
	}
}

// WithDefaults fills zero fields from DefaultResolverConfig.
func (c ResolverConfig) WithDefaults() ResolverConfig {
	d := DefaultResolverConfig()
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.NameWeight <= 0 && c.DescriptionWeight <= 0 {
		c.NameWeight, c.DescriptionWeight = d.NameWeight, d.DescriptionWeight
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.CandidateTopK <= 0 {
		c.CandidateTopK = d.CandidateTopK
	}
	return c
}
