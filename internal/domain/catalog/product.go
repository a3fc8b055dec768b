package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product is the canonical, deduplicated record for one real-world item.
// Embeddings are written once at creation and never regenerated on merge.
type Product struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CanonicalName        string    `gorm:"type:text;not null;index" json:"canonical_name"`
	CanonicalDescription string    `gorm:"type:text;not null;default:''" json:"canonical_description"`

	NameEmbedding        datatypes.JSON `json:"-"`
	DescriptionEmbedding datatypes.JSON `json:"-"`
	EmbeddingModel       string         `gorm:"type:text;not null;default:'';index" json:"embedding_model,omitempty"`

	EcoScore          *int           `json:"eco_score,omitempty"`
	Category          *string        `gorm:"type:text;index" json:"category,omitempty"`
	Materials         datatypes.JSON `json:"materials"`
	Certifications    datatypes.JSON `json:"certifications"`
	LifecycleInsights datatypes.JSON `json:"lifecycle_insights"`

	ScanCount  int     `gorm:"not null" json:"scan_count"`
	Confidence float64 `gorm:"not null" json:"confidence"`

	// StepSeq is the last sequence number handed to a lifecycle step of this product.
	StepSeq int64 `gorm:"not null;default:0" json:"step_seq"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Product) TableName() string { return "product" }

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Product) MaterialList() []string      { return decodeStrings(p.Materials) }
func (p *Product) CertificationList() []string { return decodeStrings(p.Certifications) }

func (p *Product) SetMaterials(v []string)      { p.Materials = encodeStrings(v) }
func (p *Product) SetCertifications(v []string) { p.Certifications = encodeStrings(v) }

func (p *Product) NameVector() []float32        { return decodeVector(p.NameEmbedding) }
func (p *Product) DescriptionVector() []float32 { return decodeVector(p.DescriptionEmbedding) }

// SetEmbeddings stores both vectors together with the model that produced them.
func (p *Product) SetEmbeddings(model string, name, description []float32) {
	p.EmbeddingModel = model
	p.NameEmbedding = encodeVector(name)
	p.DescriptionEmbedding = encodeVector(description)
}

func (p *Product) HasEmbeddings() bool {
	return len(p.NameVector()) > 0 && len(p.DescriptionVector()) > 0
}

func (p *Product) Insights() LifecycleInsights { return DecodeInsights(p.LifecycleInsights) }

func (p *Product) SetInsights(in LifecycleInsights) { p.LifecycleInsights = in.Encode() }
