package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProductScan is one immutable analysis event. ContentHash is the exact-dedup key.
type ProductScan struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	SourceURL   string    `gorm:"type:text;not null;default:''" json:"source_url"`
	ContentHash string    `gorm:"type:text;not null;uniqueIndex:idx_product_scan_content_hash" json:"content_hash"`

	RawName        string         `gorm:"type:text;not null;default:''" json:"raw_name"`
	RawDescription string         `gorm:"type:text;not null;default:''" json:"raw_description"`
	RawAnalysis    datatypes.JSON `json:"raw_analysis"`

	EcoScore       int            `gorm:"not null" json:"eco_score"`
	Materials      datatypes.JSON `json:"materials"`
	Certifications datatypes.JSON `json:"certifications"`
	Confidence     float64        `gorm:"not null" json:"confidence"`

	// Similarity is the combined score that led to a merge; nil for creations.
	Similarity *float64 `json:"similarity,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (ProductScan) TableName() string { return "product_scan" }

func (s *ProductScan) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *ProductScan) SetMaterials(v []string)      { s.Materials = encodeStrings(v) }
func (s *ProductScan) SetCertifications(v []string) { s.Certifications = encodeStrings(v) }
func (s *ProductScan) MaterialList() []string       { return decodeStrings(s.Materials) }
