package lifecycle

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LifecycleStep is one event in a tracked product's life. Content is immutable;
// only IsVisible may change after insertion.
type LifecycleStep struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_lifecycle_step_product_seq,priority:1;index:idx_lifecycle_step_product_user,priority:1" json:"product_id"`
	TrackingID uuid.UUID  `gorm:"type:uuid;not null;index" json:"tracking_id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index:idx_lifecycle_step_product_user,priority:2" json:"user_id,omitempty"`

	// Seq is assigned at insertion and strictly increases per product.
	Seq int64 `gorm:"not null;uniqueIndex:idx_lifecycle_step_product_seq,priority:2" json:"seq"`

	StepType    StepType   `gorm:"type:text;not null;index" json:"step_type"`
	Title       string     `gorm:"type:text;not null" json:"title"`
	Description string     `gorm:"type:text;not null;default:''" json:"description"`
	Source      StepSource `gorm:"type:text;not null" json:"source"`
	Priority    int        `gorm:"not null" json:"priority"`

	EcoScoreBefore *int     `json:"eco_score_before,omitempty"`
	EcoScoreAfter  *int     `json:"eco_score_after,omitempty"`
	PriceBefore    *float64 `json:"price_before,omitempty"`
	PriceAfter     *float64 `json:"price_after,omitempty"`

	Metadata  datatypes.JSON `json:"metadata"`
	IsVisible bool           `gorm:"not null;index" json:"is_visible"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (LifecycleStep) TableName() string { return "lifecycle_step" }

func (s *LifecycleStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// StepMetadata carries the known per-step attributes. Anything else lands in Extra.
type StepMetadata struct {
	Channel     string         `json:"channel,omitempty"`
	ExternalRef string         `json:"externalRef,omitempty"`
	SourceURL   string         `json:"sourceUrl,omitempty"`
	Location    string         `json:"location,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

var metadataKeys = map[string]bool{"channel": true, "externalRef": true, "sourceUrl": true, "location": true, "extra": true}

// DecodeStepMetadata reads a metadata column, folding unknown keys into Extra.
func DecodeStepMetadata(raw datatypes.JSON) StepMetadata {
	var md StepMetadata
	if len(raw) == 0 {
		return md
	}
	if err := json.Unmarshal(raw, &md); err != nil {
		return StepMetadata{}
	}
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err == nil {
		for k, v := range all {
			if metadataKeys[k] {
				continue
			}
			if md.Extra == nil {
				md.Extra = map[string]any{}
			}
			md.Extra[k] = v
		}
	}
	return md
}

func (m StepMetadata) Encode() datatypes.JSON {
	b, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}

// EcoDelta returns after-before when both are present.
func (s *LifecycleStep) EcoDelta() (int, bool) {
	if s.EcoScoreBefore == nil || s.EcoScoreAfter == nil {
		return 0, false
	}
	return *s.EcoScoreAfter - *s.EcoScoreBefore, true
}

// PriceDelta returns after-before when both are present.
func (s *LifecycleStep) PriceDelta() (float64, bool) {
	if s.PriceBefore == nil || s.PriceAfter == nil {
		return 0, false
	}
	return *s.PriceAfter - *s.PriceBefore, true
}
