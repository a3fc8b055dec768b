package lifecycle

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LifecycleSummary compresses the visible steps at positions
// [StepCountStart, StepCountEnd] of one scope. Rows of a scope partition
// 1..N into fixed-size batches and are only removed by full regeneration.
type LifecycleSummary struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	ScopeKey  string     `gorm:"type:text;not null;uniqueIndex:idx_lifecycle_summary_scope_end,priority:1" json:"scope_key"`

	StepCountStart     int `gorm:"not null" json:"step_count_start"`
	StepCountEnd       int `gorm:"not null;uniqueIndex:idx_lifecycle_summary_scope_end,priority:2" json:"step_count_end"`
	TotalStepsIncluded int `gorm:"not null" json:"total_steps_included"`

	Summary         string         `gorm:"type:text;not null" json:"summary"`
	KeyEvents       datatypes.JSON `json:"key_events"`
	MajorMilestones datatypes.JSON `json:"major_milestones"`
	Trends          datatypes.JSON `json:"trends"`
	EcoScoreChange  *float64       `json:"eco_score_change,omitempty"`
	Confidence      float64        `gorm:"not null" json:"confidence"`

	ProcessingTimeMs int64  `gorm:"not null" json:"processing_time_ms"`
	ModelUsed        string `gorm:"type:text;not null" json:"model_used"`
	IsFallback       bool   `gorm:"not null" json:"is_fallback"`

	TimeframeStart time.Time `gorm:"not null" json:"timeframe_start"`
	TimeframeEnd   time.Time `gorm:"not null" json:"timeframe_end"`
	DurationDays   int       `gorm:"not null" json:"duration_days"`

	PreviousSummaryID *uuid.UUID `gorm:"type:uuid" json:"previous_summary_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (LifecycleSummary) TableName() string { return "lifecycle_summary" }

func (s *LifecycleSummary) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ScopeKey identifies a (product, user) summary scope. A nil user covers every
// visible step of the product.
func ScopeKey(productID uuid.UUID, userID *uuid.UUID) string {
	if userID == nil || *userID == uuid.Nil {
		return productID.String() + ":*"
	}
	return productID.String() + ":" + userID.String()
}

// Timeframe spans the first and last step of a summarized batch.
type Timeframe struct {
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	DurationDays int       `json:"durationDays"`
}

func (s *LifecycleSummary) Timeframe() Timeframe {
	return Timeframe{StartDate: s.TimeframeStart, EndDate: s.TimeframeEnd, DurationDays: s.DurationDays}
}

func (s *LifecycleSummary) SetTimeframe(tf Timeframe) {
	s.TimeframeStart = tf.StartDate
	s.TimeframeEnd = tf.EndDate
	s.DurationDays = tf.DurationDays
}

func (s *LifecycleSummary) KeyEventList() []string       { return decodeList(s.KeyEvents) }
func (s *LifecycleSummary) MajorMilestoneList() []string { return decodeList(s.MajorMilestones) }
func (s *LifecycleSummary) SetKeyEvents(v []string)      { s.KeyEvents = encodeList(v) }
func (s *LifecycleSummary) SetMajorMilestones(v []string) { s.MajorMilestones = encodeList(v) }

func (s *LifecycleSummary) TrendsValue() SummaryTrends { return DecodeTrends(s.Trends) }
func (s *LifecycleSummary) SetTrends(t SummaryTrends)  { s.Trends = t.Encode() }

// SummaryTrends holds the known trend dimensions; other keys from the model are kept in Extra.
type SummaryTrends struct {
	EcoScore    string         `json:"ecoScore,omitempty"`
	Usage       string         `json:"usage,omitempty"`
	Maintenance string         `json:"maintenance,omitempty"`
	Condition   string         `json:"condition,omitempty"`
	Extra       map[string]any `json:"-"`
}

var trendKeys = map[string]bool{"ecoScore": true, "usage": true, "maintenance": true, "condition": true}

func (t *SummaryTrends) UnmarshalJSON(b []byte) error {
	var all map[string]any
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	out := SummaryTrends{}
	for k, v := range all {
		if trendKeys[k] {
			s := trendString(v)
			switch k {
			case "ecoScore":
				out.EcoScore = s
			case "usage":
				out.Usage = s
			case "maintenance":
				out.Maintenance = s
			case "condition":
				out.Condition = s
			}
			continue
		}
		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		out.Extra[k] = v
	}
	*t = out
	return nil
}

func (t SummaryTrends) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range t.Extra {
		out[k] = v
	}
	for k, v := range map[string]string{"ecoScore": t.EcoScore, "usage": t.Usage, "maintenance": t.Maintenance, "condition": t.Condition} {
		if v != "" {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

func (t SummaryTrends) Encode() datatypes.JSON {
	b, err := json.Marshal(t)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}

func DecodeTrends(raw datatypes.JSON) SummaryTrends {
	var t SummaryTrends
	if len(raw) == 0 {
		return t
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return SummaryTrends{}
	}
	return t
}

// Models sometimes answer a trend with a number or nested object instead of prose.
func trendString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func decodeList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func encodeList(v []string) datatypes.JSON {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
