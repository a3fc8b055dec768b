package catalog

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AnalysisEntry is one analysis pass recorded against a product.
type AnalysisEntry struct {
	Timestamp time.Time `json:"timestamp"`
	EcoScore  int       `json:"ecoScore"`
	Insights  []string  `json:"insights"`
	Reasoning string    `json:"reasoning"`
	Source    string    `json:"source"`
}

// LifecycleInsights is the append-only analysis history of a product.
type LifecycleInsights struct {
	AnalysisHistory []AnalysisEntry `json:"analysisHistory"`
	Sources         []string        `json:"sources"`
	LastUpdated     time.Time       `json:"lastUpdated"`

	// Extra keeps unknown top-level keys written by older producers.
	Extra map[string]json.RawMessage `json:"-"`
}

var insightKeys = map[string]bool{"analysisHistory": true, "sources": true, "lastUpdated": true}

func (li *LifecycleInsights) UnmarshalJSON(b []byte) error {
	type plain LifecycleInsights
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if insightKeys[k] {
			continue
		}
		if p.Extra == nil {
			p.Extra = map[string]json.RawMessage{}
		}
		p.Extra[k] = v
	}
	*li = LifecycleInsights(p)
	return nil
}

func (li LifecycleInsights) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range li.Extra {
		out[k] = v
	}
	hist := li.AnalysisHistory
	if hist == nil {
		hist = []AnalysisEntry{}
	}
	src := li.Sources
	if src == nil {
		src = []string{}
	}
	out["analysisHistory"] = hist
	out["sources"] = src
	out["lastUpdated"] = li.LastUpdated
	return json.Marshal(out)
}

// NewInsights seeds the history with a single entry.
func NewInsights(entry AnalysisEntry) LifecycleInsights {
	li := LifecycleInsights{LastUpdated: entry.Timestamp}
	li.Append(entry)
	return li
}

// Append records entry, adds its source to Sources if new and stamps LastUpdated.
func (li *LifecycleInsights) Append(entry AnalysisEntry) {
	if entry.Insights == nil {
		entry.Insights = []string{}
	}
	li.AnalysisHistory = append(li.AnalysisHistory, entry)
	if entry.Source != "" {
		li.Sources = UnionStrings(li.Sources, []string{entry.Source})
	}
	li.LastUpdated = entry.Timestamp
}

func (li LifecycleInsights) Encode() datatypes.JSON {
	b, err := json.Marshal(li)
	if err != nil {
		return datatypes.JSON([]byte(`{"analysisHistory":[],"sources":[]}`))
	}
	return datatypes.JSON(b)
}

// DecodeInsights tolerates empty or malformed columns by returning an empty history.
func DecodeInsights(raw datatypes.JSON) LifecycleInsights {
	var li LifecycleInsights
	if len(raw) == 0 {
		return li
	}
	if err := json.Unmarshal(raw, &li); err != nil {
		return LifecycleInsights{}
	}
	return li
}
