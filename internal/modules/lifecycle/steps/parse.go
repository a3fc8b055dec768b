package steps

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
)

type summaryResponse struct {
	Summary         string              `json:"summary"`
	KeyEvents       []string            `json:"keyEvents"`
	Trends          types.SummaryTrends `json:"trends"`
	EcoScoreChange  *float64            `json:"ecoScoreChange"`
	MajorMilestones []string            `json:"majorMilestones"`
	Confidence      *float64            `json:"confidence"`
}

// extractJSON strips code fences and returns the text from the first '{' to the last '}'.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func parseSummaryResponse(raw string, maxItems int) (summaryResponse, error) {
	body, ok := extractJSON(raw)
	if !ok {
		return summaryResponse{}, fmt.Errorf("no json object in model output")
	}
	var out summaryResponse
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return summaryResponse{}, fmt.Errorf("decode model output: %w", err)
	}
	out.Summary = strings.TrimSpace(out.Summary)
	if out.Summary == "" {
		return summaryResponse{}, fmt.Errorf("model output has empty summary")
	}
	out.KeyEvents = capList(out.KeyEvents, maxItems)
	out.MajorMilestones = capList(out.MajorMilestones, maxItems)
	if out.Confidence != nil {
		c := math.Max(0, math.Min(1, *out.Confidence))
		out.Confidence = &c
	}
	if out.EcoScoreChange != nil && (math.IsNaN(*out.EcoScoreChange) || math.IsInf(*out.EcoScoreChange, 0)) {
		out.EcoScoreChange = nil
	}
	return out, nil
}

func capList(in []string, max int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
