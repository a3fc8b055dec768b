package steps

import (
	"fmt"
	"strings"
	"time"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
)

func promptSummarizeBatch(product *types.Product, previous *types.LifecycleSummary, batch []*types.LifecycleStep, start, end int) (string, string) {
	system := strings.TrimSpace(`
You maintain the cumulative lifecycle history of a physical product for a sustainability tracker.
Combine the previous summary (if any) with the new events into one updated summary of the whole history.
Respond with a single JSON object and nothing else:
{"summary": string, "keyEvents": [string], "trends": {"ecoScore": string, "usage": string, "maintenance": string, "condition": string}, "ecoScoreChange": number|null, "majorMilestones": [string], "confidence": number between 0 and 1}`)

	var b strings.Builder
	b.WriteString("PRODUCT\n")
	if product != nil {
		fmt.Fprintf(&b, "- name: %s\n", product.CanonicalName)
		if product.Category != nil && *product.Category != "" {
			fmt.Fprintf(&b, "- category: %s\n", *product.Category)
		}
		if product.EcoScore != nil {
			fmt.Fprintf(&b, "- current eco score: %d\n", *product.EcoScore)
		}
		if mats := product.MaterialList(); len(mats) > 0 {
			fmt.Fprintf(&b, "- materials: %s\n", strings.Join(mats, ", "))
		}
	}

	b.WriteString("\nPREVIOUS SUMMARY\n")
	if previous == nil {
		b.WriteString("(none, this is the first batch)\n")
	} else {
		fmt.Fprintf(&b, "covers events 1-%d:\n%s\n", previous.StepCountEnd, previous.Summary)
		if ke := previous.KeyEventList(); len(ke) > 0 {
			fmt.Fprintf(&b, "key events so far: %s\n", strings.Join(ke, "; "))
		}
	}

	fmt.Fprintf(&b, "\nNEW EVENTS %d-%d (chronological)\n", start, end)
	for i, s := range batch {
		fmt.Fprintf(&b, "%d. [%s] %s (%s, via %s, priority %d)", start+i, s.CreatedAt.UTC().Format(time.RFC3339), s.Title, s.StepType, s.Source, s.Priority)
		if d, ok := s.EcoDelta(); ok {
			fmt.Fprintf(&b, " eco %d->%d (%+d)", *s.EcoScoreBefore, *s.EcoScoreAfter, d)
		}
		if d, ok := s.PriceDelta(); ok {
			fmt.Fprintf(&b, " price %.2f->%.2f (%+.2f)", *s.PriceBefore, *s.PriceAfter, d)
		}
		if desc := strings.TrimSpace(s.Description); desc != "" {
			fmt.Fprintf(&b, ": %s", desc)
		}
		b.WriteString("\n")
	}
	return system, b.String()
}

// fallbackSummary is used whenever the model fails or answers unusably.
func fallbackSummary(product *types.Product, previous *types.LifecycleSummary, batch []*types.LifecycleStep) summaryResponse {
	name := "this product"
	if product != nil && strings.TrimSpace(product.CanonicalName) != "" {
		name = product.CanonicalName
	}
	text := fmt.Sprintf("Recorded %d lifecycle events for %s.", len(batch), name)
	if previous != nil {
		text += " Building on previous tracking of " + fmt.Sprint(previous.StepCountEnd) + " events."
	}

	keyEvents := make([]string, 0, 3)
	milestones := []string{}
	for _, s := range batch {
		if len(keyEvents) < 3 {
			keyEvents = append(keyEvents, s.Title)
		}
		if s.Priority >= 8 {
			milestones = append(milestones, s.Title)
		}
	}
	return summaryResponse{Summary: text, KeyEvents: keyEvents, MajorMilestones: milestones}
}
