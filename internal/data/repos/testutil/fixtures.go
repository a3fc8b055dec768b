package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
)

func SeedProduct(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Product {
	tb.Helper()
	score := 50
	p := &types.Product{
		ID:            uuid.New(),
		CanonicalName: name,
		EcoScore:      &score,
		ScanCount:     1,
		Confidence:    1,
	}
	p.SetMaterials([]string{})
	p.SetCertifications([]string{})
	p.SetEmbeddings("test-embed", []float32{1, 0, 0}, []float32{0, 1, 0})
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed product: %v", err)
	}
	return p
}

// SeedSteps inserts n visible steps with seq continuing from the product's StepSeq.
func SeedSteps(tb testing.TB, ctx context.Context, tx *gorm.DB, p *types.Product, userID *uuid.UUID, n int) []*types.LifecycleStep {
	tb.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*types.LifecycleStep, 0, n)
	for i := 0; i < n; i++ {
		p.StepSeq++
		s := &types.LifecycleStep{
			ID:         uuid.New(),
			ProductID:  p.ID,
			TrackingID: uuid.New(),
			UserID:     userID,
			Seq:        p.StepSeq,
			StepType:   types.StepNote,
			Title:      fmt.Sprintf("step %d", p.StepSeq),
			Source:     types.SourceUser,
			Priority:   3,
			IsVisible:  true,
			CreatedAt:  base.Add(time.Duration(p.StepSeq) * time.Hour),
		}
		if err := tx.WithContext(ctx).Create(s).Error; err != nil {
			tb.Fatalf("seed step: %v", err)
		}
		out = append(out, s)
	}
	if err := tx.WithContext(ctx).Model(&types.Product{}).Where("id = ?", p.ID).Update("step_seq", p.StepSeq).Error; err != nil {
		tb.Fatalf("seed step_seq: %v", err)
	}
	return out
}
