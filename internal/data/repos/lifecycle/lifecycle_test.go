package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/data/repos/testutil"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

func TestLifecycleStepRepoPositions(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewLifecycleStepRepo(db, testutil.Logger(t))

	p := testutil.SeedProduct(t, ctx, tx, "bottle")
	uid := uuid.New()
	steps := testutil.SeedSteps(t, ctx, tx, p, &uid, 5)
	testutil.SeedSteps(t, ctx, tx, p, nil, 2)

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	if err := repo.SetVisibility(dbc, steps[1].ID, false); err != nil {
		t.Fatalf("SetVisibility: %v", err)
	}

	userScope := Scope{ProductID: p.ID, UserID: &uid}
	productScope := Scope{ProductID: p.ID}

	if n, err := repo.CountVisible(dbc, userScope); err != nil || n != 4 {
		t.Fatalf("CountVisible(user): want=4 got=%d err=%v", n, err)
	}
	if n, err := repo.CountVisible(dbc, productScope); err != nil || n != 6 {
		t.Fatalf("CountVisible(product): want=6 got=%d err=%v", n, err)
	}
	if n, err := repo.CountVisibleBefore(dbc, userScope, steps[3].Seq); err != nil || n != 2 {
		t.Fatalf("CountVisibleBefore: want=2 got=%d err=%v", n, err)
	}

	rng, err := repo.ListVisibleRange(dbc, userScope, 2, 3)
	if err != nil {
		t.Fatalf("ListVisibleRange: %v", err)
	}
	if len(rng) != 2 || rng[0].ID != steps[2].ID || rng[1].ID != steps[3].ID {
		t.Fatalf("ListVisibleRange: unexpected rows %+v", rng)
	}

	after, err := repo.ListVisibleAfter(dbc, userScope, 3)
	if err != nil {
		t.Fatalf("ListVisibleAfter: %v", err)
	}
	if len(after) != 1 || after[0].ID != steps[4].ID {
		t.Fatalf("ListVisibleAfter: want last step got=%d rows", len(after))
	}

	scopes, err := repo.ListScopes(dbc, 0)
	if err != nil {
		t.Fatalf("ListScopes: %v", err)
	}
	var sawUser, sawProduct bool
	for _, s := range scopes {
		if s.ProductID != p.ID {
			continue
		}
		if s.UserID == nil {
			sawProduct = true
		} else if *s.UserID == uid {
			sawUser = true
		}
	}
	if !sawUser || !sawProduct {
		t.Fatalf("ListScopes: want user and product scopes got=%+v", scopes)
	}
}

func TestLifecycleSummaryRepoPartitionQueries(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewLifecycleSummaryRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	p := testutil.SeedProduct(t, ctx, tx, "kettle")
	key := types.ScopeKey(p.ID, nil)
	mk := func(start, end int) *types.LifecycleSummary {
		s := &types.LifecycleSummary{
			ProductID:      p.ID,
			ScopeKey:       key,
			StepCountStart: start,
			StepCountEnd:   end,
			Summary:        "s",
			ModelUsed:      "test",
			TimeframeStart: time.Now().UTC(),
			TimeframeEnd:   time.Now().UTC(),
		}
		s.SetKeyEvents(nil)
		s.SetMajorMilestones(nil)
		return s
	}

	for _, rng := range [][2]int{{1, 50}, {51, 100}} {
		created, err := repo.Create(dbc, mk(rng[0], rng[1]))
		if err != nil || !created {
			t.Fatalf("Create %v: created=%v err=%v", rng, created, err)
		}
	}
	created, err := repo.Create(dbc, mk(51, 100))
	if err != nil {
		t.Fatalf("duplicate Create: %v", err)
	}
	if created {
		t.Fatalf("duplicate Create: want created=false")
	}

	latest, err := repo.GetLatest(dbc, key)
	if err != nil || latest == nil || latest.StepCountEnd != 100 {
		t.Fatalf("GetLatest: got=%+v err=%v", latest, err)
	}
	prev, err := repo.GetPrevious(dbc, key, 51)
	if err != nil || prev == nil || prev.StepCountEnd != 50 {
		t.Fatalf("GetPrevious: got=%+v err=%v", prev, err)
	}
	if ov, err := repo.FindOverlapping(dbc, key, 40, 60); err != nil || ov == nil {
		t.Fatalf("FindOverlapping: want hit got=%+v err=%v", ov, err)
	}
	if ov, err := repo.FindOverlapping(dbc, key, 101, 150); err != nil || ov != nil {
		t.Fatalf("FindOverlapping: want miss got=%+v err=%v", ov, err)
	}
	n, err := repo.DeleteByScope(dbc, key)
	if err != nil || n != 2 {
		t.Fatalf("DeleteByScope: want=2 got=%d err=%v", n, err)
	}
}
