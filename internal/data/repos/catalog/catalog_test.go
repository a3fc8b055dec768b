package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/data/repos/testutil"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

func TestProductRepoIncrementAndPaging(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewProductRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	a := testutil.SeedProduct(t, ctx, tx, "a")
	b := testutil.SeedProduct(t, ctx, tx, "b")

	if err := repo.IncrementScanCount(dbc, a.ID); err != nil {
		t.Fatalf("IncrementScanCount: %v", err)
	}
	got, err := repo.GetByID(dbc, a.ID)
	if err != nil || got == nil || got.ScanCount != 2 {
		t.Fatalf("GetByID: want scan_count=2 got=%+v err=%v", got, err)
	}
	if err := repo.IncrementScanCount(dbc, uuid.New()); err == nil {
		t.Fatalf("IncrementScanCount(unknown): want error")
	}

	seen := map[uuid.UUID]bool{}
	after := uuid.Nil
	for {
		page, err := repo.ListEmbedded(dbc, "test-embed", after, 1)
		if err != nil {
			t.Fatalf("ListEmbedded: %v", err)
		}
		if len(page) == 0 {
			break
		}
		seen[page[0].ID] = true
		after = page[0].ID
	}
	if !seen[a.ID] || !seen[b.ID] {
		t.Fatalf("ListEmbedded: want both seeded products")
	}
	if page, _ := repo.ListEmbedded(dbc, "other-model", uuid.Nil, 10); len(page) != 0 {
		for _, p := range page {
			if p.ID == a.ID || p.ID == b.ID {
				t.Fatalf("ListEmbedded: model filter leaked %s", p.ID)
			}
		}
	}
}

func TestProductScanRepoHashLookup(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewProductScanRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	p := testutil.SeedProduct(t, ctx, tx, "jar")
	hash := "hash-" + uuid.NewString()
	scan := &types.ProductScan{ProductID: p.ID, ContentHash: hash, EcoScore: 60, Confidence: 1}
	scan.SetMaterials([]string{"glass"})
	scan.SetCertifications(nil)
	if err := repo.Create(dbc, scan); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByContentHash(dbc, hash)
	if err != nil || got == nil || got.ProductID != p.ID {
		t.Fatalf("GetByContentHash: got=%+v err=%v", got, err)
	}
	if miss, err := repo.GetByContentHash(dbc, "missing-"+hash); err != nil || miss != nil {
		t.Fatalf("GetByContentHash(miss): got=%+v err=%v", miss, err)
	}
}

func TestProductScanRepoListByProductOldestFirst(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewProductScanRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	p := testutil.SeedProduct(t, ctx, tx, "mug")
	other := testutil.SeedProduct(t, ctx, tx, "plate")
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var want []uuid.UUID
	for i, owner := range []*types.Product{p, other, p, p} {
		scan := &types.ProductScan{
			ProductID:   owner.ID,
			ContentHash: "hash-" + uuid.NewString(),
			EcoScore:    50 + i,
			Confidence:  1,
			CreatedAt:   base.Add(time.Duration(3-i) * time.Minute),
		}
		scan.SetMaterials(nil)
		scan.SetCertifications(nil)
		if err := repo.Create(dbc, scan); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		if owner == p {
			want = append([]uuid.UUID{scan.ID}, want...)
		}
	}

	got, err := repo.ListByProduct(dbc, p.ID, 10)
	if err != nil {
		t.Fatalf("ListByProduct: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ListByProduct: want=%d rows got=%d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("ListByProduct[%d]: want=%s got=%s", i, want[i], got[i].ID)
		}
	}
	if limited, err := repo.ListByProduct(dbc, p.ID, 2); err != nil || len(limited) != 2 {
		t.Fatalf("ListByProduct(limit=2): got=%d err=%v", len(limited), err)
	}
	if _, err := repo.ListByProduct(dbc, uuid.Nil, 10); err == nil {
		t.Fatalf("ListByProduct(nil id): want error")
	}
}
