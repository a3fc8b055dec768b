package steps

import (
	"testing"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
)

func TestTrackingIDIsStablePerScope(t *testing.T) {
	pid := uuid.New()
	uid := uuid.New()
	if TrackingIDFor(pid, &uid) != TrackingIDFor(pid, &uid) {
		t.Fatalf("tracking id not deterministic")
	}
	if TrackingIDFor(pid, &uid) == TrackingIDFor(pid, nil) {
		t.Fatalf("user and product scopes share a tracking id")
	}
}

func TestScopesFor(t *testing.T) {
	pid := uuid.New()
	if got := scopesFor(pid, nil); len(got) != 1 || got[0].UserID != nil {
		t.Fatalf("product scope: got=%v", got)
	}
	nilUser := uuid.Nil
	if got := scopesFor(pid, &nilUser); len(got) != 1 || got[0].UserID != nil {
		t.Fatalf("nil uuid user: got=%v", got)
	}
	uid := uuid.New()
	got := scopesFor(pid, &uid)
	if len(got) != 2 || got[0].UserID != nil || *got[1].UserID != uid {
		t.Fatalf("user scope: got=%v", got)
	}
}

func TestWithProductScopesDedupes(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	u1, u2 := uuid.New(), uuid.New()
	got := withProductScopes([]repos.Scope{
		{ProductID: p1, UserID: &u1},
		{ProductID: p1, UserID: &u2},
		{ProductID: p1},
		{ProductID: p2},
	})
	if len(got) != 4 {
		t.Fatalf("scopes: want=4 got=%d (%v)", len(got), got)
	}
}
