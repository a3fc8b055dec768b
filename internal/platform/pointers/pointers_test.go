package pointers

import "testing"

func TestDerefAndNonEmpty(t *testing.T) {
	if got := Deref[int](nil, 7); got != 7 {
		t.Fatalf("nil deref: want=7 got=%d", got)
	}
	if got := Deref(Int(3), 7); got != 3 {
		t.Fatalf("deref: want=3 got=%d", got)
	}
	if NonEmpty("") != nil {
		t.Fatalf("empty: want nil")
	}
	if p := NonEmpty("x"); p == nil || *p != "x" {
		t.Fatalf("non-empty: got=%v", p)
	}
}
