package lifecycle

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

func TestParseStepType(t *testing.T) {
	cases := map[string]StepType{
		"Repaired":      StepRepaired,
		"broken":        StepMalfunction,
		"just bought":   StepPurchased,
		"working-great": StepWorking,
		"eco_analysis":  StepEcoAnalysis,
		"teleported":    StepOther,
		"":              StepOther,
	}
	for in, want := range cases {
		if got := ParseStepType(in); got != want {
			t.Fatalf("ParseStepType(%q): want=%s got=%s", in, want, got)
		}
	}
	if StepDisposed.DefaultPriority() < 8 {
		t.Fatalf("disposed should be a milestone priority")
	}
}

func TestScopeKey(t *testing.T) {
	pid := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	uid := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	if got := ScopeKey(pid, nil); got != pid.String()+":*" {
		t.Fatalf("nil user: got=%s", got)
	}
	if got := ScopeKey(pid, &uid); got != pid.String()+":"+uid.String() {
		t.Fatalf("user: got=%s", got)
	}
}

func TestTrendsKeepsUnknownKeys(t *testing.T) {
	tr := DecodeTrends(datatypes.JSON(`{"ecoScore":"improving","usage":3,"repairFrequency":"rising"}`))
	if tr.EcoScore != "improving" {
		t.Fatalf("ecoScore: got=%q", tr.EcoScore)
	}
	if tr.Usage != "3" {
		t.Fatalf("usage: want numeric rendered as text got=%q", tr.Usage)
	}
	if tr.Extra["repairFrequency"] != "rising" {
		t.Fatalf("extra: got=%v", tr.Extra)
	}
	again := DecodeTrends(tr.Encode())
	if again.Extra["repairFrequency"] != "rising" || again.EcoScore != "improving" {
		t.Fatalf("re-encode lost fields: %+v", again)
	}
}

func TestStepMetadataExtra(t *testing.T) {
	md := DecodeStepMetadata(datatypes.JSON(`{"channel":"telegram","chatId":42}`))
	if md.Channel != "telegram" {
		t.Fatalf("channel: got=%q", md.Channel)
	}
	if md.Extra["chatId"] != float64(42) {
		t.Fatalf("extra chatId: got=%v", md.Extra["chatId"])
	}
}

func TestStepDeltas(t *testing.T) {
	b, a := 40, 55
	s := LifecycleStep{EcoScoreBefore: &b, EcoScoreAfter: &a}
	if d, ok := s.EcoDelta(); !ok || d != 15 {
		t.Fatalf("EcoDelta: want=15 got=%d ok=%v", d, ok)
	}
	if _, ok := s.PriceDelta(); ok {
		t.Fatalf("PriceDelta: want absent")
	}
}
