package cli

import (
	"testing"

	"github.com/google/uuid"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"resolve"},
		{"step", "add"},
		{"step", "visibility"},
		{"timeline"},
		{"summary", "generate"},
		{"summary", "regenerate"},
		{"backfill-summaries"},
		{"metrics"},
		{"events", "tail"},
		{"reindex"},
		{"scans"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		if err != nil || len(rest) != 0 || cmd.Name() != path[len(path)-1] {
			t.Fatalf("command %v: got=%v rest=%v err=%v", path, cmd, rest, err)
		}
	}
}

func TestParseIDs(t *testing.T) {
	id := uuid.New()
	got, err := parseID("product id", " "+id.String()+" ")
	if err != nil || got != id {
		t.Fatalf("parseID: want=%s got=%s err=%v", id, got, err)
	}
	if _, err := parseID("product id", uuid.Nil.String()); err == nil {
		t.Fatalf("nil uuid: want error")
	}
	if _, err := parseID("product id", "bottle"); err == nil {
		t.Fatalf("garbage: want error")
	}
	opt, err := parseOptionalID("user id", "")
	if err != nil || opt != nil {
		t.Fatalf("empty optional: want nil got=%v err=%v", opt, err)
	}
	opt, err = parseOptionalID("user id", id.String())
	if err != nil || opt == nil || *opt != id {
		t.Fatalf("optional: want=%s got=%v err=%v", id, opt, err)
	}
}
