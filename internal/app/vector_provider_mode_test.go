package app

import (
	"errors"
	"testing"

	"github.com/lifeapp/lifecycle-backend/internal/platform/qdrant"
)

func TestResolveVectorBackendAutoWithoutQdrant(t *testing.T) {
	t.Setenv("QDRANT_URL", "")
	cfg, err := resolveVectorBackendConfig(VectorBackendAuto)
	if err != nil {
		t.Fatalf("resolveVectorBackendConfig: %v", err)
	}
	if cfg.Backend != VectorBackendBruteForce {
		t.Fatalf("backend: want=%q got=%q", VectorBackendBruteForce, cfg.Backend)
	}
	if cfg.ModeSource != "auto_default" {
		t.Fatalf("mode source: want=%q got=%q", "auto_default", cfg.ModeSource)
	}
}

func TestResolveVectorBackendAutoWithQdrant(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("QDRANT_NAMESPACE_PREFIX", "")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")

	cfg, err := resolveVectorBackendConfig(VectorBackendAuto)
	if err != nil {
		t.Fatalf("resolveVectorBackendConfig: %v", err)
	}
	if cfg.Backend != VectorBackendQdrant || cfg.ModeSource != "auto_qdrant_url" {
		t.Fatalf("backend: got=%q source=%q", cfg.Backend, cfg.ModeSource)
	}
	if cfg.Qdrant.Collection != qdrant.DefaultCollection || cfg.Qdrant.VectorDim != 1536 {
		t.Fatalf("qdrant: got=%+v", cfg.Qdrant)
	}
}

func TestResolveVectorBackendExplicitQdrantMissingURL(t *testing.T) {
	t.Setenv("QDRANT_URL", "")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")

	_, err := resolveVectorBackendConfig(VectorBackendQdrant)
	var got *VectorBackendConfigError
	if !errors.As(err, &got) {
		t.Fatalf("expected VectorBackendConfigError, got=%T (%v)", err, err)
	}
	if got.Code != VectorBackendConfigErrorMissingQdrantURL {
		t.Fatalf("code: want=%q got=%q", VectorBackendConfigErrorMissingQdrantURL, got.Code)
	}
}

func TestMapVectorBackendConfigError(t *testing.T) {
	err := mapVectorBackendConfigError("qdrant", &qdrant.ConfigError{Code: qdrant.ConfigErrorInvalidVectorDim})
	var got *VectorBackendConfigError
	if !errors.As(err, &got) {
		t.Fatalf("expected VectorBackendConfigError, got=%T", err)
	}
	if got.Code != VectorBackendConfigErrorInvalidQdrantVector {
		t.Fatalf("code: want=%q got=%q", VectorBackendConfigErrorInvalidQdrantVector, got.Code)
	}

	err = mapVectorBackendConfigError("qdrant", errors.New("boom"))
	if !errors.As(err, &got) || got.Code != VectorBackendConfigErrorUnknownQdrantFailure {
		t.Fatalf("unknown failure: got=%v", err)
	}
}

func TestParseVectorBackend(t *testing.T) {
	cases := map[string]VectorBackend{
		"":           VectorBackendAuto,
		"Qdrant":     VectorBackendQdrant,
		"bruteforce": VectorBackendBruteForce,
	}
	for in, want := range cases {
		got, err := ParseVectorBackend(in)
		if err != nil || got != want {
			t.Fatalf("ParseVectorBackend(%q): want=%q got=%q err=%v", in, want, got, err)
		}
	}
	if _, err := ParseVectorBackend("pinecone"); err == nil {
		t.Fatalf("pinecone: want error")
	}
}
