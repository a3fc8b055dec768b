package qdrant

import (
	"errors"
	"testing"
)

func TestResolveConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("QDRANT_NAMESPACE_PREFIX", "")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.Collection != DefaultCollection {
		t.Fatalf("Collection: want=%q got=%q", DefaultCollection, cfg.Collection)
	}
	if cfg.NamespacePrefix != "lc" {
		t.Fatalf("NamespacePrefix: want=%q got=%q", "lc", cfg.NamespacePrefix)
	}
	if cfg.VectorDim != 1536 {
		t.Fatalf("VectorDim: want=%d got=%d", 1536, cfg.VectorDim)
	}
	if cfg.Timeout <= 0 {
		t.Fatalf("Timeout: want default got=%v", cfg.Timeout)
	}
}

func TestResolveConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		name string
		url  string
		dim  string
		want ConfigErrorCode
	}{
		{name: "missing url", url: "", dim: "3", want: ConfigErrorMissingURL},
		{name: "relative url", url: "qdrant:6333/x", dim: "3", want: ConfigErrorInvalidURL},
		{name: "missing dim", url: "http://qdrant:6333", dim: "", want: ConfigErrorMissingVectorDim},
		{name: "bad dim", url: "http://qdrant:6333", dim: "abc", want: ConfigErrorInvalidVectorDim},
		{name: "zero dim", url: "http://qdrant:6333", dim: "0", want: ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("QDRANT_URL", tc.url)
			t.Setenv("QDRANT_VECTOR_DIM", tc.dim)
			_, err := ResolveConfigFromEnv()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("want *ConfigError got=%T (%v)", err, err)
			}
			if cfgErr.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, cfgErr.Code)
			}
		})
	}
}
