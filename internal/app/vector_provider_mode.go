package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lifeapp/lifecycle-backend/internal/platform/qdrant"
)

type VectorBackend string

const (
	VectorBackendBruteForce VectorBackend = "bruteforce"
	VectorBackendQdrant     VectorBackend = "qdrant"
	VectorBackendAuto       VectorBackend = "auto"
)

func ParseVectorBackend(raw string) (VectorBackend, error) {
	switch b := VectorBackend(strings.ToLower(strings.TrimSpace(raw))); b {
	case "":
		return VectorBackendAuto, nil
	case VectorBackendBruteForce, VectorBackendQdrant, VectorBackendAuto:
		return b, nil
	default:
		return "", &VectorBackendConfigError{Code: VectorBackendConfigErrorInvalidMode, Mode: raw, Cause: fmt.Errorf("unsupported vector backend %q", raw)}
	}
}

type VectorBackendConfigErrorCode string

const (
	VectorBackendConfigErrorInvalidMode          VectorBackendConfigErrorCode = "invalid_vector_backend"
	VectorBackendConfigErrorMissingQdrantURL     VectorBackendConfigErrorCode = "missing_qdrant_url"
	VectorBackendConfigErrorInvalidQdrantURL     VectorBackendConfigErrorCode = "invalid_qdrant_url"
	VectorBackendConfigErrorMissingQdrantVector  VectorBackendConfigErrorCode = "missing_qdrant_vector_dim"
	VectorBackendConfigErrorInvalidQdrantVector  VectorBackendConfigErrorCode = "invalid_qdrant_vector_dim"
	VectorBackendConfigErrorUnknownQdrantFailure VectorBackendConfigErrorCode = "qdrant_config_error"
)

type VectorBackendConfigError struct {
	Code  VectorBackendConfigErrorCode
	Mode  string
	Cause error
}

func (e *VectorBackendConfigError) Error() string {
	if e == nil {
		return "invalid vector backend config"
	}
	return fmt.Sprintf("invalid vector backend config (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
}

func (e *VectorBackendConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type VectorBackendConfig struct {
	Backend VectorBackend
	// ModeSource is "explicit" or "auto_qdrant_url".
	ModeSource string
	Qdrant     qdrant.Config
}

// resolveVectorBackendConfig picks the similarity backend. Auto mode selects
// Qdrant only when QDRANT_URL is set; explicit qdrant mode requires a valid config.
func resolveVectorBackendConfig(mode VectorBackend) (VectorBackendConfig, error) {
	source := "explicit"
	if mode == VectorBackendAuto {
		if !qdrant.Enabled() {
			return VectorBackendConfig{Backend: VectorBackendBruteForce, ModeSource: "auto_default"}, nil
		}
		mode = VectorBackendQdrant
		source = "auto_qdrant_url"
	}
	switch mode {
	case VectorBackendBruteForce:
		return VectorBackendConfig{Backend: VectorBackendBruteForce, ModeSource: source}, nil
	case VectorBackendQdrant:
		qcfg, err := qdrant.ResolveConfigFromEnv()
		if err != nil {
			return VectorBackendConfig{}, mapVectorBackendConfigError(string(mode), err)
		}
		return VectorBackendConfig{Backend: VectorBackendQdrant, ModeSource: source, Qdrant: qcfg}, nil
	default:
		return VectorBackendConfig{}, &VectorBackendConfigError{
			Code:  VectorBackendConfigErrorInvalidMode,
			Mode:  string(mode),
			Cause: fmt.Errorf("unsupported vector backend %q", mode),
		}
	}
}

func mapVectorBackendConfigError(mode string, err error) error {
	var qerr *qdrant.ConfigError
	if errors.As(err, &qerr) {
		code := VectorBackendConfigErrorUnknownQdrantFailure
		switch qerr.Code {
		case qdrant.ConfigErrorMissingURL:
			code = VectorBackendConfigErrorMissingQdrantURL
		case qdrant.ConfigErrorInvalidURL:
			code = VectorBackendConfigErrorInvalidQdrantURL
		case qdrant.ConfigErrorMissingVectorDim:
			code = VectorBackendConfigErrorMissingQdrantVector
		case qdrant.ConfigErrorInvalidVectorDim:
			code = VectorBackendConfigErrorInvalidQdrantVector
		}
		return &VectorBackendConfigError{Code: code, Mode: mode, Cause: err}
	}
	return &VectorBackendConfigError{Code: VectorBackendConfigErrorUnknownQdrantFailure, Mode: mode, Cause: err}
}
