package steps

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ContentHash is the hex sha256 of the canonical JSON of c. Map keys are
// sorted by encoding/json and nil collections encode as empty ones, so equal
// content always hashes equally.
func ContentHash(c Content) (string, error) {
	if c.Images == nil {
		c.Images = []string{}
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
