package recorder

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

// HashContent returns the hex-encoded SHA-256 of content, or "" for empty content.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// HashReport hashes the JSON form of report. Map keys are encoded in sorted
// order, so equal reports hash equally.
func HashReport(report *engine.Report) (string, error) {
	if report == nil {
		return "", nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return "", err
	}
	return HashContent(data), nil
}
