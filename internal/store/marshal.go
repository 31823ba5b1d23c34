package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalJSON converts v to compact JSON TEXT for storage.
// HTML escaping is disabled so stored payloads read the way they were sent.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// rawOrEmpty returns data as TEXT, mapping empty payloads to "{}".
func rawOrEmpty(data []byte) string {
	if len(bytes.TrimSpace(data)) == 0 {
		return "{}"
	}
	return string(data)
}
