package echoapi

import (
	"bytes"
	"encoding/json"
)

// answersPayload accepts either a bare answer array or the wrapped
// {"answers": [...]} shape historical clients send, and returns the raw
// array for domain-level decoding.
func answersPayload(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '[' {
		return trimmed
	}
	var wrapper struct {
		Answers json.RawMessage `json:"answers"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err == nil && len(wrapper.Answers) > 0 {
		return wrapper.Answers
	}
	return trimmed
}
