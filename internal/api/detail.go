package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// errorDetail extracts the "detail" of a JSON error body.
// Validation failures carry a list of {loc, msg, type} objects; their
// messages are joined.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// errorMessage is errorDetail with the generic status fallback.
func errorMessage(body []byte, status int) string {
	if d := errorDetail(body); d != "" {
		return d
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}
