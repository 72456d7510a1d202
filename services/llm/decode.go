package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first complete JSON object or array out of an LLM
// response. Models wrap structured output in markdown fences, preambles
// ("Here is the analysis:") and trailing prose; this scans each '{' or '['
// candidate and returns the first span that parses as a standalone JSON
// value. Strings containing braces and escaped quotes are handled by the
// real parser rather than by counting characters.
func ExtractJSON(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response, no JSON to extract")
	}

	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != '{' && trimmed[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(trimmed[i:]))
		var value json.RawMessage
		if err := dec.Decode(&value); err == nil {
			return value, nil
		}
	}

	return nil, fmt.Errorf("no JSON object found in response")
}

// DecodeJSON extracts the first JSON value from an LLM response and
// unmarshals it into T. Used by every structured pipeline step.
func DecodeJSON[T any](raw string) (T, error) {
	var out T
	data, err := ExtractJSON(raw)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode structured response: %w", err)
	}
	return out, nil
}
