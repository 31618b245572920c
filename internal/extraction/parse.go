package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// stripCodeFence removes markdown code fences models like to wrap JSON in
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseExtractionJSON turns a backend text response into a RawExtraction.
// Values are decoded as-is (numbers as json.Number); typing and validation
// happen in the invoice normalizer.
func parseExtractionJSON(text string) (*RawExtraction, error) {
	text = stripCodeFence(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("%w: unterminated JSON object", ErrMalformedResponse)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text[startIdx : endIdx+1])))
	dec.UseNumber()

	fields := make(map[string]any)
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	raw := &RawExtraction{Fields: fields}
	if v, ok := fields["isInvoice"]; ok {
		raw.NotAnInvoice = isFalse(v)
		delete(fields, "isInvoice")
	}
	return raw, nil
}

// isFalse reports an explicit false, tolerating the string spellings models
// sometimes produce
func isFalse(v any) bool {
	switch t := v.(type) {
	case bool:
		return !t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "false" || s == "no"
	}
	return false
}
