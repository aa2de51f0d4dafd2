package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// boilerplateTokens are literal fragments the upstream model is known to
// inject around or inside the JSON payload. The list targets observed
// production output only; this is not a general sanitizer.
var boilerplateTokens = []string{
	"Document:",
	"Here is the analysis:",
}

// ExtractObject returns the first balanced top-level JSON object in blob,
// including its bounding braces. It uses an explicit stack of opening-brace
// indices; the object ends where the stack first re-empties.
func ExtractObject(blob string) (string, error) {
	start := strings.IndexByte(blob, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	var stack []int
	for i := start; i < len(blob); i++ {
		switch blob[i] {
		case '{':
			stack = append(stack, i)
		case '}':
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return blob[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("no complete JSON object found in response")
}

// cleanObjectText is the best-effort cleanup pass applied to an extracted
// object before decoding: markdown fences stripped, embedded line breaks
// collapsed to spaces, doubled quote escapes undone, and known boilerplate
// tokens removed.
func cleanObjectText(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, `\\"`, `\"`)
	for _, token := range boilerplateTokens {
		s = strings.ReplaceAll(s, token, "")
	}
	return strings.TrimSpace(s)
}

// Extractor turns a fully-buffered model response into an AnalysisRecord.
// The field table is fixed at construction so tests can substitute their
// own; production wiring uses DefaultFieldSpecs.
type Extractor struct {
	specs []FieldSpec
}

// NewExtractor creates an extractor with the given field table.
func NewExtractor(specs []FieldSpec) *Extractor {
	return &Extractor{specs: specs}
}

// Extract isolates the first JSON object in blob, cleans and decodes it,
// and normalizes the result into a record. Decode errors carry the original
// response text because upstream payloads are non-deterministic and the raw
// content is the only way to diagnose them. Valid JSON that lacks expected
// keys does not fail; missing fields fall back to their defaults.
func (e *Extractor) Extract(blob string) (AnalysisRecord, error) {
	raw, err := ExtractObject(blob)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("%w (response: %s)", err, blob)
	}

	cleaned := cleanObjectText(raw)
	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return AnalysisRecord{}, fmt.Errorf("failed to parse analysis JSON: %w (response: %s)", err, blob)
	}

	return newRecord(flattenFields(obj), e.specs), nil
}
