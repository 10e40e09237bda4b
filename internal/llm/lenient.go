package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawResponseKey is the single field of the fallback record stored when a
// stage's model output does not parse as a JSON object.
const RawResponseKey = "raw_response"

// FallbackRecord wraps unparsable model output so the run stays auditable.
func FallbackRecord(text string) map[string]any {
	return map[string]any{RawResponseKey: text}
}

// DecodeObject leniently decodes model output into a JSON object. It strips
// markdown code fences and surrounding prose (models add both even in JSON
// mode), then validates the result is an object.
func DecodeObject(raw string) (map[string]any, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	if err := ValidateJSONAgainstSchema(objectSchema, []byte(candidate)); err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(candidate), &m); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return m, nil
}

// ParseClassification decodes the classification stage's output. Missing or
// empty keys degrade to "Unknown"; output that is not a JSON object at all is
// an error — the classification stage has no fallback record.
func ParseClassification(raw string) (Classification, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return Classification{}, fmt.Errorf("no JSON object in classification output")
	}
	if err := ValidateJSONAgainstSchema(classificationSchema, []byte(candidate)); err != nil {
		return Classification{}, fmt.Errorf("classification shape: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(candidate), &m); err != nil {
		return Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	return Classification{
		BillType:    firstString(m["bill_type"]),
		BillSubtype: firstString(m["bill_subtype"]),
	}, nil
}

// firstString normalizes a value that may be a string or a list of strings.
// Lists take their first element; anything empty or unusable becomes "".
func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) == 0 {
			return ""
		}
		if s, ok := t[0].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// extractJSON returns the outermost {...} span of s, tolerating code fences
// and leading/trailing prose. Empty string when no braces are found.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
