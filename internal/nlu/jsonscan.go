// README: Bracket-depth scanner pulling JSON objects out of free-form model output.
package nlu

import (
	"encoding/json"
	"strings"
)

// cleanJSONString strips markdown code fences around a model answer.
func cleanJSONString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ExtractLastJSON returns the last balanced, syntactically valid JSON object in raw
// that has at least one non-empty key.
func ExtractLastJSON(raw string) (map[string]any, bool) {
	text := cleanJSONString(raw)

	var (
		last     map[string]any
		found    bool
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if depth > 0 && inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				if obj, ok := decodeObject(text[start : i+1]); ok {
					last, found = obj, true
				}
				start = -1
			}
		}
	}
	return last, found
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	for k := range obj {
		if strings.TrimSpace(k) != "" {
			return obj, true
		}
	}
	return nil, false
}
