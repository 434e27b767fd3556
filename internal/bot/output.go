// ABOUTME: Model output normalization
// ABOUTME: Unwraps structured {"answer": ...} replies, fenced or bare

package bot

import (
	"encoding/json"
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("(?s)\\A```(?:json)?\\s*(.*?)\\s*```\\z")

// normalizeModelReply unwraps a structured reply when the model answered
// with JSON carrying an "answer" field, otherwise returns the text as-is.
// Some models emit this shape when a response_form rule is active.
func normalizeModelReply(text string) string {
	if answer, ok := extractStructuredAnswer(text); ok {
		return answer
	}
	return text
}

func extractStructuredAnswer(text string) (string, bool) {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return "", false
	}

	candidate := stripped
	if m := codeFencePattern.FindStringSubmatch(stripped); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	// Try each '{' as a possible start of the JSON object; the model may
	// wrap it in prose.
	for idx := 0; idx < len(candidate); idx++ {
		if candidate[idx] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(candidate[idx:]))
		var data map[string]any
		if err := dec.Decode(&data); err != nil {
			continue
		}
		answer, ok := data["answer"].(string)
		if !ok {
			continue
		}
		if trimmed := strings.TrimSpace(answer); trimmed != "" {
			return trimmed, true
		}
	}
	return "", false
}
