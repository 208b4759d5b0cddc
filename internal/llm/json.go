package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON pulls a JSON object out of a model answer. Code fences and
// surrounding prose are stripped. It reports false when no valid object
// is found.
func ExtractJSON(content string) (string, bool) {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			// drop the language tag line
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	if isObject(s) {
		return s, true
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	s = s[start : end+1]
	if isObject(s) {
		return s, true
	}
	return "", false
}

func isObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}
