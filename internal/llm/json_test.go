package llm_test

import (
	"testing"

	"github.com/randalmurphal/appforge/internal/llm"
	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{"plain object", `{"a":1}`, `{"a":1}`, true},
		{"whitespace", "  \n{\"a\":1}\n ", `{"a":1}`, true},
		{"fenced with language", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"fenced without language", "```\n{\"a\":1}\n```", `{"a":1}`, true},
		{"surrounding prose", "Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`, true},
		{"array is rejected", `[1,2]`, "", false},
		{"broken json", `{"a":`, "", false},
		{"empty", "", "", false},
		{"prose only", "I cannot help with that.", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := llm.ExtractJSON(tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
