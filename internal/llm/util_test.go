package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain object", `{"score": 7, "reasoning": "ok"}`, `{"score": 7, "reasoning": "ok"}`},
		{"json fence", "```json\n{\"score\": 7}\n```", `{"score": 7}`},
		{"bare fence", "```\n{\"score\": 3}\n```", `{"score": 3}`},
		{"preamble", "Here is my evaluation:\n{\"score\": 5, \"reasoning\": \"partial\"}", `{"score": 5, "reasoning": "partial"}`},
		{"trailing text", "{\"score\": 9}\n\nLet me know if you need more.", `{"score": 9}`},
		{"braces in strings", `{"reasoning": "uses {curly} braces"}`, `{"reasoning": "uses {curly} braces"}`},
		{"escaped quotes", `Result: {"reasoning": "said \"hi\" {"}`, `{"reasoning": "said \"hi\" {"}`},
		{"no object", "  I cannot score this.  ", "I cannot score this."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", `{"k": "v"}`, `{"k": "v"}`},
		{"nested", `{"a": {"b": 1}} tail`, `{"a": {"b": 1}}`},
		{"unbalanced", `{"a": 1`, ""},
		{"empty", "", ""},
		{"not an object", "[1, 2]", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSONObject(tt.input))
		})
	}
}
