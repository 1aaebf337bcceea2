package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmartParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{"Standard JSON", `{"gpr": 100000}`, map[string]any{"gpr": 100000.0}},
		{"Fenced JSON", "```json\n{\"noi\": 46000}\n```", map[string]any{"noi": 46000.0}},
		{"Trailing comma", `{"opex": 51000,}`, map[string]any{"opex": 51000.0}},
		{"Single quotes", `{'period': '2024-01'}`, map[string]any{"period": "2024-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			_, err := SmartParse(tt.input, &got)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSmartParse_Empty(t *testing.T) {
	var got map[string]any
	_, err := SmartParse("   ", &got)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```{\"a\":1}```"))
	assert.Equal(t, "# Title", StripCodeFence("```markdown\n# Title\n```"))
	assert.Equal(t, "plain", StripCodeFence("  plain  "))
}
