package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodingModel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gpt-4o-mini", "gpt-4"},
		{"openai/gpt-3.5-turbo", "gpt-3.5-turbo"},
		{"meta-llama/llama-3.1-8b-instruct:free", "gpt-4"},
		{"claude-3-5-haiku-20241022", "gpt-4"},
		{"gemini-1.5-flash", "gpt-4"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, encodingModel(tt.input))
		})
	}
}

func TestCount(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	n := c.Count("The quick brown fox jumps over the lazy dog.", "gpt-4o-mini")
	assert.GreaterOrEqual(t, n, 8)
	assert.LessOrEqual(t, n, 14)
	assert.Equal(t, 0, c.Count("", "llama-3.1-8b-instant"))
}

func TestMaxOutputTokens(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	assert.Equal(t, 1000, c.MaxOutputTokens("Hello", "gpt-4o-mini", 1000))

	long := strings.Repeat("translation ", 1500)
	got := c.MaxOutputTokens(long, "gpt-4o-mini", 1000)
	assert.Greater(t, got, 1000)
	assert.LessOrEqual(t, got, HardCap)

	huge := strings.Repeat("word ", 20000)
	assert.Equal(t, HardCap, c.MaxOutputTokens(huge, "claude-3-5-haiku-20241022", 1000))
}

func TestCount_EmbeddedRanksAndCache(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	assert.Equal(t, 2, c.Count("Hello world", "llama-3.1-8b-instant"))
	assert.Equal(t, 2, c.Count("Hello world", "gemini-1.5-flash"))
	c.mu.RLock()
	defer c.mu.RUnlock()
	assert.Len(t, c.cache, 1, "every non-OpenAI model shares one encoder")
	assert.Empty(t, c.failed)
}

func TestCount_RemembersFailure(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	c.failed["gpt-4"] = assert.AnError
	assert.Equal(t, 3, c.Count("Hello world", "gpt-4o"))
	_, err := c.encoding("gpt-4o")
	assert.ErrorIs(t, err, assert.AnError)
}
