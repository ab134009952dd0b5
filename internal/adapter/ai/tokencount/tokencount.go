// Package tokencount sizes the output token budget of a translation call.
//
// Counting uses tiktoken-go with the embedded BPE ranks, so no encoder is
// ever downloaded. Non-OpenAI models are approximated with the cl100k_base
// encoding, and a character estimate covers encoder failures.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

var loaderOnce sync.Once

// HardCap bounds the budget whatever the input size.
const HardCap = 8192

// Counter counts tokens with a per-encoding cache. Safe for concurrent use.
// A failed encoder lookup is remembered too.
type Counter struct {
	mu     sync.RWMutex
	cache  map[string]*tiktoken.Tiktoken
	failed map[string]error
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	loaderOnce.Do(func() { tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader()) })
	return &Counter{cache: make(map[string]*tiktoken.Tiktoken), failed: make(map[string]error)}
}

func (c *Counter) encoding(model string) (*tiktoken.Tiktoken, error) {
	name := encodingModel(model)
	c.mu.RLock()
	enc, ok := c.cache[name]
	ferr := c.failed[name]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}
	if ferr != nil {
		return nil, ferr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.cache[name]; ok {
		return enc, nil
	}
	if err := c.failed[name]; err != nil {
		return nil, err
	}
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding", slog.String("model", model), slog.Any("error", err))
		if enc, err = tiktoken.GetEncoding("cl100k_base"); err != nil {
			c.failed[name] = err
			return nil, err
		}
	}
	c.cache[name] = enc
	return enc, nil
}

// encodingModel maps vendor model ids onto a name tiktoken knows.
func encodingModel(model string) string {
	m := strings.ToLower(model)
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	m = strings.TrimSuffix(m, ":free")
	if strings.Contains(m, "gpt-3.5") {
		return "gpt-3.5-turbo"
	}
	// gpt-4*, llama, gemini, claude, mistral and the rest share cl100k_base closely enough.
	return "gpt-4"
}

// Count returns the token count of text, or a 4-chars-per-token estimate
// when no encoder is available.
func (c *Counter) Count(text, model string) int {
	enc, err := c.encoding(model)
	if err != nil {
		slog.Warn("token encoder unavailable, estimating", slog.String("model", model), slog.Any("error", err))
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// MaxOutputTokens returns the max_tokens to request for translating text.
// Short inputs get the configured floor; long ones get twice their token
// count plus headroom, never above HardCap.
func (c *Counter) MaxOutputTokens(text, model string, floor int) int {
	need := 2*c.Count(text, model) + 64
	if need < floor {
		need = floor
	}
	if need > HardCap {
		need = HardCap
	}
	return need
}
