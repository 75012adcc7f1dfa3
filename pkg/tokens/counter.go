package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Counter estimates token counts for prompt budgeting. When the BPE ranks cannot be
// loaded it falls back to a four-characters-per-token heuristic.
type Counter struct {
	once     sync.Once
	model    string
	encoding *tiktoken.Tiktoken
}

// NewCounter returns a Counter for model. The encoding is loaded lazily.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	if enc := c.load(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// Estimate is the heuristic used when no encoding is available.
func Estimate(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

func (c *Counter) load() *tiktoken.Tiktoken {
	if c == nil {
		return nil
	}
	c.once.Do(func() {
		if c.model != "" {
			if enc, err := tiktoken.EncodingForModel(c.model); err == nil {
				c.encoding = enc
				return
			}
		}
		if enc, err := tiktoken.GetEncoding(defaultEncoding); err == nil {
			c.encoding = enc
		}
	})
	return c.encoding
}

// TrimToBudget keeps the longest suffix of items whose total token count fits within
// budget. A non-positive budget keeps everything.
func TrimToBudget[T any](c *Counter, items []T, text func(T) string, budget int) []T {
	if budget <= 0 || len(items) == 0 {
		return items
	}
	total := 0
	start := len(items)
	for i := len(items) - 1; i >= 0; i-- {
		cost := c.Count(text(items[i]))
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}
	return items[start:]
}
