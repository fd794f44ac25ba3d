package composer

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/kalambet/mavkus/internal/engine"
)

// perMessageOverhead approximates the role and separator tokens added by
// chat formatting.
const perMessageOverhead = 4

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func sharedCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})
	return codec
}

// CountTokens returns the cl100k token count of text, falling back to
// EstimateTokens if the codec is unavailable.
func CountTokens(text string) int {
	c := sharedCodec()
	if c == nil {
		return EstimateTokens(text)
	}
	n, err := c.Count(text)
	if err != nil {
		return EstimateTokens(text)
	}
	return n
}

// CountMessages returns the approximate prompt size of msgs.
func CountMessages(msgs []engine.Message) int {
	total := 0
	for _, m := range msgs {
		total += CountTokens(m.Content) + perMessageOverhead
	}
	return total
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
