package metrics

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"github.com/hupe1980/adkpatterns/model"
)

// TokenCounter estimates token counts with a tiktoken encoding. Every
// provider is approximated with the GPT-4 encoding. A nil counter returns
// zero.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter returns a counter using the GPT-4 encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("create tokenizer codec: %w", err)
	}

	return &TokenCounter{codec: codec}, nil
}

// Count returns the number of tokens in text. It falls back to four
// characters per token when encoding fails.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || text == "" {
		return 0
	}

	n, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}

	return n
}

// CountRequest estimates the prompt size of a model request: instructions
// plus every text part.
func (tc *TokenCounter) CountRequest(req *model.Request) int {
	if tc == nil || req == nil {
		return 0
	}

	n := tc.Count(req.Instructions)
	for _, c := range req.Contents {
		n += tc.Count(c.Text())
	}

	return n
}
