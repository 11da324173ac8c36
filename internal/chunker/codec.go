package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Codec converts between text and model tokens. The production codec wraps
// tiktoken; tests substitute a deterministic in-memory codec.
type Codec interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TiktokenCodec tokenizes with one of the OpenAI BPE encodings.
type TiktokenCodec struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCodec(encoding string) (*TiktokenCodec, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &TiktokenCodec{enc: enc}, nil
}

func (c *TiktokenCodec) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

func (c *TiktokenCodec) Decode(tokens []int) string {
	return c.enc.Decode(tokens)
}
