package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenCounter は tiktoken を利用した TokenCounter 実装
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter は cl100k_base エンコーディングで TokenCounter を作成する
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

// CountTokens はテキストのトークン数を返す
func (t *TiktokenCounter) CountTokens(text string) int {
	if t == nil || t.encoding == nil {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

var _ TokenCounter = (*TiktokenCounter)(nil)
