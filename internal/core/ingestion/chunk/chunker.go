package chunk

import (
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

const (
	// DefaultSize はチャンクの既定文字数
	DefaultSize = 1000
	// DefaultOverlap は隣接チャンク間で共有する既定文字数
	DefaultOverlap = 150
)

// Config はチャンク分割の設定
type Config struct {
	Size    int // 1チャンクあたりの最大文字数（rune 単位）
	Overlap int // 直前のチャンクと共有する文字数
}

// DefaultConfig はデフォルトのチャンク設定を返す
func DefaultConfig() Config {
	return Config{
		Size:    DefaultSize,
		Overlap: DefaultOverlap,
	}
}

// Validate は設定値を検証する。Overlap >= Size は窓が進まないため拒否する
func (c Config) Validate() error {
	if c.Size <= 0 {
		return failure.Newf(failure.ErrConfiguration, "chunk size must be positive: %d", c.Size)
	}
	if c.Overlap < 0 {
		return failure.Newf(failure.ErrConfiguration, "chunk overlap must not be negative: %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return failure.Newf(failure.ErrConfiguration, "chunk overlap (%d) must be smaller than chunk size (%d)", c.Overlap, c.Size)
	}
	return nil
}

// Chunk はテキストから切り出した1つの窓
type Chunk struct {
	Ordinal int    // 0 始まりの文書内順序
	Start   int    // 開始位置（rune オフセット、含む）
	End     int    // 終了位置（rune オフセット、含まない）
	Text    string // チャンク本文
	Tokens  int    // TokenCounter 未設定時は 0
}

// TokenCounter はトークン数の計測インターフェース
type TokenCounter interface {
	CountTokens(text string) int
}

// Chunker は固定長の重なり付き窓でテキストを分割する
type Chunker struct {
	config       Config
	tokenCounter TokenCounter
}

// Option は Chunker のオプション設定
type Option func(*Chunker)

// WithTokenCounter は各チャンクのトークン数を計測する
func WithTokenCounter(counter TokenCounter) Option {
	return func(c *Chunker) {
		c.tokenCounter = counter
	}
}

// NewChunker は設定を検証して Chunker を作成する
func NewChunker(cfg Config, opts ...Option) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Chunker{config: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config は Chunker の設定を返す
func (c *Chunker) Config() Config {
	return c.config
}

// Split はテキストを Size 文字の窓に分割し、Size-Overlap 文字ずつ進める。
// 最後の窓は短くなりうる。空文字列の場合はチャンクを返さない
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	step := c.config.Size - c.config.Overlap
	chunks := make([]Chunk, 0, estimateCount(n, c.config))

	for start := 0; ; start += step {
		end := min(start+c.config.Size, n)
		body := string(runes[start:end])

		ch := Chunk{
			Ordinal: len(chunks),
			Start:   start,
			End:     end,
			Text:    body,
		}
		if c.tokenCounter != nil {
			ch.Tokens = c.tokenCounter.CountTokens(body)
		}
		chunks = append(chunks, ch)

		if end == n {
			break
		}
	}

	return chunks
}

// estimateCount は ceil((n-overlap)/(size-overlap)) を返す
func estimateCount(n int, cfg Config) int {
	if n <= cfg.Overlap {
		return 1
	}
	step := cfg.Size - cfg.Overlap
	return (n - cfg.Overlap + step - 1) / step
}

// Texts はチャンク本文のみを順序通りに返す
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return texts
}
