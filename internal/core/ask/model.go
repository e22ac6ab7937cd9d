package ask

import (
	"github.com/samber/mo"
)

// AskParams は質問応答のパラメータを表す
type AskParams struct {
	Subject  string         // 参照するコレクション名（空や未作成でもよい）
	Question string         // ユーザーの質問文
	TopK     mo.Option[int] // 参照するチャンク数（デフォルト: 3）
	// OnDelta はストリーミング中の断片を受け取る（任意）
	OnDelta func(delta string)
}

// AskResult は質問応答の結果を表す
type AskResult struct {
	Answer  string            // LLMによる回答
	Sources []SourceReference // 参照したチャンク
}

// SourceReference は回答の根拠となったチャンクを表す
type SourceReference struct {
	ID      string  // エントリ識別子（id1, id2, ...）
	Score   float64 // 関連度スコア
	Excerpt string  // チャンク本文の先頭
}
