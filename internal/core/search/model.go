package search

import (
	"github.com/samber/mo"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
)

// SearchParams は検索パラメータを表す
type SearchParams struct {
	Subject string         // 検索対象のコレクション名
	Query   string         // 検索クエリ
	TopK    mo.Option[int] // 取得件数（未指定時は vectorstore.DefaultTopK）
}

// SearchResult はベクトル検索の結果を表す
type SearchResult struct {
	Subject string
	// Found はコレクションが存在したかどうか
	Found bool
	// Matches は類似度の降順に並んだ検索結果
	Matches []vectorstore.Match
}

// Texts は検索結果のチャンクテキストを順序どおりに返す
func (r *SearchResult) Texts() []string {
	if r == nil {
		return nil
	}
	return vectorstore.Texts(r.Matches)
}
