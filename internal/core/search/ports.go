package search

import (
	"context"

	"github.com/samber/mo"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
)

// 以下のインターフェースはテスト時のモック用に消費者側で定義

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Repository はベクトルストアのうち検索で使う操作
type Repository interface {
	GetCollection(ctx context.Context, name string) (mo.Option[*vectorstore.Collection], error)
	Query(ctx context.Context, collection *vectorstore.Collection, vector []float32, topK int) ([]vectorstore.Match, error)
}
