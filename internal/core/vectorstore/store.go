// Package vectorstore は Subject 単位のベクトルコレクションの契約と共通処理を定義する。
package vectorstore

import (
	"context"

	"github.com/samber/mo"

	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// Store はベクトルストアのインターフェース
//
// 連番はコレクションごとの払い出し済み最大値から続けて採番し、
// 採番と保存は同一コレクションへの書き込みに対して直列化される。
// 一度払い出した識別子は外部でエントリが削除されても再利用しない。
type Store interface {
	// GetOrCreateCollection は name のコレクションを返し、存在しなければ空で作成する
	GetOrCreateCollection(ctx context.Context, name string) (*Collection, error)

	// GetCollection は name のコレクションを作成せずに取得する
	GetCollection(ctx context.Context, name string) (mo.Option[*Collection], error)

	// ListCollections は全コレクションを名前順に返す
	ListCollections(ctx context.Context) ([]*Collection, error)

	// Append はテキストとベクトルを一括で保存し、払い出した識別子を順序通りに返す
	Append(ctx context.Context, collection *Collection, texts []string, embeddings [][]float32) ([]string, error)

	// Query は vector に近い順に最大 topK 件を返す
	Query(ctx context.Context, collection *Collection, vector []float32, topK int) ([]Match, error)
}

// ValidateAppend は Append の引数を検証する
func ValidateAppend(collection *Collection, texts []string, embeddings [][]float32) error {
	if collection == nil {
		return failure.New(failure.ErrInvalidInput, "collection is required")
	}
	if len(texts) != len(embeddings) {
		return failure.Newf(failure.ErrInvalidInput, "texts and embeddings length mismatch: %d != %d", len(texts), len(embeddings))
	}
	return nil
}

// ValidateQuery は Query の引数を検証する
func ValidateQuery(collection *Collection, vector []float32, topK int) error {
	if collection == nil {
		return failure.New(failure.ErrInvalidInput, "collection is required")
	}
	if len(vector) == 0 {
		return failure.New(failure.ErrInvalidInput, "query vector is empty")
	}
	if topK <= 0 {
		return failure.Newf(failure.ErrInvalidInput, "topK must be positive: %d", topK)
	}
	return nil
}
