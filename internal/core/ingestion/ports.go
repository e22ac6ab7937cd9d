package ingestion

import (
	"context"
	"time"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
)

// 以下のインターフェースはテスト時のモック用に消費者側で定義

// Extractor は PDF からプレーンテキストを抽出する
type Extractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// BatchEmbed は入力と同じ順序でベクトルを返す
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	// MaxBatchSize は1回の BatchEmbed に渡せる最大件数
	MaxBatchSize() int
}

// Store はベクトルストアのうち取り込みで使う操作
type Store interface {
	GetOrCreateCollection(ctx context.Context, name string) (*vectorstore.Collection, error)
	Append(ctx context.Context, collection *vectorstore.Collection, texts []string, embeddings [][]float32) ([]string, error)
}

// Archive は元の PDF を保存する
type Archive interface {
	// Save は保存先を表す文字列を返す
	Save(ctx context.Context, subject string, doc Document) (string, error)
}

// Observer はステージごとの所要時間と結果を受け取る
type Observer interface {
	ObserveStage(flow, stage string, duration time.Duration, err error)
	ObserveFlow(flow string, duration time.Duration, err error)
	ObserveChunks(subject string, count int)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, string, time.Duration, error) {}
func (nopObserver) ObserveFlow(string, time.Duration, error)          {}
func (nopObserver) ObserveChunks(string, int)                         {}
