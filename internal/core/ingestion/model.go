package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// Document はアップロードされた PDF を表す。取り込み処理の間だけ保持する
type Document struct {
	Filename string // 元のファイル名
	Content  []byte // PDF のバイト列
}

// IngestParams は取り込み処理のパラメータ
type IngestParams struct {
	Subject  string   // 保存先コレクション名
	Document Document // 取り込む PDF
}

// IngestResult は取り込み処理の結果
type IngestResult struct {
	RunID       uuid.UUID     // 実行ID（ログ相関用）
	Filename    string        // 取り込んだファイル名
	Subject     string        // 保存先コレクション名
	ArchivedAt  string        // 元ファイルの保存先（アーカイブ無効時は空）
	IDs         []string      // 払い出された識別子
	ChunkCount  int           // 保存したチャンク数
	TextLength  int           // 抽出したテキストの文字数
	TotalTokens int           // チャンクの合計トークン数
	Duration    time.Duration // 処理時間
}

// Metadata は Embedding モデルの情報
type Metadata struct {
	ModelName string
	Dimension int
}
