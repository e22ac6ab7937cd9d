package vectorstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTopK は問い合わせ件数の既定値
const DefaultTopK = 3

// Collection は Subject ごとに分離された永続コレクションを表す
type Collection struct {
	ID        uuid.UUID // コレクションID
	Name      string    // Subject 名
	Size      int       // 取得時点のエントリ数
	LastSeq   int64     // 払い出し済みの最大連番
	CreatedAt time.Time // 作成日時
}

// Entry はコレクションに保存された1件のチャンク
type Entry struct {
	ID        string    // "id<連番>" 形式の識別子
	Seq       int64     // 1 始まりの連番
	Text      string    // チャンク本文
	Embedding []float32 // チャンクのベクトル
}

// Match は問い合わせ結果の1件
type Match struct {
	ID    string  // エントリ識別子
	Text  string  // チャンク本文
	Score float64 // コサイン類似度（大きいほど近い）
}

// EntryID は連番から識別子を組み立てる
func EntryID(seq int64) string {
	return fmt.Sprintf("id%d", seq)
}

// EntryIDs は last+1 から n 件分の識別子を返す
func EntryIDs(last int64, n int) []string {
	ids := make([]string, n)
	for i := range n {
		ids[i] = EntryID(last + int64(i) + 1)
	}
	return ids
}
