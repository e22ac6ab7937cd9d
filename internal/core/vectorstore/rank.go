package vectorstore

import (
	"cmp"
	"slices"

	"github.com/hupe1980/vecgo/distance"

	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// Cosine は2つのベクトルのコサイン類似度を返す。ノルムが0なら0
func Cosine(a, b []float32) float64 {
	na, ok := distance.NormalizeL2Copy(a)
	if !ok {
		return 0
	}
	nb, ok := distance.NormalizeL2Copy(b)
	if !ok {
		return 0
	}
	return float64(distance.Dot(na, nb))
}

// Rank は全件走査でコサイン類似度を計算し、上位 topK 件を返す。
// 同点の場合は連番の若い順
func Rank(entries []Entry, vector []float32, topK int) ([]Match, error) {
	query, ok := distance.NormalizeL2Copy(vector)
	if !ok {
		return nil, failure.New(failure.ErrInvalidInput, "query vector has zero norm")
	}

	type scored struct {
		entry Entry
		score float64
	}
	candidates := make([]scored, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != len(query) {
			return nil, failure.Newf(failure.ErrStore, "dimension mismatch for %s: %d != %d", e.ID, len(e.Embedding), len(query))
		}
		var score float64
		if normalized, ok := distance.NormalizeL2Copy(e.Embedding); ok {
			score = float64(distance.Dot(query, normalized))
		}
		candidates = append(candidates, scored{entry: e, score: score})
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.entry.Seq, b.entry.Seq)
	})

	n := min(topK, len(candidates))
	matches := make([]Match, 0, n)
	for _, c := range candidates[:n] {
		matches = append(matches, Match{
			ID:    c.entry.ID,
			Text:  c.entry.Text,
			Score: c.score,
		})
	}
	return matches, nil
}

// Texts は問い合わせ結果の本文のみを順序通りに返す
func Texts(matches []Match) []string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return texts
}
