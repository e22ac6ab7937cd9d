// Package storetest は vectorstore.Store 実装が満たすべき振る舞いを共通のテストとして提供する。
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// Factory はテストごとに空のストアを返す
type Factory func(t *testing.T) vectorstore.Store

// Run は全ての共通テストを実行する
func Run(t *testing.T, newStore Factory) {
	t.Run("GetOrCreateCollectionは冪等", func(t *testing.T) { testGetOrCreateIdempotent(t, newStore(t)) })
	t.Run("GetCollectionは作成しない", func(t *testing.T) { testGetCollectionAbsent(t, newStore(t)) })
	t.Run("識別子は連番で払い出される", func(t *testing.T) { testIdentifierMonotonicity(t, newStore(t)) })
	t.Run("Subjectごとに採番が独立", func(t *testing.T) { testSubjectIsolation(t, newStore(t)) })
	t.Run("長さ不一致のAppendは拒否", func(t *testing.T) { testAppendLengthMismatch(t, newStore(t)) })
	t.Run("空のAppendは何もしない", func(t *testing.T) { testAppendEmpty(t, newStore(t)) })
	t.Run("Queryはmin(k,size)件を返す", func(t *testing.T) { testQueryCountBound(t, newStore(t)) })
	t.Run("Queryは類似度順", func(t *testing.T) { testQueryOrdering(t, newStore(t)) })
	t.Run("並行Appendでも識別子は一意", func(t *testing.T) { testConcurrentAppend(t, newStore(t)) })
	t.Run("ListCollectionsは件数を含む", func(t *testing.T) { testListCollections(t, newStore(t)) })
}

func vectors(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range n {
		out[i] = []float32{float32(i + 1), 1, 0.5}
	}
	return out
}

func texts(prefix string, n int) []string {
	out := make([]string, n)
	for i := range n {
		out[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return out
}

func testGetOrCreateIdempotent(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	first, err := store.GetOrCreateCollection(ctx, "biology")
	require.NoError(t, err)
	second, err := store.GetOrCreateCollection(ctx, "biology")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "biology", second.Name)

	_, err = store.Append(ctx, first, texts("cell", 2), vectors(2))
	require.NoError(t, err)

	matches, err := store.Query(ctx, second, []float32{1, 1, 0.5}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	third, err := store.GetOrCreateCollection(ctx, "biology")
	require.NoError(t, err)
	assert.Equal(t, 2, third.Size)
}

func testGetCollectionAbsent(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	opt, err := store.GetCollection(ctx, "missing")
	require.NoError(t, err)
	assert.True(t, opt.IsAbsent())

	list, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = store.GetOrCreateCollection(ctx, "missing")
	require.NoError(t, err)

	opt, err = store.GetCollection(ctx, "missing")
	require.NoError(t, err)
	require.True(t, opt.IsPresent())
	assert.Equal(t, "missing", opt.MustGet().Name)
	assert.Equal(t, 0, opt.MustGet().Size)
}

func testIdentifierMonotonicity(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	col, err := store.GetOrCreateCollection(ctx, "history")
	require.NoError(t, err)

	ids, err := store.Append(ctx, col, texts("a", 3), vectors(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"id1", "id2", "id3"}, ids)

	col, err = store.GetOrCreateCollection(ctx, "history")
	require.NoError(t, err)
	ids, err = store.Append(ctx, col, texts("b", 2), vectors(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"id4", "id5"}, ids)

	matches, err := store.Query(ctx, col, []float32{1, 1, 0.5}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 5)

	seen := make(map[string]bool)
	for _, m := range matches {
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
	for _, id := range []string{"id1", "id2", "id3", "id4", "id5"} {
		assert.True(t, seen[id], "missing id %s", id)
	}
}

func testSubjectIsolation(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	physics, err := store.GetOrCreateCollection(ctx, "physics")
	require.NoError(t, err)
	chemistry, err := store.GetOrCreateCollection(ctx, "chemistry")
	require.NoError(t, err)

	ids, err := store.Append(ctx, physics, texts("p", 2), vectors(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"id1", "id2"}, ids)

	ids, err = store.Append(ctx, chemistry, texts("c", 1), vectors(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"id1"}, ids)

	matches, err := store.Query(ctx, chemistry, []float32{1, 1, 0.5}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c-1", matches[0].Text)
}

func testAppendLengthMismatch(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	col, err := store.GetOrCreateCollection(ctx, "math")
	require.NoError(t, err)

	_, err = store.Append(ctx, col, texts("m", 2), vectors(1))
	assert.ErrorIs(t, err, failure.ErrInvalidInput)

	ids, err := store.Append(ctx, col, texts("m", 1), vectors(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"id1"}, ids)
}

func testAppendEmpty(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	col, err := store.GetOrCreateCollection(ctx, "art")
	require.NoError(t, err)

	ids, err := store.Append(ctx, col, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = store.Append(ctx, col, texts("a", 1), vectors(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"id1"}, ids)
}

func testQueryCountBound(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	col, err := store.GetOrCreateCollection(ctx, "geo")
	require.NoError(t, err)

	matches, err := store.Query(ctx, col, []float32{1, 1, 0.5}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = store.Append(ctx, col, texts("g", 2), vectors(2))
	require.NoError(t, err)

	matches, err = store.Query(ctx, col, []float32{1, 1, 0.5}, 3)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	_, err = store.Append(ctx, col, texts("h", 4), vectors(4))
	require.NoError(t, err)

	matches, err = store.Query(ctx, col, []float32{1, 1, 0.5}, 3)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func testQueryOrdering(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	col, err := store.GetOrCreateCollection(ctx, "compass")
	require.NoError(t, err)

	_, err = store.Append(ctx, col,
		[]string{"east", "north", "north-east"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.8, 0.2, 0}},
	)
	require.NoError(t, err)

	matches, err := store.Query(ctx, col, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "east", matches[0].Text)
	assert.Equal(t, "id1", matches[0].ID)
	assert.Equal(t, "north-east", matches[1].Text)
	assert.Equal(t, "north", matches[2].Text)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-4)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score)
}

func testConcurrentAppend(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	col, err := store.GetOrCreateCollection(ctx, "shared")
	require.NoError(t, err)

	const writers = 8
	const perWriter = 3

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		allIDs []string
		errs   []error
	)
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := store.Append(ctx, col, texts(fmt.Sprintf("w%d", w), perWriter), vectors(perWriter))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			allIDs = append(allIDs, ids...)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, allIDs, writers*perWriter)

	seen := make(map[string]bool, len(allIDs))
	for _, id := range allIDs {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	for i := 1; i <= writers*perWriter; i++ {
		assert.True(t, seen[vectorstore.EntryID(int64(i))], "missing id%d", i)
	}
}

func testListCollections(t *testing.T, store vectorstore.Store) {
	ctx := context.Background()

	b, err := store.GetOrCreateCollection(ctx, "beta")
	require.NoError(t, err)
	_, err = store.GetOrCreateCollection(ctx, "alpha")
	require.NoError(t, err)
	_, err = store.Append(ctx, b, texts("b", 2), vectors(2))
	require.NoError(t, err)

	list, err := store.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, 0, list[0].Size)
	assert.Equal(t, "beta", list[1].Name)
	assert.Equal(t, 2, list[1].Size)
	assert.Equal(t, int64(2), list[1].LastSeq)
}
