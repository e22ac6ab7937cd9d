package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
	"github.com/jinford/pdf-rag/internal/core/vectorstore/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "vec", "collections.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Store {
		return newTestStore(t)
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "collections.db")

	store, err := NewStore(ctx, path)
	require.NoError(t, err)

	col, err := store.GetOrCreateCollection(ctx, "law")
	require.NoError(t, err)
	ids, err := store.Append(ctx, col, []string{"article 1", "article 2"}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"id1", "id2"}, ids)
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	col2, err := reopened.GetOrCreateCollection(ctx, "law")
	require.NoError(t, err)
	assert.Equal(t, col.ID, col2.ID)
	assert.Equal(t, 2, col2.Size)

	ids, err = reopened.Append(ctx, col2, []string{"article 3"}, [][]float32{{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"id3"}, ids)

	matches, err := reopened.Query(ctx, col2, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "article 2", matches[0].Text)
}

func TestNewStore_ConcurrentFirstOpen(t *testing.T) {
	ctx := context.Background()

	for round := range 10 {
		path := filepath.Join(t.TempDir(), fmt.Sprintf("round%d", round), "collections.db")

		const openers = 4
		var wg sync.WaitGroup
		errs := make([]error, openers)
		stores := make([]*Store, openers)
		for i := range openers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				stores[i], errs[i] = NewStore(ctx, path)
			}()
		}
		wg.Wait()

		for i := range openers {
			require.NoError(t, errs[i], "round %d opener %d", round, i)
		}

		var version, applied int
		require.NoError(t, stores[0].db.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations").Scan(&version, &applied))
		assert.Equal(t, 1, version)
		assert.Equal(t, 1, applied)

		for _, s := range stores {
			require.NoError(t, s.Close())
		}
	}
}

func TestStore_IdentifiersNotReusedAfterExternalDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	col, err := store.GetOrCreateCollection(ctx, "notes")
	require.NoError(t, err)
	_, err = store.Append(ctx, col, []string{"a", "b", "c"}, [][]float32{{1}, {1}, {1}})
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx, "DELETE FROM entries WHERE entry_id = 'id3'")
	require.NoError(t, err)

	ids, err := store.Append(ctx, col, []string{"d"}, [][]float32{{1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"id4"}, ids)
}

func TestFloat32BlobRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
