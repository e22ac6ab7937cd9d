package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
	"github.com/jinford/pdf-rag/internal/core/vectorstore/storetest"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Store {
		return NewStore()
	})
}

func TestStore_UnknownCollection(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	ghost := &vectorstore.Collection{ID: uuid.New(), Name: "ghost"}
	_, err := store.Append(ctx, ghost, []string{"a"}, [][]float32{{1}})
	assert.ErrorIs(t, err, failure.ErrStore)

	_, err = store.Query(ctx, ghost, []float32{1}, 3)
	assert.ErrorIs(t, err, failure.ErrStore)
}

func TestStore_RejectsBlankName(t *testing.T) {
	_, err := NewStore().GetOrCreateCollection(context.Background(), "  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
}
