// Package memory はプロセス内で完結する vectorstore.Store 実装を提供する。
// 再起動で内容は失われるため、テストやデモ用途に限る。
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

type collection struct {
	meta    vectorstore.Collection
	entries []vectorstore.Entry
}

// Store はミューテックスで保護されたインメモリストア
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewStore は空のストアを作成する
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

var _ vectorstore.Store = (*Store)(nil)

func (s *Store) GetOrCreateCollection(ctx context.Context, name string) (*vectorstore.Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, failure.New(failure.ErrInvalidInput, "collection name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &collection{meta: vectorstore.Collection{
			ID:        uuid.New(),
			Name:      name,
			CreatedAt: time.Now(),
		}}
		s.collections[name] = c
	}
	return c.snapshot(), nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (mo.Option[*vectorstore.Collection], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return mo.None[*vectorstore.Collection](), nil
	}
	return mo.Some(c.snapshot()), nil
}

func (s *Store) ListCollections(ctx context.Context) ([]*vectorstore.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*vectorstore.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		list = append(list, c.snapshot())
	}
	slices.SortFunc(list, func(a, b *vectorstore.Collection) int {
		return strings.Compare(a.Name, b.Name)
	})
	return list, nil
}

func (s *Store) Append(ctx context.Context, col *vectorstore.Collection, texts []string, embeddings [][]float32) ([]string, error) {
	if err := vectorstore.ValidateAppend(col, texts, embeddings); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(col)
	if err != nil {
		return nil, err
	}

	last := c.meta.LastSeq
	ids := vectorstore.EntryIDs(last, len(texts))
	for i, text := range texts {
		c.entries = append(c.entries, vectorstore.Entry{
			ID:        ids[i],
			Seq:       last + int64(i) + 1,
			Text:      text,
			Embedding: slices.Clone(embeddings[i]),
		})
	}
	c.meta.LastSeq = last + int64(len(texts))

	return ids, nil
}

func (s *Store) Query(ctx context.Context, col *vectorstore.Collection, vector []float32, topK int) ([]vectorstore.Match, error) {
	if err := vectorstore.ValidateQuery(col, vector, topK); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.lookup(col)
	if err != nil {
		return nil, err
	}
	return vectorstore.Rank(c.entries, vector, topK)
}

func (s *Store) lookup(col *vectorstore.Collection) (*collection, error) {
	c, ok := s.collections[col.Name]
	if !ok || c.meta.ID != col.ID {
		return nil, failure.Newf(failure.ErrStore, "collection not found: %s", col.Name)
	}
	return c, nil
}

func (c *collection) snapshot() *vectorstore.Collection {
	meta := c.meta
	meta.Size = len(c.entries)
	return &meta
}
