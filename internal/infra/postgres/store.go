// Package postgres は pgvector 拡張を使った vectorstore.Store 実装を提供する。
package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
	"github.com/jinford/pdf-rag/internal/platform/database"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// Store は vectorstore.Store を実装する PostgreSQL ストア
//
// 採番は collections.last_seq を UPDATE ... RETURNING で進めて行い、同じトランザクション内で
// エントリを挿入する。行ロックにより同一コレクションへの Append は直列化される。
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// StoreOption は Store のオプション設定
type StoreOption func(*Store)

// WithStoreLogger はロガーを設定する
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore は新しい Store を作成する
func NewStore(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// コンパイル時の型チェック
var _ vectorstore.Store = (*Store)(nil)

const selectCollection = `
SELECT c.id, c.name, c.last_seq, c.created_at,
       (SELECT COUNT(*) FROM entries e WHERE e.collection_id = c.id)
FROM collections c`

func (s *Store) GetOrCreateCollection(ctx context.Context, name string) (*vectorstore.Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, failure.New(failure.ErrInvalidInput, "collection name is required")
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO collections (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
		UUIDToPgtype(uuid.New()), name,
	)
	if err != nil {
		return nil, failure.Wrap(failure.ErrStore, "create collection", err)
	}

	opt, err := s.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if opt.IsAbsent() {
		return nil, failure.Newf(failure.ErrStore, "collection vanished after create: %s", name)
	}
	return opt.MustGet(), nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (mo.Option[*vectorstore.Collection], error) {
	col, err := scanCollection(s.pool.QueryRow(ctx, selectCollection+" WHERE c.name = $1", name))
	if errors.Is(err, pgx.ErrNoRows) {
		return mo.None[*vectorstore.Collection](), nil
	}
	if err != nil {
		return mo.None[*vectorstore.Collection](), failure.Wrap(failure.ErrStore, "get collection", err)
	}
	return mo.Some(col), nil
}

func (s *Store) ListCollections(ctx context.Context) ([]*vectorstore.Collection, error) {
	rows, err := s.pool.Query(ctx, selectCollection+" ORDER BY c.name")
	if err != nil {
		return nil, failure.Wrap(failure.ErrStore, "list collections", err)
	}
	defer rows.Close()

	var list []*vectorstore.Collection
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, failure.Wrap(failure.ErrStore, "scan collection", err)
		}
		list = append(list, col)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Wrap(failure.ErrStore, "iterate collections", err)
	}
	return list, nil
}

func (s *Store) Append(ctx context.Context, col *vectorstore.Collection, texts []string, embeddings [][]float32) ([]string, error) {
	if err := vectorstore.ValidateAppend(col, texts, embeddings); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return []string{}, nil
	}

	ids, err := database.Transact(ctx, s.pool, func(tx pgx.Tx) ([]string, error) {
		var last int64
		err := tx.QueryRow(ctx,
			"UPDATE collections SET last_seq = last_seq + $1 WHERE id = $2 RETURNING last_seq",
			int64(len(texts)), UUIDToPgtype(col.ID),
		).Scan(&last)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, failure.Newf(failure.ErrStore, "collection not found: %s", col.Name)
		}
		if err != nil {
			return nil, failure.Wrap(failure.ErrStore, "reserve identifiers", err)
		}
		first := last - int64(len(texts))
		ids := vectorstore.EntryIDs(first, len(texts))

		batch := &pgx.Batch{}
		for i, text := range texts {
			batch.Queue(
				"INSERT INTO entries (collection_id, seq, entry_id, content, embedding) VALUES ($1, $2, $3, $4, $5)",
				UUIDToPgtype(col.ID), first+int64(i)+1, ids[i], text, pgvector.NewVector(embeddings[i]),
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range texts {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return nil, failure.Wrap(failure.ErrStore, "insert entry", err)
			}
		}
		if err := br.Close(); err != nil {
			return nil, failure.Wrap(failure.ErrStore, "close batch", err)
		}
		return ids, nil
	})
	if err != nil {
		if failure.KindOf(err) == nil {
			return nil, failure.Wrap(failure.ErrStore, "append entries", err)
		}
		return nil, err
	}

	s.logger.Debug("entries appended", "collection", col.Name, "count", len(ids))
	return ids, nil
}

func (s *Store) Query(ctx context.Context, col *vectorstore.Collection, vector []float32, topK int) ([]vectorstore.Match, error) {
	if err := vectorstore.ValidateQuery(col, vector, topK); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT entry_id, content, 1 - (embedding <=> $2) AS score
		FROM entries
		WHERE collection_id = $1
		ORDER BY embedding <=> $2, seq
		LIMIT $3`,
		UUIDToPgtype(col.ID), pgvector.NewVector(vector), topK,
	)
	if err != nil {
		return nil, failure.Wrap(failure.ErrStore, "query entries", err)
	}
	defer rows.Close()

	matches := make([]vectorstore.Match, 0, topK)
	for rows.Next() {
		var m vectorstore.Match
		if err := rows.Scan(&m.ID, &m.Text, &m.Score); err != nil {
			return nil, failure.Wrap(failure.ErrStore, "scan entry", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Wrap(failure.ErrStore, "iterate entries", err)
	}
	return matches, nil
}

func scanCollection(row pgx.Row) (*vectorstore.Collection, error) {
	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
		size      int64
		col       vectorstore.Collection
	)
	if err := row.Scan(&id, &col.Name, &col.LastSeq, &createdAt, &size); err != nil {
		return nil, err
	}
	col.ID = PgtypeToUUID(id)
	col.CreatedAt = PgtypeToTime(createdAt)
	col.Size = int(size)
	return &col, nil
}
