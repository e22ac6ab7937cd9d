// Package sqlite は単一ファイルの SQLite に永続化する vectorstore.Store 実装を提供する。
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	_ "modernc.org/sqlite"

	"github.com/jinford/pdf-rag/internal/core/vectorstore"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

// DefaultPath は保存先ファイルの既定パス
const DefaultPath = "./vecdb/collections.db"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store は SQLite をバックエンドにしたベクトルストア
//
// ベクトルは little-endian の float32 BLOB として保存し、問い合わせ時に全件を読み出して
// コサイン類似度で順位付けする。
type Store struct {
	db   *sql.DB
	path string

	// 同一プロセス内の書き込みを直列化する。プロセス間は BEGIN IMMEDIATE で直列化される
	writeMu sync.Mutex
}

// NewStore は path のデータベースを開き、マイグレーションを適用する
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, failure.Wrap(failure.ErrStore, "create data directory", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, failure.Wrap(failure.ErrStore, "open database", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, failure.Wrap(failure.ErrStore, "run migrations", err)
	}

	return s, nil
}

// Close はデータベース接続を閉じる
func (s *Store) Close() error {
	return s.db.Close()
}

// Path はデータベースファイルのパスを返す
func (s *Store) Path() string {
	return s.path
}

var _ vectorstore.Store = (*Store)(nil)

// migrate は未適用のマイグレーションを1つのトランザクションで適用する。
// _txlock=immediate により開始時点で書き込みロックを取るため、同じファイルを同時に開いても適用は1回になる
func (s *Store) migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, err := strconv.Atoi(strings.SplitN(name, "_", 2)[0])
		if err != nil || version <= current {
			continue
		}

		content, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		slog.Debug("applying sqlite migration", "file", name, "version", version)

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	return nil
}

const selectCollection = `
SELECT c.id, c.name, c.last_seq, c.created_at,
       (SELECT COUNT(*) FROM entries e WHERE e.collection_id = c.id)
FROM collections c`

func (s *Store) GetOrCreateCollection(ctx context.Context, name string) (*vectorstore.Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, failure.New(failure.ErrInvalidInput, "collection name is required")
	}

	s.writeMu.Lock()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (id, name, last_seq, created_at) VALUES (?, ?, 0, ?)",
		uuid.NewString(), name, time.Now().UTC().Format(time.RFC3339Nano),
	)
	s.writeMu.Unlock()
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
	row := s.db.QueryRowContext(ctx, selectCollection+" WHERE c.name = ?", name)
	col, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[*vectorstore.Collection](), nil
	}
	if err != nil {
		return mo.None[*vectorstore.Collection](), failure.Wrap(failure.ErrStore, "get collection", err)
	}
	return mo.Some(col), nil
}

func (s *Store) ListCollections(ctx context.Context) ([]*vectorstore.Collection, error) {
	rows, err := s.db.QueryContext(ctx, selectCollection+" ORDER BY c.name")
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

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, failure.Wrap(failure.ErrStore, "begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var last int64
	err = tx.QueryRowContext(ctx,
		"UPDATE collections SET last_seq = last_seq + ? WHERE id = ? RETURNING last_seq",
		len(texts), col.ID.String(),
	).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, failure.Newf(failure.ErrStore, "collection not found: %s", col.Name)
	}
	if err != nil {
		return nil, failure.Wrap(failure.ErrStore, "reserve identifiers", err)
	}
	first := last - int64(len(texts))

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO entries (collection_id, seq, entry_id, content, embedding) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return nil, failure.Wrap(failure.ErrStore, "prepare insert", err)
	}
	defer stmt.Close()

	ids := vectorstore.EntryIDs(first, len(texts))
	for i, text := range texts {
		seq := first + int64(i) + 1
		if _, err := stmt.ExecContext(ctx, col.ID.String(), seq, ids[i], text, float32SliceToBytes(embeddings[i])); err != nil {
			return nil, failure.Wrap(failure.ErrStore, "insert entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, failure.Wrap(failure.ErrStore, "commit transaction", err)
	}
	return ids, nil
}

func (s *Store) Query(ctx context.Context, col *vectorstore.Collection, vector []float32, topK int) ([]vectorstore.Match, error) {
	if err := vectorstore.ValidateQuery(col, vector, topK); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, entry_id, content, embedding FROM entries WHERE collection_id = ? ORDER BY seq",
		col.ID.String(),
	)
	if err != nil {
		return nil, failure.Wrap(failure.ErrStore, "query entries", err)
	}
	defer rows.Close()

	var entries []vectorstore.Entry
	for rows.Next() {
		var (
			e    vectorstore.Entry
			blob []byte
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Text, &blob); err != nil {
			return nil, failure.Wrap(failure.ErrStore, "scan entry", err)
		}
		e.Embedding = bytesToFloat32Slice(blob)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Wrap(failure.ErrStore, "iterate entries", err)
	}

	return vectorstore.Rank(entries, vector, topK)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*vectorstore.Collection, error) {
	var (
		id, createdAt string
		col           vectorstore.Collection
	)
	if err := row.Scan(&id, &col.Name, &col.LastSeq, &createdAt, &col.Size); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid collection id %q: %w", id, err)
	}
	col.ID = parsed

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		col.CreatedAt = t
	}
	return &col, nil
}

// float32SliceToBytes はベクトルを little-endian の BLOB に変換する
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
