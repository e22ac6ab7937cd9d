package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/pdf-rag/internal/core/ingestion"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		filename string
		want     string
		wantErr  bool
	}{
		{name: "通常", subject: "physics", filename: "notes.pdf", want: "physics/notes.pdf"},
		{name: "ディレクトリを含むファイル名", subject: "physics", filename: "../../etc/notes.pdf", want: "physics/notes.pdf"},
		{name: "区切り文字を含むSubject", subject: "a/b", filename: "x.pdf", want: "a_b/x.pdf"},
		{name: "Subject未指定", subject: " ", filename: "x.pdf", wantErr: true},
		{name: "ファイル名が親ディレクトリ", subject: "s", filename: "..", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := objectName(tt.subject, tt.filename)
			if tt.wantErr {
				assert.ErrorIs(t, err, failure.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalArchive_Save(t *testing.T) {
	dir := t.TempDir()
	archive := NewLocalArchive(dir)
	ctx := context.Background()

	loc, err := archive.Save(ctx, "physics", ingestion.Document{Filename: "/tmp/uploads/notes.pdf", Content: []byte("%PDF-1.4 v1")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "physics", "notes.pdf"), loc)

	got, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 v1", string(got))

	// 同名ファイルは上書きされ、一時ファイルは残らない
	_, err = archive.Save(ctx, "physics", ingestion.Document{Filename: "notes.pdf", Content: []byte("%PDF-1.4 v2")})
	require.NoError(t, err)
	got, err = os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 v2", string(got))

	entries, err := os.ReadDir(filepath.Join(dir, "physics"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewLocalArchive_DefaultDir(t *testing.T) {
	assert.Equal(t, DefaultLocalDir, NewLocalArchive("").Dir())
}

// fakeS3 は minio-go が送るリクエストのうちバケット確認・作成・PUT だけを扱う
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.Trim(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	_, _ = io.Copy(io.Discard, r.Body)

	switch {
	case r.Method == http.MethodHead && len(parts) == 1:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && len(parts) == 1:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && len(parts) == 2:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.objects[bucket+"/"+parts[1]]++
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestS3Archive_Save(t *testing.T) {
	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string]int{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	archive, err := NewS3Archive(ctx, S3Config{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "pdfs",
		Region:    "us-east-1",
		Prefix:    "uploads",
	})
	require.NoError(t, err)
	assert.True(t, fake.buckets["pdfs"])

	loc, err := archive.Save(ctx, "physics", ingestion.Document{Filename: "notes.pdf", Content: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "s3://pdfs/uploads/physics/notes.pdf", loc)
	assert.Equal(t, 1, fake.objects["pdfs/uploads/physics/notes.pdf"])
}

func TestS3Archive_Save_ExistingBucket(t *testing.T) {
	fake := &fakeS3{buckets: map[string]bool{"pdfs": true}, objects: map[string]int{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	archive, err := NewS3Archive(ctx, S3Config{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "pdfs",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	loc, err := archive.Save(ctx, "history", ingestion.Document{Filename: "../wars.pdf", Content: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "s3://pdfs/history/wars.pdf", loc)
	assert.Equal(t, 1, fake.objects["pdfs/history/wars.pdf"])
}

func TestNewS3Archive_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewS3Archive(context.Background(), S3Config{Bucket: "b"})
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}
