package ask

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/pdf-rag/internal/core/search"
	"github.com/jinford/pdf-rag/internal/infra/memory"
	"github.com/jinford/pdf-rag/internal/shared/failure"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

// stubStream は事前に用意した断片を順に返す
type stubStream struct {
	deltas []string
	pos    int
	err    error
	closed bool
}

func (s *stubStream) Next() bool {
	if s.pos >= len(s.deltas) {
		return false
	}
	s.pos++
	return true
}

func (s *stubStream) Delta() string { return s.deltas[s.pos-1] }
func (s *stubStream) Err() error    { return s.err }
func (s *stubStream) Close() error {
	s.closed = true
	return nil
}

// stubLLM はプロンプトを記録し、応答を組み立てる
type stubLLM struct {
	prompt  string
	respond func(prompt string) []string
	stream  *stubStream
	err     error
	block   bool
}

func (l *stubLLM) StreamCompletion(ctx context.Context, prompt string) (CompletionStream, error) {
	l.prompt = prompt
	if l.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if l.err != nil {
		return nil, l.err
	}
	if l.stream == nil {
		l.stream = &stubStream{deltas: l.respond(prompt)}
	}
	return l.stream, nil
}

// outOfContextModel はコンテキストが空なら文脈外である旨を返す
func outOfContextModel(prompt string) []string {
	if strings.Contains(prompt, NoContextMarker) {
		return []string{"This question is ", OutOfContextPhrase, "."}
	}
	return []string{"Photosynthesis ", "converts light ", "into energy.", "\n(para 1)"}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, store *memory.Store, llm LLMClient, opts ...AskServiceOption) *AskService {
	t.Helper()
	searchSvc := search.NewSearchService(store, stubEmbedder{}, search.WithSearchLogger(newTestLogger()))
	opts = append([]AskServiceOption{WithAskLogger(newTestLogger())}, opts...)
	return NewAskService(searchSvc, llm, opts...)
}

func TestAskService_Ask_EmptySubjectAnswersOutOfContext(t *testing.T) {
	store := memory.NewStore()
	_, err := store.GetOrCreateCollection(context.Background(), "biology")
	require.NoError(t, err)

	llm := &stubLLM{respond: outOfContextModel}
	svc := newTestService(t, store, llm)

	result, err := svc.Ask(context.Background(), AskParams{Subject: "biology", Question: "What is the capital of France?"})
	require.NoError(t, err)

	assert.Contains(t, result.Answer, OutOfContextPhrase)
	assert.Empty(t, result.Sources)
	assert.Contains(t, llm.prompt, NoContextMarker)
	assert.Contains(t, llm.prompt, "Question: What is the capital of France?")
	assert.True(t, llm.stream.closed)
}

func TestAskService_Ask_UnknownSubjectDoesNotFail(t *testing.T) {
	llm := &stubLLM{respond: outOfContextModel}
	svc := newTestService(t, memory.NewStore(), llm)

	result, err := svc.Ask(context.Background(), AskParams{Subject: "missing", Question: "anything?"})
	require.NoError(t, err)
	assert.Contains(t, result.Answer, OutOfContextPhrase)
}

func TestAskService_Ask_ConcatenatesStreamInOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	col, err := store.GetOrCreateCollection(ctx, "biology")
	require.NoError(t, err)
	_, err = store.Append(ctx, col,
		[]string{"Plants use photosynthesis.", "Cells divide by mitosis.", "Unrelated chunk.", "Fourth chunk."},
		[][]float32{{1, 0}, {0.8, 0.2}, {0.1, 0.9}, {0, 1}},
	)
	require.NoError(t, err)

	llm := &stubLLM{respond: outOfContextModel}
	svc := newTestService(t, store, llm)

	var deltas []string
	result, err := svc.Ask(ctx, AskParams{
		Subject:  "biology",
		Question: "What is photosynthesis?",
		OnDelta:  func(d string) { deltas = append(deltas, d) },
	})
	require.NoError(t, err)

	assert.Equal(t, "Photosynthesis converts light into energy.\n(para 1)", result.Answer)
	assert.Equal(t, []string{"Photosynthesis ", "converts light ", "into energy.", "\n(para 1)"}, deltas)

	// デフォルトの TopK=3 件だけがプロンプトに入る
	require.Len(t, result.Sources, 3)
	assert.Equal(t, "id1", result.Sources[0].ID)
	assert.Contains(t, llm.prompt, "Plants use photosynthesis.")
	assert.NotContains(t, llm.prompt, "Fourth chunk.")
	assert.NotContains(t, llm.prompt, NoContextMarker)
}

func TestAskService_Ask_TopK(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	col, err := store.GetOrCreateCollection(ctx, "s")
	require.NoError(t, err)
	_, err = store.Append(ctx, col, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	svc := newTestService(t, store, &stubLLM{respond: outOfContextModel})
	result, err := svc.Ask(ctx, AskParams{Subject: "s", Question: "q", TopK: mo.Some(1)})
	require.NoError(t, err)
	assert.Len(t, result.Sources, 1)
}

func TestAskService_Ask_Failures(t *testing.T) {
	boom := errors.New("provider unavailable")

	tests := []struct {
		name     string
		question string
		llm      *stubLLM
		opts     []AskServiceOption
		wantIs   []error
	}{
		{
			name:     "空の質問",
			question: " ",
			llm:      &stubLLM{respond: outOfContextModel},
			wantIs:   []error{failure.ErrInvalidInput},
		},
		{
			name:     "ストリーム開始失敗",
			question: "q",
			llm:      &stubLLM{err: boom},
			wantIs:   []error{failure.ErrSynthesis, boom},
		},
		{
			name:     "ストリーム途中の失敗",
			question: "q",
			llm:      &stubLLM{stream: &stubStream{deltas: []string{"partial"}, err: boom}},
			wantIs:   []error{failure.ErrSynthesis, boom},
		},
		{
			name:     "空の回答",
			question: "q",
			llm:      &stubLLM{stream: &stubStream{deltas: []string{"", "  "}}},
			wantIs:   []error{failure.ErrSynthesis},
		},
		{
			name:     "タイムアウト",
			question: "q",
			llm:      &stubLLM{block: true},
			opts:     []AskServiceOption{WithAskTimeout(20 * time.Millisecond)},
			wantIs:   []error{failure.ErrSynthesis, context.DeadlineExceeded},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, memory.NewStore(), tt.llm, tt.opts...)
			result, err := svc.Ask(context.Background(), AskParams{Subject: "s", Question: tt.question})
			require.Error(t, err)
			assert.Nil(t, result)
			for _, target := range tt.wantIs {
				assert.ErrorIs(t, err, target)
			}
		})
	}
}

func TestBuildAskPrompt(t *testing.T) {
	prompt := BuildAskPrompt("  Who wrote it? ", []string{"chunk one", "chunk two"})

	assert.True(t, strings.HasPrefix(prompt, "Answer the following question using only the data below."))
	assert.Contains(t, prompt, "Context:\nchunk one\n\nchunk two\n\n")
	assert.Contains(t, prompt, "Question: Who wrote it?\n")
	assert.Contains(t, prompt, OutOfContextPhrase)
	assert.Contains(t, prompt, "Avoid markdown")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", excerpt("short\n  text"))

	long := strings.Repeat("x", excerptLength+10)
	got := excerpt(long)
	assert.Equal(t, excerptLength+3, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
