package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/pdf-rag/internal/shared/failure"
)

func TestMetricsRegistered(t *testing.T) {
	FlowTotal.WithLabelValues("ingest", StatusOK).Add(0)
	FlowDuration.WithLabelValues("ingest").Observe(0)
	StageDuration.WithLabelValues("ingest", "extract").Observe(0)
	StageErrorsTotal.WithLabelValues("ingest", "extract", "extraction").Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	expected := map[string]bool{
		"pdfrag_flow_total":             false,
		"pdfrag_flow_duration_seconds":  false,
		"pdfrag_stage_duration_seconds": false,
		"pdfrag_stage_errors_total":     false,
		"pdfrag_ingested_chunks_total":  false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "metric %s not registered", name)
	}
}

func TestRecorder_ObserveFlow(t *testing.T) {
	r := NewRecorder()

	okBefore := testutil.ToFloat64(FlowTotal.WithLabelValues("ask", StatusOK))
	synthBefore := testutil.ToFloat64(FlowTotal.WithLabelValues("ask", "synthesis"))

	r.ObserveFlow("ask", 2*time.Second, nil)
	r.ObserveFlow("ask", time.Second, failure.New(failure.ErrSynthesis, "empty completion"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(FlowTotal.WithLabelValues("ask", StatusOK)))
	assert.Equal(t, synthBefore+1, testutil.ToFloat64(FlowTotal.WithLabelValues("ask", "synthesis")))
}

func TestRecorder_ObserveStage(t *testing.T) {
	r := NewRecorder()
	counter := StageErrorsTotal.WithLabelValues("ingest", "embed", "embedding")
	before := testutil.ToFloat64(counter)

	r.ObserveStage("ingest", "embed", 300*time.Millisecond, nil)
	r.ObserveStage("ingest", "embed", 300*time.Millisecond, failure.Wrap(failure.ErrEmbedding, "embed batch", errors.New("503")))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	metric := &dto.Metric{}
	hist, ok := StageDuration.WithLabelValues("ingest", "embed").(prometheus.Histogram)
	require.True(t, ok)
	require.NoError(t, hist.Write(metric))
	assert.GreaterOrEqual(t, metric.GetHistogram().GetSampleCount(), uint64(2))
}

func TestRecorder_ObserveChunks(t *testing.T) {
	r := NewRecorder()
	before := testutil.ToFloat64(IngestedChunksTotal)

	r.ObserveChunks("physics", 5)
	r.ObserveChunks("physics", 0)

	assert.Equal(t, before+5, testutil.ToFloat64(IngestedChunksTotal))
}

func TestPushFrom(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pdfrag_test_pushed_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	require.NoError(t, PushFrom(context.Background(), registry, server.URL, "pdf-rag"))
	assert.Equal(t, "/metrics/job/pdf-rag", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPushFrom_EmptyURLIsNoop(t *testing.T) {
	assert.NoError(t, PushFrom(context.Background(), prometheus.NewRegistry(), "", "pdf-rag"))
}

func TestPushFrom_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := PushFrom(context.Background(), prometheus.NewRegistry(), server.URL, "pdf-rag")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to push metrics"))
}
