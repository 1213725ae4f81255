package pipeline

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbsync/internal/config"
	"kbsync/internal/hashstore"
	"kbsync/internal/metrics"
	"kbsync/internal/models"
	"kbsync/pkg/fingerprint"
)

func TestJob_FirstRun(t *testing.T) {
	h := newHarness(t, JobOptions{IndexName: "kb"}, article("a", "<p>Hi</p>"))

	sum, err := h.job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Added)
	assert.Equal(t, 1, sum.Uploaded)
	assert.Equal(t, "vs_created", sum.IndexID)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, []string{"a.md"}, sum.ChangedFiles)

	assert.Equal(t, 1, h.hashes.saves, "hashes written exactly once")
	assert.Equal(t, hashstore.Hashes{"a": fingerprint.Compute("Hi")}, h.hashes.hashes)

	assert.Equal(t, []string{"|kb"}, h.indexer.ensures)
	require.Len(t, h.indexer.uploads, 1)
	assert.Equal(t, []string{filepath.Join(h.dir, "data", "a.md")}, h.indexer.uploads[0])

	scrapes, err := h.runlog.ReadScrape(time.Now())
	require.NoError(t, err)
	require.Len(t, scrapes, 1)
	assert.Equal(t, 1, scrapes[0].Added)

	uploads, err := h.runlog.ReadUpload(time.Now())
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "vs_created", uploads[0].VectorStoreID)
	assert.Equal(t, 1, uploads[0].EmbeddedFiles)
}

func TestJob_Idempotent(t *testing.T) {
	h := newHarness(t, JobOptions{IndexID: "vs_fixed"},
		article("a", "<p>A</p>"),
		article("b", "<p>B</p>"),
		article("c", "<p>C</p>"),
	)

	_, err := h.job.Run(context.Background())
	require.NoError(t, err)

	sum, err := h.job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Added)
	assert.Equal(t, 0, sum.Updated)
	assert.Equal(t, 3, sum.Skipped)
	assert.Empty(t, sum.ChangedFiles)
	assert.Empty(t, sum.IndexID)

	assert.Len(t, h.indexer.uploads, 1, "second run uploads nothing")
	assert.Len(t, h.indexer.ensures, 1, "index not resolved when nothing changed")

	scrapes, err := h.runlog.ReadScrape(time.Now())
	require.NoError(t, err)
	assert.Len(t, scrapes, 2)

	uploads, err := h.runlog.ReadUpload(time.Now())
	require.NoError(t, err)
	assert.Len(t, uploads, 1, "upload stage skipped without changes")
}

func TestJob_UpdatedArticleUploadedAgain(t *testing.T) {
	h := newHarness(t, JobOptions{IndexID: "vs"}, article("a", "<p>v1</p>"), article("b", "<p>B</p>"))

	_, err := h.job.Run(context.Background())
	require.NoError(t, err)

	h.fetcher.articles = []models.Article{article("a", "<p>v2</p>"), article("b", "<p>B</p>")}

	sum, err := h.job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Skipped)
	require.Len(t, h.indexer.uploads, 2)
	assert.Equal(t, []string{filepath.Join(h.dir, "data", "a.md")}, h.indexer.uploads[1])
}

func TestJob_FetchFailureWritesNothing(t *testing.T) {
	h := newHarness(t, JobOptions{})
	h.fetcher.err = errBoom

	_, err := h.job.Run(context.Background())
	assert.ErrorIs(t, err, errBoom)

	assert.Equal(t, 0, h.hashes.saves)
	assert.Empty(t, h.indexer.ensures)
	assertNoLogs(t, h)
}

func TestJob_CorruptHashesAbortBeforeFetch(t *testing.T) {
	h := newHarness(t, JobOptions{}, article("a", "<p>A</p>"))
	h.hashes.loadErr = hashstore.ErrCorruptState

	_, err := h.job.Run(context.Background())
	assert.ErrorIs(t, err, hashstore.ErrCorruptState)
	assert.Equal(t, 0, h.fetcher.calls)
	assert.Equal(t, 0, h.hashes.saves)
}

func TestJob_DetectFailureKeepsPreviousHashes(t *testing.T) {
	h := newHarness(t, JobOptions{}, article("a", "<p>A</p>"), article("bad", "<p>B</p>"))
	h.job.deps.Detector = NewDetector(normalizerStub{}, &failingWriter{failOn: "bad"}, h.job.deps.Logger, DetectorOptions{})

	prev := hashstore.Hashes{"old": fingerprint.Compute("x")}
	h.hashes.hashes = prev.Clone()

	_, err := h.job.Run(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, h.hashes.saves)
	assert.Equal(t, prev, h.hashes.hashes)
	assertNoLogs(t, h)
}

func TestJob_UploadFailure(t *testing.T) {
	h := newHarness(t, JobOptions{IndexID: "vs"}, article("a", "<p>A</p>"))
	h.indexer.uploadErr = errBoom

	_, err := h.job.Run(context.Background())
	assert.ErrorIs(t, err, errBoom)

	// Scrape stage completed before the failure.
	assert.Equal(t, 1, h.hashes.saves)

	scrapes, err := h.runlog.ReadScrape(time.Now())
	require.NoError(t, err)
	assert.Len(t, scrapes, 1)

	uploads, err := h.runlog.ReadUpload(time.Now())
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestJob_EnsureIndexFailure(t *testing.T) {
	h := newHarness(t, JobOptions{}, article("a", "<p>A</p>"))
	h.indexer.ensureErr = errBoom

	_, err := h.job.Run(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, h.indexer.uploads)
}

func TestJob_MetricsRecordedAndPushFailureIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h := newHarness(t, JobOptions{IndexID: "vs"}, article("a", "<p>A</p>"), article("b", "<p>B</p>"))
	rec := metrics.NewRecorder(config.MetricsConfig{PushgatewayURL: srv.URL})
	h.job.deps.Metrics = rec

	_, err := h.job.Run(context.Background())
	require.NoError(t, err, "push failure must not fail the job")

	assert.InDelta(t, 2, testutil.ToFloat64(rec.ArticlesAdded), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(rec.FilesUploaded), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.RunsTotal.WithLabelValues(metrics.ResultSuccess)), 0)

	h.fetcher.err = errBoom
	_, err = h.job.Run(context.Background())
	require.Error(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.RunsTotal.WithLabelValues(metrics.ResultFailure)), 0)
}

func TestSummary_Print(t *testing.T) {
	var buf bytes.Buffer

	s := &Summary{RunID: "r1", IndexID: "vs_1", Added: 1, Updated: 2, Skipped: 3, Uploaded: 3, Duration: time.Second}
	s.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "Articles: 6 (new 1, updated 2, unchanged 3)")
	assert.Contains(t, out, "Uploaded: 3 files to vs_1")
	assert.Contains(t, out, "Run ID: r1")

	buf.Reset()
	(&Summary{RunID: "r2", Skipped: 4}).Print(&buf)
	assert.Contains(t, buf.String(), "nothing changed")
}

// normalizerStub returns the body unchanged.
type normalizerStub struct{}

func (normalizerStub) Normalize(html string) (string, error) { return html, nil }

func assertNoLogs(t *testing.T, h *harness) {
	t.Helper()

	_, err := os.Stat(filepath.Join(h.dir, "logs"))
	assert.True(t, os.IsNotExist(err), "no run log written")
}
