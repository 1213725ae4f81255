package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"kbsync/internal/hashstore"
	"kbsync/internal/logger"
	"kbsync/internal/models"
	"kbsync/internal/normalizer"
	"kbsync/internal/runlog"
	"kbsync/internal/storage"
)

var errBoom = errors.New("boom")

func article(slug, body string) models.Article {
	return models.Article{
		HTMLURL: "https://support.acme.com/hc/en-us/articles/" + slug,
		Body:    body,
	}
}

type fakeFetcher struct {
	err      error
	articles []models.Article
	calls    int
}

func (f *fakeFetcher) FetchArticles(context.Context) ([]models.Article, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	return f.articles, nil
}

type memHashStore struct {
	loadErr error
	saveErr error
	hashes  hashstore.Hashes
	loads   int
	saves   int
}

func (m *memHashStore) Load(context.Context) (hashstore.Hashes, error) {
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}

	return m.hashes.Clone(), nil
}

func (m *memHashStore) Save(_ context.Context, h hashstore.Hashes) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}

	m.hashes = h.Clone()

	return nil
}

func (m *memHashStore) Close() error { return nil }

type fakeIndexer struct {
	ensureErr error
	uploadErr error
	createdID string
	ensures   []string
	uploads   [][]string
}

func (f *fakeIndexer) EnsureIndex(_ context.Context, id, name string) (string, error) {
	f.ensures = append(f.ensures, id+"|"+name)
	if f.ensureErr != nil {
		return "", f.ensureErr
	}

	if id != "" {
		return id, nil
	}

	return f.createdID, nil
}

func (f *fakeIndexer) UploadBatch(_ context.Context, indexID string, paths []string) ([]string, error) {
	f.uploads = append(f.uploads, append([]string(nil), paths...))
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}

	ids := make([]string, len(paths))
	for i, p := range paths {
		ids[i] = fmt.Sprintf("file-%s-%s", indexID, filepath.Base(p))
	}

	return ids, nil
}

// failingWriter fails on the named slug and records the rest.
type failingWriter struct {
	failOn string
	saved  []string
}

func (w *failingWriter) Save(slug, _ string) (string, error) {
	if slug == w.failOn {
		return "", errBoom
	}

	w.saved = append(w.saved, slug)

	return slug + ".md", nil
}

type harness struct {
	job      *Job
	fetcher  *fakeFetcher
	hashes   *memHashStore
	indexer  *fakeIndexer
	articles *storage.ArticleStore
	runlog   *runlog.Logger
	dir      string
}

func newHarness(t *testing.T, opts JobOptions, articles ...models.Article) *harness {
	t.Helper()

	dir := t.TempDir()
	log := logger.Discard()

	h := &harness{
		fetcher:  &fakeFetcher{articles: articles},
		hashes:   &memHashStore{hashes: hashstore.Hashes{}},
		indexer:  &fakeIndexer{createdID: "vs_created"},
		articles: storage.NewArticleStore(filepath.Join(dir, "data"), "md"),
		runlog:   runlog.New(filepath.Join(dir, "logs", "scraping"), filepath.Join(dir, "logs", "upload"), log),
		dir:      dir,
	}

	h.job = NewJob(opts, JobDeps{
		Fetcher:  h.fetcher,
		Hashes:   h.hashes,
		Detector: NewDetector(normalizer.New(), h.articles, log, DetectorOptions{}),
		Files:    h.articles,
		RunLog:   h.runlog,
		Indexer:  h.indexer,
		Logger:   log,
	})

	return h
}
