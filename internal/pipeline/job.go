package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kbsync/internal/crawler"
	"kbsync/internal/hashstore"
	"kbsync/internal/logger"
	"kbsync/internal/metrics"
	"kbsync/internal/runlog"
	"kbsync/internal/vectorstore"
)

// PathResolver maps an article file name to the path that gets uploaded.
type PathResolver interface {
	Path(filename string) string
}

// JobOptions identifies the target index.
type JobOptions struct {
	IndexID   string
	IndexName string
}

// JobDeps are the collaborators of one job. Metrics may be nil.
type JobDeps struct {
	Fetcher  crawler.Fetcher
	Hashes   hashstore.Store
	Detector *Detector
	Files    PathResolver
	RunLog   *runlog.Logger
	Indexer  vectorstore.Indexer
	Metrics  *metrics.Recorder
	Logger   *logger.Logger
}

// Job runs scrape then upload. It is not safe to run concurrently with itself; the
// hash store and run logs assume a single writer.
type Job struct {
	deps JobDeps
	opts JobOptions
	now  func() time.Time
}

// NewJob creates a job.
func NewJob(opts JobOptions, deps JobDeps) *Job {
	return &Job{
		deps: deps,
		opts: opts,
		now:  time.Now,
	}
}

// Run executes one full sync. Any error aborts the run. Hashes are written once,
// after every article has been classified; state written by a stage that completed
// before the failure stays on disk.
func (j *Job) Run(ctx context.Context) (*Summary, error) {
	start := j.now()
	runID := uuid.NewString()
	log := j.deps.Logger.With("run_id", runID)

	summary := &Summary{RunID: runID, StartedAt: start}

	err := j.run(ctx, log, summary)
	summary.Duration = j.now().Sub(start)

	j.recordMetrics(ctx, log, summary, err == nil)

	if err != nil {
		log.Error(fmt.Sprintf("❌ Job failed: %v", err))
		return summary, err
	}

	log.Info("✨ Job complete", "duration", summary.Duration)

	return summary, nil
}

func (j *Job) run(ctx context.Context, log *logger.Logger, summary *Summary) error {
	log.Info("Phase 1: Scraping...")

	prev, err := j.deps.Hashes.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load hashes: %w", err)
	}

	articles, err := j.deps.Fetcher.FetchArticles(ctx)
	if err != nil {
		return err
	}

	log.Info(fmt.Sprintf("✅ Fetched %d articles", len(articles)), "known", len(prev))

	result, err := j.deps.Detector.Detect(ctx, prev, articles)
	if err != nil {
		return fmt.Errorf("change detection failed: %w", err)
	}

	if err := j.deps.Hashes.Save(ctx, result.Hashes); err != nil {
		return fmt.Errorf("failed to save hashes: %w", err)
	}

	summary.Added = result.Added
	summary.Updated = result.Updated
	summary.Skipped = result.Skipped
	summary.ChangedFiles = result.ChangedFiles
	summary.Duplicates = len(result.Duplicates)
	summary.Stale = len(result.Stale)

	if _, err := j.deps.RunLog.AppendScrape(result.Added, result.Updated, result.Skipped); err != nil {
		return err
	}

	log.Info("Scrape stage done",
		"added", result.Added, "updated", result.Updated, "skipped", result.Skipped)

	log.Info("Phase 2: Uploading...")

	if len(result.ChangedFiles) == 0 {
		log.Info("No files to upload")
		return nil
	}

	indexID, err := j.deps.Indexer.EnsureIndex(ctx, j.opts.IndexID, j.opts.IndexName)
	if err != nil {
		return fmt.Errorf("failed to resolve vector store: %w", err)
	}

	summary.IndexID = indexID

	paths := make([]string, len(result.ChangedFiles))
	for i, name := range result.ChangedFiles {
		paths[i] = j.deps.Files.Path(name)
	}

	fileIDs, err := j.deps.Indexer.UploadBatch(ctx, indexID, paths)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	summary.Uploaded = len(fileIDs)

	if _, err := j.deps.RunLog.AppendUpload(indexID, len(fileIDs)); err != nil {
		return err
	}

	log.Info(fmt.Sprintf("✅ Uploaded %d files", len(fileIDs)), "vector_store_id", indexID)

	return nil
}

// recordMetrics never fails the job; push errors are logged only.
func (j *Job) recordMetrics(ctx context.Context, log *logger.Logger, s *Summary, ok bool) {
	if j.deps.Metrics == nil {
		return
	}

	j.deps.Metrics.Observe(metrics.RunStats{
		Finished: s.StartedAt.Add(s.Duration),
		Duration: s.Duration,
		Added:    s.Added,
		Updated:  s.Updated,
		Skipped:  s.Skipped,
		Uploaded: s.Uploaded,
		Success:  ok,
	})

	if err := j.deps.Metrics.Push(ctx); err != nil {
		log.Warn("Metrics push failed", "error", err)
	}
}
