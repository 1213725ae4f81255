package pipeline

import (
	"fmt"

	"kbsync/internal/config"
	"kbsync/internal/crawler"
	"kbsync/internal/hashstore"
	"kbsync/internal/logger"
	"kbsync/internal/metrics"
	"kbsync/internal/normalizer"
	"kbsync/internal/runlog"
	"kbsync/internal/storage"
	"kbsync/internal/vectorstore"
)

// Build wires a job against the live help center and vector store. The returned
// close function releases the hash store.
func Build(cfg *config.Config, log *logger.Logger) (*Job, func() error, error) {
	hashes, err := hashstore.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open hash store: %w", err)
	}

	articles := storage.NewArticleStore(cfg.DataDir(), cfg.Storage.ArticleExt)
	client := vectorstore.NewOpenAIClient(cfg.Index)

	job := NewJob(
		JobOptions{IndexID: cfg.Index.ID, IndexName: cfg.Index.Name},
		JobDeps{
			Fetcher: crawler.NewClient(cfg),
			Hashes:  hashes,
			Detector: NewDetector(normalizer.New(), articles, log, DetectorOptions{
				StrictSlugs: cfg.Source.StrictSlugs,
				PruneStale:  cfg.Storage.PruneStaleHashes,
			}),
			Files:   articles,
			RunLog:  runlog.New(cfg.ScrapeLogDir(), cfg.UploadLogDir(), log),
			Indexer: vectorstore.NewUploader(client, log),
			Metrics: metrics.NewRecorder(cfg.Metrics),
			Logger:  log,
		},
	)

	log.Debug("Job wired", "config", cfg.String(), "source", cfg.ArticlesURL())

	return job, hashes.Close, nil
}
