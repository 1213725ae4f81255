// Package pipeline holds the change-detection core and the two-stage sync job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"kbsync/internal/crawler"
	"kbsync/internal/hashstore"
	"kbsync/internal/logger"
	"kbsync/internal/models"
	"kbsync/pkg/fingerprint"
)

// ErrDuplicateSlug is returned in strict mode when one fetch contains a slug twice.
var ErrDuplicateSlug = errors.New("duplicate slug in fetch")

// Normalizer converts article HTML into stored text.
type Normalizer interface {
	Normalize(html string) (string, error)
}

// ArticleWriter persists normalized content and returns the file name it wrote.
type ArticleWriter interface {
	Save(slug, content string) (string, error)
}

// Outcome is the decision taken for one fetched article.
type Outcome struct {
	Slug           string
	Filename       string
	Fingerprint    fingerprint.Fingerprint
	Classification models.Classification
}

// Result is the output of one detection pass.
type Result struct {
	// Hashes is the full mapping to persist for this run.
	Hashes hashstore.Hashes
	// ChangedFiles lists written file names in fetch order, one entry per file.
	ChangedFiles []string
	// Outcomes has one entry per fetched article, in fetch order.
	Outcomes []Outcome
	// Duplicates lists slugs seen more than once, in order of first repeat.
	Duplicates []string
	// Stale lists previously known slugs missing from this fetch, sorted.
	Stale   []string
	Added   int
	Updated int
	Skipped int
}

// Total returns the number of classified articles.
func (r *Result) Total() int {
	return r.Added + r.Updated + r.Skipped
}

// DetectorOptions tunes the detection policy.
type DetectorOptions struct {
	// StrictSlugs turns duplicate slugs into ErrDuplicateSlug.
	StrictSlugs bool
	// PruneStale drops hashes for slugs missing from the fetch instead of keeping them.
	PruneStale bool
}

// Detector classifies fetched articles against the previous run's fingerprints and
// writes the ones that changed.
type Detector struct {
	normalizer Normalizer
	writer     ArticleWriter
	logger     *logger.Logger
	opts       DetectorOptions
}

// NewDetector creates a detector.
func NewDetector(n Normalizer, w ArticleWriter, log *logger.Logger, opts DetectorOptions) *Detector {
	return &Detector{
		normalizer: n,
		writer:     w,
		logger:     log,
		opts:       opts,
	}
}

// Classify compares a fresh fingerprint with the previous mapping.
func Classify(prev hashstore.Hashes, slug string, fp fingerprint.Fingerprint) models.Classification {
	old, ok := prev[slug]

	switch {
	case !ok:
		return models.Added
	case old != fp:
		return models.Updated
	default:
		return models.Unchanged
	}
}

// Detect processes articles one at a time in fetch order. Classification always
// compares against prev, never against hashes produced earlier in the same run.
// Duplicate slugs are last-write-wins for both the hash and the file. The first
// error aborts the pass; nothing is persisted besides article files already written.
func (d *Detector) Detect(ctx context.Context, prev hashstore.Hashes, articles []models.Article) (*Result, error) {
	res := &Result{
		Hashes:   make(hashstore.Hashes, len(articles)),
		Outcomes: make([]Outcome, 0, len(articles)),
	}

	seen := make(map[string]bool, len(articles))
	written := make(map[string]bool)
	listed := make(map[string]bool)

	for i := range articles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a := &articles[i]

		slug, err := crawler.ExtractSlug(a.HTMLURL)
		if err != nil {
			return nil, fmt.Errorf("article %d: %w", a.ID, err)
		}

		if seen[slug] {
			if d.opts.StrictSlugs {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateSlug, slug)
			}

			d.logger.Warn("Duplicate slug in fetch, later article wins", "slug", slug, "article_id", a.ID)
			res.Duplicates = append(res.Duplicates, slug)
		}

		seen[slug] = true

		content, err := d.normalizer.Normalize(a.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize %s: %w", slug, err)
		}

		fp := fingerprint.Compute(content)
		class := Classify(prev, slug, fp)
		outcome := Outcome{Slug: slug, Fingerprint: fp, Classification: class}

		// An earlier duplicate may have written different content; rewrite so the
		// file always matches the hash that will be persisted.
		if class.Changed() || written[slug] {
			filename, err := d.writer.Save(slug, content)
			if err != nil {
				return nil, fmt.Errorf("failed to save %s: %w", slug, err)
			}

			written[slug] = true
			outcome.Filename = filename

			if class.Changed() && !listed[filename] {
				listed[filename] = true
				res.ChangedFiles = append(res.ChangedFiles, filename)
			}
		}

		switch class {
		case models.Added:
			res.Added++
		case models.Updated:
			res.Updated++
		default:
			res.Skipped++
		}

		d.logger.Debug("Classified article", "slug", slug, "classification", class, "fingerprint", fp.Short())

		res.Hashes[slug] = fp
		res.Outcomes = append(res.Outcomes, outcome)
	}

	for slug, fp := range prev {
		if seen[slug] {
			continue
		}

		res.Stale = append(res.Stale, slug)

		if !d.opts.PruneStale {
			res.Hashes[slug] = fp
		}
	}

	sort.Strings(res.Stale)

	if len(res.Stale) > 0 {
		d.logger.Info("Previously synced articles missing from fetch",
			"count", len(res.Stale), "pruned", d.opts.PruneStale)
	}

	return res, nil
}
