package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const rule = "------------------------------------------------"

// Summary describes one finished (or failed) run.
type Summary struct {
	StartedAt    time.Time
	RunID        string
	IndexID      string
	ChangedFiles []string
	Duration     time.Duration
	Added        int
	Updated      int
	Skipped      int
	Uploaded     int
	Duplicates   int
	Stale        int
}

// Total returns the number of fetched articles.
func (s *Summary) Total() int {
	return s.Added + s.Updated + s.Skipped
}

// Print writes the human-readable report shown at the end of a run.
func (s *Summary) Print(w io.Writer) {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "📊 Sync Summary\n")
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Run ID: %s\n", s.RunID)
	fmt.Fprintf(&b, "Articles: %d (new %d, updated %d, unchanged %d)\n", s.Total(), s.Added, s.Updated, s.Skipped)

	if s.IndexID != "" {
		fmt.Fprintf(&b, "Uploaded: %d files to %s\n", s.Uploaded, s.IndexID)
	} else {
		fmt.Fprintf(&b, "Uploaded: 0 files (nothing changed)\n")
	}

	if s.Duplicates > 0 {
		fmt.Fprintf(&b, "⚠️  Duplicate slugs: %d\n", s.Duplicates)
	}

	if s.Stale > 0 {
		fmt.Fprintf(&b, "Missing from source: %d\n", s.Stale)
	}

	fmt.Fprintf(&b, "Total Duration: %v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "%s\n", rule)

	_, _ = io.WriteString(w, b.String())
}
