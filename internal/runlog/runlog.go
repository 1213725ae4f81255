// Package runlog appends per-run statistics to date-partitioned JSON log files.
//
// Each category (scraping, upload) has its own directory holding one file per UTC
// day, named YYYY-MM-DD.json, containing a JSON array of entries.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kbsync/internal/logger"
	"kbsync/pkg/utils"
)

const dateLayout = "2006-01-02"

// ScrapeEntry records the outcome of the scrape stage.
type ScrapeEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Added     int       `json:"added"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
}

// UploadEntry records the outcome of the upload stage.
type UploadEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	VectorStoreID string    `json:"vector_store_id"`
	EmbeddedFiles int       `json:"embedded_files"`
}

// Logger writes run log entries.
type Logger struct {
	log       *logger.Logger
	now       func() time.Time
	scrapeDir string
	uploadDir string
}

// New creates a run logger writing scrape entries under scrapeDir and upload
// entries under uploadDir.
func New(scrapeDir, uploadDir string, log *logger.Logger) *Logger {
	return &Logger{
		log:       log,
		now:       time.Now,
		scrapeDir: scrapeDir,
		uploadDir: uploadDir,
	}
}

// WithClock returns a copy of l using now as its time source.
func (l *Logger) WithClock(now func() time.Time) *Logger {
	c := *l
	c.now = now

	return &c
}

// AppendScrape records scrape-stage counts and returns the file written.
func (l *Logger) AppendScrape(added, updated, skipped int) (string, error) {
	ts := l.now().UTC()

	return l.append(l.scrapeDir, ts, ScrapeEntry{
		Timestamp: ts,
		Added:     added,
		Updated:   updated,
		Skipped:   skipped,
	})
}

// AppendUpload records upload-stage results and returns the file written.
func (l *Logger) AppendUpload(indexID string, uploaded int) (string, error) {
	ts := l.now().UTC()

	return l.append(l.uploadDir, ts, UploadEntry{
		Timestamp:     ts,
		VectorStoreID: indexID,
		EmbeddedFiles: uploaded,
	})
}

// FilePath returns the log file for dir on the UTC date of ts.
func FilePath(dir string, ts time.Time) string {
	return filepath.Join(dir, ts.UTC().Format(dateLayout)+".json")
}

func (l *Logger) append(dir string, ts time.Time, entry any) (string, error) {
	path := FilePath(dir, ts)
	entries := l.readEntries(path)

	raw, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run log entry: %w", err)
	}

	entries = append(entries, raw)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run log: %w", err)
	}

	if err := utils.WriteFileAtomic(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write run log: %w", err)
	}

	return path, nil
}

// readEntries fails open: a missing or unreadable log starts a new array, since a
// damaged log must never block the pipeline. The damaged content is overwritten.
func (l *Logger) readEntries(path string) []json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Warn("Run log unreadable, starting a new one", "path", path, "error", err)
		}

		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		l.log.Warn("Run log corrupt, starting a new one", "path", path, "error", err)
		return nil
	}

	return entries
}

// ReadScrape returns the scrape entries logged on the UTC date of day.
func (l *Logger) ReadScrape(day time.Time) ([]ScrapeEntry, error) {
	return readTyped[ScrapeEntry](FilePath(l.scrapeDir, day))
}

// ReadUpload returns the upload entries logged on the UTC date of day.
func (l *Logger) ReadUpload(day time.Time) ([]UploadEntry, error) {
	return readTyped[UploadEntry](FilePath(l.uploadDir, day))
}

func readTyped[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read run log: %w", err)
	}

	var entries []T
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse run log %s: %w", path, err)
	}

	return entries, nil
}
