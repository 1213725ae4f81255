// Package storage persists normalized articles as one file per slug.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrInvalidSlug is returned for slugs that cannot be used as a file name.
	ErrInvalidSlug = errors.New("invalid slug")
	// ErrInvalidFilename is returned when a file name escapes the article directory.
	ErrInvalidFilename = errors.New("invalid filename")
)

// ArticleStore writes article content to <dir>/<slug>.<ext>.
type ArticleStore struct {
	dir string
	ext string
}

// NewArticleStore creates a store rooted at dir using the given extension (without the dot).
func NewArticleStore(dir, ext string) *ArticleStore {
	return &ArticleStore{dir: dir, ext: strings.TrimPrefix(ext, ".")}
}

// Dir returns the directory holding article files.
func (s *ArticleStore) Dir() string {
	return s.dir
}

// Filename returns the file name used for slug.
func (s *ArticleStore) Filename(slug string) string {
	return slug + "." + s.ext
}

// Path returns the full path for a file name inside the store.
func (s *ArticleStore) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// Save writes content for slug, replacing any existing file, and returns the file name.
func (s *ArticleStore) Save(slug, content string) (string, error) {
	if err := validateSlug(slug); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create article directory: %w", err)
	}

	filename := s.Filename(slug)
	if err := os.WriteFile(s.Path(filename), []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}

	return filename, nil
}

// Read returns the stored content for slug.
func (s *ArticleStore) Read(slug string) (string, error) {
	if err := validateSlug(slug); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.Path(s.Filename(slug)))
	if err != nil {
		return "", fmt.Errorf("failed to read article %s: %w", slug, err)
	}

	return string(data), nil
}

// List returns the article file names in the store, sorted. A missing directory is empty.
func (s *ArticleStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list article directory: %w", err)
	}

	suffix := "." + s.ext

	var names []string

	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// Delete removes one article file by name.
func (s *ArticleStore) Delete(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	if err := os.Remove(s.Path(filename)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}

	return nil
}

// DeleteAll removes every article file and returns how many were deleted.
func (s *ArticleStore) DeleteAll() (int, error) {
	names, err := s.List()
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, name := range names {
		if err := s.Delete(name); err != nil {
			return deleted, err
		}

		deleted++
	}

	return deleted, nil
}

func validateSlug(slug string) error {
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}

	return nil
}
