// Package validator checks the local article mirror against the stored fingerprints.
package validator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"kbsync/internal/hashstore"
	"kbsync/pkg/fingerprint"
)

// Issue kinds.
const (
	IssueMissingFile = "missing_file"
	IssueModified    = "modified"
	IssueUntracked   = "untracked"
)

// ValidationError describes one slug whose file and hash disagree.
type ValidationError struct {
	Slug    string
	Kind    string
	Message string
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
	Stats    ValidationStats
	IsValid  bool
}

// ValidationStats contains validation statistics.
type ValidationStats struct {
	TotalFiles  int
	TotalHashes int
	Valid       int
	Missing     int
	Modified    int
	Untracked   int
}

// Mirror is the read side of the article store.
type Mirror interface {
	List() ([]string, error)
	Read(slug string) (string, error)
}

// MirrorValidator compares article files with the fingerprints of the last run.
type MirrorValidator struct {
	mirror Mirror
}

// NewMirrorValidator creates a new validator.
func NewMirrorValidator(mirror Mirror) *MirrorValidator {
	return &MirrorValidator{mirror: mirror}
}

// Validate reports hashed slugs without a file, files whose content no longer
// matches their fingerprint, and files with no fingerprint at all. Missing and
// modified files make the result invalid; untracked files are only warnings.
func (v *MirrorValidator) Validate(hashes hashstore.Hashes) (*ValidationResult, error) {
	names, err := v.mirror.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list article files: %w", err)
	}

	result := &ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []string{},
		Stats: ValidationStats{
			TotalFiles:  len(names),
			TotalHashes: len(hashes),
		},
	}

	onDisk := make(map[string]bool, len(names))

	for _, name := range names {
		slug := strings.TrimSuffix(name, filepath.Ext(name))
		onDisk[slug] = true

		want, tracked := hashes[slug]
		if !tracked {
			result.Stats.Untracked++
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s has no stored fingerprint", name))

			continue
		}

		content, err := v.mirror.Read(slug)
		if err != nil {
			return nil, err
		}

		if got := fingerprint.Compute(content); got != want {
			result.IsValid = false
			result.Stats.Modified++
			result.Errors = append(result.Errors, ValidationError{
				Slug: slug,
				Kind: IssueModified,
				Message: fmt.Sprintf("%s changed on disk: fingerprint %s, stored %s",
					name, got.Short(), want.Short()),
			})

			continue
		}

		result.Stats.Valid++
	}

	slugs := make([]string, 0, len(hashes))
	for slug := range hashes {
		if !onDisk[slug] {
			slugs = append(slugs, slug)
		}
	}

	sort.Strings(slugs)

	for _, slug := range slugs {
		result.IsValid = false
		result.Stats.Missing++
		result.Errors = append(result.Errors, ValidationError{
			Slug:    slug,
			Kind:    IssueMissingFile,
			Message: fmt.Sprintf("%s is tracked but has no file", slug),
		})
	}

	return result, nil
}
