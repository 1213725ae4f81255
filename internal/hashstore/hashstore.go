// Package hashstore persists the slug to fingerprint mapping between runs.
package hashstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"kbsync/internal/config"
	"kbsync/pkg/fingerprint"
)

// ErrCorruptState is returned when persisted hashes exist but cannot be parsed.
// Callers must not treat it as a first run.
var ErrCorruptState = errors.New("hash store is corrupt")

// Hashes maps article slug to the fingerprint of its normalized content.
type Hashes map[string]fingerprint.Fingerprint

// Clone returns a copy of h.
func (h Hashes) Clone() Hashes {
	out := make(Hashes, len(h))
	for k, v := range h {
		out[k] = v
	}

	return out
}

// Store loads and saves the full mapping. Save is a full replace, never a merge.
type Store interface {
	Load(ctx context.Context) (Hashes, error)
	Save(ctx context.Context, hashes Hashes) error
	Close() error
}

// Open returns the store selected by storage.hash_backend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Storage.HashBackend {
	case config.HashBackendJSON, "":
		return NewJSONStore(cfg.HashFilePath()), nil
	case config.HashBackendSQLite:
		return NewSQLiteStore(SQLitePath(cfg.HashFilePath()))
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidHashBackend, cfg.Storage.HashBackend)
	}
}

// SQLitePath maps the default hashes.json location to hashes.db so both backends can
// share one configured name.
func SQLitePath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
	}

	return path
}

func validate(raw map[string]string) (Hashes, error) {
	out := make(Hashes, len(raw))

	for slug, value := range raw {
		fp, err := fingerprint.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("%w: slug %q: %v", ErrCorruptState, slug, err)
		}

		out[slug] = fp
	}

	return out, nil
}
