package hashstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"kbsync/pkg/utils"
)

// JSONStore keeps hashes in a pretty-printed JSON object on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store backed by the file at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the mapping. A missing file is a first run and yields an empty mapping.
func (s *JSONStore) Load(_ context.Context) (Hashes, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Hashes{}, nil
		}

		return nil, fmt.Errorf("failed to read hash file: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}

	if raw == nil {
		return nil, fmt.Errorf("%w: %s: document is not an object", ErrCorruptState, s.path)
	}

	return validate(raw)
}

// Save replaces the file contents atomically, so an interrupted save leaves the
// previous state intact.
func (s *JSONStore) Save(_ context.Context, hashes Hashes) error {
	if hashes == nil {
		hashes = Hashes{}
	}

	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal hashes: %w", err)
	}

	return utils.WriteFileAtomic(s.path, append(data, '\n'), 0644)
}

// Close is a no-op.
func (s *JSONStore) Close() error {
	return nil
}
