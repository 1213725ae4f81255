package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"kbsync/internal/logger"
)

const listPageSize = 100

// RemoteFile is one file attached to a vector store.
type RemoteFile struct {
	CreatedAt  time.Time
	ID         string
	Status     string
	UsageBytes int
}

// FileManager lists and removes files attached to a vector store.
type FileManager interface {
	ListFiles(ctx context.Context, indexID string) ([]RemoteFile, error)
	DeleteFile(ctx context.Context, indexID, fileID string) error
	DeleteAllFiles(ctx context.Context, indexID string) (int, error)
}

// Files implements FileManager on top of the OpenAI API.
type Files struct {
	client Client
	logger *logger.Logger
}

// NewFiles creates a file manager.
func NewFiles(client Client, log *logger.Logger) *Files {
	return &Files{client: client, logger: log}
}

// ListFiles returns every file in the store, following pagination.
func (f *Files) ListFiles(ctx context.Context, indexID string) ([]RemoteFile, error) {
	if indexID == "" {
		return nil, ErrEmptyIndexID
	}

	limit := listPageSize

	var (
		files []RemoteFile
		after *string
	)

	for {
		page, err := f.client.ListVectorStoreFiles(ctx, indexID, openai.Pagination{Limit: &limit, After: after})
		if err != nil {
			return nil, fmt.Errorf("failed to list files in %s: %w", indexID, err)
		}

		for _, vf := range page.VectorStoreFiles {
			files = append(files, RemoteFile{
				CreatedAt:  time.Unix(vf.CreatedAt, 0).UTC(),
				ID:         vf.ID,
				Status:     vf.Status,
				UsageBytes: vf.UsageBytes,
			})
		}

		if !page.HasMore || page.LastID == nil || len(page.VectorStoreFiles) == 0 {
			return files, nil
		}

		after = page.LastID
	}
}

// DeleteFile detaches the file from the store and deletes the uploaded file itself.
func (f *Files) DeleteFile(ctx context.Context, indexID, fileID string) error {
	if indexID == "" {
		return ErrEmptyIndexID
	}

	if err := f.client.DeleteVectorStoreFile(ctx, indexID, fileID); err != nil {
		return fmt.Errorf("failed to detach %s from %s: %w", fileID, indexID, err)
	}

	if err := f.client.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}

	f.logger.Info("Deleted index file", "vector_store_id", indexID, "file_id", fileID)

	return nil
}

// DeleteAllFiles deletes every file in the store and returns how many were removed.
// It stops at the first failure.
func (f *Files) DeleteAllFiles(ctx context.Context, indexID string) (int, error) {
	files, err := f.ListFiles(ctx, indexID)
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, file := range files {
		if err := f.DeleteFile(ctx, indexID, file.ID); err != nil {
			return deleted, err
		}

		deleted++
	}

	return deleted, nil
}
