package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sashabaranov/go-openai"

	"kbsync/internal/logger"
)

// ErrEmptyIndexID is returned when an operation needs an index id and none was given.
var ErrEmptyIndexID = errors.New("vector store id is required")

// defaultNameLayout produces knowledge_base_YYYYMMDD_HHMMSS.
const defaultNameLayout = "knowledge_base_20060102_150405"

// Indexer resolves the target index and uploads file batches into it.
type Indexer interface {
	// EnsureIndex returns id when set; otherwise it creates an index named name,
	// or a timestamped default name when name is empty.
	EnsureIndex(ctx context.Context, id, name string) (string, error)
	// UploadBatch uploads each file and registers them as one batch. It returns one
	// file id per path, in input order. Any failure fails the whole batch.
	UploadBatch(ctx context.Context, indexID string, paths []string) ([]string, error)
}

// Uploader implements Indexer on top of the OpenAI API.
type Uploader struct {
	client Client
	logger *logger.Logger
	now    func() time.Time
}

// NewUploader creates an uploader.
func NewUploader(client Client, log *logger.Logger) *Uploader {
	return &Uploader{
		client: client,
		logger: log,
		now:    time.Now,
	}
}

// DefaultIndexName returns the timestamped name used when none is configured.
func DefaultIndexName(t time.Time) string {
	return t.Format(defaultNameLayout)
}

// EnsureIndex implements Indexer.
func (u *Uploader) EnsureIndex(ctx context.Context, id, name string) (string, error) {
	if id != "" {
		u.logger.Debug("Using configured vector store", "vector_store_id", id)
		return id, nil
	}

	if name == "" {
		name = DefaultIndexName(u.now())
	}

	store, err := u.client.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to create vector store %q: %w", name, err)
	}

	if store.ID == "" {
		return "", fmt.Errorf("create vector store %q: %w", name, ErrEmptyIndexID)
	}

	u.logger.Info(fmt.Sprintf("Created vector store: %s (%s)", store.ID, name))

	return store.ID, nil
}

// UploadBatch implements Indexer.
func (u *Uploader) UploadBatch(ctx context.Context, indexID string, paths []string) ([]string, error) {
	if indexID == "" {
		return nil, ErrEmptyIndexID
	}

	if len(paths) == 0 {
		return nil, nil
	}

	fileIDs := make([]string, 0, len(paths))

	for _, path := range paths {
		file, err := u.client.CreateFile(ctx, openai.FileRequest{
			FileName: filepath.Base(path),
			FilePath: path,
			Purpose:  string(openai.PurposeAssistants),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", path, err)
		}

		u.logger.Debug("Uploaded file", "file_id", file.ID, "name", filepath.Base(path))
		fileIDs = append(fileIDs, file.ID)
	}

	batch, err := u.client.CreateVectorStoreFileBatch(ctx, indexID, openai.VectorStoreFileBatchRequest{
		FileIDs: fileIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register file batch with %s: %w", indexID, err)
	}

	u.logger.Info(fmt.Sprintf("Created batch upload: %s with %d files", batch.ID, len(fileIDs)),
		"vector_store_id", indexID, "status", batch.Status)

	return fileIDs, nil
}
