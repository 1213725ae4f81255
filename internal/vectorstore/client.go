// Package vectorstore pushes article files into an OpenAI vector store and manages
// the files already there.
package vectorstore

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"kbsync/internal/config"
)

// Client is the subset of *openai.Client used here.
type Client interface {
	CreateVectorStore(ctx context.Context, request openai.VectorStoreRequest) (openai.VectorStore, error)
	CreateFile(ctx context.Context, request openai.FileRequest) (openai.File, error)
	CreateVectorStoreFileBatch(
		ctx context.Context,
		vectorStoreID string,
		request openai.VectorStoreFileBatchRequest,
	) (openai.VectorStoreFileBatch, error)
	ListVectorStoreFiles(
		ctx context.Context,
		vectorStoreID string,
		pagination openai.Pagination,
	) (openai.VectorStoreFilesList, error)
	DeleteVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) error
	DeleteFile(ctx context.Context, fileID string) error
}

var _ Client = (*openai.Client)(nil)

// NewOpenAIClient builds an API client from the index configuration.
func NewOpenAIClient(cfg config.IndexConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(clientCfg)
}
