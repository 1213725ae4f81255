// Package crawler fetches article listings from a help-center REST API.
package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"kbsync/internal/config"
	"kbsync/internal/models"
)

// ErrInvalidSlug is returned when no slug can be derived from an article URL.
var ErrInvalidSlug = errors.New("cannot derive slug from URL")

// Fetcher retrieves the current set of articles from the source.
type Fetcher interface {
	FetchArticles(ctx context.Context) ([]models.Article, error)
}

type articlesResponse struct {
	Articles []models.Article `json:"articles"`
}

// Client fetches one bounded page of articles. Pagination links are not followed.
type Client struct {
	scraper *Scraper
	url     string
}

// NewClient creates a client for the listing endpoint described by cfg.
func NewClient(cfg *config.Config) *Client {
	return NewClientWithDeps(NewScraper(cfg.Source.Timeout()), cfg.ArticlesURL())
}

// NewClientWithDeps creates a client with an injected scraper and endpoint URL.
func NewClientWithDeps(scraper *Scraper, articlesURL string) *Client {
	return &Client{
		scraper: scraper,
		url:     articlesURL,
	}
}

// URL returns the listing endpoint the client reads.
func (c *Client) URL() string {
	return c.url
}

// FetchArticles performs a single GET against the listing endpoint and decodes the
// articles array. Network errors and non-2xx responses are returned as-is.
func (c *Client) FetchArticles(ctx context.Context) ([]models.Article, error) {
	body, err := c.scraper.Scrape(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch articles: %w", err)
	}

	var resp articlesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode articles response: %w", err)
	}

	for i := range resp.Articles {
		if err := resp.Articles[i].Validate(); err != nil {
			return nil, fmt.Errorf("article %d (id %d): %w", i, resp.Articles[i].ID, err)
		}
	}

	return resp.Articles, nil
}

// ExtractSlug returns the last non-empty path segment of an article URL.
func ExtractSlug(htmlURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(htmlURL))
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidSlug, htmlURL, err)
	}

	slug := path.Base(strings.TrimRight(u.Path, "/"))
	if slug == "" || slug == "." || slug == "/" {
		return "", fmt.Errorf("%w %q", ErrInvalidSlug, htmlURL)
	}

	return slug, nil
}
