// Package models defines data structures shared by the fetcher and the sync pipeline.
package models

import (
	"errors"
	"time"
)

// ErrMissingHTMLURL is returned when a fetched article has no canonical URL to derive a slug from.
var ErrMissingHTMLURL = errors.New("article has no html_url")

// Article is one help-center article as returned by the listing endpoint.
// It only lives for the duration of a run.
type Article struct {
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	HTMLURL   string    `json:"html_url"`
	Locale    string    `json:"locale"`
	ID        int64     `json:"id"`
}

// Validate checks the fields the pipeline depends on.
func (a *Article) Validate() error {
	if a.HTMLURL == "" {
		return ErrMissingHTMLURL
	}

	return nil
}
