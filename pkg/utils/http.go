// Package utils provides common utility functions.
package utils

import "net/http"

// DefaultUserAgent identifies the sync worker to upstream APIs.
const DefaultUserAgent = "kbsync-worker/1.0"

// HTTPHelper provides HTTP utility functions.
type HTTPHelper struct {
	userAgent string
}

// NewHTTPHelper creates a new HTTP helper.
func NewHTTPHelper() *HTTPHelper {
	return &HTTPHelper{userAgent: DefaultUserAgent}
}

// BuildHeaders creates HTTP headers for a JSON API request.
// Custom headers are added after the defaults and replace them.
func (h *HTTPHelper) BuildHeaders(customHeaders map[string]string) http.Header {
	headers := http.Header{}

	headers.Set("User-Agent", h.userAgent)
	headers.Set("Accept", "application/json")

	for key, value := range customHeaders {
		headers.Set(key, value)
	}

	return headers
}

// IsSuccess reports whether an HTTP status code is 2xx.
func IsSuccess(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}
