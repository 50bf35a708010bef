// Package shared provides common utility functions used across multiple
// packages in the pipeline-bundles codebase.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

var slugReplacer = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases value and collapses every run of characters outside
// [a-z0-9] into a single underscore, e.g. "https://acme.example.com" ->
// "https_acme_example_com".
func Slug(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	return strings.Trim(slugReplacer.ReplaceAllString(lower, "_"), "_")
}

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	return fmt.Errorf("status=%d url=%s response=%s", status, url, body)
}
