// Package trac emulates a structured API over a Trac wiki that only
// exposes its human-facing web interface. It authenticates against the
// session-cookie login flow and recovers structured facts (page names,
// version numbers, edit-form fields) by scraping HTML pages with strict
// document-shape assumptions.
package trac

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for remote call classification. Check with errors.Is.
var (
	// ErrAuthFailed marks a failed login, or a second 401 after the single
	// re-authentication retry. Fatal to the whole client session.
	ErrAuthFailed = errors.New("trac: authentication failed")

	// ErrNotFound marks an HTTP 404 for a page or version.
	ErrNotFound = errors.New("trac: not found")

	errUnauthorized = errors.New("trac: unauthorized")
)

// HTTPError wraps a non-2xx response with its status code and URL.
// Transport failures are fatal to the single remote call and are never
// retried.
type HTTPError struct {
	StatusCode int
	URL        string
	Err        error // sentinel, for errors.Is()
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("trac: HTTP %d from %s", e.StatusCode, e.URL)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return errUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// ScrapeError reports that an HTML response did not contain a landmark the
// remote contract requires (listing container, edit form, version link).
// It indicates the page shape changed or the page does not exist; a value
// that was structurally expected never silently defaults to empty.
type ScrapeError struct {
	Missing string
}

func (e *ScrapeError) Error() string {
	return "trac: expected " + e.Missing + " not found in page"
}
