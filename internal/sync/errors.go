// Package sync tracks wiki pages across a local versioned store and a
// remote Trac installation. It keeps one record per page name relating the
// live local and remote versions to the pair last synchronized, classifies
// every record into a status on demand, and reconciles the records against
// snapshots of either side.
package sync

import "errors"

// Sentinel errors for state and content operations. Callers match these
// with errors.Is.
var (
	// ErrValidation marks rejected input: empty names, uncompilable
	// ignore patterns, operations on records missing a required version.
	ErrValidation = errors.New("sync: validation failed")

	// ErrRecordNotFound is returned by operations that require an
	// existing tracking record.
	ErrRecordNotFound = errors.New("sync: record not found")

	// ErrPageNotFound is returned by operations that require existing
	// local page content.
	ErrPageNotFound = errors.New("sync: page not found")

	// ErrPageUnchanged reports that a save was skipped because the text
	// is identical to the current revision.
	ErrPageUnchanged = errors.New("sync: page unchanged")
)
