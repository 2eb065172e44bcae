package sync

import (
	"fmt"
	"time"
)

// Status classifies one tracking record. It is computed from the record's
// current fields on every call and never persisted, so a stale status is
// unobservable.
type Status string

// Record statuses, from strongest knowledge to weakest.
const (
	// StatusSynced means both sides match the last synchronized versions.
	StatusSynced Status = "synced"
	// StatusModified means the local side advanced past its baseline.
	StatusModified Status = "modified"
	// StatusOutdated means the remote side advanced past its baseline.
	StatusOutdated Status = "outdated"
	// StatusConflict means both sides advanced, or a version regressed.
	StatusConflict Status = "conflict"
	// StatusNew means the page exists locally only.
	StatusNew Status = "new"
	// StatusMissing means the page exists remotely only.
	StatusMissing Status = "missing"
	// StatusIgnored means the page is excluded from synchronization.
	StatusIgnored Status = "ignored"
	// StatusUnknown means the record has never been reconciled.
	StatusUnknown Status = "unknown"
)

// Record tracks one page name across both sides. Versions are positive;
// zero means "no version known". SyncTime is Unix nanoseconds; zero means
// the record has never completed a reconciliation.
type Record struct {
	Name              string
	Ignore            bool
	IgnoreAttachment  bool
	SyncTime          int64
	SyncRemoteVersion int
	SyncLocalVersion  int
	RemoteVersion     int
	LocalVersion      int
}

// NewRecord returns a blank record for the named page.
func NewRecord(name string) Record {
	return Record{Name: name}
}

// Validate rejects records that cannot be stored.
func (r Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: record name required", ErrValidation)
	}

	return nil
}

// Status classifies the record. The rules are evaluated in order; the
// first that applies wins:
//
//	ignored   the ignore flag is set
//	unknown   never reconciled (SyncTime zero)
//	missing   remote copy only
//	new       local copy only
//	conflict  both sides advanced past their baselines
//	outdated  remote advanced
//	modified  local advanced
//	synced    both sides sit exactly at their baselines
//	conflict  anything else (a version moved backwards)
func (r Record) Status() Status {
	if r.Ignore {
		return StatusIgnored
	}

	if r.SyncTime == 0 {
		return StatusUnknown
	}

	switch {
	case r.RemoteVersion > 0 && r.LocalVersion == 0:
		return StatusMissing
	case r.LocalVersion > 0 && r.RemoteVersion == 0:
		return StatusNew
	case r.RemoteVersion > r.SyncRemoteVersion && r.LocalVersion > r.SyncLocalVersion:
		return StatusConflict
	case r.RemoteVersion > r.SyncRemoteVersion:
		return StatusOutdated
	case r.LocalVersion > r.SyncLocalVersion:
		return StatusModified
	case r.RemoteVersion == r.SyncRemoteVersion && r.LocalVersion == r.SyncLocalVersion:
		return StatusSynced
	default:
		return StatusConflict
	}
}

// Synchronized returns a copy with both baselines set to the live versions
// and the reconciliation time stamped. It is an error to synchronize a
// record while either side has no version: the caller has not actually
// transferred content yet.
func (r Record) Synchronized(now time.Time) (Record, error) {
	if r.LocalVersion == 0 || r.RemoteVersion == 0 {
		return r, fmt.Errorf("%w: %s: cannot mark synchronized at local v%d, remote v%d",
			ErrValidation, r.Name, r.LocalVersion, r.RemoteVersion)
	}

	r.SyncLocalVersion = r.LocalVersion
	r.SyncRemoteVersion = r.RemoteVersion
	r.SyncTime = now.UnixNano()

	return r, nil
}

// PageFact is one observed remote page name and version, the unit of input
// to remote reconciliation.
type PageFact struct {
	Name          string
	RemoteVersion int
}
