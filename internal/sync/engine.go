package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivanchoo/TracWikiSync/internal/trac"
)

// Remote is the wiki server surface the engine drives. *trac.Client
// satisfies it; tests substitute fakes.
type Remote interface {
	RecentChanges(ctx context.Context) ([]trac.Fact, error)
	TimelineDocuments(ctx context.Context) ([]trac.Fact, error)
	PageVersion(ctx context.Context, name string) (trac.Fact, error)
	Pull(ctx context.Context, name string, version int) (string, error)
	Push(ctx context.Context, name, text, comment string) (trac.Fact, error)
}

// Resolution names the operator's answer to a conflicted or stuck record.
type Resolution string

const (
	// ResolveIgnore excludes the page from synchronization.
	ResolveIgnore Resolution = "ignore"
	// ResolveUnignore re-includes a previously ignored page.
	ResolveUnignore Resolution = "unignore"
	// ResolveLocal keeps the local content and adopts the current remote
	// version as the synchronized remote baseline. No content moves.
	ResolveLocal Resolution = "local"
	// ResolveRemote keeps the remote content and adopts the current local
	// version as the synchronized local baseline. No content moves.
	ResolveRemote Resolution = "remote"
)

// Engine coordinates the store, the local wiki and the remote client into
// the synchronization operations the commands expose. It holds no state of
// its own; every operation reads and writes through the store so concurrent
// invocations see a consistent database.
type Engine struct {
	store   *Store
	wiki    *Wiki
	remote  Remote
	filter  *IgnoreFilter
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewEngine wires an engine over an open store, its wiki content layer and
// a remote client.
func NewEngine(store *Store, wiki *Wiki, remote Remote, filter *IgnoreFilter, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		wiki:    wiki,
		remote:  remote,
		filter:  filter,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Refresh reconciles the tracking table against both sides: local page
// names first, then a full remote snapshot. With timeline set the snapshot
// comes from the timeline view, which only lists recently active pages, so
// records absent from it are left untouched rather than retired.
func (e *Engine) Refresh(ctx context.Context, timeline bool) error {
	if err := e.store.SyncLocalNames(ctx); err != nil {
		return err
	}

	var (
		remoteFacts []trac.Fact
		err         error
	)

	if timeline {
		remoteFacts, err = e.remote.TimelineDocuments(ctx)
	} else {
		remoteFacts, err = e.remote.RecentChanges(ctx)
	}

	if err != nil {
		return err
	}

	facts := make([]PageFact, 0, len(remoteFacts))
	for _, f := range remoteFacts {
		facts = append(facts, PageFact{Name: f.Name, RemoteVersion: f.Version})
	}

	if timeline {
		return e.refreshPartial(ctx, facts)
	}

	return e.store.SyncRemoteBatch(ctx, facts, e.filter)
}

// refreshPartial merges a snapshot that is known to be incomplete: facts
// update or create records, but records missing from the snapshot are not
// treated as deleted remotely.
func (e *Engine) refreshPartial(ctx context.Context, facts []PageFact) error {
	for _, fact := range facts {
		if err := e.mergeRemoteFact(ctx, fact); err != nil {
			return err
		}
	}

	return nil
}

// RefreshOne reconciles a single record by asking the remote for the page's
// current version. A remote 404 clears the record's remote presence instead
// of failing, mirroring what a full refresh would conclude.
func (e *Engine) RefreshOne(ctx context.Context, name string) (*Record, error) {
	if err := e.store.SyncLocalNames(ctx); err != nil {
		return nil, err
	}

	fact, err := e.remote.PageVersion(ctx, name)

	switch {
	case errors.Is(err, trac.ErrNotFound):
		if mergeErr := e.mergeRemoteAbsence(ctx, name); mergeErr != nil {
			return nil, mergeErr
		}
	case err != nil:
		return nil, err
	default:
		if mergeErr := e.mergeRemoteFact(ctx, PageFact{Name: fact.Name, RemoteVersion: fact.Version}); mergeErr != nil {
			return nil, mergeErr
		}
	}

	return e.requireRecord(ctx, name)
}

// mergeRemoteFact folds one observed remote (name, version) into the
// tracking table, creating the record if needed. The ignore filter seeds
// new records and may mark, but never clear, records that have not yet
// completed a reconciliation.
func (e *Engine) mergeRemoteFact(ctx context.Context, fact PageFact) error {
	record, err := e.store.Find(ctx, fact.Name)
	if err != nil {
		return err
	}

	now := e.nowFunc()

	if record == nil {
		fresh := NewRecord(fact.Name)
		fresh.Ignore = e.filter.Matches(fact.Name)
		fresh.RemoteVersion = fact.RemoteVersion
		fresh.SyncTime = now.UnixNano()

		return e.store.Create(ctx, fresh)
	}

	// The filter only ever sets the flag; an operator's choice on a
	// never-reconciled record survives.
	if record.SyncTime == 0 && e.filter.Matches(fact.Name) {
		record.Ignore = true
	}

	record.RemoteVersion = fact.RemoteVersion
	record.SyncTime = now.UnixNano()

	return e.store.Update(ctx, *record)
}

// mergeRemoteAbsence records that a page no longer exists remotely. Records
// with no local content either are deleted outright.
func (e *Engine) mergeRemoteAbsence(ctx context.Context, name string) error {
	record, err := e.store.Find(ctx, name)
	if err != nil || record == nil {
		return err
	}

	if record.LocalVersion == 0 {
		return e.store.Delete(ctx, name)
	}

	record.RemoteVersion = 0
	record.SyncRemoteVersion = 0
	record.SyncTime = e.nowFunc().UnixNano()

	return e.store.Update(ctx, *record)
}

// Pull fetches the record's current remote version, stores it as a new
// local wiki version and marks the record synchronized at the resulting
// pair of versions.
func (e *Engine) Pull(ctx context.Context, name string) (*Record, error) {
	record, err := e.requireRecord(ctx, name)
	if err != nil {
		return nil, err
	}

	if record.RemoteVersion == 0 {
		return nil, fmt.Errorf("%w: %s has no remote version to pull", ErrValidation, name)
	}

	text, err := e.remote.Pull(ctx, name, record.RemoteVersion)
	if err != nil {
		return nil, err
	}

	// An empty remote page is stored as a single space: the content layer
	// refuses empty text, and the original content is recoverable from the
	// remote at any time.
	if text == "" {
		text = " "
	}

	version, err := e.wiki.Save(ctx, name, text, trac.DefaultSignature)
	if err != nil && !errors.Is(err, ErrPageUnchanged) {
		return nil, err
	}

	record.LocalVersion = version

	synced, err := record.Synchronized(e.nowFunc())
	if err != nil {
		return nil, err
	}

	if err := e.store.Update(ctx, synced); err != nil {
		return nil, err
	}

	e.logger.Info("pulled page",
		slog.String("name", name),
		slog.Int("remote_version", synced.RemoteVersion),
		slog.Int("local_version", synced.LocalVersion))

	return &synced, nil
}

// Push submits the record's current local content to the remote, adopts the
// version the remote assigned and marks the record synchronized.
func (e *Engine) Push(ctx context.Context, name, comment string) (*Record, error) {
	record, err := e.requireRecord(ctx, name)
	if err != nil {
		return nil, err
	}

	page, err := e.wiki.Page(ctx, name)
	if err != nil {
		return nil, err
	}

	if page == nil {
		return nil, fmt.Errorf("%w: %s has no local content to push", ErrPageNotFound, name)
	}

	fact, err := e.remote.Push(ctx, name, page.Text, comment)
	if err != nil {
		return nil, err
	}

	record.RemoteVersion = fact.Version
	record.LocalVersion = page.Version

	synced, err := record.Synchronized(e.nowFunc())
	if err != nil {
		return nil, err
	}

	if err := e.store.Update(ctx, synced); err != nil {
		return nil, err
	}

	e.logger.Info("pushed page",
		slog.String("name", name),
		slog.Int("remote_version", synced.RemoteVersion),
		slog.Int("local_version", synced.LocalVersion))

	return &synced, nil
}

// Resolve applies an operator decision to one record. Local and remote
// resolutions adopt the other side's live version as the synchronized
// baseline without moving any content; ignore and unignore flip the
// record's flag. Every resolution is a single record write.
func (e *Engine) Resolve(ctx context.Context, name string, resolution Resolution) (*Record, error) {
	record, err := e.requireRecord(ctx, name)
	if err != nil {
		return nil, err
	}

	switch resolution {
	case ResolveIgnore:
		record.Ignore = true
	case ResolveUnignore:
		record.Ignore = false
	case ResolveLocal:
		record.SyncRemoteVersion = record.RemoteVersion
	case ResolveRemote:
		record.SyncLocalVersion = record.LocalVersion
	default:
		return nil, fmt.Errorf("%w: unknown resolution %q", ErrValidation, resolution)
	}

	if err := e.store.Update(ctx, *record); err != nil {
		return nil, err
	}

	return record, nil
}

// requireRecord is Find with not-found promoted to an error.
func (e *Engine) requireRecord(ctx context.Context, name string) (*Record, error) {
	record, err := e.store.Find(ctx, name)
	if err != nil {
		return nil, err
	}

	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, name)
	}

	return record, nil
}
