package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ivanchoo/TracWikiSync/internal/trac"
)

// fakeRemote is a scripted Remote: it serves page facts and content from
// maps and records pushes.
type fakeRemote struct {
	facts    []trac.Fact
	timeline []trac.Fact
	pages    map[string]string
	pushed   map[string]string
	nextPush int
	listErr  error
}

func (f *fakeRemote) RecentChanges(context.Context) ([]trac.Fact, error) {
	return f.facts, f.listErr
}

func (f *fakeRemote) TimelineDocuments(context.Context) ([]trac.Fact, error) {
	return f.timeline, f.listErr
}

func (f *fakeRemote) PageVersion(_ context.Context, name string) (trac.Fact, error) {
	for _, fact := range f.facts {
		if fact.Name == name {
			return fact, nil
		}
	}

	return trac.Fact{}, fmt.Errorf("page %s: %w", name, trac.ErrNotFound)
}

func (f *fakeRemote) Pull(_ context.Context, name string, _ int) (string, error) {
	text, ok := f.pages[name]
	if !ok {
		return "", fmt.Errorf("page %s: %w", name, trac.ErrNotFound)
	}

	return text, nil
}

func (f *fakeRemote) Push(_ context.Context, name, text, _ string) (trac.Fact, error) {
	if f.pushed == nil {
		f.pushed = make(map[string]string)
	}

	f.pushed[name] = text
	f.nextPush++

	return trac.Fact{Name: name, Version: f.nextPush}, nil
}

func newTestEngine(t *testing.T, remote *fakeRemote, patterns string) (*Engine, *Store, *Wiki) {
	t.Helper()

	store := newTestStore(t)
	wiki := NewWiki(store.DB(), testLogger(t))

	filter, err := NewIgnoreFilter(patterns)
	if err != nil {
		t.Fatalf("NewIgnoreFilter: %v", err)
	}

	return NewEngine(store, wiki, remote, filter, testLogger(t)), store, wiki
}

func TestEngineRefresh(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{
		facts: []trac.Fact{
			{Name: "WikiStart", Version: 4},
			{Name: "TracGuide", Version: 1},
		},
	}

	engine, store, wiki := newTestEngine(t, remote, "Trac.*")
	ctx := context.Background()

	if _, err := wiki.Save(ctx, "LocalDraft", "draft", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := engine.Refresh(ctx, false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	ws := mustFind(t, store, "WikiStart")
	if ws.Status() != StatusMissing {
		t.Errorf("WikiStart status = %q, want missing", ws.Status())
	}

	if tg := mustFind(t, store, "TracGuide"); tg.Status() != StatusIgnored {
		t.Errorf("TracGuide status = %q, want ignored", tg.Status())
	}

	// LocalDraft was registered from the local side and survived the
	// remote batch with its local content intact.
	draft := mustFind(t, store, "LocalDraft")
	if draft.LocalVersion != 1 || draft.RemoteVersion != 0 {
		t.Errorf("LocalDraft = %+v", draft)
	}
}

func TestEngineRefreshTimelineIsPartial(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{
		timeline: []trac.Fact{{Name: "Active", Version: 2}},
	}

	engine, store, _ := newTestEngine(t, remote, "")
	ctx := context.Background()

	// A record the timeline does not mention.
	quiet := NewRecord("Quiet")
	quiet.RemoteVersion = 5
	quiet.SyncTime = 1
	mustCreate(t, store, quiet)

	if err := engine.Refresh(ctx, true); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got := mustFind(t, store, "Active"); got.RemoteVersion != 2 {
		t.Errorf("Active = %+v", got)
	}

	if got := mustFind(t, store, "Quiet"); got.RemoteVersion != 5 {
		t.Errorf("timeline refresh retired an unlisted record: %+v", got)
	}
}

func TestEngineRefreshOne(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{
		facts: []trac.Fact{{Name: "WikiStart", Version: 3}},
	}

	engine, _, _ := newTestEngine(t, remote, "")
	ctx := context.Background()

	rec, err := engine.RefreshOne(ctx, "WikiStart")
	if err != nil {
		t.Fatalf("RefreshOne: %v", err)
	}

	if rec.RemoteVersion != 3 || rec.Status() != StatusMissing {
		t.Errorf("record = %+v, status %q", rec, rec.Status())
	}
}

func TestEngineRefreshOneRemoteGone(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{}
	engine, store, wiki := newTestEngine(t, remote, "")
	ctx := context.Background()

	if _, err := wiki.Save(ctx, "Kept", "local text", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	kept := NewRecord("Kept")
	kept.RemoteVersion = 2
	kept.SyncRemoteVersion = 2
	kept.SyncTime = 1
	mustCreate(t, store, kept)

	rec, err := engine.RefreshOne(ctx, "Kept")
	if err != nil {
		t.Fatalf("RefreshOne: %v", err)
	}

	if rec.RemoteVersion != 0 || rec.SyncRemoteVersion != 0 {
		t.Errorf("remote fields not cleared: %+v", rec)
	}
}

func TestEngineRefreshOneKeepsOperatorIgnore(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{
		facts: []trac.Fact{{Name: "LocalDraft", Version: 2}},
	}

	// Filter does not match the page; only the operator set the flag.
	engine, store, wiki := newTestEngine(t, remote, "Trac.*")
	ctx := context.Background()

	if _, err := wiki.Save(ctx, "LocalDraft", "draft", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.SyncLocalNames(ctx); err != nil {
		t.Fatalf("SyncLocalNames: %v", err)
	}

	if _, err := engine.Resolve(ctx, "LocalDraft", ResolveIgnore); err != nil {
		t.Fatalf("Resolve(ignore): %v", err)
	}

	rec, err := engine.RefreshOne(ctx, "LocalDraft")
	if err != nil {
		t.Fatalf("RefreshOne: %v", err)
	}

	if !rec.Ignore {
		t.Errorf("operator ignore flag cleared on first reconciliation: %+v", rec)
	}

	if rec.Status() != StatusIgnored {
		t.Errorf("status = %q, want ignored", rec.Status())
	}

	// A matching filter still marks other never-reconciled records.
	if _, err := wiki.Save(ctx, "TracNotes", "notes", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	remote.facts = append(remote.facts, trac.Fact{Name: "TracNotes", Version: 1})

	rec, err = engine.RefreshOne(ctx, "TracNotes")
	if err != nil {
		t.Fatalf("RefreshOne: %v", err)
	}

	if !rec.Ignore {
		t.Errorf("filter did not mark matching record: %+v", rec)
	}
}

func TestEnginePull(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{
		facts: []trac.Fact{{Name: "WikiStart", Version: 2}},
		pages: map[string]string{"WikiStart": "remote content"},
	}

	engine, _, wiki := newTestEngine(t, remote, "")
	ctx := context.Background()

	if err := engine.Refresh(ctx, false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	rec, err := engine.Pull(ctx, "WikiStart")
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if rec.Status() != StatusSynced {
		t.Errorf("status after pull = %q, want synced", rec.Status())
	}

	page, err := wiki.Page(ctx, "WikiStart")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}

	if page.Text != "remote content" {
		t.Errorf("local text = %q", page.Text)
	}

	// Pulling the same content again is still a success.
	if _, err := engine.Pull(ctx, "WikiStart"); err != nil {
		t.Fatalf("second Pull: %v", err)
	}
}

func TestEnginePullEmptyRemotePage(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{
		facts: []trac.Fact{{Name: "Blank", Version: 1}},
		pages: map[string]string{"Blank": ""},
	}

	engine, _, wiki := newTestEngine(t, remote, "")
	ctx := context.Background()

	if err := engine.Refresh(ctx, false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, err := engine.Pull(ctx, "Blank"); err != nil {
		t.Fatalf("Pull: %v", err)
	}

	page, err := wiki.Page(ctx, "Blank")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}

	if page == nil || page.Text != " " {
		t.Errorf("empty remote page stored as %+v, want single space", page)
	}
}

func TestEnginePullWithoutRemoteVersion(t *testing.T) {
	t.Parallel()

	engine, store, _ := newTestEngine(t, &fakeRemote{}, "")
	ctx := context.Background()

	local := NewRecord("LocalOnly")
	local.SyncTime = 1
	mustCreate(t, store, local)

	if _, err := engine.Pull(ctx, "LocalOnly"); !errors.Is(err, ErrValidation) {
		t.Errorf("Pull error = %v, want ErrValidation", err)
	}
}

func TestEnginePush(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{nextPush: 4}
	engine, store, wiki := newTestEngine(t, remote, "")
	ctx := context.Background()

	if _, err := wiki.Save(ctx, "Draft", "local text", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.SyncLocalNames(ctx); err != nil {
		t.Fatalf("SyncLocalNames: %v", err)
	}

	rec, err := engine.Push(ctx, "Draft", "publishing")
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	if remote.pushed["Draft"] != "local text" {
		t.Errorf("pushed text = %q", remote.pushed["Draft"])
	}

	if rec.RemoteVersion != 5 {
		t.Errorf("RemoteVersion = %d, want the version the remote assigned", rec.RemoteVersion)
	}

	if rec.Status() != StatusSynced {
		t.Errorf("status after push = %q, want synced", rec.Status())
	}
}

func TestEnginePushWithoutLocalContent(t *testing.T) {
	t.Parallel()

	engine, store, _ := newTestEngine(t, &fakeRemote{}, "")
	ctx := context.Background()

	rec := NewRecord("RemoteOnly")
	rec.RemoteVersion = 1
	rec.SyncTime = 1
	mustCreate(t, store, rec)

	if _, err := engine.Push(ctx, "RemoteOnly", ""); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Push error = %v, want ErrPageNotFound", err)
	}
}

func TestEngineResolve(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{
		facts: []trac.Fact{{Name: "Contested", Version: 3}},
	}

	engine, _, wiki := newTestEngine(t, remote, "")
	ctx := context.Background()

	if _, err := wiki.Save(ctx, "Contested", "local wins", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := engine.Refresh(ctx, false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	rec, err := engine.Resolve(ctx, "Contested", ResolveIgnore)
	if err != nil {
		t.Fatalf("Resolve(ignore): %v", err)
	}

	if rec.Status() != StatusIgnored {
		t.Errorf("status = %q, want ignored", rec.Status())
	}

	if _, err := engine.Resolve(ctx, "Contested", ResolveUnignore); err != nil {
		t.Fatalf("Resolve(unignore): %v", err)
	}

	rec, err = engine.Resolve(ctx, "Contested", ResolveRemote)
	if err != nil {
		t.Fatalf("Resolve(remote): %v", err)
	}

	if rec.SyncLocalVersion != 1 {
		t.Errorf("SyncLocalVersion = %d, want 1", rec.SyncLocalVersion)
	}

	if rec.Status() != StatusOutdated {
		t.Errorf("status after resolve remote = %q, want outdated", rec.Status())
	}

	rec, err = engine.Resolve(ctx, "Contested", ResolveLocal)
	if err != nil {
		t.Fatalf("Resolve(local): %v", err)
	}

	if rec.SyncRemoteVersion != 3 {
		t.Errorf("SyncRemoteVersion = %d, want 3", rec.SyncRemoteVersion)
	}

	if rec.Status() != StatusSynced {
		t.Errorf("status after both resolutions = %q, want synced", rec.Status())
	}

	// Resolutions only move baselines; nothing was pulled or pushed.
	page, err := wiki.Page(ctx, "Contested")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}

	if page.Text != "local wins" {
		t.Errorf("local text after resolutions = %q, want untouched", page.Text)
	}

	if _, err := engine.Resolve(ctx, "Contested", Resolution("coin-toss")); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown resolution error = %v, want ErrValidation", err)
	}

	if _, err := engine.Resolve(ctx, "NoSuchPage", ResolveIgnore); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("missing record error = %v, want ErrRecordNotFound", err)
	}
}
