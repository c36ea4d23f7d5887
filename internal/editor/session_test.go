package editor

import (
	"context"
	"testing"
	"time"

	"github.com/sumukeio/sumu-note-sync/internal/notes"
	"github.com/sumukeio/sumu-note-sync/internal/remote"
)

func TestSaveDerivesTitleFromFirstContentLine(t *testing.T) {
	fixture := newFixture(t)
	var derivedTitle string
	fixture.session.onTitleDerived = func(title string) { derivedTitle = title }

	fixture.session.Save(context.Background(), SaveRequest{
		Title:   "",
		Content: "Hello world\nbody",
	})

	if derivedTitle != "Hello world" {
		t.Fatalf("expected derived title %q, got %q", "Hello world", derivedTitle)
	}
	if fixture.store.lastPatch.Title != "Hello world" {
		t.Fatalf("expected remote update with derived title, got %q", fixture.store.lastPatch.Title)
	}
}

func TestSaveSuccessRecordsBookkeeping(t *testing.T) {
	fixture := newFixture(t)

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body"})

	if status := fixture.session.Status(); status != notes.SaveStatusSaved {
		t.Fatalf("expected saved status, got %s", status)
	}

	fixture.session.mu.Lock()
	book := fixture.session.book
	fixture.session.mu.Unlock()

	if !book.isSaving {
		t.Fatalf("expected isSaving to stay set during the cool-down window")
	}
	if book.lastSavedTimestamp == "" || book.pendingSelfUpdateTimestamp != book.lastSavedTimestamp {
		t.Fatalf("expected pending self-update timestamp to match last saved: %#v", book)
	}
	if book.recentSelfUpdates.len() != 1 {
		t.Fatalf("expected one recorded self update, got %d", book.recentSelfUpdates.len())
	}

	fixture.timers.fireAll()
	fixture.session.mu.Lock()
	book = fixture.session.book
	fixture.session.mu.Unlock()
	if book.isSaving || book.pendingSelfUpdateTimestamp != "" || book.pendingSelfFingerprint != "" {
		t.Fatalf("expected cool-down to clear in-flight markers: %#v", book)
	}
	if book.recentSelfUpdates.len() != 1 {
		t.Fatalf("cool-down must not clear recent self updates")
	}
}

func TestSaveRetriesNonNetworkFailureExactlyThreeTimes(t *testing.T) {
	fixture := newFixture(t)
	fixture.store.updateErrs = []error{
		remoteErr("Internal Server Error"),
		remoteErr("Internal Server Error"),
		remoteErr("Internal Server Error"),
	}

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body"})

	if calls := fixture.store.calls(); calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
	if status := fixture.session.Status(); status != notes.SaveStatusError {
		t.Fatalf("expected error status, got %s", status)
	}
	if len(fixture.sleeps) != 2 || fixture.sleeps[0] != time.Second || fixture.sleeps[1] != 2*time.Second {
		t.Fatalf("expected linear backoff between attempts, got %v", fixture.sleeps)
	}

	all := fixture.notices.all()
	if len(all) == 0 {
		t.Fatalf("expected notifications")
	}
	last := all[len(all)-1]
	if last.level != NoticeError || last.message != "Internal Server Error" {
		t.Fatalf("expected verbatim final error notification, got %+v", last)
	}
	progress := all[0]
	if progress.level != NoticeInfo || progress.message != "save failed, retrying 1/3" {
		t.Fatalf("expected retry progress notification, got %+v", progress)
	}
}

func TestSaveRecoversAfterTransientFailure(t *testing.T) {
	fixture := newFixture(t)
	fixture.store.updateErrs = []error{remoteErr("schema mismatch"), nil}

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body"})

	if calls := fixture.store.calls(); calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if status := fixture.session.Status(); status != notes.SaveStatusSaved {
		t.Fatalf("expected saved status, got %s", status)
	}
}

func TestSaveOfflineNeverCallsRemote(t *testing.T) {
	fixture := newFixture(t)
	fixture.online = false

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body", Tags: []string{"a"}})

	if fixture.store.calls() != 0 {
		t.Fatalf("expected no remote calls while offline")
	}
	if len(fixture.pending.entries) != 1 {
		t.Fatalf("expected one staged entry, got %d", len(fixture.pending.entries))
	}
	entry := fixture.pending.entries[0]
	if entry.NoteID != "note-1" || entry.Tags != "a" {
		t.Fatalf("unexpected staged entry: %#v", entry)
	}
	if status := fixture.session.Status(); status != notes.SaveStatusSaved {
		t.Fatalf("expected locally-saved status, got %s", status)
	}
}

func TestSaveDegradesToQueueOnNetworkFailure(t *testing.T) {
	fixture := newFixture(t)
	fixture.store.updateErrs = []error{
		&remote.StoreError{Kind: remote.KindNetwork, Message: "connection refused"},
	}

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body"})

	if calls := fixture.store.calls(); calls != 1 {
		t.Fatalf("expected a single remote attempt, got %d", calls)
	}
	if len(fixture.pending.entries) != 1 {
		t.Fatalf("expected the save to stage offline")
	}
	if status := fixture.session.Status(); status != notes.SaveStatusSaved {
		t.Fatalf("expected locally-saved status, got %s", status)
	}
}

func TestSaveSurfacesStorageUnavailable(t *testing.T) {
	fixture := newFixture(t)
	fixture.online = false
	fixture.pending.putErr = remoteErr("quota exceeded")

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body"})

	if status := fixture.session.Status(); status != notes.SaveStatusError {
		t.Fatalf("expected error status, got %s", status)
	}
	all := fixture.notices.all()
	if len(all) != 1 || all[0].level != NoticeError {
		t.Fatalf("expected a single error notification, got %#v", all)
	}
}

func TestSaveAppendsVersionSnapshot(t *testing.T) {
	fixture := newFixture(t)

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body"})

	deadline := time.Now().Add(time.Second)
	for {
		fixture.store.mu.Lock()
		count := len(fixture.store.snapshots)
		fixture.store.mu.Unlock()
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected a version snapshot, got %d", count)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSaveSuccessNotificationOnlyWhenRequested(t *testing.T) {
	fixture := newFixture(t)

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body"})
	if len(fixture.notices.all()) != 0 {
		t.Fatalf("autosave must stay silent, got %#v", fixture.notices.all())
	}

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body", ShowNotification: true})
	all := fixture.notices.all()
	if len(all) != 1 || all[0].level != NoticeSuccess {
		t.Fatalf("expected one success notification, got %#v", all)
	}
}

func TestMarkUnsavedIsOnlyAUIFlag(t *testing.T) {
	fixture := newFixture(t)

	fixture.session.MarkUnsaved()
	if status := fixture.session.Status(); status != notes.SaveStatusUnsaved {
		t.Fatalf("expected unsaved status, got %s", status)
	}

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body"})
	if status := fixture.session.Status(); status != notes.SaveStatusSaved {
		t.Fatalf("expected saved status after save, got %s", status)
	}
}

func TestSaveAfterCloseIsNoOp(t *testing.T) {
	fixture := newFixture(t)
	fixture.session.Close()

	fixture.session.Save(context.Background(), SaveRequest{Title: "Title", Content: "body"})
	if fixture.store.calls() != 0 {
		t.Fatalf("expected no remote calls after close")
	}
}

func TestRecentSelfUpdatesEvictsOldestPastCapacity(t *testing.T) {
	recent := newRecentUpdates(3)
	recent.put("t1", "f1")
	recent.put("t2", "f2")
	recent.put("t3", "f3")
	recent.put("t4", "f4")

	if recent.len() != 3 {
		t.Fatalf("expected capacity 3, got %d", recent.len())
	}
	if _, ok := recent.get("t1"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if fp, ok := recent.get("t4"); !ok || fp != "f4" {
		t.Fatalf("expected newest entry to remain")
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "plain-first-line", content: "Hello world\nbody", expected: "Hello world"},
		{name: "heading-markers", content: "## Meeting notes", expected: "Meeting notes"},
		{name: "emphasis-markers", content: "*important* _thing_", expected: "important thing"},
		{name: "truncated", content: "0123456789012345678901234567890123456789", expected: "012345678901234567890123456789"},
		{name: "empty", content: "", expected: "Untitled"},
		{name: "blank-line", content: "   \nsecond", expected: "Untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if derived := DeriveTitle(tt.content); derived != tt.expected {
				t.Fatalf("expected %q, got %q", tt.expected, derived)
			}
		})
	}
}
