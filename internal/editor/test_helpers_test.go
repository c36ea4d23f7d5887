package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sumukeio/sumu-note-sync/internal/notes"
	"github.com/sumukeio/sumu-note-sync/internal/queue"
	"github.com/sumukeio/sumu-note-sync/internal/remote"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStore struct {
	mu           sync.Mutex
	updateErrs   []error
	updateCalls  int
	lastPatch    remote.Patch
	snapshots    []remote.VersionSnapshot
	rowUpdatedAt string
}

func (f *fakeStore) UpdateRow(ctx context.Context, table, id, ownerID string, patch remote.Patch) (remote.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastPatch = patch
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return remote.Row{}, err
		}
	}
	updatedAt := f.rowUpdatedAt
	if updatedAt == "" {
		updatedAt = patch.UpdatedAt
	}
	return remote.Row{
		ID:          id,
		UserID:      ownerID,
		Title:       patch.Title,
		Content:     patch.Content,
		Tags:        patch.Tags,
		IsPinned:    patch.IsPinned,
		IsPublished: patch.IsPublished,
		UpdatedAt:   updatedAt,
	}, nil
}

func (f *fakeStore) InsertVersionSnapshot(ctx context.Context, snapshot remote.VersionSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateCalls
}

type fakePending struct {
	mu      sync.Mutex
	entries []queue.PendingNote
	putErr  error
}

func (f *fakePending) Put(ctx context.Context, entry queue.PendingNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

type notice struct {
	level   NoticeLevel
	message string
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []notice
}

func (r *noticeRecorder) record(level NoticeLevel, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{level: level, message: message})
}

func (r *noticeRecorder) all() []notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notice(nil), r.notices...)
}

// manualScheduler captures cool-down callbacks so tests decide when the
// window closes.
type manualScheduler struct {
	mu        sync.Mutex
	callbacks []func()
	cancelled int
}

func (m *manualScheduler) schedule(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
	return func() {
		m.mu.Lock()
		m.cancelled++
		m.mu.Unlock()
	}
}

func (m *manualScheduler) fireAll() {
	m.mu.Lock()
	callbacks := m.callbacks
	m.callbacks = nil
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

type sessionFixture struct {
	session  *Session
	store    *fakeStore
	pending  *fakePending
	clock    *fakeClock
	notices  *noticeRecorder
	timers   *manualScheduler
	sleeps   []time.Duration
	external []remote.Row
	online   bool
}

func newFixture(t *testing.T) *sessionFixture {
	t.Helper()
	fixture := &sessionFixture{
		store:   &fakeStore{},
		pending: &fakePending{},
		clock:   newFakeClock(time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)),
		notices: &noticeRecorder{},
		timers:  &manualScheduler{},
		online:  true,
	}

	session, err := NewSession(Config{
		Note:     mustNoteID(t, "note-1"),
		Owner:    mustUserID(t, "user-1"),
		Store:    fixture.store,
		Pending:  fixture.pending,
		IsOnline: func() bool { return fixture.online },
		Clock:    fixture.clock.Now,
		Sleep: func(ctx context.Context, d time.Duration) error {
			fixture.sleeps = append(fixture.sleeps, d)
			fixture.clock.Advance(d)
			return nil
		},
		Schedule: fixture.timers.schedule,
		Notify:   fixture.notices.record,
		OnExternalUpdate: func(row remote.Row) {
			fixture.external = append(fixture.external, row)
		},
	})
	if err != nil {
		t.Fatalf("unexpected session error: %v", err)
	}
	fixture.session = session
	return fixture
}

func mustNoteID(t *testing.T, value string) notes.NoteID {
	t.Helper()
	id, err := notes.NewNoteID(value)
	if err != nil {
		t.Fatalf("unexpected note id error: %v", err)
	}
	return id
}

func mustUserID(t *testing.T, value string) notes.UserID {
	t.Helper()
	id, err := notes.NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func remoteErr(message string) error {
	return &scriptedRemoteError{message: message}
}

type scriptedRemoteError struct {
	message string
}

func (e *scriptedRemoteError) Error() string { return e.message }
