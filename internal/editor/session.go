package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sumukeio/sumu-note-sync/internal/notes"
	"github.com/sumukeio/sumu-note-sync/internal/queue"
	"github.com/sumukeio/sumu-note-sync/internal/remote"
	"go.uber.org/zap"
)

const (
	opSessionNew      = "editor.session.new"
	opSave            = "editor.save"
	opVersionSnapshot = "editor.version_snapshot"

	defaultMaxAttempts  = 3
	defaultRetryBackoff = time.Second
	defaultCoolDown     = 3 * time.Second
	snapshotTimeout     = 10 * time.Second
)

var (
	errMissingNoteID       = errors.New("editor: note id is required")
	errMissingOwnerID      = errors.New("editor: owner id is required")
	errMissingRemoteStore  = errors.New("editor: remote store is required")
	errMissingPendingStore = errors.New("editor: pending store is required")
	noOpLogger             = zap.NewNop()
)

// NoticeLevel grades the user-visible notifications emitted by the save
// pipeline.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notifier receives user-visible save notifications. The pipeline never
// returns errors to its caller; this is the side channel.
type Notifier func(level NoticeLevel, message string)

// PendingStore is the slice of the offline queue the save pipeline needs.
type PendingStore interface {
	Put(ctx context.Context, entry queue.PendingNote) error
}

// SaveRequest carries one logical "save the note" invocation.
type SaveRequest struct {
	Title            string
	Content          string
	Tags             []string
	IsPinned         bool
	IsPublished      bool
	ShowNotification bool
}

// Config assembles a per-note editing session.
type Config struct {
	Note    notes.NoteID
	Owner   notes.UserID
	Store   remote.Store
	Pending PendingStore

	// IsOnline is the connectivity oracle. Defaults to always-online.
	IsOnline func() bool

	Clock func() time.Time
	// Sleep suspends between retry attempts; injectable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// Schedule runs fn after d and returns a cancel function; injectable
	// for tests. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, fn func()) func()

	Thresholds   FilterThresholds
	MaxAttempts  int
	RetryBackoff time.Duration
	CoolDown     time.Duration

	Logger *zap.Logger
	Notify Notifier

	// OnTitleDerived reports a title derived from content so the visible
	// title field can update.
	OnTitleDerived func(title string)
	// OnStatusChange runs under the session lock and must not call back
	// into the session.
	OnStatusChange func(status notes.SaveStatus)
	// OnExternalUpdate receives notifications the filter classified as
	// genuine external changes.
	OnExternalUpdate func(row remote.Row)
}

// Session owns the editing state for one open note: its save bookkeeping,
// the save pipeline, and the realtime self-update filter. A session is
// created when a note is opened and closed when the editor leaves it;
// bookkeeping is never reused across notes.
type Session struct {
	noteID  notes.NoteID
	ownerID notes.UserID
	store   remote.Store
	pending PendingStore

	isOnline     func() bool
	clock        func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	schedule     func(d time.Duration, fn func()) func()
	thresholds   FilterThresholds
	maxAttempts  int
	retryBackoff time.Duration
	coolDown     time.Duration

	logger           *zap.Logger
	notify           Notifier
	onTitleDerived   func(string)
	onStatusChange   func(notes.SaveStatus)
	onExternalUpdate func(remote.Row)

	mu             sync.Mutex
	book           SaveBookkeeping
	status         notes.SaveStatus
	saveSeq        uint64
	cancelCoolDown func()
	closed         bool
}

// NewSession validates the configuration and returns a Session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Note == "" {
		return nil, errMissingNoteID
	}
	if cfg.Owner == "" {
		return nil, errMissingOwnerID
	}
	if cfg.Store == nil {
		return nil, errMissingRemoteStore
	}
	if cfg.Pending == nil {
		return nil, errMissingPendingStore
	}

	isOnline := cfg.IsOnline
	if isOnline == nil {
		isOnline = func() bool { return true }
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	schedule := cfg.Schedule
	if schedule == nil {
		schedule = func(d time.Duration, fn func()) func() {
			timer := time.AfterFunc(d, fn)
			return func() { timer.Stop() }
		}
	}
	thresholds := cfg.Thresholds
	if thresholds == (FilterThresholds{}) {
		thresholds = DefaultFilterThresholds()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	coolDown := cfg.CoolDown
	if coolDown <= 0 {
		coolDown = defaultCoolDown
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(NoticeLevel, string) {}
	}

	return &Session{
		noteID:           cfg.Note,
		ownerID:          cfg.Owner,
		store:            cfg.Store,
		pending:          cfg.Pending,
		isOnline:         isOnline,
		clock:            clock,
		sleep:            sleep,
		schedule:         schedule,
		thresholds:       thresholds,
		maxAttempts:      maxAttempts,
		retryBackoff:     retryBackoff,
		coolDown:         coolDown,
		logger:           logger,
		notify:           notify,
		onTitleDerived:   cfg.OnTitleDerived,
		onStatusChange:   cfg.OnStatusChange,
		onExternalUpdate: cfg.OnExternalUpdate,
		book: SaveBookkeeping{
			recentSelfUpdates: newRecentUpdates(recentSelfUpdateCapacity),
		},
		status: notes.SaveStatusSaved,
	}, nil
}

// Status returns the current save status.
func (s *Session) Status() notes.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// MarkUnsaved flags local content as diverged from the last saved snapshot.
// Purely a UI signal; the next Save moves the status to saving.
func (s *Session) MarkUnsaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status == notes.SaveStatusSaving {
		return
	}
	s.setStatusLocked(notes.SaveStatusUnsaved)
}

// Close discards the session. Pending cool-down timers are cancelled and
// later Save calls become no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancelCoolDown != nil {
		s.cancelCoolDown()
		s.cancelCoolDown = nil
	}
}

// Save runs one logical save of the open note. Outcomes are reported via
// the save status and the notifier, never as a returned error. The
// synchronous phase records the in-flight fingerprint and save time before
// any I/O so a notification arriving mid-save is never mis-classified.
func (s *Session) Save(ctx context.Context, req SaveRequest) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.saveSeq++
	seq := s.saveSeq
	if s.cancelCoolDown != nil {
		s.cancelCoolDown()
		s.cancelCoolDown = nil
	}

	title := strings.TrimSpace(req.Title)
	derived := false
	if title == "" {
		title = DeriveTitle(req.Content)
		derived = true
	}
	fingerprint := notes.Fingerprint(title, req.Content, req.Tags, req.IsPinned, req.IsPublished)

	s.book.isSaving = true
	s.book.lastSaveTime = s.clock()
	s.book.pendingSelfFingerprint = fingerprint
	s.setStatusLocked(notes.SaveStatusSaving)
	s.mu.Unlock()

	if derived && s.onTitleDerived != nil {
		s.onTitleDerived(title)
	}

	if !s.isOnline() {
		s.stageOffline(ctx, seq, title, req)
		return
	}
	s.saveRemote(ctx, seq, title, fingerprint, req)
}

func (s *Session) saveRemote(ctx context.Context, seq uint64, title, fingerprint string, req SaveRequest) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if s.superseded(seq) {
			return
		}

		patch := remote.Patch{
			Title:       title,
			Content:     req.Content,
			Tags:        notes.JoinTags(req.Tags),
			IsPinned:    req.IsPinned,
			IsPublished: req.IsPublished,
			UpdatedAt:   notes.FormatTimestamp(s.clock()),
		}
		row, err := s.store.UpdateRow(ctx, remote.TableNotes, s.noteID.String(), s.ownerID.String(), patch)
		if err == nil {
			s.completeSave(seq, title, fingerprint, row, req)
			return
		}

		if remote.IsNetworkError(err) {
			s.logError(opSave, "network_failure", err, zap.String("note_id", s.noteID.String()))
			s.stageOffline(ctx, seq, title, req)
			return
		}

		lastErr = err
		s.logError(opSave, "remote_write_failed", err,
			zap.String("note_id", s.noteID.String()),
			zap.Int("attempt", attempt))
		if attempt < s.maxAttempts {
			s.notify(NoticeInfo, fmt.Sprintf("save failed, retrying %d/%d", attempt, s.maxAttempts))
			if err := s.sleep(ctx, time.Duration(attempt)*s.retryBackoff); err != nil {
				return
			}
		}
	}

	s.failSave(seq)
	if lastErr != nil {
		s.notify(NoticeError, lastErr.Error())
	}
}

func (s *Session) completeSave(seq uint64, title, fingerprint string, row remote.Row, req SaveRequest) {
	s.mu.Lock()
	// A superseding save owns the pending fields now; still register the
	// confirmed write so its late echo is recognized.
	s.book.recentSelfUpdates.put(row.UpdatedAt, fingerprint)
	if seq == s.saveSeq && !s.closed {
		s.book.lastSavedTimestamp = row.UpdatedAt
		s.book.pendingSelfUpdateTimestamp = row.UpdatedAt
		s.setStatusLocked(notes.SaveStatusSaved)
		s.cancelCoolDown = s.schedule(s.coolDown, func() { s.finishCoolDown(seq) })
	}
	s.mu.Unlock()

	go s.snapshotVersion(title, req)

	if req.ShowNotification {
		s.notify(NoticeSuccess, "note saved")
	}
}

// finishCoolDown clears the in-flight markers once the post-save window
// closes. recentSelfUpdates stays for late-arriving echoes.
func (s *Session) finishCoolDown(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.saveSeq {
		return
	}
	s.book.isSaving = false
	s.book.pendingSelfUpdateTimestamp = ""
	s.book.pendingSelfFingerprint = ""
	s.cancelCoolDown = nil
}

func (s *Session) failSave(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.saveSeq || s.closed {
		return
	}
	s.book.isSaving = false
	s.book.pendingSelfUpdateTimestamp = ""
	s.book.pendingSelfFingerprint = ""
	s.setStatusLocked(notes.SaveStatusError)
}

func (s *Session) stageOffline(ctx context.Context, seq uint64, title string, req SaveRequest) {
	entry := queue.PendingNote{
		NoteID:      s.noteID.String(),
		UserID:      s.ownerID.String(),
		Title:       title,
		Content:     req.Content,
		Tags:        notes.JoinTags(req.Tags),
		IsPinned:    req.IsPinned,
		IsPublished: req.IsPublished,
		Operation:   queue.OperationUpdate,
	}
	if err := s.pending.Put(ctx, entry); err != nil {
		s.logError(opSave, "offline_stage_failed", err, zap.String("note_id", s.noteID.String()))
		s.failSave(seq)
		s.notify(NoticeError, err.Error())
		return
	}

	s.mu.Lock()
	if seq == s.saveSeq && !s.closed {
		s.book.isSaving = false
		s.book.pendingSelfFingerprint = ""
		// An offline staging never produces a remote echo; an expected echo
		// timestamp left over from an earlier online save must not keep
		// suppressing genuine external updates.
		s.book.pendingSelfUpdateTimestamp = ""
		s.setStatusLocked(notes.SaveStatusSaved)
	}
	s.mu.Unlock()

	if req.ShowNotification {
		s.notify(NoticeSuccess, "note saved locally")
	}
}

// snapshotVersion appends a version-history entry. Best effort: failures
// are logged and never affect save status.
func (s *Session) snapshotVersion(title string, req SaveRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snapshot := remote.VersionSnapshot{
		NoteID:  s.noteID.String(),
		OwnerID: s.ownerID.String(),
		Title:   title,
		Content: req.Content,
		Tags:    notes.JoinTags(req.Tags),
	}
	if err := s.store.InsertVersionSnapshot(ctx, snapshot); err != nil {
		s.logError(opVersionSnapshot, "insert_failed", err, zap.String("note_id", s.noteID.String()))
	}
}

func (s *Session) superseded(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq != s.saveSeq || s.closed
}

func (s *Session) setStatusLocked(status notes.SaveStatus) {
	if s.status == status {
		return
	}
	s.status = status
	if s.onStatusChange != nil {
		s.onStatusChange(status)
	}
}

func (s *Session) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("editor session error", attrs...)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
