package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sumukeio/sumu-note-sync/internal/editor"
	"github.com/sumukeio/sumu-note-sync/internal/notes"
	"github.com/sumukeio/sumu-note-sync/internal/remote"
	"go.uber.org/zap"
)

var (
	errMissingRemoteStore  = errors.New("remote store dependency required")
	errMissingPendingStore = errors.New("pending store dependency required")

	// ErrSessionNotFound reports an operation against a note with no open
	// session.
	ErrSessionNotFound = errors.New("no open session for note")
)

// SessionManagerConfig assembles a SessionManager.
type SessionManagerConfig struct {
	Store      remote.Store
	Pending    editor.PendingStore
	Feed       editor.RowFeed
	IsOnline   func() bool
	Dispatcher *StatusDispatcher
	Thresholds editor.FilterThresholds
	Logger     *zap.Logger
}

// SessionManager hosts one editing session per open note. The web editor
// opens a session when a note gains focus, drives saves through it, and
// closes it on leave; session outcomes surface on the status event stream.
type SessionManager struct {
	store      remote.Store
	pending    editor.PendingStore
	feed       editor.RowFeed
	isOnline   func() bool
	dispatcher *StatusDispatcher
	thresholds editor.FilterThresholds
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*openSession
}

type openSession struct {
	session     *editor.Session
	unsubscribe func()
}

// NewSessionManager validates the configuration and returns a SessionManager.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if cfg.Store == nil {
		return nil, errMissingRemoteStore
	}
	if cfg.Pending == nil {
		return nil, errMissingPendingStore
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		store:      cfg.Store,
		pending:    cfg.Pending,
		feed:       cfg.Feed,
		isOnline:   cfg.IsOnline,
		dispatcher: cfg.Dispatcher,
		thresholds: cfg.Thresholds,
		logger:     logger,
		sessions:   make(map[string]*openSession),
	}, nil
}

// Open creates the editing session for a note and subscribes it to the
// realtime feed. The subscription lives until Close, not until the caller's
// request ends. Opening an already-open note is a no-op.
func (m *SessionManager) Open(noteID, ownerID string) error {
	note, err := notes.NewNoteID(noteID)
	if err != nil {
		return err
	}
	owner, err := notes.NewUserID(ownerID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[string(note)]; ok {
		return nil
	}

	session, err := editor.NewSession(editor.Config{
		Note:       note,
		Owner:      owner,
		Store:      m.store,
		Pending:    m.pending,
		IsOnline:   m.isOnline,
		Thresholds: m.thresholds,
		Logger:     m.logger,
		Notify: func(level editor.NoticeLevel, message string) {
			m.dispatcher.Publish(StatusEvent{
				EventType: StatusEventNotice,
				NoteID:    string(note),
				Level:     string(level),
				Message:   message,
				Timestamp: time.Now().UTC(),
			})
		},
		OnTitleDerived: func(title string) {
			m.dispatcher.Publish(StatusEvent{
				EventType: StatusEventTitleDerived,
				NoteID:    string(note),
				Message:   title,
				Timestamp: time.Now().UTC(),
			})
		},
		OnStatusChange: func(status notes.SaveStatus) {
			m.dispatcher.Publish(StatusEvent{
				EventType: StatusEventSaveStatus,
				NoteID:    string(note),
				Status:    string(status),
				Timestamp: time.Now().UTC(),
			})
		},
		OnExternalUpdate: func(remote.Row) {
			m.dispatcher.Publish(StatusEvent{
				EventType: StatusEventExternalUpdate,
				NoteID:    string(note),
				Timestamp: time.Now().UTC(),
			})
		},
	})
	if err != nil {
		return err
	}

	open := &openSession{session: session}
	if m.feed != nil {
		open.unsubscribe = session.Attach(context.Background(), m.feed)
	}
	m.sessions[string(note)] = open
	return nil
}

// Save runs one save of the open note. The pipeline itself never reports
// errors to the caller; it runs detached and its outcomes arrive on the
// event stream.
func (m *SessionManager) Save(noteID string, req editor.SaveRequest) error {
	open, err := m.lookup(noteID)
	if err != nil {
		return err
	}
	go open.session.Save(context.Background(), req)
	return nil
}

// MarkUnsaved flags the note's local content as diverged.
func (m *SessionManager) MarkUnsaved(noteID string) error {
	open, err := m.lookup(noteID)
	if err != nil {
		return err
	}
	open.session.MarkUnsaved()
	return nil
}

// Status reports the note's current save status.
func (m *SessionManager) Status(noteID string) (notes.SaveStatus, error) {
	open, err := m.lookup(noteID)
	if err != nil {
		return "", err
	}
	return open.session.Status(), nil
}

// Close tears down the note's session and realtime subscription.
func (m *SessionManager) Close(noteID string) error {
	m.mu.Lock()
	open, ok := m.sessions[noteID]
	delete(m.sessions, noteID)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if open.unsubscribe != nil {
		open.unsubscribe()
	}
	open.session.Close()
	return nil
}

// CloseAll tears down every open session; used on agent shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*openSession)
	m.mu.Unlock()
	for _, open := range sessions {
		if open.unsubscribe != nil {
			open.unsubscribe()
		}
		open.session.Close()
	}
}

func (m *SessionManager) lookup(noteID string) (*openSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	open, ok := m.sessions[noteID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return open, nil
}
