package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/sumukeio/sumu-note-sync/internal/remote"
)

type scriptedStore struct {
	failNoteIDs map[string]error
	updates     []string
}

func (s *scriptedStore) UpdateRow(ctx context.Context, table, id, ownerID string, patch remote.Patch) (remote.Row, error) {
	if err, ok := s.failNoteIDs[id]; ok {
		return remote.Row{}, err
	}
	s.updates = append(s.updates, id)
	return remote.Row{ID: id, UpdatedAt: patch.UpdatedAt}, nil
}

func (s *scriptedStore) InsertVersionSnapshot(ctx context.Context, snapshot remote.VersionSnapshot) error {
	return nil
}

func TestSyncPendingNotesToleratesPartialFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"note-1", "note-2", "note-3"} {
		entry := PendingNote{NoteID: id, UserID: "user-1", Title: id, Operation: OperationUpdate}
		if err := store.Put(ctx, entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	rem := &scriptedStore{failNoteIDs: map[string]error{
		"note-2": errors.New("schema mismatch"),
	}}

	report, err := store.SyncPendingNotes(ctx, rem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Synced != 2 || report.Failed != 1 {
		t.Fatalf("expected 2 synced / 1 failed, got %+v", report)
	}

	entries, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].NoteID != "note-2" {
		t.Fatalf("expected only the failing entry to remain, got %#v", entries)
	}
}

func TestSyncPendingNotesMarksDeleteOperations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, PendingNote{NoteID: "note-1", UserID: "user-1", Operation: OperationDelete}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	captured := &capturePatchStore{}
	if _, err := store.SyncPendingNotes(ctx, captured); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !captured.lastPatch.IsDeleted {
		t.Fatalf("expected delete operation to patch is_deleted")
	}
	if captured.lastPatch.UpdatedAt == "" {
		t.Fatalf("expected a fresh updated_at stamp")
	}
}

type capturePatchStore struct {
	lastPatch remote.Patch
}

func (s *capturePatchStore) UpdateRow(ctx context.Context, table, id, ownerID string, patch remote.Patch) (remote.Row, error) {
	s.lastPatch = patch
	return remote.Row{ID: id, UpdatedAt: patch.UpdatedAt}, nil
}

func (s *capturePatchStore) InsertVersionSnapshot(ctx context.Context, snapshot remote.VersionSnapshot) error {
	return nil
}
