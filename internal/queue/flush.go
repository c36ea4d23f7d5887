package queue

import (
	"context"

	"github.com/sumukeio/sumu-note-sync/internal/notes"
	"github.com/sumukeio/sumu-note-sync/internal/remote"
	"go.uber.org/zap"
)

// FlushReport summarizes one SyncPendingNotes batch.
type FlushReport struct {
	Synced int
	Failed int
}

// SyncPendingNotes attempts every staged mutation against the remote store
// in enqueue order. Entries that sync are removed; entries that fail stay
// queued for the next batch. A failing entry never aborts the batch.
func (s *Store) SyncPendingNotes(ctx context.Context, store remote.Store) (FlushReport, error) {
	entries, err := s.GetAll(ctx)
	if err != nil {
		return FlushReport{}, err
	}

	report := FlushReport{}
	for _, entry := range entries {
		patch := remote.Patch{
			Title:       entry.Title,
			Content:     entry.Content,
			Tags:        entry.Tags,
			IsPinned:    entry.IsPinned,
			IsPublished: entry.IsPublished,
			IsDeleted:   entry.Operation == OperationDelete,
			UpdatedAt:   notes.FormatTimestamp(s.clock()),
		}
		if _, err := store.UpdateRow(ctx, remote.TableNotes, entry.NoteID, entry.UserID, patch); err != nil {
			report.Failed++
			s.logger.Warn("pending note sync failed",
				zap.String("note_id", entry.NoteID),
				zap.String("op", string(entry.Operation)),
				zap.Error(err))
			continue
		}
		if err := s.Remove(ctx, entry.NoteID); err != nil {
			report.Failed++
			s.logger.Error("synced note could not leave the queue",
				zap.String("note_id", entry.NoteID),
				zap.Error(err))
			continue
		}
		report.Synced++
	}

	if report.Synced > 0 || report.Failed > 0 {
		s.logger.Info("offline queue flushed",
			zap.Int("synced", report.Synced),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}
