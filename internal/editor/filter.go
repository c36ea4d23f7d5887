package editor

import (
	"context"
	"time"

	"github.com/sumukeio/sumu-note-sync/internal/notes"
	"github.com/sumukeio/sumu-note-sync/internal/remote"
)

// Decision is the filter's verdict on an incoming change notification.
type Decision string

const (
	// DecisionDiscard classifies the notification as an echo of this
	// client's own write, or as noise with no actionable signal.
	DecisionDiscard Decision = "discard"
	// DecisionSurface classifies the notification as a genuine external
	// change to hand to the editor.
	DecisionSurface Decision = "surface"
)

// FilterThresholds are the timing windows the filter uses where no exact
// fingerprint or timestamp match settles the question. They guard against
// normal round-trip latency; they are tuning data, not guarantees under
// clock skew or very slow networks.
type FilterThresholds struct {
	// EchoWindow bounds how soon after a save attempt a notification
	// timestamp may land and still count as that save's own echo. Also the
	// minimum age gap before a differing timestamp counts as external.
	EchoWindow time.Duration
	// InFlightGuard is how long an unresolved save suppresses surfacing.
	InFlightGuard time.Duration
	// RecentSaveWindow is how long after a save attempt a matching
	// in-flight fingerprint still counts as an echo.
	RecentSaveWindow time.Duration
}

// DefaultFilterThresholds returns the stock timing windows.
func DefaultFilterThresholds() FilterThresholds {
	return FilterThresholds{
		EchoWindow:       3 * time.Second,
		InFlightGuard:    5 * time.Second,
		RecentSaveWindow: 8 * time.Second,
	}
}

// RowFeed delivers post-update row snapshots for a single row.
type RowFeed interface {
	SubscribeToRowChanges(ctx context.Context, table, id string, onUpdate func(remote.Row)) func()
}

// Attach subscribes the session to the note's realtime change feed and
// routes every notification through the filter. The returned function
// unsubscribes.
func (s *Session) Attach(ctx context.Context, feed RowFeed) func() {
	return feed.SubscribeToRowChanges(ctx, remote.TableNotes, string(s.noteID), func(row remote.Row) {
		s.HandleNotification(row)
	})
}

// HandleNotification classifies a change notification for the open note.
// The decision runs atomically against the save bookkeeping. On a surface
// decision the OnExternalUpdate callback is invoked after the lock is
// released; the session never mutates note content itself.
//
// The filter is deliberately conservative: with no server-assigned writer
// identity, a missed external update is recoverable (the user reloads) but
// a self-save treated as a conflict is not, so ambiguity resolves to
// discard.
func (s *Session) HandleNotification(row remote.Row) Decision {
	fingerprint := notes.Fingerprint(row.Title, row.Content, notes.SplitTags(row.Tags), row.IsPinned, row.IsPublished)

	s.mu.Lock()
	decision := s.classifyLocked(row, fingerprint, s.clock())
	s.mu.Unlock()

	if decision == DecisionSurface && s.onExternalUpdate != nil {
		s.onExternalUpdate(row)
	}
	return decision
}

// classifyLocked evaluates the precedence chain; the first matching rule
// wins.
func (s *Session) classifyLocked(row remote.Row, fingerprint string, now time.Time) Decision {
	book := &s.book

	// 1. Exact match against a recorded self-save. Strongest signal; the
	// entry has served its purpose and is evicted.
	if recorded, ok := book.recentSelfUpdates.get(row.UpdatedAt); ok && recorded == fingerprint {
		book.recentSelfUpdates.evict(row.UpdatedAt)
		return DecisionDiscard
	}

	// 2. In-flight or recent save whose payload fingerprint matches, even
	// if the timestamps have not lined up yet.
	recentlySaved := !book.lastSaveTime.IsZero() && now.Sub(book.lastSaveTime) < s.thresholds.RecentSaveWindow
	if (book.isSaving || recentlySaved) &&
		book.pendingSelfFingerprint != "" && book.pendingSelfFingerprint == fingerprint {
		return DecisionDiscard
	}

	// 3. The exact updated_at the pipeline expects its echo to carry.
	if book.pendingSelfUpdateTimestamp != "" && book.pendingSelfUpdateTimestamp == row.UpdatedAt {
		return DecisionDiscard
	}

	// 4. Echo arriving slightly before bookkeeping finalizes.
	if book.isSaving {
		if stamped, err := notes.ParseTimestamp(row.UpdatedAt); err == nil {
			delta := stamped.Sub(book.lastSaveTime)
			if delta >= 0 && delta < s.thresholds.EchoWindow {
				return DecisionDiscard
			}
		}
	}

	// 5. Candidate genuine external update: strictly newer than the last
	// confirmed save. Re-check for a race with an unresolved save first.
	if book.lastSavedTimestamp != "" && book.lastSavedTimestamp != row.UpdatedAt {
		lastSaved, errLast := notes.ParseTimestamp(book.lastSavedTimestamp)
		incoming, errIncoming := notes.ParseTimestamp(row.UpdatedAt)
		if errLast == nil && errIncoming == nil && incoming.Sub(lastSaved) > s.thresholds.EchoWindow {
			saveUnresolved := book.isSaving && now.Sub(book.lastSaveTime) < s.thresholds.InFlightGuard
			if saveUnresolved || book.pendingSelfUpdateTimestamp != "" {
				return DecisionDiscard
			}
			return DecisionSurface
		}
	}

	// 6. No actionable signal.
	return DecisionDiscard
}
