package editor

import "time"

const recentSelfUpdateCapacity = 20

// SaveBookkeeping is the transient per-open-note state shared between the
// save pipeline and the realtime self-update filter. The pipeline is its
// only writer; the filter reads a consistent snapshot under the session
// lock. It is discarded with the session when the note is closed.
type SaveBookkeeping struct {
	isSaving                   bool
	lastSaveTime               time.Time
	pendingSelfUpdateTimestamp string
	pendingSelfFingerprint     string
	lastSavedTimestamp         string
	recentSelfUpdates          recentUpdates
}

type recentUpdateEntry struct {
	updatedAt   string
	fingerprint string
}

// recentUpdates records recently confirmed self-saves so a late-arriving
// echo can still be recognized after the cool-down window closes. Oldest
// entries are evicted past capacity.
type recentUpdates struct {
	capacity int
	entries  []recentUpdateEntry
}

func newRecentUpdates(capacity int) recentUpdates {
	if capacity <= 0 {
		capacity = recentSelfUpdateCapacity
	}
	return recentUpdates{capacity: capacity}
}

func (r *recentUpdates) put(updatedAt, fingerprint string) {
	for i := range r.entries {
		if r.entries[i].updatedAt == updatedAt {
			r.entries[i].fingerprint = fingerprint
			return
		}
	}
	r.entries = append(r.entries, recentUpdateEntry{updatedAt: updatedAt, fingerprint: fingerprint})
	if len(r.entries) > r.capacity {
		r.entries = r.entries[len(r.entries)-r.capacity:]
	}
}

func (r *recentUpdates) get(updatedAt string) (string, bool) {
	for _, entry := range r.entries {
		if entry.updatedAt == updatedAt {
			return entry.fingerprint, true
		}
	}
	return "", false
}

func (r *recentUpdates) evict(updatedAt string) {
	for i, entry := range r.entries {
		if entry.updatedAt == updatedAt {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *recentUpdates) len() int {
	return len(r.entries)
}
