package queue

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreWithClock(t, time.Now)
}

func newTestStoreWithClock(t *testing.T, clock func() time.Time) *Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "queue.db"), nil)
	if err != nil {
		t.Fatalf("unexpected database error: %v", err)
	}
	store, err := NewStore(Config{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return store
}
