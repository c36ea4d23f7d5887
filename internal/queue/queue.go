package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrStorageUnavailable indicates the durable local store rejected a
	// write. Callers must surface this as a hard failure: the staged edit
	// would otherwise be lost.
	ErrStorageUnavailable = errors.New("queue: local storage unavailable")

	errMissingDatabase = errors.New("queue: database handle is required")
	noOpLogger         = zap.NewNop()
)

// Store is the durable offline queue, keyed by note id.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// Config configures an offline queue Store.
type Config struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// OpenSQLite establishes the local SQLite database backing the queue and
// performs schema migration.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("queue: database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&PendingNote{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("offline queue initialized", zap.String("path", path))
	}

	return db, nil
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Put stages a mutation, replacing any earlier entry for the same note id.
// The enqueue time is stamped here so GetAll ordering reflects staging
// order, not edit order.
func (s *Store) Put(ctx context.Context, entry PendingNote) error {
	entry.EnqueuedAtMs = s.clock().UnixMilli()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "note_id"}},
			UpdateAll: true,
		}).
		Create(&entry).Error
	if err != nil {
		s.logger.Error("offline queue write failed",
			zap.String("note_id", entry.NoteID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// GetAll returns every staged mutation ordered by enqueue time ascending.
func (s *Store) GetAll(ctx context.Context) ([]PendingNote, error) {
	var entries []PendingNote
	if err := s.db.WithContext(ctx).
		Order("enqueued_at_ms ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return entries, nil
}

// Remove deletes the staged mutation for the given note id, if any.
func (s *Store) Remove(ctx context.Context, noteID string) error {
	if err := s.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Delete(&PendingNote{}).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Count returns the number of staged mutations.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&PendingNote{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return count, nil
}
