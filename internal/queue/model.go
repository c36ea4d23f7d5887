package queue

// Operation enumerates the pending mutation kinds the queue can hold.
type Operation string

const (
	// OperationCreate stages a note that has never reached the remote store.
	OperationCreate Operation = "create"
	// OperationUpdate stages an edit to an existing remote note.
	OperationUpdate Operation = "update"
	// OperationDelete stages a soft delete.
	OperationDelete Operation = "delete"
)

// PendingNote is one staged mutation awaiting connectivity. At most one row
// exists per note id: a later enqueue for the same note replaces the
// earlier one.
type PendingNote struct {
	NoteID        string    `gorm:"column:note_id;primaryKey;size:190;not null"`
	UserID        string    `gorm:"column:user_id;size:190;not null"`
	Title         string    `gorm:"column:title;type:text;not null"`
	Content       string    `gorm:"column:content;type:text;not null"`
	Tags          string    `gorm:"column:tags;type:text;not null;default:''"`
	IsPinned      bool      `gorm:"column:is_pinned;not null;default:false"`
	IsPublished   bool      `gorm:"column:is_published;not null;default:false"`
	Operation     Operation `gorm:"column:op;size:16;not null"`
	EnqueuedAtMs  int64     `gorm:"column:enqueued_at_ms;not null;index:idx_pending_enqueued"`
}

// TableName provides the explicit table binding for GORM.
func (PendingNote) TableName() string {
	return "pending_notes"
}
