package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidNoteID indicates that a note identifier is empty or exceeds storage bounds.
	ErrInvalidNoteID = errors.New("notes: invalid note id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("notes: invalid user id")
	// ErrInvalidTimestamp indicates that a remote timestamp string cannot be parsed.
	ErrInvalidTimestamp = errors.New("notes: invalid timestamp")
)

// NoteID represents a validated note identifier.
type NoteID string

// NewNoteID validates raw input and returns a NoteID.
func NewNoteID(rawInput string) (NoteID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNoteID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidNoteID, maxIdentifierLength)
	}
	return NoteID(trimmed), nil
}

// String returns the underlying string identifier.
func (id NoteID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Note is the local projection of a remotely stored note row. The remote
// store owns the authoritative copy; the client edits this projection and
// writes it back through the save pipeline.
type Note struct {
	ID          NoteID
	Title       string
	Content     string
	Tags        []string
	IsPinned    bool
	IsPublished bool
	IsDeleted   bool
	UpdatedAt   string
}

// SaveStatus tracks the lifecycle of the most recent save attempt for an
// open note.
type SaveStatus string

const (
	// SaveStatusSaved means the last save round-trip confirmed.
	SaveStatusSaved SaveStatus = "saved"
	// SaveStatusSaving means a save round-trip is in flight.
	SaveStatusSaving SaveStatus = "saving"
	// SaveStatusError means the last save attempt exhausted its options.
	SaveStatusError SaveStatus = "error"
	// SaveStatusUnsaved means local content diverged from the last saved
	// snapshot and no save has started yet.
	SaveStatusUnsaved SaveStatus = "unsaved"
)

// JoinTags renders the ordered tag list into the single delimited string the
// remote representation stores. Each tag is trimmed before joining.
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	trimmed := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed = append(trimmed, strings.TrimSpace(tag))
	}
	return strings.Join(trimmed, ",")
}

// SplitTags parses the remote delimited tag string back into an ordered
// list. Empty segments are dropped.
func SplitTags(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// ParseTimestamp parses a remote updated_at string. The backend emits
// RFC 3339 with fractional seconds; plain RFC 3339 is accepted as well.
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	parsed, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, trimmed)
	}
	return parsed, nil
}

// FormatTimestamp renders a timestamp the way the remote store stores
// updated_at values.
func FormatTimestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}
