package tabletext

import (
	"sync"
	"time"
)

const defaultFlushDelay = time.Second

// CellEdit is one pending cell replacement.
type CellEdit struct {
	Row    int
	Column int
	Text   string
}

type cellKey struct {
	row    int
	column int
}

// FlushFunc receives the coalesced edits when the buffer flushes. Edits are
// delivered in first-touch order with the latest text per cell.
type FlushFunc func(edits []CellEdit)

// CellEditBuffer coalesces rapid cell edits behind a single trailing timer.
// Each edit restarts the timer; Flush delivers immediately and is the
// explicit path for focus-loss from the editing surface.
type CellEditBuffer struct {
	mu       sync.Mutex
	delay    time.Duration
	schedule func(d time.Duration, fn func()) func()
	flush    FlushFunc
	pending  map[cellKey]string
	order    []cellKey
	cancel   func()
}

// BufferOption customizes a CellEditBuffer.
type BufferOption func(*CellEditBuffer)

// WithFlushDelay overrides the inactivity window before an automatic flush.
func WithFlushDelay(delay time.Duration) BufferOption {
	return func(b *CellEditBuffer) {
		if delay > 0 {
			b.delay = delay
		}
	}
}

// WithScheduler overrides the timer mechanism; tests drive flushes by hand.
func WithScheduler(schedule func(d time.Duration, fn func()) func()) BufferOption {
	return func(b *CellEditBuffer) {
		if schedule != nil {
			b.schedule = schedule
		}
	}
}

// NewCellEditBuffer builds a buffer delivering coalesced edits to flush.
func NewCellEditBuffer(flush FlushFunc, opts ...BufferOption) *CellEditBuffer {
	buffer := &CellEditBuffer{
		delay: defaultFlushDelay,
		schedule: func(d time.Duration, fn func()) func() {
			timer := time.AfterFunc(d, fn)
			return func() { timer.Stop() }
		},
		flush:   flush,
		pending: make(map[cellKey]string),
	}
	for _, opt := range opts {
		opt(buffer)
	}
	return buffer
}

// SetCell records a cell edit and restarts the inactivity timer. A later
// edit to the same cell replaces the earlier text.
func (b *CellEditBuffer) SetCell(row, column int, text string) {
	b.mu.Lock()
	key := cellKey{row: row, column: column}
	if _, exists := b.pending[key]; !exists {
		b.order = append(b.order, key)
	}
	b.pending[key] = text

	if b.cancel != nil {
		b.cancel()
	}
	b.cancel = b.schedule(b.delay, b.Flush)
	b.mu.Unlock()
}

// Flush delivers all pending edits now and clears the timer.
func (b *CellEditBuffer) Flush() {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	edits := make([]CellEdit, 0, len(b.order))
	for _, key := range b.order {
		edits = append(edits, CellEdit{Row: key.row, Column: key.column, Text: b.pending[key]})
	}
	b.pending = make(map[cellKey]string)
	b.order = nil
	b.mu.Unlock()

	b.flush(edits)
}

// Len reports the number of distinct cells awaiting flush.
func (b *CellEditBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
