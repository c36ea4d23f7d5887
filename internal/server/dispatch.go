package server

import (
	"context"
	"sync"
	"time"
)

const (
	// StatusEventSaveStatus reports a save status transition for a note.
	StatusEventSaveStatus = "save-status"
	// StatusEventConnectivity reports a connectivity flip.
	StatusEventConnectivity = "connectivity"
	// StatusEventFlush reports a completed offline-queue flush.
	StatusEventFlush = "flush"
	// StatusEventNotice carries a user-visible save notification.
	StatusEventNotice = "notice"
	// StatusEventTitleDerived reports a title derived from note content.
	StatusEventTitleDerived = "title-derived"
	// StatusEventExternalUpdate signals a genuine external change to an
	// open note; the editor should refetch it.
	StatusEventExternalUpdate = "external-update"
)

// StatusEvent is one agent-state change pushed to the browser UI.
type StatusEvent struct {
	EventType string    `json:"event_type"`
	NoteID    string    `json:"note_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Level     string    `json:"level,omitempty"`
	Message   string    `json:"message,omitempty"`
	Online    *bool     `json:"online,omitempty"`
	Synced    int       `json:"synced,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusDispatcher fans agent events out to event-stream subscribers. Slow
// subscribers drop events rather than block the publisher.
type StatusDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*statusSubscriber
	nextID      int64
	bufferSize  int
}

type statusSubscriber struct {
	id     int64
	stream chan StatusEvent
}

// NewStatusDispatcher returns an empty dispatcher.
func NewStatusDispatcher() *StatusDispatcher {
	return &StatusDispatcher{
		subscribers: make(map[int64]*statusSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream that receives events until ctx is done or
// the cleanup function runs.
func (d *StatusDispatcher) Subscribe(ctx context.Context) (<-chan StatusEvent, func()) {
	subscriber := &statusSubscriber{
		id:     d.nextSequence(),
		stream: make(chan StatusEvent, d.bufferSize),
	}
	d.register(subscriber)
	cleanup := func() {
		d.unregister(subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers an event to every subscriber without blocking.
func (d *StatusDispatcher) Publish(event StatusEvent) {
	if event.EventType == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*statusSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *StatusDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *StatusDispatcher) register(subscriber *statusSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[subscriber.id] = subscriber
}

func (d *StatusDispatcher) unregister(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
