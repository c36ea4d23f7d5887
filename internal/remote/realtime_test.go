package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRealtimeDeliversRowEvents(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/realtime/notes/note-1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: {\"id\":\"note-1\",\"title\":\"Hello\",\"updated_at\":\"2024-05-17T09:30:15.25Z\"}\n\n")
		fmt.Fprintf(w, ": keep-alive\n\n")
		fmt.Fprintf(w, "data: {\"id\":\"note-1\",\"title\":\"Hello again\",\"updated_at\":\"2024-05-17T09:30:18.5Z\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	realtime, err := NewRealtime(RealtimeConfig{BaseURL: server.URL, Tokens: staticTokens("token-abc")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := make(chan Row, 4)
	unsubscribe := realtime.SubscribeToRowChanges(context.Background(), TableNotes, "note-1", func(row Row) {
		rows <- row
	})
	defer unsubscribe()

	first := waitForRow(t, rows)
	if first.Title != "Hello" {
		t.Fatalf("unexpected first event %+v", first)
	}
	second := waitForRow(t, rows)
	if second.UpdatedAt != "2024-05-17T09:30:18.5Z" {
		t.Fatalf("unexpected second event %+v", second)
	}
	if receivedAuth != "Bearer token-abc" {
		t.Fatalf("expected bearer header, got %q", receivedAuth)
	}
}

func TestRealtimeSkipsMalformedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {not json}\n\n")
		fmt.Fprintf(w, "data: {\"id\":\"note-1\",\"title\":\"Survivor\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	realtime, err := NewRealtime(RealtimeConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := make(chan Row, 4)
	unsubscribe := realtime.SubscribeToRowChanges(context.Background(), TableNotes, "note-1", func(row Row) {
		rows <- row
	})
	defer unsubscribe()

	row := waitForRow(t, rows)
	if row.Title != "Survivor" {
		t.Fatalf("expected malformed frame dropped, got %+v", row)
	}
}

func TestRealtimeUnsubscribeStopsDelivery(t *testing.T) {
	streamOpened := make(chan struct{}, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamOpened <- struct{}{}
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	realtime, err := NewRealtime(RealtimeConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unsubscribe := realtime.SubscribeToRowChanges(context.Background(), TableNotes, "note-1", func(Row) {})

	select {
	case <-streamOpened:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream was never opened")
	}

	unsubscribe()

	select {
	case <-streamOpened:
		t.Fatalf("stream reconnected after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewRealtimeRequiresBaseURL(t *testing.T) {
	if _, err := NewRealtime(RealtimeConfig{}); err == nil {
		t.Fatalf("expected error for missing base url")
	}
}

func waitForRow(t *testing.T, rows <-chan Row) Row {
	t.Helper()
	select {
	case row := <-rows:
		return row
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for realtime event")
		return Row{}
	}
}
