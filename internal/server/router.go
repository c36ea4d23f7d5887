package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sumukeio/sumu-note-sync/internal/editor"
	"github.com/sumukeio/sumu-note-sync/internal/queue"
	"go.uber.org/zap"
)

var (
	errMissingPendingLister = errors.New("pending lister dependency required")
	errMissingFlusher       = errors.New("flusher dependency required")
	errMissingDispatcher    = errors.New("status dispatcher dependency required")
)

// PendingLister exposes the offline queue slices the status API reads.
type PendingLister interface {
	GetAll(ctx context.Context) ([]queue.PendingNote, error)
	Count(ctx context.Context) (int64, error)
}

// Flusher triggers one offline-queue flush against the remote store.
type Flusher func(ctx context.Context) (queue.FlushReport, error)

// Dependencies wires the localhost status API. Sessions is optional; when
// set, the per-note session endpoints are registered.
type Dependencies struct {
	Pending    PendingLister
	Flush      Flusher
	IsOnline   func() bool
	Dispatcher *StatusDispatcher
	Sessions   *SessionManager
	WebOrigin  string
	Logger     *zap.Logger
}

// NewHTTPHandler builds the localhost API the web editor polls: agent
// status, pending queue contents, a manual flush trigger, and an event
// stream of status transitions.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Pending == nil {
		return nil, errMissingPendingLister
	}
	if deps.Flush == nil {
		return nil, errMissingFlusher
	}
	if deps.Dispatcher == nil {
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	isOnline := deps.IsOnline
	if isOnline == nil {
		isOnline = func() bool { return true }
	}

	router := gin.New()
	router.Use(gin.Recovery())

	allowOrigins := []string{"*"}
	if deps.WebOrigin != "" {
		allowOrigins = []string{deps.WebOrigin}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		pending:    deps.Pending,
		flush:      deps.Flush,
		isOnline:   isOnline,
		dispatcher: deps.Dispatcher,
		sessions:   deps.Sessions,
		logger:     logger,
	}

	router.GET("/status", handler.handleStatus)
	router.GET("/pending", handler.handlePending)
	router.POST("/flush", handler.handleFlush)
	router.GET("/events", handler.handleEvents)

	if deps.Sessions != nil {
		router.POST("/notes/:id/open", handler.handleOpenNote)
		router.POST("/notes/:id/save", handler.handleSaveNote)
		router.POST("/notes/:id/unsaved", handler.handleMarkUnsaved)
		router.POST("/notes/:id/close", handler.handleCloseNote)
		router.GET("/notes/:id/status", handler.handleNoteStatus)
	}

	return router, nil
}

type httpHandler struct {
	pending    PendingLister
	flush      Flusher
	isOnline   func() bool
	dispatcher *StatusDispatcher
	sessions   *SessionManager
	logger     *zap.Logger

	mu        sync.Mutex
	lastFlush *queue.FlushReport
}

type statusPayload struct {
	Online       bool                `json:"online"`
	PendingCount int64               `json:"pending_count"`
	LastFlush    *flushReportPayload `json:"last_flush,omitempty"`
}

type flushReportPayload struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

type pendingEntryPayload struct {
	NoteID      string `json:"note_id"`
	Title       string `json:"title"`
	Operation   string `json:"operation"`
	EnqueuedAt  int64  `json:"enqueued_at_ms"`
	IsPinned    bool   `json:"is_pinned"`
	IsPublished bool   `json:"is_published"`
}

func (h *httpHandler) handleStatus(c *gin.Context) {
	count, err := h.pending.Count(c.Request.Context())
	if err != nil {
		h.logger.Error("pending count failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue_unavailable"})
		return
	}

	payload := statusPayload{
		Online:       h.isOnline(),
		PendingCount: count,
	}
	h.mu.Lock()
	if h.lastFlush != nil {
		payload.LastFlush = &flushReportPayload{Synced: h.lastFlush.Synced, Failed: h.lastFlush.Failed}
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handlePending(c *gin.Context) {
	entries, err := h.pending.GetAll(c.Request.Context())
	if err != nil {
		h.logger.Error("pending list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue_unavailable"})
		return
	}

	payload := make([]pendingEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, pendingEntryPayload{
			NoteID:      entry.NoteID,
			Title:       entry.Title,
			Operation:   string(entry.Operation),
			EnqueuedAt:  entry.EnqueuedAtMs,
			IsPinned:    entry.IsPinned,
			IsPublished: entry.IsPublished,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": payload})
}

func (h *httpHandler) handleFlush(c *gin.Context) {
	report, err := h.flush(c.Request.Context())
	if err != nil {
		h.logger.Error("manual flush failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.lastFlush = &report
	h.mu.Unlock()

	h.dispatcher.Publish(StatusEvent{
		EventType: StatusEventFlush,
		Synced:    report.Synced,
		Failed:    report.Failed,
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, flushReportPayload{Synced: report.Synced, Failed: report.Failed})
}

type openNotePayload struct {
	OwnerID string `json:"owner_id"`
}

type saveNotePayload struct {
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	Tags             []string `json:"tags"`
	IsPinned         bool     `json:"is_pinned"`
	IsPublished      bool     `json:"is_published"`
	ShowNotification bool     `json:"show_notification"`
}

func (h *httpHandler) handleOpenNote(c *gin.Context) {
	var payload openNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	if err := h.sessions.Open(c.Param("id"), payload.OwnerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSaveNote(c *gin.Context) {
	var payload saveNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	err := h.sessions.Save(c.Param("id"), editor.SaveRequest{
		Title:            payload.Title,
		Content:          payload.Content,
		Tags:             payload.Tags,
		IsPinned:         payload.IsPinned,
		IsPublished:      payload.IsPublished,
		ShowNotification: payload.ShowNotification,
	})
	if errors.Is(err, ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}
	// Accepted: the pipeline reports outcomes on the event stream, never
	// through this response.
	c.Status(http.StatusAccepted)
}

func (h *httpHandler) handleMarkUnsaved(c *gin.Context) {
	if err := h.sessions.MarkUnsaved(c.Param("id")); errors.Is(err, ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCloseNote(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); errors.Is(err, ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleNoteStatus(c *gin.Context) {
	status, err := h.sessions.Status(c.Param("id"))
	if errors.Is(err, ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	stream, cleanup := h.dispatcher.Subscribe(c.Request.Context())
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(event.EventType, event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
