package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// TableNotes is the remote table holding note rows.
	TableNotes = "notes"

	defaultRequestTimeout = 15 * time.Second
)

var (
	errMissingBaseURL = errors.New("remote: base url is required")
	noOpLogger        = zap.NewNop()
)

// Row is the post-update snapshot of a remote note row, as returned by
// UpdateRow and delivered by the realtime feed.
type Row struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Tags        string `json:"tags"`
	IsPinned    bool   `json:"is_pinned"`
	IsPublished bool   `json:"is_published"`
	IsDeleted   bool   `json:"is_deleted"`
	UpdatedAt   string `json:"updated_at"`
}

// Patch carries the fields a conditional row update writes.
type Patch struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Tags        string `json:"tags"`
	IsPinned    bool   `json:"is_pinned"`
	IsPublished bool   `json:"is_published"`
	IsDeleted   bool   `json:"is_deleted"`
	UpdatedAt   string `json:"updated_at"`
}

// VersionSnapshot is the payload for a best-effort version-history append.
type VersionSnapshot struct {
	NoteID  string `json:"note_id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Tags    string `json:"tags"`
}

// Store is the narrow interface the core uses to reach the hosted backend.
type Store interface {
	// UpdateRow performs a conditional update scoped by row id and owner
	// and returns the new row, including the fresh updated_at.
	UpdateRow(ctx context.Context, table, id, ownerID string, patch Patch) (Row, error)
	// InsertVersionSnapshot appends a version-history entry. Callers treat
	// failures as fire-and-forget.
	InsertVersionSnapshot(ctx context.Context, snapshot VersionSnapshot) error
}

// TokenProvider supplies the bearer token attached to backend requests.
type TokenProvider interface {
	Bearer() string
}

// HTTPStoreConfig configures an HTTP-backed Store.
type HTTPStoreConfig struct {
	BaseURL string
	Tokens  TokenProvider
	Client  *http.Client
	Logger  *zap.Logger
}

// HTTPStore talks JSON over HTTP to the hosted backend's row API.
type HTTPStore struct {
	baseURL string
	tokens  TokenProvider
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPStore validates the configuration and returns an HTTPStore.
func NewHTTPStore(cfg HTTPStoreConfig) (*HTTPStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &HTTPStore{baseURL: baseURL, tokens: cfg.Tokens, client: client, logger: logger}, nil
}

type updateRowPayload struct {
	OwnerID string `json:"owner_id"`
	Patch   Patch  `json:"patch"`
}

type remoteErrorPayload struct {
	Error string `json:"error"`
}

// UpdateRow implements Store.
func (s *HTTPStore) UpdateRow(ctx context.Context, table, id, ownerID string, patch Patch) (Row, error) {
	endpoint := fmt.Sprintf("%s/tables/%s/rows/%s", s.baseURL, table, id)
	body, err := json.Marshal(updateRowPayload{OwnerID: ownerID, Patch: patch})
	if err != nil {
		return Row{}, newRemoteError("encode update payload", err)
	}

	response, err := s.do(ctx, http.MethodPatch, endpoint, body)
	if err != nil {
		return Row{}, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return Row{}, decodeRemoteFailure(response)
	}

	var row Row
	if err := json.NewDecoder(response.Body).Decode(&row); err != nil {
		return Row{}, newRemoteError("decode updated row", err)
	}
	return row, nil
}

// InsertVersionSnapshot implements Store.
func (s *HTTPStore) InsertVersionSnapshot(ctx context.Context, snapshot VersionSnapshot) error {
	endpoint := fmt.Sprintf("%s/tables/note_versions/rows", s.baseURL)
	body, err := json.Marshal(snapshot)
	if err != nil {
		return newRemoteError("encode version snapshot", err)
	}

	response, err := s.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return decodeRemoteFailure(response)
	}
	return nil
}

func (s *HTTPStore) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newRemoteError("build request", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if s.tokens != nil {
		if bearer := s.tokens.Bearer(); bearer != "" {
			request.Header.Set("Authorization", "Bearer "+bearer)
		}
	}

	response, err := s.client.Do(request)
	if err != nil {
		return nil, newNetworkError(err)
	}
	return response, nil
}

func decodeRemoteFailure(response *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
	var payload remoteErrorPayload
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return newRemoteError(payload.Error, nil)
	}
	message := strings.TrimSpace(string(raw))
	if message == "" {
		message = response.Status
	}
	return newRemoteError(message, nil)
}
