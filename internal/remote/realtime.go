package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	sseDataPrefix     = "data:"
	sseReconnectDelay = 2 * time.Second
)

// RealtimeConfig configures the SSE subscription client.
type RealtimeConfig struct {
	BaseURL string
	Tokens  TokenProvider
	Client  *http.Client
	Logger  *zap.Logger
}

// Realtime subscribes to the backend's per-row change feed. The feed
// delivers post-update row snapshots as server-sent events; delivery is
// best-effort and may skip or duplicate notifications across reconnects.
type Realtime struct {
	baseURL string
	tokens  TokenProvider
	client  *http.Client
	logger  *zap.Logger
}

// NewRealtime validates the configuration and returns a Realtime client.
func NewRealtime(cfg RealtimeConfig) (*Realtime, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	client := cfg.Client
	if client == nil {
		// No overall timeout: the event stream is long-lived.
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Realtime{baseURL: baseURL, tokens: cfg.Tokens, client: client, logger: logger}, nil
}

// SubscribeToRowChanges streams change notifications for one row until the
// returned unsubscribe function is called or ctx is cancelled. onUpdate runs
// on the subscription goroutine.
func (r *Realtime) SubscribeToRowChanges(ctx context.Context, table, id string, onUpdate func(Row)) func() {
	streamCtx, cancel := context.WithCancel(ctx)
	endpoint := fmt.Sprintf("%s/realtime/%s/%s", r.baseURL, table, id)

	go func() {
		for {
			if streamCtx.Err() != nil {
				return
			}
			if err := r.consumeStream(streamCtx, endpoint, onUpdate); err != nil && streamCtx.Err() == nil {
				r.logger.Warn("realtime stream interrupted",
					zap.String("table", table),
					zap.String("row_id", id),
					zap.Error(err))
			}
			select {
			case <-streamCtx.Done():
				return
			case <-time.After(sseReconnectDelay):
			}
		}
	}()

	return cancel
}

func (r *Realtime) consumeStream(ctx context.Context, endpoint string, onUpdate func(Row)) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "text/event-stream")
	if r.tokens != nil {
		if bearer := r.tokens.Bearer(); bearer != "" {
			request.Header.Set("Authorization", "Bearer "+bearer)
		}
	}

	response, err := r.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected stream status %s", response.Status)
	}

	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
		if data == "" {
			continue
		}
		var row Row
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			r.logger.Warn("discarding malformed realtime event", zap.Error(err))
			continue
		}
		onUpdate(row)
	}
	return scanner.Err()
}
