package remote

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultProbeInterval = 15 * time.Second
	defaultProbeTimeout  = 5 * time.Second
)

// ProbeFunc reports whether the backend is currently reachable.
type ProbeFunc func(ctx context.Context) bool

// MonitorConfig configures a connectivity Monitor.
type MonitorConfig struct {
	// ProbeURL is probed with a HEAD request when Probe is nil.
	ProbeURL string
	Probe    ProbeFunc
	Interval time.Duration
	Client   *http.Client
	Logger   *zap.Logger
}

// Monitor is the connectivity oracle: it polls the backend and notifies
// subscribers when reachability flips.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	online    bool
	nextSubID int64
	listeners map[int64]func(bool)
}

// NewMonitor builds a Monitor. The monitor starts in the online state;
// callers run Start to begin probing.
func NewMonitor(cfg MonitorConfig) *Monitor {
	probe := cfg.Probe
	if probe == nil {
		client := cfg.Client
		if client == nil {
			client = &http.Client{Timeout: defaultProbeTimeout}
		}
		probe = httpProbe(client, cfg.ProbeURL)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Monitor{
		probe:     probe,
		interval:  interval,
		logger:    logger,
		online:    true,
		listeners: make(map[int64]func(bool)),
	}
}

// IsOnline reports the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a callback invoked whenever connectivity flips. The
// returned function unsubscribes.
func (m *Monitor) OnChange(listener func(online bool)) func() {
	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.listeners[id] = listener
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Start probes connectivity until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.observe(m.probe(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.observe(m.probe(ctx))
		}
	}
}

func (m *Monitor) observe(online bool) {
	m.mu.Lock()
	changed := online != m.online
	m.online = online
	listeners := make([]func(bool), 0, len(m.listeners))
	if changed {
		for _, listener := range m.listeners {
			listeners = append(listeners, listener)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info("connectivity changed", zap.Bool("online", online))
	for _, listener := range listeners {
		listener(online)
	}
}

func httpProbe(client *http.Client, probeURL string) ProbeFunc {
	return func(ctx context.Context) bool {
		if probeURL == "" {
			return true
		}
		request, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
		if err != nil {
			return false
		}
		response, err := client.Do(request)
		if err != nil {
			return false
		}
		response.Body.Close()
		return response.StatusCode < http.StatusInternalServerError
	}
}
