package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HTTPObserver posts every run/stage lifecycle event and telemetry
// snapshot to a configured webhook URL as a JSON payload, generalized
// from the teacher's HTTPCallbackObserver from workflow/execution
// events to run/stage events.
type HTTPObserver struct {
	NoopObserver

	url     string
	client  *http.Client
	headers map[string]string
	timeout time.Duration

	mu      sync.RWMutex
	enabled bool
}

// HTTPObserverConfig configures an HTTPObserver.
type HTTPObserverConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
	Client  *http.Client
}

// NewHTTPObserver creates an HTTPObserver posting to cfg.URL.
func NewHTTPObserver(cfg HTTPObserverConfig) (*HTTPObserver, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("telemetry: callback URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return &HTTPObserver{url: cfg.URL, client: client, headers: headers, timeout: timeout, enabled: true}, nil
}

// SetEnabled enables or disables delivery without tearing the observer down.
func (o *HTTPObserver) SetEnabled(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabled = enabled
}

// IsEnabled reports whether delivery is currently enabled.
func (o *HTTPObserver) IsEnabled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.enabled
}

func (o *HTTPObserver) post(kind string, payload any) {
	o.mu.RLock()
	enabled := o.enabled
	o.mu.RUnlock()
	if !enabled {
		return
	}

	body, err := json.Marshal(map[string]any{"event": kind, "data": payload})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func (o *HTTPObserver) OnRunStarted(runID string) { o.post("run_started", map[string]string{"run_id": runID}) }

func (o *HTTPObserver) OnRunCompleted(runID string, duration time.Duration) {
	o.post("run_completed", map[string]any{"run_id": runID, "duration_ms": duration.Milliseconds()})
}

func (o *HTTPObserver) OnRunFailed(runID string, err error, duration time.Duration) {
	o.post("run_failed", map[string]any{"run_id": runID, "error": err.Error(), "duration_ms": duration.Milliseconds()})
}

func (o *HTTPObserver) OnStageStarted(runID, stage string) {
	o.post("stage_started", map[string]string{"run_id": runID, "stage": stage})
}

func (o *HTTPObserver) OnStageCompleted(runID, stage string, duration time.Duration) {
	o.post("stage_completed", map[string]any{"run_id": runID, "stage": stage, "duration_ms": duration.Milliseconds()})
}

func (o *HTTPObserver) OnStageFailed(runID, stage string, err error) {
	o.post("stage_failed", map[string]any{
		"run_id": runID, "stage": stage, "error": err.Error(),
	})
}

func (o *HTTPObserver) OnTelemetry(runID string, snap Snapshot) {
	o.post("telemetry", snap)
}

var _ RunObserver = (*HTTPObserver)(nil)
