package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPObserverPostsRunLifecycleEvents(t *testing.T) {
	var mu sync.Mutex
	var received []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	obs, err := NewHTTPObserver(HTTPObserverConfig{URL: srv.URL})
	require.NoError(t, err)

	obs.OnRunStarted("run-1")
	obs.OnStageCompleted("run-1", "ingest", 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "run_started", received[0]["event"])
	assert.Equal(t, "stage_completed", received[1]["event"])
}

func TestHTTPObserverSkipsDeliveryWhenDisabled(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	obs, err := NewHTTPObserver(HTTPObserverConfig{URL: srv.URL})
	require.NoError(t, err)
	obs.SetEnabled(false)
	assert.False(t, obs.IsEnabled())

	obs.OnRunStarted("run-1")
	assert.Equal(t, 0, calls)
}

func TestNewHTTPObserverRequiresURL(t *testing.T) {
	_, err := NewHTTPObserver(HTTPObserverConfig{})
	assert.Error(t, err)
}
