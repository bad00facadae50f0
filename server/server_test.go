package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarungka/wireflow/internal/metrics"
)

type statusBody struct {
	Success bool        `json:"success"`
	Data    StatusModel `json:"data"`
}

func TestHealth(t *testing.T) {
	s := New(":0", "test", metrics.NewRegistry())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReportsCounters(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Worker(0).IncrementIngested()
	reg.Worker(0).IncrementIngested()
	reg.Worker(1).IncrementCaptured()

	s := New(":0", "v1.2.3", reg)
	s.SetRunID("run-1")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "v1.2.3", body.Data.Build)
	assert.Equal(t, "run-1", body.Data.RunID)
	assert.Equal(t, uint64(2), body.Data.Totals.Ingested)
	assert.Equal(t, uint64(1), body.Data.Totals.Captured)
	require.Len(t, body.Data.Workers, 2)
	assert.Equal(t, 1, body.Data.Workers[1].Worker)
}

func TestWorkerStatus(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Worker(3).IncrementEmitted()
	h := New(":0", "test", reg).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/workers/3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"emitted":1`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/workers/9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/workers/x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeStopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New("", "test", metrics.NewRegistry()).Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
