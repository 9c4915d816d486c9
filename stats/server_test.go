package stats

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sugawarayuuta/sonnet"

	"github.com/kestrelos/preempt/sched/preempt"
)

// fakeSource returns a canned snapshot.
type fakeSource struct {
	snap preempt.Snapshot
}

func (f *fakeSource) Snapshot() preempt.Snapshot { return f.snap }

func newTestServer() *Server {
	src := &fakeSource{snap: preempt.Snapshot{
		TimestampNs:  12345,
		NrCPUs:       2,
		NrQueued:     3,
		QueuedPerCPU: []int64{1, 2},
		Dispatches:   42,
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(":0", src, logger)
}

// TestHealthEndpoint verifies /healthz reports ok with an uptime.
func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}

	var health healthResponse
	if err := sonnet.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("unmarshal health response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q; want ok", health.Status)
	}
}

// TestStatsEndpoint verifies /api/v1/stats serves the source snapshot.
func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
	}

	var snap preempt.Snapshot
	if err := sonnet.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.NrCPUs != 2 || snap.NrQueued != 3 || snap.Dispatches != 42 {
		t.Errorf("snapshot = %+v; want the canned source values", snap)
	}
	if len(snap.QueuedPerCPU) != 2 || snap.QueuedPerCPU[1] != 2 {
		t.Errorf("QueuedPerCPU = %v; want [1 2]", snap.QueuedPerCPU)
	}
}

// TestUnknownRoute verifies unregistered paths 404.
func TestUnknownRoute(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusNotFound)
	}
}
