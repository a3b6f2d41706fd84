package admin_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loramesh/meshcore/internal/admin"
	"github.com/loramesh/meshcore/internal/mesh"
	"github.com/loramesh/meshcore/internal/radio"
)

// TestServerSurvivesMalformedRequests confirms the server stays up and
// responsive across a sequence of malformed requests, which would fail
// outright if an unhandled error crashed the process instead of being
// turned into a 4xx response.
func TestServerSurvivesMalformedRequests(t *testing.T) {
	t.Parallel()

	srv, _ := setupTestServer(t)

	for i := 0; i < 5; i++ {
		resp, err := http.Post(srv.URL+"/v1/submit", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /v1/submit: %v", err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status after malformed requests: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d; server should stay up", resp.StatusCode, http.StatusOK)
	}
}

// TestMiddlewareLogsEveryRequest is a smoke test confirming New wires a
// logger-backed handler without panicking on a GET request.
func TestMiddlewareLogsEveryRequest(t *testing.T) {
	t.Parallel()

	driver := radio.NewBus().NewDriver()
	t.Cleanup(func() { _ = driver.Close() })
	node, err := mesh.NewNode(mesh.NodeConfig{
		MeshID: 1, NodeID: 1,
		Driver: driver,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	srv := httptest.NewServer(admin.New(node, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
