//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loramesh/meshcore/internal/admin"
	"github.com/loramesh/meshcore/internal/mesh"
	"github.com/loramesh/meshcore/internal/radio"
)

// TestAdminSurfaceLifecycle drives the admin HTTP server backed by two real
// mesh.Node instances on a shared bus: it confirms a HELLO exchange is
// visible through /v1/status and /v1/neighbors, then exercises /v1/submit end to
// end through the server rather than calling mesh.Node directly.
func TestAdminSurfaceLifecycle(t *testing.T) {
	bus := radio.NewBus()
	driverA := bus.NewDriver()
	driverB := bus.NewDriver()
	t.Cleanup(func() { _ = driverA.Close() })
	t.Cleanup(func() { _ = driverB.Close() })

	logger := slog.New(slog.DiscardHandler)
	nodeA, err := mesh.NewNode(mesh.NodeConfig{
		MeshID: 7, NodeID: 100, Driver: driverA,
		Rand: rand.New(rand.NewPCG(1, 1)), Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewNode A: %v", err)
	}
	nodeB, err := mesh.NewNode(mesh.NodeConfig{
		MeshID: 7, NodeID: 200, Driver: driverB,
		Rand: rand.New(rand.NewPCG(2, 2)), Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewNode B: %v", err)
	}

	srv := httptest.NewServer(admin.New(nodeA, logger))
	t.Cleanup(srv.Close)
	client := srv.Client()

	// --- /v1/status before discovery: zero neighbors ---
	var status admin.StatusResponse
	getJSON(t, client, srv.URL+"/v1/status", &status)
	if status.NodeID != 100 {
		t.Fatalf("NodeID = %d, want 100", status.NodeID)
	}
	if status.NeighborCount != 0 {
		t.Fatalf("NeighborCount = %d, want 0 before discovery", status.NeighborCount)
	}

	// --- HELLO exchange between A and B ---
	now := time.UnixMilli(0)
	for i := 0; i < 300; i++ {
		now = now.Add(100 * time.Millisecond)
		nodeA.Tick(now)
		nodeB.Tick(now)
	}

	getJSON(t, client, srv.URL+"/v1/status", &status)
	if status.NeighborCount != 1 {
		t.Fatalf("NeighborCount = %d, want 1 after HELLO exchange", status.NeighborCount)
	}

	var neighbors admin.NeighborsResponse
	getJSON(t, client, srv.URL+"/v1/neighbors", &neighbors)
	if len(neighbors.Neighbors) != 1 || neighbors.Neighbors[0].NodeID != 200 {
		t.Fatalf("neighbors = %+v, want [{NodeID:200 ...}]", neighbors.Neighbors)
	}

	// --- /v1/submit: A has a route to B now, so this should be accepted ---
	submitReq := admin.SubmitRequest{Destination: 200, Payload: 321}
	body, err := json.Marshal(submitReq)
	if err != nil {
		t.Fatalf("marshal submit request: %v", err)
	}
	resp, err := client.Post(srv.URL+"/v1/submit", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /v1/submit status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	// --- drive the tick loop forward so the message is actually sent and
	// acknowledged, then confirm the queue/pending tables drain back down ---
	for i := 0; i < 300; i++ {
		now = now.Add(100 * time.Millisecond)
		nodeA.Tick(now)
		nodeB.Tick(now)
	}

	getJSON(t, client, srv.URL+"/v1/status", &status)
	if status.PendingAcks != 0 {
		t.Fatalf("PendingAcks = %d, want 0 after ACK round-trip", status.PendingAcks)
	}
	if status.QueueLen != 0 {
		t.Fatalf("QueueLen = %d, want 0 after ACK round-trip", status.QueueLen)
	}
}

func getJSON(t *testing.T, client *http.Client, url string, out any) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, http.StatusOK)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
