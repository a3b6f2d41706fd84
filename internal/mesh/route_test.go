package mesh

import (
	"math/rand/v2"
	"testing"
)

func TestReenqueueAlternateRoutePicksNewHop(t *testing.T) {
	neighbors := NewNeighborTable(nil, rand.New(rand.NewPCG(1, 2)))
	neighbors.AddOrUpdate(50, -20, 0)
	neighbors.AddOrUpdate(60, -20, 0)
	queue := NewTxQueue(rand.New(rand.NewPCG(1, 2)))
	var history RouteHistory

	original := DataPacket{MessageID: 1, Destination: 999, NextHop: 50, Payload: 7}
	ok := ReenqueueAlternateRoute(&history, neighbors, queue, original, 50, false, 0)
	if !ok {
		t.Fatalf("expected re-enqueue to succeed with an alternate neighbor present")
	}
	if queue.Len() != 1 {
		t.Fatalf("queue.Len() = %d, want 1", queue.Len())
	}
}

func TestReenqueueAlternateRouteRemovesFailedNeighbor(t *testing.T) {
	neighbors := NewNeighborTable(nil, rand.New(rand.NewPCG(1, 2)))
	neighbors.AddOrUpdate(50, -20, 0)
	queue := NewTxQueue(rand.New(rand.NewPCG(1, 2)))
	var history RouteHistory

	original := DataPacket{MessageID: 1, Destination: 999, NextHop: 50}
	ok := ReenqueueAlternateRoute(&history, neighbors, queue, original, 0, true, 0)
	if ok {
		t.Fatalf("expected no route after evicting the only neighbor")
	}
	if _, found := neighbors.Get(50); found {
		t.Fatalf("neighbor 50 should have been evicted")
	}
}

// TestReenqueueAlternateRouteDeliversDirectlyToExcludedDestination covers
// spec.md's "ALT on concurrent duplicate" scenario: the neighbor being
// excluded (the one that sent the ALT) is also the packet's final
// destination. The node must still deliver straight to it rather than
// treat it as an unusable candidate.
func TestReenqueueAlternateRouteDeliversDirectlyToExcludedDestination(t *testing.T) {
	neighbors := NewNeighborTable(nil, rand.New(rand.NewPCG(1, 2)))
	neighbors.AddOrUpdate(50, -20, 0)
	queue := NewTxQueue(rand.New(rand.NewPCG(1, 2)))
	var history RouteHistory

	original := DataPacket{MessageID: 1, Destination: 50, NextHop: 50, Payload: 7}
	ok := ReenqueueAlternateRoute(&history, neighbors, queue, original, 50, false, 0)
	if !ok {
		t.Fatalf("expected direct delivery to the excluded destination to succeed")
	}
	if queue.Len() != 1 {
		t.Fatalf("queue.Len() = %d, want 1", queue.Len())
	}
}

func TestReenqueueAlternateRouteRespectsRetryCap(t *testing.T) {
	neighbors := NewNeighborTable(nil, rand.New(rand.NewPCG(1, 2)))
	neighbors.AddOrUpdate(50, -20, 0)
	neighbors.AddOrUpdate(60, -20, 0)
	queue := NewTxQueue(rand.New(rand.NewPCG(1, 2)))
	var history RouteHistory

	original := DataPacket{MessageID: 1, Destination: 999, NextHop: 50}
	for i := 0; i < RouteMaxAlternates; i++ {
		if !ReenqueueAlternateRoute(&history, neighbors, queue, original, 0, false, 0) {
			t.Fatalf("attempt %d should succeed", i)
		}
	}
	if ReenqueueAlternateRoute(&history, neighbors, queue, original, 0, false, 0) {
		t.Fatalf("attempt beyond RouteMaxAlternates should be refused")
	}
}
