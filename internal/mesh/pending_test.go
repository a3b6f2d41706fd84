package mesh

import "testing"

func TestPendingAckAddAndIsPending(t *testing.T) {
	var t1 PendingAckTable
	pkt := DataPacket{MessageID: 1, Destination: 10}
	if !t1.Add(pkt, 100) {
		t.Fatalf("Add should succeed on empty table")
	}
	if !t1.IsPending(1) {
		t.Fatalf("message 1 should be pending")
	}
}

func TestPendingAckAddRefreshesExisting(t *testing.T) {
	var t1 PendingAckTable
	pkt := DataPacket{MessageID: 1}
	t1.Add(pkt, 100)
	t1.Add(pkt, 200)
	if t1.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (refresh, not duplicate)", t1.Len())
	}
}

func TestPendingAckFullTableRejects(t *testing.T) {
	var t1 PendingAckTable
	for i := uint32(0); i < MaxPendingAcks; i++ {
		if !t1.Add(DataPacket{MessageID: i + 1}, 0) {
			t.Fatalf("Add %d should succeed", i)
		}
	}
	if t1.Add(DataPacket{MessageID: 9999}, 0) {
		t.Fatalf("Add beyond capacity should fail")
	}
}

func TestPendingAckAckClearsSlot(t *testing.T) {
	var t1 PendingAckTable
	pkt := DataPacket{MessageID: 1, Payload: 77}
	t1.Add(pkt, 100)
	got, ok := t1.Ack(1)
	if !ok || got.Payload != 77 {
		t.Fatalf("Ack = %+v, ok=%v", got, ok)
	}
	if t1.IsPending(1) {
		t.Fatalf("message 1 should no longer be pending after Ack")
	}
}

func TestPendingAckAckUnknownFails(t *testing.T) {
	var t1 PendingAckTable
	if _, ok := t1.Ack(42); ok {
		t.Fatalf("Ack of unknown message should fail")
	}
}

func TestSweepTimeoutsRetriesThenExhausts(t *testing.T) {
	var t1 PendingAckTable
	pkt := DataPacket{MessageID: 1}
	t1.Add(pkt, 0)

	for i := 0; i < MaxRetries; i++ {
		actions := t1.SweepTimeouts(AckTimeout * int64(i+1))
		if len(actions) != 1 || !actions[0].Retry {
			t.Fatalf("retry %d: actions = %+v, want one Retry=true", i, actions)
		}
	}

	actions := t1.SweepTimeouts(AckTimeout * int64(MaxRetries+1))
	if len(actions) != 1 || actions[0].Retry {
		t.Fatalf("final sweep: actions = %+v, want one Retry=false", actions)
	}
	if t1.IsPending(1) {
		t.Fatalf("message 1 should be cleared after exhausting retries")
	}
}

func TestSweepTimeoutsIgnoresFreshEntries(t *testing.T) {
	var t1 PendingAckTable
	t1.Add(DataPacket{MessageID: 1}, 1000)
	if actions := t1.SweepTimeouts(1000 + AckTimeout - 1); len(actions) != 0 {
		t.Fatalf("actions = %+v, want none before timeout elapses", actions)
	}
}
