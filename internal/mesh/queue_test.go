package mesh

import (
	"math/rand/v2"
	"testing"
)

func newTestQueue() *TxQueue {
	return NewTxQueue(rand.New(rand.NewPCG(1, 2)))
}

func TestEnqueueJittersWithinBounds(t *testing.T) {
	q := newTestQueue()
	q.EnqueueData(DataPacket{MessageID: 1}, 1000)
	i, ok := func() (int, bool) {
		for i := range q.items {
			if q.items[i].inUse {
				return i, true
			}
		}
		return -1, false
	}()
	if !ok {
		t.Fatalf("expected one in-use item")
	}
	st := q.items[i].scheduleTime
	if st < 1000+InitialWaitLower || st > 1000+InitialWaitUpper {
		t.Fatalf("scheduleTime = %d, want within [%d, %d]", st, 1000+InitialWaitLower, 1000+InitialWaitUpper)
	}
}

func TestQueueFullRejectsEnqueue(t *testing.T) {
	q := newTestQueue()
	for i := uint32(0); i < MaxQueueSize; i++ {
		if !q.EnqueueData(DataPacket{MessageID: i}, 0) {
			t.Fatalf("enqueue %d should succeed", i)
		}
	}
	if q.EnqueueData(DataPacket{MessageID: 999}, 0) {
		t.Fatalf("enqueue beyond capacity should fail")
	}
}

func TestReadyPrioritizesAck(t *testing.T) {
	q := newTestQueue()
	q.items[0] = queueItem{kind: KindData, scheduleTime: 0, inUse: true}
	q.items[1] = queueItem{kind: KindAck, scheduleTime: 0, inUse: true}

	i, ok := q.Ready(100)
	if !ok || i != 1 {
		t.Fatalf("Ready = (%d, %v), want (1, true) — ACK should win priority", i, ok)
	}
}

func TestReadyReturnsFalseWhenNothingDue(t *testing.T) {
	q := newTestQueue()
	q.EnqueueData(DataPacket{MessageID: 1}, 1_000_000)
	if _, ok := q.Ready(0); ok {
		t.Fatalf("nothing should be ready before scheduleTime")
	}
}

func TestTakeFreesSlot(t *testing.T) {
	q := newTestQueue()
	q.items[0] = queueItem{kind: KindHello, hello: HelloPacket{Origin: 5}, scheduleTime: 0, inUse: true}
	pkt := q.Take(0)
	if pkt.Kind != KindHello || pkt.Hello.Origin != 5 {
		t.Fatalf("Take = %+v", pkt)
	}
	if q.items[0].inUse {
		t.Fatalf("slot should be freed after Take")
	}
}

func TestIncreaseWaitTimePerturbsAllInUse(t *testing.T) {
	q := newTestQueue()
	q.items[0] = queueItem{kind: KindData, scheduleTime: 1000, inUse: true}
	q.items[1] = queueItem{kind: KindData, scheduleTime: 2000, inUse: false}
	q.IncreaseWaitTime()
	if q.items[0].scheduleTime <= 1000 || q.items[0].scheduleTime > 1000+BackoffUpper {
		t.Fatalf("in-use scheduleTime = %d, want perturbed forward", q.items[0].scheduleTime)
	}
	if q.items[1].scheduleTime != 2000 {
		t.Fatalf("unused slot should not be perturbed, got %d", q.items[1].scheduleTime)
	}
}
