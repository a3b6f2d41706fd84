package mesh

import "math/rand/v2"

// Transmit queue and LBT tuning constants — SPEC_FULL.md §6 configuration
// table. All durations are milliseconds.
const (
	MaxQueueSize     = 10
	InitialWaitLower = 3000
	InitialWaitUpper = 7000
	BackoffLower     = 500
	BackoffUpper     = 1000
	ListenWindowMS   = 500
	MaxWindowRetries = 5
)

// queueItem is one scheduled outbound frame awaiting its turn on the radio.
type queueItem struct {
	kind         Kind
	data         DataPacket
	ack          AckPacket
	hello        HelloPacket
	alt          AltPacket
	scheduleTime int64 // ms clock reading at or after which this item is eligible
	inUse        bool
}

// TxQueue is the fixed-size transmit schedule: every outbound frame — DATA,
// ACK, HELLO, or ALT — passes through it with a small randomized initial
// delay, so that several nodes replying to the same event don't collide on
// the shared medium. It is not safe for concurrent use.
type TxQueue struct {
	items [MaxQueueSize]queueItem
	rng   *rand.Rand
}

// NewTxQueue constructs an empty queue using rng for enqueue jitter and
// back-off perturbation.
func NewTxQueue(rng *rand.Rand) *TxQueue {
	return &TxQueue{rng: rng}
}

func (q *TxQueue) jitter(now int64) int64 {
	return now + int64(InitialWaitLower+q.rng.IntN(InitialWaitUpper-InitialWaitLower))
}

func (q *TxQueue) freeSlot() int {
	for i := range q.items {
		if !q.items[i].inUse {
			return i
		}
	}
	return -1
}

// EnqueueData schedules a DATA packet. Returns false if the queue is full.
func (q *TxQueue) EnqueueData(p DataPacket, now int64) bool {
	i := q.freeSlot()
	if i < 0 {
		return false
	}
	q.items[i] = queueItem{kind: KindData, data: p, scheduleTime: q.jitter(now), inUse: true}
	return true
}

// EnqueueAck schedules an ACK packet. Returns false if the queue is full.
func (q *TxQueue) EnqueueAck(p AckPacket, now int64) bool {
	i := q.freeSlot()
	if i < 0 {
		return false
	}
	q.items[i] = queueItem{kind: KindAck, ack: p, scheduleTime: q.jitter(now), inUse: true}
	return true
}

// EnqueueHello schedules a HELLO packet. Returns false if the queue is full.
func (q *TxQueue) EnqueueHello(p HelloPacket, now int64) bool {
	i := q.freeSlot()
	if i < 0 {
		return false
	}
	q.items[i] = queueItem{kind: KindHello, hello: p, scheduleTime: q.jitter(now), inUse: true}
	return true
}

// EnqueueAlt schedules an ALT packet. Returns false if the queue is full.
func (q *TxQueue) EnqueueAlt(p AltPacket, now int64) bool {
	i := q.freeSlot()
	if i < 0 {
		return false
	}
	q.items[i] = queueItem{kind: KindAlt, alt: p, scheduleTime: q.jitter(now), inUse: true}
	return true
}

// Len reports the number of in-use queue slots.
func (q *TxQueue) Len() int {
	n := 0
	for i := range q.items {
		if q.items[i].inUse {
			n++
		}
	}
	return n
}

// Ready selects the next item eligible for transmission at time now: ACK
// packets are scanned first (hop-by-hop ACKs unblock the sender's retry
// timer and should not wait behind DATA traffic), then any other
// ready item in slot order. Returns the slot index and true, or -1 and
// false if nothing is ready.
func (q *TxQueue) Ready(now int64) (int, bool) {
	for i := range q.items {
		if q.items[i].inUse && q.items[i].kind == KindAck && q.items[i].scheduleTime <= now {
			return i, true
		}
	}
	for i := range q.items {
		if q.items[i].inUse && q.items[i].scheduleTime <= now {
			return i, true
		}
	}
	return -1, false
}

// Take returns the item at slot i as a *Packet and frees the slot. The
// caller is expected to have just called Ready to obtain i.
func (q *TxQueue) Take(i int) *Packet {
	item := q.items[i]
	q.items[i] = queueItem{}

	switch item.kind {
	case KindData:
		d := item.data
		return &Packet{Kind: KindData, Data: &d}
	case KindAck:
		a := item.ack
		return &Packet{Kind: KindAck, Ack: &a}
	case KindHello:
		h := item.hello
		return &Packet{Kind: KindHello, Hello: &h}
	case KindAlt:
		al := item.alt
		return &Packet{Kind: KindAlt, Alt: &al}
	default:
		return nil
	}
}

// IncreaseWaitTime perturbs the schedule time of every in-use item by a
// random back-off, called after processing a received frame so that this
// node's own queued replies don't immediately collide with the traffic it
// just observed (the original firmware's increaseWaitTime).
func (q *TxQueue) IncreaseWaitTime() {
	for i := range q.items {
		if q.items[i].inUse {
			q.items[i].scheduleTime += int64(BackoffLower + q.rng.IntN(BackoffUpper-BackoffLower))
		}
	}
}
