package mesh

// Pending-ACK tuning constants — SPEC_FULL.md §6 configuration table.
const (
	MaxPendingAcks = 10
	AckTimeout     = 15000 // ms
	MaxRetries     = 3
)

// pendingEntry tracks one DATA packet awaiting a hop-by-hop ACK.
type pendingEntry struct {
	packet     DataPacket
	timestamp  int64 // ms clock reading of last (re)send; inUse marks the slot occupied
	retryCount uint8
	inUse      bool
}

// PendingAckTable mirrors the original firmware's pendingAcks array: one
// slot per in-flight DATA packet, keyed by message-ID, with retry-count and
// last-send timestamp for the scheduler's timeout sweep.
type PendingAckTable struct {
	entries [MaxPendingAcks]pendingEntry
}

// Add registers packet as awaiting an ACK at time now. If an entry for the
// same message-ID already exists, its timestamp is refreshed instead of
// creating a duplicate (addPendingAck's update-in-place behavior). Returns
// false if the table is full and no entry exists to refresh.
func (t *PendingAckTable) Add(packet DataPacket, now int64) bool {
	for i := range t.entries {
		if t.entries[i].inUse && t.entries[i].packet.MessageID == packet.MessageID {
			t.entries[i].timestamp = now
			return true
		}
	}
	for i := range t.entries {
		if !t.entries[i].inUse {
			t.entries[i] = pendingEntry{packet: packet, timestamp: now, inUse: true}
			return true
		}
	}
	return false
}

// IsPending reports whether a DATA packet with this message-ID is awaiting
// an ACK.
func (t *PendingAckTable) IsPending(messageID uint32) bool {
	for i := range t.entries {
		if t.entries[i].inUse && t.entries[i].packet.MessageID == messageID {
			return true
		}
	}
	return false
}

// Ack clears the pending slot for messageID and returns the original DATA
// packet plus true, or the zero value and false if no such slot exists.
func (t *PendingAckTable) Ack(messageID uint32) (DataPacket, bool) {
	for i := range t.entries {
		if t.entries[i].inUse && t.entries[i].packet.MessageID == messageID {
			packet := t.entries[i].packet
			t.entries[i] = pendingEntry{}
			return packet, true
		}
	}
	return DataPacket{}, false
}

// TimeoutAction is the scheduler's decision for one pending slot it found
// expired during a sweep.
type TimeoutAction struct {
	Packet  DataPacket
	Retry   bool // true: resend the same packet; false: retries exhausted
}

// SweepTimeouts scans for entries whose AckTimeout has elapsed as of now
// and returns one TimeoutAction per expired entry. Entries under the retry
// cap have their timestamp refreshed and retry count bumped in place
// (Retry=true, caller re-enqueues the DATA packet for (re)transmission).
// Entries at the cap are cleared here (Retry=false, caller invokes
// alternate-route re-enqueue with neighbor eviction).
func (t *PendingAckTable) SweepTimeouts(now int64) []TimeoutAction {
	var actions []TimeoutAction
	for i := range t.entries {
		e := &t.entries[i]
		if !e.inUse || now-e.timestamp < AckTimeout {
			continue
		}
		if e.retryCount < MaxRetries {
			e.timestamp = now
			e.retryCount++
			actions = append(actions, TimeoutAction{Packet: e.packet, Retry: true})
			continue
		}
		packet := e.packet
		*e = pendingEntry{}
		actions = append(actions, TimeoutAction{Packet: packet, Retry: false})
	}
	return actions
}

// Len reports the number of in-use pending slots.
func (t *PendingAckTable) Len() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].inUse {
			n++
		}
	}
	return n
}
