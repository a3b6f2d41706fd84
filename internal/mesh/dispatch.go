package mesh

// ActionKind identifies the side effect a DispatchResult asks the caller to
// perform. Dispatch itself never touches the radio or the transmit queue;
// it only inspects and updates the node's tables and returns what should
// happen next, the way the teacher's FSM returns an Actions list instead of
// performing I/O directly.
type ActionKind int

const (
	// ActionSendAck asks the caller to schedule an ACK for AckMessageID,
	// addressed to AckDestination (the previous hop).
	ActionSendAck ActionKind = iota
	// ActionSendAlt asks the caller to schedule an ALT for AltMessageID,
	// addressed to AltDestination (the previous hop), subject to the
	// per-message ALT suppression cap.
	ActionSendAlt
	// ActionForward asks the caller to enqueue ForwardPacket for
	// transmission toward its next hop.
	ActionForward
	// ActionDeliver asks the caller to hand DeliverPayload, originated by
	// DeliverOrigin, up to the application.
	ActionDeliver
	// ActionReenqueueAlternate asks the caller to invoke
	// ReenqueueAlternateRoute for ReenqueueOriginal, excluding
	// ReenqueueExclude as a next-hop candidate.
	ActionReenqueueAlternate
)

// Action is one side effect requested by Dispatch.
type Action struct {
	Kind ActionKind

	AckMessageID   uint32
	AckDestination uint16

	AltMessageID   uint32
	AltDestination uint16

	ForwardPacket DataPacket

	DeliverPayload uint32
	DeliverOrigin  uint16

	ReenqueueOriginal DataPacket
	ReenqueueExclude  uint16
}

// DispatchState bundles the tables Dispatch consults and updates. All
// fields are required; Dispatch panics on a nil pointer the way an
// out-of-bounds array access would in the original firmware.
type DispatchState struct {
	Neighbors  *NeighborTable
	Duplicates *DuplicateHistory
	AckReplay  *AckReplayHistory
	Pending    *PendingAckTable
	AltHist    *AltHistory
}

// Dispatch processes one received, already-decoded packet against st and
// returns the actions the caller must perform. meshID/nodeID identify this
// node; rssi and now describe the reception event. Dispatch is the direct
// analogue of the original firmware's processPayload switch.
func Dispatch(st *DispatchState, pkt *Packet, meshID, nodeID uint16, rssi int16, now int64) []Action {
	switch pkt.Kind {
	case KindData:
		return dispatchData(st, pkt.Data, meshID, nodeID, now)
	case KindAck:
		return dispatchAck(st, pkt.Ack, meshID, nodeID)
	case KindHello:
		return dispatchHello(st, pkt.Hello, meshID, rssi, now)
	case KindAlt:
		return dispatchAlt(st, pkt.Alt, meshID, nodeID)
	default:
		return nil
	}
}

func dispatchData(st *DispatchState, d *DataPacket, meshID, nodeID uint16, now int64) []Action {
	if dropData(d, meshID, nodeID) {
		return nil
	}

	if st.Duplicates.Contains(d.MessageID) {
		if st.AckReplay.RecentlyAcked(d.MessageID, now) {
			return []Action{{Kind: ActionSendAck, AckMessageID: d.MessageID, AckDestination: d.Origin}}
		}
		if st.Pending.IsPending(d.MessageID) {
			return nil
		}
		if !st.AltHist.CanSendAlt(d.MessageID) {
			return nil
		}
		return []Action{{Kind: ActionSendAlt, AltMessageID: d.MessageID, AltDestination: d.Origin}}
	}

	// First-time processing: this node is about to send an ACK for this
	// message-ID, so it joins the permanent duplicate history now (see
	// SPEC_FULL.md §9 on the commit-point decision).
	st.Duplicates.AddIfAbsent(d.MessageID)
	actions := []Action{{Kind: ActionSendAck, AckMessageID: d.MessageID, AckDestination: d.Origin}}

	// TTL is decremented after the ACK is scheduled and before the
	// destination check, matching the original firmware exactly.
	ttl := d.TTL - 1

	if d.Destination == nodeID {
		return append(actions, Action{Kind: ActionDeliver, DeliverPayload: d.Payload, DeliverOrigin: d.Origin})
	}

	if ttl > 0 {
		previousHop := d.Origin
		fwd := *d
		fwd.Origin = nodeID
		fwd.TTL = ttl
		fwd.NextHop = st.Neighbors.NextHop(d.Destination, now, map[uint16]struct{}{previousHop: {}})
		if fwd.NextHop != InvalidNextHop {
			actions = append(actions, Action{Kind: ActionForward, ForwardPacket: fwd})
		}
	}

	return actions
}

func dispatchAck(st *DispatchState, a *AckPacket, meshID, nodeID uint16) []Action {
	if dropAck(a, meshID, nodeID) {
		return nil
	}
	st.Pending.Ack(a.MessageID)
	// Committed unconditionally, matching the original firmware's
	// unguarded addMessageIDAfterAck call after the pending-table scan.
	st.Duplicates.AddIfAbsent(a.MessageID)
	return nil
}

func dispatchHello(st *DispatchState, h *HelloPacket, meshID uint16, rssi int16, now int64) []Action {
	if dropHello(h, meshID, st.Neighbors.IsAllowed) {
		return nil
	}
	st.Neighbors.AddOrUpdate(h.Origin, rssi, now)
	return nil
}

func dispatchAlt(st *DispatchState, al *AltPacket, meshID, nodeID uint16) []Action {
	if dropAlt(al, meshID, nodeID) {
		return nil
	}
	original, ok := st.Pending.Ack(al.MessageID)
	if !ok {
		return nil
	}
	return []Action{{
		Kind:              ActionReenqueueAlternate,
		ReenqueueOriginal: original,
		ReenqueueExclude:  al.Origin,
	}}
}

// dropData reports whether a received DATA packet should be silently
// discarded: wrong mesh, TTL already exhausted, or not routed through this
// node (NextHop is another node, even when Destination is this node).
func dropData(d *DataPacket, meshID, nodeID uint16) bool {
	if d.TTL == 0 {
		return true
	}
	if d.MeshID != meshID {
		return true
	}
	if d.NextHop == nodeID {
		return false
	}
	if d.Destination == nodeID && d.NextHop != nodeID {
		return true
	}
	if d.Destination != nodeID && d.NextHop != nodeID {
		return true
	}
	return false
}

func dropAck(a *AckPacket, meshID, nodeID uint16) bool {
	if a.MeshID != meshID {
		return true
	}
	if a.Destination != nodeID {
		return true
	}
	return false
}

func dropHello(h *HelloPacket, meshID uint16, isAllowed func(uint16) bool) bool {
	if h.MeshID != meshID {
		return true
	}
	if !isAllowed(h.Origin) {
		return true
	}
	return false
}

func dropAlt(al *AltPacket, meshID, nodeID uint16) bool {
	if al.MeshID != meshID {
		return true
	}
	if al.Destination != nodeID {
		return true
	}
	return false
}
