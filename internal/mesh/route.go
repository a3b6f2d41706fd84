package mesh

// ReenqueueAlternateRoute attempts to re-route original onto a different
// next hop and re-enqueue it for transmission, mirroring the original
// firmware's reEnqueueAlternateRoute. It is invoked when a pending ACK
// times out after exhausting its retries, or when an ALT arrives for a
// DATA packet this node is still awaiting an ACK for (the next hop saw it
// as a duplicate and asks this node to try someone else — see dispatch.go).
//
// If removeNeighbor is true, original.NextHop is evicted from the
// neighbor table first (it failed to deliver). excludeNeighbor additionally
// excludes one more candidate from selection (typically the hop that just
// reported a duplicate). Returns false if the route-retry budget for this
// message-ID is exhausted, or if no alternate next hop exists — in both
// cases the packet is dropped.
func ReenqueueAlternateRoute(
	history *RouteHistory,
	neighbors *NeighborTable,
	queue *TxQueue,
	original DataPacket,
	excludeNeighbor uint16,
	removeNeighbor bool,
	now int64,
) bool {
	if !history.CanReenqueue(original.MessageID) {
		return false
	}

	if removeNeighbor {
		neighbors.Remove(original.NextHop)
	}

	exclude := map[uint16]struct{}{}
	if excludeNeighbor != 0 {
		exclude[excludeNeighbor] = struct{}{}
	}
	newHop := neighbors.NextHop(original.Destination, now, exclude)
	if newHop == InvalidNextHop {
		return false
	}

	original.NextHop = newHop
	return queue.EnqueueData(original, now)
}
