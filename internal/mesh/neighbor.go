package mesh

import (
	"math/rand/v2"
)

// Neighbor-table tuning constants — SPEC_FULL.md §6 configuration table. All
// durations are milliseconds, matching the rest of the mesh package's clock.
const (
	MaxNeighbors         = 10
	NeighborExpiration   = 120000 // ms
	RoutingMaxCandidates = 3
)

// Neighbor records the last-heard state of one adjacent node, scored for
// next-hop selection the way the original firmware's NeighborInfo does.
type Neighbor struct {
	NodeID    uint16
	RSSI      int16
	LastHeard int64 // ms clock reading at last HELLO heard from this node
}

// score is rssi minus seconds-since-last-heard: fresher, stronger neighbors
// rank higher. now is the ms clock reading.
func (n Neighbor) score(now int64) int32 {
	age := now - n.LastHeard
	if age < 0 {
		age = 0
	}
	return int32(n.RSSI) - int32(age/1000)
}

// NeighborTable tracks adjacent nodes heard directly over the radio and
// selects next hops for forwarding. It is not safe for concurrent use; all
// access is expected from the single mesh tick loop.
type NeighborTable struct {
	entries []Neighbor
	allowed map[uint16]struct{} // nil or empty means "no filter"
	rng     *rand.Rand
}

// NewNeighborTable constructs an empty table. allowList, when non-empty,
// restricts AddOrUpdate to the listed node IDs — mirroring the original
// firmware's ALLOWED_NEIGHBORS array, where a single 0 entry disables the
// filter entirely.
func NewNeighborTable(allowList []uint16, rng *rand.Rand) *NeighborTable {
	t := &NeighborTable{rng: rng}
	if len(allowList) > 0 && !(len(allowList) == 1 && allowList[0] == 0) {
		t.allowed = make(map[uint16]struct{}, len(allowList))
		for _, id := range allowList {
			t.allowed[id] = struct{}{}
		}
	}
	return t
}

// IsAllowed reports whether nodeID may be tracked as a neighbor. An empty
// allow-list permits every node.
func (t *NeighborTable) IsAllowed(nodeID uint16) bool {
	if len(t.allowed) == 0 {
		return true
	}
	_, ok := t.allowed[nodeID]
	return ok
}

// AddOrUpdate records nodeID as heard just now with the given RSSI. Nodes
// outside the allow-list are ignored. When the table is full and nodeID is
// new, the update is discarded and the existing entries are kept.
func (t *NeighborTable) AddOrUpdate(nodeID uint16, rssi int16, now int64) {
	if !t.IsAllowed(nodeID) {
		return
	}
	for i := range t.entries {
		if t.entries[i].NodeID == nodeID {
			t.entries[i].RSSI = rssi
			t.entries[i].LastHeard = now
			return
		}
	}
	if len(t.entries) >= MaxNeighbors {
		return
	}
	t.entries = append(t.entries, Neighbor{NodeID: nodeID, RSSI: rssi, LastHeard: now})
}

// Remove deletes nodeID from the table, if present.
func (t *NeighborTable) Remove(nodeID uint16) {
	for i := range t.entries {
		if t.entries[i].NodeID == nodeID {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// Cleanup evicts every neighbor not heard from within NeighborExpiration
// of now.
func (t *NeighborTable) Cleanup(now int64) {
	kept := t.entries[:0]
	for _, n := range t.entries {
		if now-n.LastHeard <= NeighborExpiration {
			kept = append(kept, n)
		}
	}
	t.entries = kept
}

// Get returns the neighbor record for nodeID, if tracked.
func (t *NeighborTable) Get(nodeID uint16) (Neighbor, bool) {
	for _, n := range t.entries {
		if n.NodeID == nodeID {
			return n, true
		}
	}
	return Neighbor{}, false
}

// Len returns the number of tracked neighbors.
func (t *NeighborTable) Len() int { return len(t.entries) }

// NextHop chooses the next hop for a message bound for destination, given
// now and a set of neighbor IDs to exclude (used when re-routing around a
// neighbor that failed to ACK). Returns InvalidNextHop if no candidate
// remains.
//
// Direct-delivery short-circuit: if destination is a tracked neighbor,
// NextHop returns destination itself regardless of exclude — a node must
// still deliver directly to a neighbor it is otherwise routing around.
// Otherwise the top RoutingMaxCandidates neighbors by score are collected
// and one is chosen uniformly at random, matching the original firmware's
// getNextHop.
func (t *NeighborTable) NextHop(destination uint16, now int64, exclude map[uint16]struct{}) uint16 {
	if _, ok := t.Get(destination); ok {
		return destination
	}

	type scored struct {
		id    uint16
		score int32
	}
	candidates := make([]scored, 0, len(t.entries))
	for _, n := range t.entries {
		if _, excluded := exclude[n.NodeID]; excluded {
			continue
		}
		candidates = append(candidates, scored{n.NodeID, n.score(now)})
	}
	if len(candidates) == 0 {
		return InvalidNextHop
	}

	// bubble sort descending by score, matching the original firmware's
	// in-place sort over a small fixed-size array.
	for i := 0; i < len(candidates)-1; i++ {
		for j := 0; j < len(candidates)-1-i; j++ {
			if candidates[j].score < candidates[j+1].score {
				candidates[j], candidates[j+1] = candidates[j+1], candidates[j]
			}
		}
	}

	topCount := RoutingMaxCandidates
	if len(candidates) < topCount {
		topCount = len(candidates)
	}
	pick := t.rng.IntN(topCount)
	return candidates[pick].id
}

// Neighbors returns a snapshot copy of the tracked neighbors, for admin/CLI
// reporting.
func (t *NeighborTable) Neighbors() []Neighbor {
	out := make([]Neighbor, len(t.entries))
	copy(out, t.entries)
	return out
}
