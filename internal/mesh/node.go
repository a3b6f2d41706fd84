package mesh

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/loramesh/meshcore/internal/radio"
)

// InitialTTL is the hop budget assigned to a DATA packet this node
// originates, matching the original firmware's fillDataPacket(...) calls
// from enqueueDataMessage's custom-destination overload.
const InitialTTL uint8 = 6

// DeliverFunc receives an application payload that reached its destination
// at this node.
type DeliverFunc func(origin uint16, payload uint32)

// MetricsSink receives frame- and dispatch-outcome events as Node observes
// them. *meshmetrics.Collector satisfies this without either package
// importing the other; a nil sink (the NodeConfig default) disables
// metrics entirely.
type MetricsSink interface {
	IncFramesSent(nodeID uint16, kind string)
	IncFramesReceived(nodeID uint16, kind string)
	IncFramesDropped(nodeID uint16, kind string)
	IncDelivered(nodeID uint16)
	IncForwarded(nodeID uint16)
	IncAckTimeouts(nodeID uint16)
	IncAltSent(nodeID uint16)
}

// NodeConfig configures a Node at construction time.
type NodeConfig struct {
	MeshID      uint16
	NodeID      uint16
	AllowList   []uint16 // see NewNeighborTable
	Driver      radio.Driver
	Rand        *rand.Rand // nil selects a non-deterministic source
	Logger      *slog.Logger
	OnDeliver   DeliverFunc
	HelloPeriod time.Duration // defaults to HelloInterval
	Metrics     MetricsSink   // nil disables metrics reporting
}

// lbtState tracks an in-progress, non-blocking listen-before-talk window.
// The original firmware busy-waits inside windowCollisionPrevention; a
// cooperative Tick loop cannot block, so the same attempt/retry budget is
// reshaped into state carried across ticks instead.
type lbtState struct {
	active      bool
	attempt     int
	windowStart int64
	sawActivity bool
}

// Node is one mesh participant: it owns the neighbor table, the four
// history rings, the pending-ACK table, the transmit queue, and the radio
// driver, and drives all of them from Tick.
type Node struct {
	meshID uint16
	nodeID uint16

	neighbors  *NeighborTable
	duplicates *DuplicateHistory
	ackReplay  *AckReplayHistory
	pending    *PendingAckTable
	routeHist  *RouteHistory
	altHist    *AltHistory
	queue      *TxQueue

	driver radio.Driver
	rng    *rand.Rand
	logger *slog.Logger

	onDeliver DeliverFunc
	metrics   MetricsSink

	radioIdle   bool
	lbt         lbtState
	helloPeriod int64 // ms
	nextHelloAt int64 // ms; 0 means "schedule on first tick"

	rxCounters [5]uint64 // indexed by Kind; index 0 unused
	txCounters [5]uint64 // indexed by Kind; index 0 unused
}

// PacketCounters reports how many packets of each type this node has sent
// and received, for admin/CLI reporting. Index 0 of each array is unused;
// indices 1-4 correspond to KindData, KindAck, KindHello, KindAlt.
type PacketCounters struct {
	Received [5]uint64
	Sent     [5]uint64
}

// Snapshot is a read-only, fully-copied view of a Node's state for external
// inspection (the admin surface and meshctl). It never aliases internal
// state: every field is copied out from behind the live tables.
type Snapshot struct {
	NodeID      uint16
	Neighbors   []Neighbor
	QueueLen    int
	PendingAcks int
	Counters    PacketCounters
}

// Snapshot copies out a consistent view of the node's tables and counters.
// Safe to call from the same goroutine that drives Tick; Node is not
// otherwise safe for concurrent use.
func (n *Node) Snapshot() Snapshot {
	return Snapshot{
		NodeID:      n.nodeID,
		Neighbors:   n.neighbors.Neighbors(),
		QueueLen:    n.queue.Len(),
		PendingAcks: n.pending.Len(),
		Counters: PacketCounters{
			Received: n.rxCounters,
			Sent:     n.txCounters,
		},
	}
}

// NewNode constructs a Node ready to Tick. The driver should already be
// constructed (e.g. a radio.Bus subscriber or a radio.UDPBusDriver) and not
// yet listening; NewNode calls Listen itself.
func NewNode(cfg NodeConfig) (*Node, error) {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	helloPeriod := HelloInterval
	if cfg.HelloPeriod > 0 {
		helloPeriod = cfg.HelloPeriod.Milliseconds()
	}

	n := &Node{
		meshID:      cfg.MeshID,
		nodeID:      cfg.NodeID,
		neighbors:   NewNeighborTable(cfg.AllowList, rng),
		duplicates:  &DuplicateHistory{},
		ackReplay:   &AckReplayHistory{},
		pending:     &PendingAckTable{},
		routeHist:   &RouteHistory{},
		altHist:     &AltHistory{},
		queue:       NewTxQueue(rng),
		driver:      cfg.Driver,
		rng:         rng,
		logger:      logger.With(slog.String("component", "mesh.node"), slog.Uint64("node_id", uint64(cfg.NodeID))),
		onDeliver:   cfg.OnDeliver,
		metrics:     cfg.Metrics,
		radioIdle:   true,
		helloPeriod: helloPeriod,
	}

	if err := n.driver.Listen(); err != nil {
		return nil, err
	}
	return n, nil
}

// HelloInterval is the default period between automatic HELLO beacons, in
// milliseconds — SPEC_FULL.md §6 configuration table.
const HelloInterval int64 = 60000

// NodeID returns this node's mesh identity.
func (n *Node) NodeID() uint16 { return n.nodeID }

// Neighbors returns a snapshot of the tracked neighbor table, for admin/CLI
// reporting.
func (n *Node) Neighbors() []Neighbor { return n.neighbors.Neighbors() }

// PendingCount reports the number of DATA packets currently awaiting an
// ACK, for admin/CLI reporting.
func (n *Node) PendingCount() int { return n.pending.Len() }

// QueueLen reports the number of outbound frames currently scheduled, for
// admin/CLI reporting.
func (n *Node) QueueLen() int { return n.queue.Len() }

// Submit originates a new DATA message addressed to destination, carrying
// payload. It resolves a next hop immediately (as the original firmware's
// enqueueDataMessage(payload, customDestID) does) and returns
// ErrNoRoute if none exists.
func (n *Node) Submit(destination uint16, payload uint32, now time.Time) error {
	nowMS := now.UnixMilli()
	nextHop := n.neighbors.NextHop(destination, nowMS, nil)
	if nextHop == InvalidNextHop {
		return ErrNoRoute
	}

	packet := DataPacket{
		MeshID:      n.meshID,
		MessageID:   NewMessageID(KindData, n.nodeID, uint8(n.rng.IntN(256))),
		Origin:      n.nodeID,
		Destination: destination,
		NextHop:     nextHop,
		Extra:       1,
		TTL:         InitialTTL,
		Payload:     payload,
	}
	if !n.queue.EnqueueData(packet, nowMS) {
		return ErrQueueFull
	}
	return nil
}

// Tick drives one maintenance cycle: it drains any pending radio events,
// sweeps ACK timeouts, checks the automatic HELLO timer, and advances the
// listen-before-talk state machine toward sending the next scheduled
// frame. Together with Submit, it is the only method that mutates Node
// state, and is meant to be called repeatedly (e.g. on a fixed-period
// timer) from one goroutine.
func (n *Node) Tick(now time.Time) {
	nowMS := now.UnixMilli()

	heardActivity := n.pollRadio(nowMS)
	n.sweepPendingAcks(nowMS)
	n.checkAutoHello(nowMS)
	n.neighbors.Cleanup(nowMS)
	n.advanceLBT(nowMS, heardActivity)
}

// pollRadio drains the driver's event flags and applies their effects.
// Returns true if a frame was received this tick (channel activity, used by
// the LBT state machine).
func (n *Node) pollRadio(nowMS int64) bool {
	txDone, txTimeout, rx := n.driver.Events().Poll()
	if txDone || txTimeout {
		n.radioIdle = true
	}

	if rx == nil {
		return false
	}

	pkt, err := Decode(rx.Data)
	if err != nil {
		n.logger.Debug("dropping undecodable frame", slog.Any("error", err))
		if n.metrics != nil {
			n.metrics.IncFramesDropped(n.nodeID, "undecodable")
		}
		return true
	}
	if pkt.MeshID() != n.meshID {
		if n.metrics != nil {
			n.metrics.IncFramesDropped(n.nodeID, pkt.Kind.String())
		}
		return true
	}

	n.rxCounters[pkt.Kind]++
	if n.metrics != nil {
		n.metrics.IncFramesReceived(n.nodeID, pkt.Kind.String())
	}

	actions := Dispatch(&DispatchState{
		Neighbors:  n.neighbors,
		Duplicates: n.duplicates,
		AckReplay:  n.ackReplay,
		Pending:    n.pending,
		AltHist:    n.altHist,
	}, pkt, n.meshID, n.nodeID, rx.RSSI, nowMS)

	for _, action := range actions {
		n.applyAction(action, nowMS)
	}

	// The original firmware perturbs every in-use queue item's schedule
	// time after processing a received frame, so this node's own replies
	// don't collide with traffic it just observed.
	n.queue.IncreaseWaitTime()

	return true
}

func (n *Node) applyAction(action Action, nowMS int64) {
	switch action.Kind {
	case ActionSendAck:
		n.queue.EnqueueAck(AckPacket{
			MeshID: n.meshID, MessageID: action.AckMessageID,
			Origin: n.nodeID, Destination: action.AckDestination,
		}, nowMS)

	case ActionSendAlt:
		n.queue.EnqueueAlt(AltPacket{
			MeshID: n.meshID, MessageID: action.AltMessageID,
			Origin: n.nodeID, Destination: action.AltDestination,
		}, nowMS)

	case ActionForward:
		n.queue.EnqueueData(action.ForwardPacket, nowMS)
		if n.metrics != nil {
			n.metrics.IncForwarded(n.nodeID)
		}

	case ActionDeliver:
		if n.onDeliver != nil {
			n.onDeliver(action.DeliverOrigin, action.DeliverPayload)
		}
		if n.metrics != nil {
			n.metrics.IncDelivered(n.nodeID)
		}

	case ActionReenqueueAlternate:
		ReenqueueAlternateRoute(n.routeHist, n.neighbors, n.queue,
			action.ReenqueueOriginal, action.ReenqueueExclude, false, nowMS)
	}
}

func (n *Node) sweepPendingAcks(nowMS int64) {
	for _, action := range n.pending.SweepTimeouts(nowMS) {
		if n.metrics != nil {
			n.metrics.IncAckTimeouts(n.nodeID)
		}
		if action.Retry {
			n.queue.EnqueueData(action.Packet, nowMS)
			continue
		}
		ReenqueueAlternateRoute(n.routeHist, n.neighbors, n.queue, action.Packet, 0, true, nowMS)
	}
}

func (n *Node) checkAutoHello(nowMS int64) {
	if n.nextHelloAt == 0 {
		n.queue.EnqueueHello(HelloPacket{
			MeshID: n.meshID, MessageID: NewMessageID(KindHello, n.nodeID, uint8(n.rng.IntN(256))), Origin: n.nodeID,
		}, nowMS)
		n.nextHelloAt = nowMS + n.helloPeriod
		return
	}
	if nowMS >= n.nextHelloAt {
		n.queue.EnqueueHello(HelloPacket{
			MeshID: n.meshID, MessageID: NewMessageID(KindHello, n.nodeID, uint8(n.rng.IntN(256))), Origin: n.nodeID,
		}, nowMS)
		n.nextHelloAt = nowMS + n.helloPeriod
	}
}

// advanceLBT drives the non-blocking listen-before-talk state machine. When
// idle and nothing is in flight, it looks for a ready queue item and opens
// a listen window; each subsequent tick it checks whether the window has
// elapsed and whether any frame was heard during it, matching
// windowCollisionPrevention's busy/retry/give-up structure without
// blocking the caller.
func (n *Node) advanceLBT(nowMS int64, heardActivity bool) {
	if !n.radioIdle {
		return
	}

	if !n.lbt.active {
		if _, ok := n.queue.Ready(nowMS); !ok {
			return
		}
		n.lbt = lbtState{active: true, attempt: 1, windowStart: nowMS}
		return
	}

	if heardActivity {
		n.lbt.sawActivity = true
	}

	if nowMS-n.lbt.windowStart < ListenWindowMS {
		return
	}

	if n.lbt.sawActivity && n.lbt.attempt < MaxWindowRetries {
		n.lbt.attempt++
		n.lbt.windowStart = nowMS
		n.lbt.sawActivity = false
		return
	}

	// Channel considered free (or retries exhausted): send the next ready
	// item, if one is still there.
	n.lbt = lbtState{}
	i, ok := n.queue.Ready(nowMS)
	if !ok {
		return
	}
	n.transmit(n.queue.Take(i), nowMS)
}

func (n *Node) transmit(pkt *Packet, nowMS int64) {
	bufPtr := PacketPool.Get().(*[]byte)
	defer PacketPool.Put(bufPtr)
	buf := *bufPtr

	size, err := Encode(pkt, buf)
	if err != nil {
		n.logger.Error("failed to encode outbound packet", slog.Any("error", err))
		return
	}

	if err := n.driver.Send(buf[:size]); err != nil {
		n.logger.Warn("radio send failed", slog.Any("error", err))
		return
	}
	n.radioIdle = false
	n.txCounters[pkt.Kind]++
	if n.metrics != nil {
		n.metrics.IncFramesSent(n.nodeID, pkt.Kind.String())
		if pkt.Kind == KindAlt {
			n.metrics.IncAltSent(n.nodeID)
		}
	}

	switch pkt.Kind {
	case KindData:
		n.pending.Add(*pkt.Data, nowMS)
	case KindAck:
		n.ackReplay.Remember(pkt.Ack.MessageID, nowMS)
	}
}
