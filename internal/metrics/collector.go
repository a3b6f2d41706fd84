package meshmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "meshd"
	subsystem = "mesh"
)

// Label names for mesh metrics.
const (
	labelNodeID = "node_id"
	labelKind   = "kind" // DATA, ACK, HELLO, ALT (mesh.Kind.String), or "undecodable"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Mesh Node Metrics
// -------------------------------------------------------------------------

// Collector holds all mesh node Prometheus metrics.
//
//   - Neighbors/Pending/Queue gauges track live table occupancy.
//   - Tx/Rx counters track frame volume per packet kind.
//   - Delivered/Forwarded/Dropped counters track the dispatch outcome.
//   - AckTimeouts and AltSent track the retry/reroute path.
type Collector struct {
	// Neighbors tracks the number of entries currently held in the
	// neighbor table.
	Neighbors *prometheus.GaugeVec

	// PendingAcks tracks the number of DATA packets awaiting an ACK.
	PendingAcks *prometheus.GaugeVec

	// QueueDepth tracks the number of frames currently scheduled for
	// transmission.
	QueueDepth *prometheus.GaugeVec

	// FramesSent counts transmitted frames per packet kind.
	FramesSent *prometheus.CounterVec

	// FramesReceived counts received frames per packet kind that decoded
	// and carried this node's mesh ID, before the dispatcher's per-type
	// drop filters are applied.
	FramesReceived *prometheus.CounterVec

	// FramesDropped counts frames discarded before dispatch (undecodable
	// frames, or a wrong mesh ID) per packet kind. Frames dropped by the
	// dispatcher's per-type filters are not counted here.
	FramesDropped *prometheus.CounterVec

	// Delivered counts application payloads that reached this node as
	// their final destination.
	Delivered *prometheus.CounterVec

	// Forwarded counts DATA packets relayed toward another hop.
	Forwarded *prometheus.CounterVec

	// AckTimeouts counts pending-ACK entries that expired without a
	// matching ACK.
	AckTimeouts *prometheus.CounterVec

	// AltSent counts ALT packets sent back toward an origin to suggest
	// an alternate route.
	AltSent *prometheus.CounterVec
}

// NewCollector creates a Collector with all mesh metrics registered against
// the provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
//
// All metrics are created with the "meshd_mesh_" prefix (namespace_subsystem)
// to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Neighbors,
		c.PendingAcks,
		c.QueueDepth,
		c.FramesSent,
		c.FramesReceived,
		c.FramesDropped,
		c.Delivered,
		c.Forwarded,
		c.AckTimeouts,
		c.AltSent,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	nodeLabels := []string{labelNodeID}
	kindLabels := []string{labelNodeID, labelKind}

	return &Collector{
		Neighbors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "neighbors",
			Help:      "Number of entries currently tracked in the neighbor table.",
		}, nodeLabels),

		PendingAcks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_acks",
			Help:      "Number of DATA packets currently awaiting an ACK.",
		}, nodeLabels),

		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Number of frames currently scheduled for transmission.",
		}, nodeLabels),

		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_sent_total",
			Help:      "Total frames transmitted, labeled by packet kind.",
		}, kindLabels),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Total frames received, labeled by packet kind.",
		}, kindLabels),

		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Total frames discarded by a drop filter, labeled by packet kind.",
		}, kindLabels),

		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivered_total",
			Help:      "Total application payloads delivered at this node.",
		}, nodeLabels),

		Forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "forwarded_total",
			Help:      "Total DATA packets relayed toward another hop.",
		}, nodeLabels),

		AckTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ack_timeouts_total",
			Help:      "Total pending-ACK entries that expired without a matching ACK.",
		}, nodeLabels),

		AltSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alt_sent_total",
			Help:      "Total ALT packets sent to suggest an alternate route.",
		}, nodeLabels),
	}
}

// -------------------------------------------------------------------------
// Table Occupancy
// -------------------------------------------------------------------------

// SetNeighbors records the current neighbor table occupancy for nodeID.
func (c *Collector) SetNeighbors(nodeID uint16, n int) {
	c.Neighbors.WithLabelValues(nodeIDLabel(nodeID)).Set(float64(n))
}

// SetPendingAcks records the current pending-ACK table occupancy for nodeID.
func (c *Collector) SetPendingAcks(nodeID uint16, n int) {
	c.PendingAcks.WithLabelValues(nodeIDLabel(nodeID)).Set(float64(n))
}

// SetQueueDepth records the current transmit queue occupancy for nodeID.
func (c *Collector) SetQueueDepth(nodeID uint16, n int) {
	c.QueueDepth.WithLabelValues(nodeIDLabel(nodeID)).Set(float64(n))
}

// -------------------------------------------------------------------------
// Frame Counters
// -------------------------------------------------------------------------

// IncFramesSent increments the transmitted frame counter for nodeID and kind.
func (c *Collector) IncFramesSent(nodeID uint16, kind string) {
	c.FramesSent.WithLabelValues(nodeIDLabel(nodeID), kind).Inc()
}

// IncFramesReceived increments the received frame counter for nodeID and kind.
func (c *Collector) IncFramesReceived(nodeID uint16, kind string) {
	c.FramesReceived.WithLabelValues(nodeIDLabel(nodeID), kind).Inc()
}

// IncFramesDropped increments the dropped frame counter for nodeID and kind.
func (c *Collector) IncFramesDropped(nodeID uint16, kind string) {
	c.FramesDropped.WithLabelValues(nodeIDLabel(nodeID), kind).Inc()
}

// -------------------------------------------------------------------------
// Dispatch Outcomes
// -------------------------------------------------------------------------

// IncDelivered increments the delivered-payload counter for nodeID.
func (c *Collector) IncDelivered(nodeID uint16) {
	c.Delivered.WithLabelValues(nodeIDLabel(nodeID)).Inc()
}

// IncForwarded increments the forwarded-packet counter for nodeID.
func (c *Collector) IncForwarded(nodeID uint16) {
	c.Forwarded.WithLabelValues(nodeIDLabel(nodeID)).Inc()
}

// IncAckTimeouts increments the ACK-timeout counter for nodeID.
func (c *Collector) IncAckTimeouts(nodeID uint16) {
	c.AckTimeouts.WithLabelValues(nodeIDLabel(nodeID)).Inc()
}

// IncAltSent increments the ALT-sent counter for nodeID.
func (c *Collector) IncAltSent(nodeID uint16) {
	c.AltSent.WithLabelValues(nodeIDLabel(nodeID)).Inc()
}

func nodeIDLabel(nodeID uint16) string {
	return strconv.FormatUint(uint64(nodeID), 10)
}
