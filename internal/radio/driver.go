// Package radio abstracts the half-duplex LoRa transceiver beneath the mesh
// core. A Driver only ever reports completion asynchronously through
// EventFlags — never by calling back into the core directly — so the core's
// single-threaded tick loop stays in full control of when it observes and
// reacts to radio events (SPEC_FULL.md §4.G, §5).
package radio

import "sync/atomic"

// MaxFrameSize is the upper bound on a frame a driver will hand up to the
// core, mirroring mesh.MaxPacketSize at the transport boundary (the radio
// package cannot import mesh without a cycle). A frame larger than this is
// discarded at reception, matching the original firmware's OnRxDone, which
// returns before setting receptionDone when size exceeds MAX_PACKET_SIZE.
const MaxFrameSize = 256

// RxFrame is one received frame plus its signal strength, captured at the
// moment the driver signaled reception complete.
type RxFrame struct {
	Data []byte
	RSSI int16
}

// EventFlags is the atomic flag-based handoff between a driver's interrupt
// or I/O-completion context and the core's cooperative tick loop. It plays
// the same role as the original firmware's three free-standing
// volatile-bool globals (transmissionDone, transmissionError,
// receptionDone), generalized into one reusable, per-driver shim backed by
// sync/atomic instead of a mutex — the handoff is a single-writer,
// single-reader flag set, not a critical section.
type EventFlags struct {
	txDone    atomic.Bool
	txTimeout atomic.Bool
	rxReady   atomic.Bool
	rxFrame   atomic.Pointer[RxFrame]
}

// SignalTxDone marks the in-flight transmission as having completed
// successfully. Called from the driver's send path.
func (f *EventFlags) SignalTxDone() { f.txDone.Store(true) }

// SignalTxTimeout marks the in-flight transmission as having timed out.
func (f *EventFlags) SignalTxTimeout() { f.txTimeout.Store(true) }

// SignalRxDone records a received frame for delivery to the poll loop.
func (f *EventFlags) SignalRxDone(frame *RxFrame) {
	f.rxFrame.Store(frame)
	f.rxReady.Store(true)
}

// Poll atomically drains all pending flags and returns what fired since the
// last call. Safe to call repeatedly from the tick loop; returns zero
// values when nothing is pending.
func (f *EventFlags) Poll() (txDone, txTimeout bool, rx *RxFrame) {
	txDone = f.txDone.Swap(false)
	txTimeout = f.txTimeout.Swap(false)
	if f.rxReady.Swap(false) {
		rx = f.rxFrame.Swap(nil)
	}
	return txDone, txTimeout, rx
}

// Driver is the narrow contract the mesh core requires of a radio
// transport. Send must not block waiting for the transmission to complete;
// completion is reported later through Events().
type Driver interface {
	// Send begins transmitting frame. Returns an error only for conditions
	// detectable synchronously (e.g. frame too large); asynchronous
	// failures are reported as a tx-timeout event.
	Send(frame []byte) error

	// Listen places the driver into continuous receive mode. Received
	// frames are reported through Events().
	Listen() error

	// Events returns the flag shim this driver signals into. The core
	// polls it once per tick.
	Events() *EventFlags

	// Close releases any underlying resources (sockets, goroutines).
	Close() error
}
