package radio

import "sync"

// DefaultBusRSSI is the signal strength reported for every frame delivered
// over a Bus, absent a more detailed propagation model. Bus is a test and
// simulation harness, not a physical-layer model.
const DefaultBusRSSI int16 = -40

// Bus is an in-process shared medium connecting any number of BusDriver
// instances, standing in for RF propagation between simulated nodes in the
// same process. Delivery is synchronous: Send returns only after every
// other subscriber has observed the frame, which keeps multi-node tests
// deterministic without a goroutine per node.
type Bus struct {
	mu          sync.Mutex
	subscribers []*BusDriver
}

// NewBus constructs an empty shared medium.
func NewBus() *Bus {
	return &Bus{}
}

// NewDriver attaches a new BusDriver to the bus and returns it.
func (b *Bus) NewDriver() *BusDriver {
	d := &BusDriver{bus: b}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, d)
	b.mu.Unlock()
	return d
}

func (b *Bus) deliver(from *BusDriver, frame []byte) {
	b.mu.Lock()
	subs := make([]*BusDriver, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	// Every subscriber receives the same bytes, so an oversize frame is
	// discarded for all of them here rather than per-subscriber: no
	// SignalRxDone means the frame never registers as channel activity.
	if len(frame) > MaxFrameSize {
		return
	}

	for _, sub := range subs {
		if sub == from {
			continue
		}
		cp := make([]byte, len(frame))
		copy(cp, frame)
		sub.events.SignalRxDone(&RxFrame{Data: cp, RSSI: DefaultBusRSSI})
	}
}

func (b *Bus) remove(d *BusDriver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == d {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// BusDriver is a Driver implementation backed by a Bus. Send delivers
// synchronously to every other driver on the same bus and immediately
// signals its own tx-done event — there is no simulated air time or
// collision; callers wanting LBT/collision behavior exercise it at the mesh
// scheduler layer, which is oblivious to the transport underneath.
type BusDriver struct {
	bus    *Bus
	events EventFlags
}

// Send implements Driver.
func (d *BusDriver) Send(frame []byte) error {
	d.bus.deliver(d, frame)
	d.events.SignalTxDone()
	return nil
}

// Listen implements Driver. The bus delivers to every subscriber
// unconditionally, so Listen is a no-op.
func (d *BusDriver) Listen() error { return nil }

// Events implements Driver.
func (d *BusDriver) Events() *EventFlags { return &d.events }

// Close implements Driver, detaching this driver from its bus.
func (d *BusDriver) Close() error {
	d.bus.remove(d)
	return nil
}
