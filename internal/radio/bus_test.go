package radio

import "testing"

func TestBusDeliversToOtherSubscribersOnly(t *testing.T) {
	bus := NewBus()
	a := bus.NewDriver()
	b := bus.NewDriver()

	if err := a.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	txDone, _, rx := a.Events().Poll()
	if !txDone {
		t.Fatalf("sender should observe its own tx-done event")
	}
	if rx != nil {
		t.Fatalf("sender should not receive its own frame")
	}

	_, _, rxB := b.Events().Poll()
	if rxB == nil || string(rxB.Data) != "hello" {
		t.Fatalf("receiver frame = %+v, want \"hello\"", rxB)
	}
}

func TestBusClosedDriverStopsReceiving(t *testing.T) {
	bus := NewBus()
	a := bus.NewDriver()
	b := bus.NewDriver()
	b.Close()

	a.Send([]byte("ping"))
	_, _, rx := b.Events().Poll()
	if rx != nil {
		t.Fatalf("closed driver should not receive further frames")
	}
}

func TestBusDropsOversizeFrameSilently(t *testing.T) {
	bus := NewBus()
	a := bus.NewDriver()
	b := bus.NewDriver()

	oversize := make([]byte, MaxFrameSize+1)
	if err := a.Send(oversize); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, _, rx := b.Events().Poll()
	if rx != nil {
		t.Fatalf("receiver should not observe an oversize frame, got %+v", rx)
	}
}

func TestEventFlagsPollDrainsOnce(t *testing.T) {
	var f EventFlags
	f.SignalTxDone()
	f.SignalRxDone(&RxFrame{Data: []byte("x"), RSSI: -50})

	txDone, txTimeout, rx := f.Poll()
	if !txDone || txTimeout || rx == nil {
		t.Fatalf("first poll = (%v, %v, %v)", txDone, txTimeout, rx)
	}
	txDone2, _, rx2 := f.Poll()
	if txDone2 || rx2 != nil {
		t.Fatalf("second poll should be empty, got (%v, %v)", txDone2, rx2)
	}
}
