package radio

import (
	"errors"
	"log/slog"
	"net"
	"syscall"
)

// UDPBusConfig configures a UDPBusDriver. Every node on the same simulated
// mesh joins the same multicast group/port, turning the host's network
// stack into the shared medium for a multi-process demo — the real-network
// analogue of Bus.
type UDPBusConfig struct {
	// Group is the multicast group address, e.g. 239.192.10.10.
	Group net.IP
	// Port is the UDP port all participants bind to.
	Port int
	// Iface selects the outgoing multicast interface. Nil uses the
	// system default.
	Iface  *net.Interface
	Logger *slog.Logger
}

// UDPBusDriver is a Driver backed by a UDP multicast socket, adapted from
// the teacher's netio socket-handling idiom: a background read loop feeds
// EventFlags, Send writes synchronously, and Close tears the goroutine
// down cleanly.
type UDPBusDriver struct {
	conn   *net.UDPConn
	dst    *net.UDPAddr
	events EventFlags
	logger *slog.Logger
	done   chan struct{}
}

// NewUDPBusDriver joins the configured multicast group and starts the
// background receive loop.
func NewUDPBusDriver(cfg UDPBusConfig) (*UDPBusDriver, error) {
	if cfg.Group == nil || !cfg.Group.IsMulticast() {
		return nil, errors.New("radio: UDPBusConfig.Group must be a multicast address")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	groupAddr := &net.UDPAddr{IP: cfg.Group, Port: cfg.Port}
	conn, err := net.ListenMulticastUDP("udp", cfg.Iface, groupAddr)
	if err != nil {
		return nil, err
	}
	conn.SetReadBuffer(64 * 1024)
	// ListenMulticastUDP turns IP_MULTICAST_LOOP off; turn it back on so
	// drivers on the same host hear each other's frames.
	if rc, err := conn.SyscallConn(); err == nil {
		_ = rc.Control(func(fd uintptr) {
			_ = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_MULTICAST_LOOP, 1)
		})
	}

	d := &UDPBusDriver{
		conn:   conn,
		dst:    groupAddr,
		logger: logger.With(slog.String("component", "radio.udpbus"), slog.String("group", groupAddr.String())),
		done:   make(chan struct{}),
	}
	go d.readLoop()
	return d, nil
}

func (d *UDPBusDriver) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, _, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-d.done:
				return
			default:
				d.logger.Warn("multicast read failed", slog.Any("error", err))
				return
			}
		}
		if n > MaxFrameSize {
			d.logger.Debug("dropping oversize frame", slog.Int("size", n))
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		// UDP multicast carries no RSSI; callers relying on signal
		// strength for routing decisions should prefer Bus in tests.
		d.events.SignalRxDone(&RxFrame{Data: frame, RSSI: 0})
	}
}

// Send implements Driver.
func (d *UDPBusDriver) Send(frame []byte) error {
	_, err := d.conn.WriteToUDP(frame, d.dst)
	if err != nil {
		d.events.SignalTxTimeout()
		return err
	}
	d.events.SignalTxDone()
	return nil
}

// Listen implements Driver. The socket is already in continuous receive
// mode from construction, so Listen is a no-op.
func (d *UDPBusDriver) Listen() error { return nil }

// Events implements Driver.
func (d *UDPBusDriver) Events() *EventFlags { return &d.events }

// Close implements Driver, stopping the read loop and releasing the socket.
func (d *UDPBusDriver) Close() error {
	close(d.done)
	return d.conn.Close()
}
