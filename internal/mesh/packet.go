package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// -------------------------------------------------------------------------
// Wire Constants
// -------------------------------------------------------------------------

// MaxPacketSize is the upper bound on an accepted frame, in bytes.
// Frames larger than this are rejected upstream of the codec.
const MaxPacketSize = 256

// InvalidNextHop is the sentinel next-hop value meaning "no route".
const InvalidNextHop uint16 = 0xFFFF

// Fixed wire sizes per packet kind. All fields are little-endian,
// field-by-field, with no padding (matches the original firmware's raw
// little-endian struct layout — see SPEC_FULL.md §6).
const (
	dataWireSize  = 19 // type(1) + mesh(2) + msgID(4) + origin(2) + dest(2) + nextHop(2) + extra(1) + ttl(1) + payload(4)
	ackWireSize   = 11 // type(1) + mesh(2) + msgID(4) + origin(2) + dest(2)
	helloWireSize = 9  // type(1) + mesh(2) + msgID(4) + origin(2)
	altWireSize   = 11 // type(1) + mesh(2) + msgID(4) + origin(2) + dest(2)
)

// Kind identifies one of the four packet variants by its wire discriminator
// byte (SPEC_FULL.md §3: DATA=1, ACK=2, HELLO=3, ALT=4).
type Kind uint8

const (
	KindData  Kind = 1
	KindAck   Kind = 2
	KindHello Kind = 3
	KindAlt   Kind = 4
)

// String returns the human-readable name of the packet kind.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindAck:
		return "ACK"
	case KindHello:
		return "HELLO"
	case KindAlt:
		return "ALT"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// -------------------------------------------------------------------------
// Packet Variants
// -------------------------------------------------------------------------

// DataPacket carries an application payload one hop closer to Destination.
type DataPacket struct {
	MeshID      uint16
	MessageID   uint32
	Origin      uint16
	Destination uint16
	NextHop     uint16
	Extra       byte
	TTL         uint8
	Payload     uint32
}

// AckPacket acknowledges receipt of a DATA packet, hop-by-hop.
type AckPacket struct {
	MeshID      uint16
	MessageID   uint32 // message-ID of the DATA packet being acknowledged
	Origin      uint16 // ACK sender
	Destination uint16 // ACK target (the previous hop)
}

// HelloPacket is a periodic beacon used for neighbor discovery.
type HelloPacket struct {
	MeshID    uint16
	MessageID uint32
	Origin    uint16
}

// AltPacket asks the previous hop to choose a different next-hop because a
// DATA packet was received here as a duplicate.
type AltPacket struct {
	MeshID      uint16
	MessageID   uint32 // message-ID of the offending DATA packet
	Origin      uint16 // ALT sender
	Destination uint16 // previous hop
}

// Packet is a tagged union over the four wire variants. Exactly one of the
// pointer fields matching Kind is non-nil; dispatch on Kind is exhaustive,
// never a shared base type with virtual operations (SPEC_FULL.md §9).
type Packet struct {
	Kind  Kind
	Data  *DataPacket
	Ack   *AckPacket
	Hello *HelloPacket
	Alt   *AltPacket
}

// MeshID returns the packet's mesh tag regardless of variant.
func (p *Packet) MeshID() uint16 {
	switch p.Kind {
	case KindData:
		return p.Data.MeshID
	case KindAck:
		return p.Ack.MeshID
	case KindHello:
		return p.Hello.MeshID
	case KindAlt:
		return p.Alt.MeshID
	default:
		return 0
	}
}

// MessageID returns the packet's message-ID regardless of variant.
func (p *Packet) MessageID() uint32 {
	switch p.Kind {
	case KindData:
		return p.Data.MessageID
	case KindAck:
		return p.Ack.MessageID
	case KindHello:
		return p.Hello.MessageID
	case KindAlt:
		return p.Alt.MessageID
	default:
		return 0
	}
}

// -------------------------------------------------------------------------
// Message-ID Layout — SPEC_FULL.md §3
// -------------------------------------------------------------------------

// NewMessageID packs the type/origin/nonce layout: high byte = packet type,
// middle two bytes = originator node-ID, low byte = random nonce.
func NewMessageID(kind Kind, origin uint16, nonce uint8) uint32 {
	return uint32(kind)<<24 | uint32(origin)<<8 | uint32(nonce)
}

// MessageIDKind extracts the packet-type byte from a message-ID.
func MessageIDKind(id uint32) Kind {
	return Kind(id >> 24)
}

// MessageIDOrigin extracts the originator node-ID from a message-ID.
func MessageIDOrigin(id uint32) uint16 {
	return uint16(id >> 8)
}

// MessageIDNonce extracts the random nonce byte from a message-ID.
func MessageIDNonce(id uint32) uint8 {
	return uint8(id)
}

// -------------------------------------------------------------------------
// Codec Errors
// -------------------------------------------------------------------------

var (
	// ErrPacketTooShort indicates buf is shorter than the wire size for
	// its discriminated kind.
	ErrPacketTooShort = errors.New("packet too short")

	// ErrPacketTooLarge indicates buf exceeds MaxPacketSize.
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")

	// ErrUnknownKind indicates the discriminator byte does not match a
	// known packet kind. Per SPEC_FULL.md §4.A such frames are dropped
	// silently by the caller; Decode still reports the error so callers
	// can count/log it.
	ErrUnknownKind = errors.New("unknown packet discriminator")

	// ErrBufTooSmall indicates the destination buffer passed to Encode is
	// too small for the packet's wire size.
	ErrBufTooSmall = errors.New("buffer too small for packet")
)

// -------------------------------------------------------------------------
// Encode
// -------------------------------------------------------------------------

// WireSize returns the number of bytes Encode will write for p, or 0 if
// p.Kind is not recognized.
func (p *Packet) WireSize() int {
	switch p.Kind {
	case KindData:
		return dataWireSize
	case KindAck:
		return ackWireSize
	case KindHello:
		return helloWireSize
	case KindAlt:
		return altWireSize
	default:
		return 0
	}
}

// Encode serializes p into buf, field-by-field in declared order, and
// returns the number of bytes written. buf must be at least p.WireSize().
func Encode(p *Packet, buf []byte) (int, error) {
	size := p.WireSize()
	if size == 0 {
		return 0, fmt.Errorf("encode packet: kind %d: %w", p.Kind, ErrUnknownKind)
	}
	if len(buf) < size {
		return 0, fmt.Errorf("encode packet: need %d bytes, got %d: %w", size, len(buf), ErrBufTooSmall)
	}

	buf[0] = uint8(p.Kind)

	switch p.Kind {
	case KindData:
		d := p.Data
		binary.LittleEndian.PutUint16(buf[1:3], d.MeshID)
		binary.LittleEndian.PutUint32(buf[3:7], d.MessageID)
		binary.LittleEndian.PutUint16(buf[7:9], d.Origin)
		binary.LittleEndian.PutUint16(buf[9:11], d.Destination)
		binary.LittleEndian.PutUint16(buf[11:13], d.NextHop)
		buf[13] = d.Extra
		buf[14] = d.TTL
		binary.LittleEndian.PutUint32(buf[15:19], d.Payload)

	case KindAck:
		a := p.Ack
		binary.LittleEndian.PutUint16(buf[1:3], a.MeshID)
		binary.LittleEndian.PutUint32(buf[3:7], a.MessageID)
		binary.LittleEndian.PutUint16(buf[7:9], a.Origin)
		binary.LittleEndian.PutUint16(buf[9:11], a.Destination)

	case KindHello:
		h := p.Hello
		binary.LittleEndian.PutUint16(buf[1:3], h.MeshID)
		binary.LittleEndian.PutUint32(buf[3:7], h.MessageID)
		binary.LittleEndian.PutUint16(buf[7:9], h.Origin)

	case KindAlt:
		al := p.Alt
		binary.LittleEndian.PutUint16(buf[1:3], al.MeshID)
		binary.LittleEndian.PutUint32(buf[3:7], al.MessageID)
		binary.LittleEndian.PutUint16(buf[7:9], al.Origin)
		binary.LittleEndian.PutUint16(buf[9:11], al.Destination)
	}

	return size, nil
}

// -------------------------------------------------------------------------
// Decode
// -------------------------------------------------------------------------

// Decode reads the discriminator byte from buf and decodes exactly the
// bytes for that variant. Frames whose discriminator is not one of the
// four known kinds return ErrUnknownKind; callers drop these silently per
// SPEC_FULL.md §4.A. buf longer than the wire size is accepted (trailing
// bytes ignored) so callers may pass a fixed-size staging buffer directly.
func Decode(buf []byte) (*Packet, error) {
	if len(buf) > MaxPacketSize {
		return nil, fmt.Errorf("decode packet: %d bytes: %w", len(buf), ErrPacketTooLarge)
	}
	if len(buf) < 1 {
		return nil, fmt.Errorf("decode packet: %w", ErrPacketTooShort)
	}

	kind := Kind(buf[0])

	var size int
	switch kind {
	case KindData:
		size = dataWireSize
	case KindAck:
		size = ackWireSize
	case KindHello:
		size = helloWireSize
	case KindAlt:
		size = altWireSize
	default:
		return nil, fmt.Errorf("decode packet: discriminator %d: %w", buf[0], ErrUnknownKind)
	}

	if len(buf) < size {
		return nil, fmt.Errorf("decode %s packet: need %d bytes, got %d: %w", kind, size, len(buf), ErrPacketTooShort)
	}

	p := &Packet{Kind: kind}

	switch kind {
	case KindData:
		p.Data = &DataPacket{
			MeshID:      binary.LittleEndian.Uint16(buf[1:3]),
			MessageID:   binary.LittleEndian.Uint32(buf[3:7]),
			Origin:      binary.LittleEndian.Uint16(buf[7:9]),
			Destination: binary.LittleEndian.Uint16(buf[9:11]),
			NextHop:     binary.LittleEndian.Uint16(buf[11:13]),
			Extra:       buf[13],
			TTL:         buf[14],
			Payload:     binary.LittleEndian.Uint32(buf[15:19]),
		}

	case KindAck:
		p.Ack = &AckPacket{
			MeshID:      binary.LittleEndian.Uint16(buf[1:3]),
			MessageID:   binary.LittleEndian.Uint32(buf[3:7]),
			Origin:      binary.LittleEndian.Uint16(buf[7:9]),
			Destination: binary.LittleEndian.Uint16(buf[9:11]),
		}

	case KindHello:
		p.Hello = &HelloPacket{
			MeshID:    binary.LittleEndian.Uint16(buf[1:3]),
			MessageID: binary.LittleEndian.Uint32(buf[3:7]),
			Origin:    binary.LittleEndian.Uint16(buf[7:9]),
		}

	case KindAlt:
		p.Alt = &AltPacket{
			MeshID:      binary.LittleEndian.Uint16(buf[1:3]),
			MessageID:   binary.LittleEndian.Uint32(buf[3:7]),
			Origin:      binary.LittleEndian.Uint16(buf[7:9]),
			Destination: binary.LittleEndian.Uint16(buf[9:11]),
		}
	}

	return p, nil
}

// -------------------------------------------------------------------------
// PacketPool — reusable staging buffers
// -------------------------------------------------------------------------

// PacketPool provides reusable MaxPacketSize buffers for radio I/O, the way
// the teacher's bfd.PacketPool avoids per-frame allocation on the hot path.
var PacketPool = sync.Pool{
	New: func() any {
		buf := make([]byte, MaxPacketSize)
		return &buf
	},
}
