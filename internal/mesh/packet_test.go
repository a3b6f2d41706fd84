package mesh

import (
	"errors"
	"testing"
)

func TestMessageIDRoundTrip(t *testing.T) {
	id := NewMessageID(KindData, 0x1234, 0xAB)
	if got := MessageIDKind(id); got != KindData {
		t.Fatalf("MessageIDKind = %v, want %v", got, KindData)
	}
	if got := MessageIDOrigin(id); got != 0x1234 {
		t.Fatalf("MessageIDOrigin = %#x, want %#x", got, 0x1234)
	}
	if got := MessageIDNonce(id); got != 0xAB {
		t.Fatalf("MessageIDNonce = %#x, want %#x", got, 0xAB)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		pkt  *Packet
	}{
		{
			name: "data",
			pkt: &Packet{Kind: KindData, Data: &DataPacket{
				MeshID: 7, MessageID: NewMessageID(KindData, 100, 9),
				Origin: 100, Destination: 200, NextHop: 150,
				Extra: 3, TTL: 5, Payload: 0xDEADBEEF,
			}},
		},
		{
			name: "ack",
			pkt: &Packet{Kind: KindAck, Ack: &AckPacket{
				MeshID: 7, MessageID: NewMessageID(KindData, 100, 9),
				Origin: 150, Destination: 100,
			}},
		},
		{
			name: "hello",
			pkt: &Packet{Kind: KindHello, Hello: &HelloPacket{
				MeshID: 7, MessageID: NewMessageID(KindHello, 42, 1), Origin: 42,
			}},
		},
		{
			name: "alt",
			pkt: &Packet{Kind: KindAlt, Alt: &AltPacket{
				MeshID: 7, MessageID: NewMessageID(KindData, 100, 9),
				Origin: 200, Destination: 150,
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, MaxPacketSize)
			n, err := Encode(tc.pkt, buf)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(buf[:n])
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Kind != tc.pkt.Kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tc.pkt.Kind)
			}
			switch tc.pkt.Kind {
			case KindData:
				if *got.Data != *tc.pkt.Data {
					t.Fatalf("Data = %+v, want %+v", got.Data, tc.pkt.Data)
				}
			case KindAck:
				if *got.Ack != *tc.pkt.Ack {
					t.Fatalf("Ack = %+v, want %+v", got.Ack, tc.pkt.Ack)
				}
			case KindHello:
				if *got.Hello != *tc.pkt.Hello {
					t.Fatalf("Hello = %+v, want %+v", got.Hello, tc.pkt.Hello)
				}
			case KindAlt:
				if *got.Alt != *tc.pkt.Alt {
					t.Fatalf("Alt = %+v, want %+v", got.Alt, tc.pkt.Alt)
				}
			}
		})
	}
}

func TestDecodeUnknownKindDropped(t *testing.T) {
	buf := []byte{0x99, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	_, err := Decode(buf)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Decode err = %v, want ErrUnknownKind", err)
	}
}

func TestDecodeTooShort(t *testing.T) {
	buf := []byte{uint8(KindData), 1, 2}
	_, err := Decode(buf)
	if !errors.Is(err, ErrPacketTooShort) {
		t.Fatalf("Decode err = %v, want ErrPacketTooShort", err)
	}
}

func TestDecodeTooLarge(t *testing.T) {
	buf := make([]byte, MaxPacketSize+1)
	buf[0] = uint8(KindData)
	_, err := Decode(buf)
	if !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("Decode err = %v, want ErrPacketTooLarge", err)
	}
}

func TestEncodeBufTooSmall(t *testing.T) {
	pkt := &Packet{Kind: KindData, Data: &DataPacket{}}
	buf := make([]byte, 4)
	_, err := Encode(pkt, buf)
	if !errors.Is(err, ErrBufTooSmall) {
		t.Fatalf("Encode err = %v, want ErrBufTooSmall", err)
	}
}

func TestEncodeUnknownKind(t *testing.T) {
	pkt := &Packet{Kind: Kind(0xAA)}
	buf := make([]byte, MaxPacketSize)
	_, err := Encode(pkt, buf)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Encode err = %v, want ErrUnknownKind", err)
	}
}
